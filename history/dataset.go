// Package history persists one record per course with a per-date snapshot of
// its enrollment and completion counters.
package history

import (
	"sort"
	"time"
)

// DateLayout is the key format of every history mapping.
const DateLayout = "2006-01-02"

// Today formats t as a history date key.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// Columns is the canonical column set of the persisted CSV.
var Columns = []string{
	"Title",
	"Type",
	"Creation Date",
	"Days Since Creation",
	"Training Materials",
	"Enrollments",
	"Completed",
}

// Record is the persisted history of one course.
type Record struct {
	Title             string
	Type              string
	CreationDate      string
	DaysSinceCreation string
	TrainingMaterials string

	// Enrollments and Completed map a date (DateLayout) to the counter value
	// observed on that date.
	Enrollments map[string]int
	Completed   map[string]int
}

func newRecord(title string) *Record {
	return &Record{
		Title:       title,
		Enrollments: make(map[string]int),
		Completed:   make(map[string]int),
	}
}

// Dates returns the sorted union of dates present in either mapping.
func (r *Record) Dates() []string {
	seen := make(map[string]struct{}, len(r.Enrollments))
	for d := range r.Enrollments {
		seen[d] = struct{}{}
	}
	for d := range r.Completed {
		seen[d] = struct{}{}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Latest returns the most recent snapshot. ok is false for a record with no history.
func (r *Record) Latest() (date string, enrollments, completed int, ok bool) {
	dates := r.Dates()
	if len(dates) == 0 {
		return "", 0, 0, false
	}
	date = dates[len(dates)-1]
	return date, r.Enrollments[date], r.Completed[date], true
}

// Dataset is the ordered set of history records, unique by title.
// It is not safe for concurrent use.
type Dataset struct {
	records []*Record
	index   map[string]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Get looks a record up by title.
func (d *Dataset) Get(title string) (*Record, bool) {
	i, ok := d.index[title]
	if !ok {
		return nil, false
	}
	return d.records[i], true
}

// Records returns the records in insertion order. The slice is a copy; the
// records are not.
func (d *Dataset) Records() []*Record {
	out := make([]*Record, len(d.records))
	copy(out, d.records)
	return out
}

// add appends r unless its title is already present, in which case the
// existing record is returned and ok is false.
func (d *Dataset) add(r *Record) (existing *Record, ok bool) {
	if i, dup := d.index[r.Title]; dup {
		return d.records[i], false
	}
	d.index[r.Title] = len(d.records)
	d.records = append(d.records, r)
	return r, true
}
