package history

import (
	"strings"

	"github.com/use-agent/lmstrack/models"
)

// MergeOptions tunes how re-sighted courses are treated.
type MergeOptions struct {
	// RefreshMetadata overwrites the display fields of an existing record
	// with the latest scrape. When false, first-seen values are kept.
	RefreshMetadata bool
}

// MergeReport summarises one Merge call.
type MergeReport struct {
	Added   []string         // titles seen for the first time
	Updated []string         // existing titles that received today's snapshot
	Skipped []models.Outcome // outcomes that carried no counters
}

// Merge folds scraped outcomes into ds under the date key today.
//
// Only successful outcomes touch the history mappings: an existing title gets
// its today entry set (overwritten on a same-day rerun), a new title gets a
// record seeded with today. Partial and failed outcomes are reported in
// Skipped and leave the dataset unchanged. Records are never removed.
func Merge(ds *Dataset, outcomes []models.Outcome, today string, opts MergeOptions) MergeReport {
	var report MergeReport
	added := make(map[string]struct{})
	updated := make(map[string]struct{})

	for _, o := range outcomes {
		title := o.Row.Title
		if o.Status != models.OutcomeSuccess || o.Stats == nil || strings.TrimSpace(title) == "" {
			report.Skipped = append(report.Skipped, o)
			continue
		}

		rec, exists := ds.Get(title)
		if !exists {
			rec = newRecord(title)
			setMetadata(rec, o.Row)
			ds.add(rec)
			added[title] = struct{}{}
			report.Added = append(report.Added, title)
		} else if opts.RefreshMetadata {
			setMetadata(rec, o.Row)
		}

		if rec.Enrollments == nil {
			rec.Enrollments = make(map[string]int)
		}
		if rec.Completed == nil {
			rec.Completed = make(map[string]int)
		}
		rec.Enrollments[today] = o.Stats.Enrollments
		rec.Completed[today] = o.Stats.Completed

		if _, isNew := added[title]; isNew {
			continue
		}
		if _, seen := updated[title]; !seen {
			updated[title] = struct{}{}
			report.Updated = append(report.Updated, title)
		}
	}
	return report
}

func setMetadata(rec *Record, row models.CourseRow) {
	rec.Type = row.Type
	rec.CreationDate = row.CreationDate
	rec.DaysSinceCreation = row.DaysSinceCreation
	rec.TrainingMaterials = row.TrainingMaterials
}
