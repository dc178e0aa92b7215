package models

// CourseRow is one row of the course-management table.
type CourseRow struct {
	// ID is the row's data-id, used to build the report URL. Empty when the
	// row carries no identifier.
	ID string `json:"id,omitempty"`

	Title             string `json:"title"`
	Type              string `json:"type"`
	CreationDate      string `json:"creation_date"`
	DaysSinceCreation string `json:"days_since_creation"`
	TrainingMaterials string `json:"training_materials"`
}

// DetailStats are the counters read from a course's report page.
type DetailStats struct {
	Enrollments int `json:"enrollments"`
	Completed   int `json:"completed"`
}

// OutcomeStatus classifies how much of a course was scraped.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the per-course result threaded from the scraper to the merger.
type Outcome struct {
	Row    CourseRow     `json:"row"`
	Stats  *DetailStats  `json:"stats,omitempty"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}
