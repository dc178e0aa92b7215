package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/lmstrack/models"
)

// Summary describes one run. It is logged, returned by the API and sent in
// webhook payloads.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	Date       string    `json:"date"`

	Pages     int  `json:"pages"`
	Advances  int  `json:"advances"`
	Attempts  int  `json:"attempts"`
	Exhausted bool `json:"exhausted"`

	Rows      int `json:"rows"`
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`

	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Courses int      `json:"courses"`

	DataFile string `json:"data_file"`
	Archive  string `json:"archive,omitempty"`

	// Warnings are non-fatal step failures (mirror, publish).
	Warnings []string `json:"warnings,omitempty"`

	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// count tallies outcome statuses into the summary.
func (s *Summary) count(outcomes []models.Outcome) {
	for _, o := range outcomes {
		s.Rows++
		switch o.Status {
		case models.OutcomeSuccess:
			s.Succeeded++
		case models.OutcomePartial:
			s.Partial++
		default:
			s.Failed++
		}
	}
}

func (s *Summary) fail(err error) {
	s.ErrorCode = models.CodeOf(err)
	s.Error = err.Error()
}

func (s *Summary) finish(now time.Time) {
	s.FinishedAt = now
	s.Duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
}
