package pipeline

import (
	"github.com/use-agent/lmstrack/models"
	"github.com/use-agent/lmstrack/scraper"
)

// BuildOutcomes pairs every listed row with its detail result by identifier.
// A row without an identifier, or whose identifier has no usable result,
// becomes a partial outcome; a row without a title is a failed outcome.
func BuildOutcomes(rows []models.CourseRow, details map[string]scraper.DetailResult) []models.Outcome {
	out := make([]models.Outcome, 0, len(rows))
	for _, row := range rows {
		o := models.Outcome{Row: row}
		switch res, ok := details[row.ID]; {
		case row.Title == "":
			o.Status = models.OutcomeFailed
			o.Reason = "row has no title"
		case row.ID == "":
			o.Status = models.OutcomePartial
			o.Reason = "row has no identifier"
		case !ok:
			o.Status = models.OutcomePartial
			o.Reason = "report page was not visited"
		case res.Err != nil:
			o.Status = models.OutcomePartial
			o.Reason = res.Err.Error()
		case res.Stats == nil:
			o.Status = models.OutcomePartial
			o.Reason = "report page yielded no counters"
		default:
			stats := *res.Stats
			o.Stats = &stats
			o.Status = models.OutcomeSuccess
		}
		out = append(out, o)
	}
	return out
}
