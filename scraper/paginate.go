package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/lmstrack/models"
)

// ListView is the paginated course table as seen by the driver.
type ListView interface {
	// CourseTableHTML returns the outer HTML of the course table currently shown.
	CourseTableHTML(ctx context.Context) (string, error)
	// NextDisabled reports whether the "next page" control is disabled.
	NextDisabled(ctx context.Context) (bool, error)
	// Next advances the view by one page.
	Next(ctx context.Context) error
}

// PaginationResult reports how a Paginate call ended.
type PaginationResult struct {
	Pages    int // page reads handed to visit; a page re-read after a fault counts again
	Advances int // successful next-page clicks
	Attempts int // advances plus faulted iterations
	// Exhausted is true when the next control was found disabled, false when
	// the attempt budget ran out first.
	Exhausted bool
}

// VisitFunc receives the rows of one page. page is 1-based. Returning an
// error counts as a faulted iteration.
type VisitFunc func(ctx context.Context, page int, rows []models.CourseRow) error

// Paginate reads the current page, hands its rows to visit and advances
// until the next control is disabled or maxAttempts iterations have been
// spent. Advances and faults (stale references included) share the budget.
// Only context cancellation aborts the loop with an error.
func Paginate(ctx context.Context, view ListView, maxAttempts int, visit VisitFunc) (PaginationResult, error) {
	var res PaginationResult
	for res.Attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		done, err := paginateStep(ctx, view, &res, visit)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Attempts++
			if errors.Is(err, models.ErrStale) {
				slog.Warn("stale element during pagination, retrying", "attempt", res.Attempts, "error", err)
			} else {
				slog.Error("pagination step failed", "attempt", res.Attempts, "error", err)
			}
			continue
		}
		if done {
			res.Exhausted = true
			slog.Info("reached the last page", "pages", res.Pages, "advances", res.Advances)
			return res, nil
		}
		res.Attempts++
		res.Advances++
	}
	slog.Warn("pagination attempt budget spent", "attempts", res.Attempts, "pages", res.Pages)
	return res, nil
}

// paginateStep handles one page: read, visit, then either report the last
// page (done) or click next.
func paginateStep(ctx context.Context, view ListView, res *PaginationResult, visit VisitFunc) (done bool, err error) {
	html, err := view.CourseTableHTML(ctx)
	if err != nil {
		return false, err
	}
	rows, err := ParseCourseTable(html)
	if err != nil {
		return false, err
	}

	res.Pages++
	slog.Info("course page read", "page", res.Pages, "rows", len(rows))
	if err := visit(ctx, res.Pages, rows); err != nil {
		return false, err
	}

	disabled, err := view.NextDisabled(ctx)
	if err != nil {
		return false, err
	}
	if disabled {
		return true, nil
	}
	return false, view.Next(ctx)
}
