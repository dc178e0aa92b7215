package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/lmstrack/cache"
	"github.com/use-agent/lmstrack/history"
	"github.com/use-agent/lmstrack/models"
	"golang.org/x/time/rate"
)

// Counter positions in the report page's stats strip.
const (
	enrollmentsCounter = 0
	completedCounter   = 5
)

// DetailSource loads a course report page and returns the HTML of the
// document that holds the stats counters.
type DetailSource interface {
	ReportHTML(ctx context.Context, reportURL string) (string, error)
}

// DetailResult is the outcome of one identifier. Exactly one of Stats and Err is set.
type DetailResult struct {
	Stats *models.DetailStats
	Err   error
}

// DetailFetcher visits course report pages one at a time.
type DetailFetcher struct {
	src     DetailSource
	baseURL string
	limiter *rate.Limiter
	cache   *cache.Cache
}

// NewDetailFetcher creates a fetcher. rps <= 0 disables pacing; c may be nil.
func NewDetailFetcher(src DetailSource, baseURL string, rps float64, c *cache.Cache) *DetailFetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &DetailFetcher{
		src:     src,
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
		cache:   c,
	}
}

// DetailURL builds the report URL of a course.
func DetailURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/course/edit/" + id + ";tab=reports"
}

// Fetch visits the report page of every identifier in order and returns the
// results keyed by identifier. A failure for one identifier is logged and
// recorded in its entry; it never affects the others. If ctx is cancelled the
// remaining identifiers get ctx.Err().
func (f *DetailFetcher) Fetch(ctx context.Context, ids []string) map[string]DetailResult {
	out := make(map[string]DetailResult, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			out[id] = DetailResult{Err: err}
			continue
		}
		out[id] = f.fetchOne(ctx, id)
	}
	return out
}

func (f *DetailFetcher) fetchOne(ctx context.Context, id string) DetailResult {
	key := cache.Key(f.baseURL, id)
	if f.cache != nil {
		if stats, ok := f.cache.Get(key); ok {
			slog.Debug("report counters served from cache", "id", id)
			return DetailResult{Stats: &stats}
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return DetailResult{Err: err}
	}

	reportURL := DetailURL(f.baseURL, id)
	slog.Info("visiting course report", "id", id, "url", reportURL)

	start := time.Now()
	html, err := f.src.ReportHTML(ctx, reportURL)
	if err != nil {
		se := categorizeError(err, "failed to load course report")
		if se.Code == models.ErrCodeTimeout {
			se = models.NewScrapeError(models.ErrCodeDetail, "timed out waiting for report counters", err)
		}
		slog.Warn("course report failed", "id", id, "code", se.Code, "error", err)
		return DetailResult{Err: se}
	}

	stats, err := ParseCounters(html)
	if err != nil {
		slog.Warn("course report unreadable", "id", id, "error", err)
		return DetailResult{Err: err}
	}
	slog.Info("course report read", "id", id,
		"enrollments", stats.Enrollments, "completed", stats.Completed,
		"elapsed", time.Since(start))

	if f.cache != nil {
		f.cache.Set(key, stats)
	}
	return DetailResult{Stats: &stats}
}

// ParseCounters reads the stats strip of a report document: counter 0 is
// Enrollments and counter 5 is Completed. A missing counter reads as 0; a
// document without any counter is ELEMENT_NOT_FOUND.
func ParseCounters(html string) (models.DetailStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.DetailStats{}, models.NewScrapeError(models.ErrCodeParse, "failed to parse report page", err)
	}

	counters := doc.FindMatcher(counterMatcher)
	if counters.Length() == 0 {
		return models.DetailStats{}, models.NewScrapeError(models.ErrCodeNotFound, "no stats counters on report page", nil)
	}

	enrollments, err := counterAt(counters, enrollmentsCounter)
	if err != nil {
		return models.DetailStats{}, err
	}
	completed, err := counterAt(counters, completedCounter)
	if err != nil {
		return models.DetailStats{}, err
	}
	return models.DetailStats{Enrollments: enrollments, Completed: completed}, nil
}

func counterAt(counters *goquery.Selection, i int) (int, error) {
	if i >= counters.Length() {
		return 0, nil
	}
	text := strings.TrimSpace(counters.Eq(i).Text())
	if text == "" {
		return 0, nil
	}
	n, ok := history.ParseCount(text)
	if !ok {
		return 0, models.NewScrapeError(models.ErrCodeParse, "counter "+text+" is not a number", nil)
	}
	return n, nil
}
