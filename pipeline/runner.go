// Package pipeline runs one scrape end to end: load the history, list and
// page through the courses, read each report, merge and persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/use-agent/lmstrack/cache"
	"github.com/use-agent/lmstrack/config"
	"github.com/use-agent/lmstrack/history"
	"github.com/use-agent/lmstrack/models"
	"github.com/use-agent/lmstrack/scraper"
	"github.com/use-agent/lmstrack/webhook"
)

// detailCacheSize bounds the per-run report cache.
const detailCacheSize = 4096

// Portal is an authenticated portal session.
type Portal interface {
	scraper.ListView
	scraper.DetailSource
	Close() error
}

// Connector opens an authenticated Portal.
type Connector func(ctx context.Context) (Portal, error)

// Publisher uploads the saved history file.
type Publisher interface {
	UploadFile(ctx context.Context, localPath, remoteFileName string) error
}

// Notifier announces finished runs.
type Notifier interface {
	Notify(eventType, runID string, data any)
}

// Runner executes scrape runs. Runs must not overlap; Scheduler enforces that.
type Runner struct {
	cfg       *config.Config
	connect   Connector
	publisher Publisher
	notifier  Notifier
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher uploads the history file after every successful save.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithNotifier sends run.completed / run.failed events.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, connect Connector, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, connect: connect, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one scrape. Faults confined to a page or a course never stop
// the run: the history is always merged and saved with whatever was
// collected. The returned error is non-nil when the store could not be read
// or written, the portal could not be opened, or ctx was cancelled; the
// summary is returned in every case.
func (r *Runner) Run(ctx context.Context, runID string) (*Summary, error) {
	sum := &Summary{
		RunID:     runID,
		StartedAt: r.now(),
		DataFile:  r.cfg.Store.DataFile,
	}
	log := slog.With("run_id", runID)
	log.Info("run started", "base_url", r.cfg.LMS.BaseURL, "data_file", sum.DataFile)

	err := r.run(ctx, sum, log)
	sum.finish(r.now())

	if err != nil {
		sum.fail(err)
		log.Error("run failed", "code", sum.ErrorCode, "error", err, "duration", sum.Duration)
		r.notify(webhook.EventRunFailed, sum)
		return sum, err
	}

	log.Info("run completed",
		"pages", sum.Pages,
		"rows", sum.Rows,
		"succeeded", sum.Succeeded,
		"partial", sum.Partial,
		"failed", sum.Failed,
		"added", len(sum.Added),
		"updated", len(sum.Updated),
		"duration", sum.Duration,
	)
	r.notify(webhook.EventRunCompleted, sum)
	return sum, nil
}

func (r *Runner) run(ctx context.Context, sum *Summary, log *slog.Logger) error {
	now := r.now()
	today := history.Today(now)
	sum.Date = today
	path := r.cfg.Store.DataFile

	ds, err := history.Load(path, today)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "failed to load history", err)
	}

	if dir := r.cfg.Store.ArchiveDir; dir != "" {
		archive, err := history.Archive(path, dir, now)
		if err != nil {
			r.warn(sum, log, "archive", err)
		}
		sum.Archive = archive
	}

	// Written before scraping so a first run leaves the canonical header
	// behind and legacy cells are migrated even if the portal is unreachable.
	if err := history.Save(path, ds); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "failed to save history", err)
	}

	outcomes, scrapeErr := r.scrape(ctx, sum, log)

	report := history.Merge(ds, outcomes, today, history.MergeOptions{
		RefreshMetadata: r.cfg.Store.RefreshMetadata,
	})
	sum.Added = report.Added
	sum.Updated = report.Updated
	sum.Courses = ds.Len()
	for _, o := range report.Skipped {
		log.Warn("course not merged", "title", o.Row.Title, "id", o.Row.ID, "status", o.Status, "reason", o.Reason)
	}

	if err := history.Save(path, ds); err != nil {
		return models.NewScrapeError(models.ErrCodeStore, "failed to save history", err)
	}

	// Persistence side steps outlive a cancelled scrape.
	sideCtx := context.WithoutCancel(ctx)
	r.mirror(sideCtx, ds, sum, log)
	r.publish(sideCtx, sum, log)

	return scrapeErr
}

// scrape connects, pages through the course table and reads the report of
// every listed course, page by page.
func (r *Runner) scrape(ctx context.Context, sum *Summary, log *slog.Logger) ([]models.Outcome, error) {
	portal, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := portal.Close(); err != nil {
			log.Warn("failed to close portal session", "error", err)
		}
	}()

	c := cache.New(detailCacheSize, time.Hour)
	defer c.Close()
	fetcher := scraper.NewDetailFetcher(portal, r.cfg.LMS.BaseURL, r.cfg.LMS.DetailRPS, c)

	col := newCollector()
	visit := func(ctx context.Context, page int, rows []models.CourseRow) error {
		details := fetcher.Fetch(ctx, scraper.IDs(rows))
		col.add(BuildOutcomes(rows, details))
		log.Info("page processed", "page", page, "rows", len(rows), "courses", col.len())
		return nil
	}

	res, err := scraper.Paginate(ctx, portal, r.cfg.LMS.MaxPageAttempts, visit)
	sum.Pages = res.Pages
	sum.Advances = res.Advances
	sum.Attempts = res.Attempts
	sum.Exhausted = res.Exhausted

	outcomes := col.list()
	sum.count(outcomes)
	return outcomes, err
}

func (r *Runner) mirror(ctx context.Context, ds *history.Dataset, sum *Summary, log *slog.Logger) {
	if r.cfg.Store.SQLitePath == "" {
		return
	}
	m, err := history.OpenSQLite(r.cfg.Store.SQLitePath)
	if err != nil {
		r.warn(sum, log, "sqlite mirror", err)
		return
	}
	defer m.Close()
	if err := m.Sync(ctx, ds); err != nil {
		r.warn(sum, log, "sqlite mirror", err)
		return
	}
	log.Info("sqlite mirror synced", "path", r.cfg.Store.SQLitePath, "courses", ds.Len())
}

func (r *Runner) publish(ctx context.Context, sum *Summary, log *slog.Logger) {
	if r.publisher == nil {
		return
	}
	path := r.cfg.Store.DataFile
	if err := r.publisher.UploadFile(ctx, path, filepath.Base(path)); err != nil {
		r.warn(sum, log, "publish", err)
	}
}

func (r *Runner) warn(sum *Summary, log *slog.Logger, step string, err error) {
	log.Warn("run step failed", "step", step, "error", err)
	sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: %v", step, err))
}

func (r *Runner) notify(eventType string, sum *Summary) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(eventType, sum.RunID, sum)
}

// collector keeps one outcome per title in first-seen order. A later
// outcome replaces an earlier one only if it carries counters the earlier
// one lacked, which happens when a page is re-read after a fault.
type collector struct {
	order []string
	byKey map[string]models.Outcome
}

func newCollector() *collector {
	return &collector{byKey: make(map[string]models.Outcome)}
}

func (c *collector) add(outcomes []models.Outcome) {
	for _, o := range outcomes {
		key := o.Row.Title
		if key == "" {
			key = "\x00" + o.Row.ID + fmt.Sprint(len(c.order))
		}
		prev, seen := c.byKey[key]
		if !seen {
			c.order = append(c.order, key)
			c.byKey[key] = o
			continue
		}
		if prev.Status != models.OutcomeSuccess && o.Status == models.OutcomeSuccess {
			c.byKey[key] = o
		}
	}
}

func (c *collector) len() int {
	return len(c.order)
}

func (c *collector) list() []models.Outcome {
	out := make([]models.Outcome, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.byKey[k])
	}
	return out
}
