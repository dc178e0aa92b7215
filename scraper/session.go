package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/lmstrack/config"
	"github.com/use-agent/lmstrack/models"
)

// Login form selectors.
const (
	selUsername = "#user_email"
	selContinue = ".button-primary"
	selPassword = "#user_password"
	selSubmit   = "input[type='submit'][value='Log in']"
)

// managePath is the path the portal lands on after a successful login.
const managePath = "/course/manage"

// Credentials are the portal login.
type Credentials struct {
	Username string
	Password string
}

// Session is an authenticated view of the portal: the listing tab implements
// ListView and a second tab of the same browser implements DetailSource.
// It is not safe for concurrent use.
type Session struct {
	scraper *Scraper
	cfg     config.LMSConfig
	creds   Credentials

	list   *tab
	detail *tab

	// next is the "next page" anchor located by the last NextDisabled call.
	next *rod.Element

	detailRelogged bool
}

// bounded returns page bound to ctx with the wait timeout applied.
func (s *Session) bounded(ctx context.Context, page *rod.Page, d time.Duration) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return page.Context(ctx), cancel
}

// navigate loads target on page within the navigation timeout.
func (s *Session) navigate(ctx context.Context, page *rod.Page, target string) error {
	p, cancel := s.bounded(ctx, page, s.cfg.NavigationTimeout)
	defer cancel()

	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "navigation to "+target+" failed")
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("load event not observed, proceeding with current DOM", "url", target, "error", err)
	}
	return nil
}

// Login drives the login form on page. Field-level faults are logged and the
// flow continues; the caller confirms success with WaitPathContains.
func (s *Session) Login(ctx context.Context, page *rod.Page) error {
	if err := s.navigate(ctx, page, s.cfg.LoginURL()); err != nil {
		return err
	}
	if s.stillAuthenticated(ctx, page) {
		slog.Info("browser session still authenticated, skipping login form")
		return nil
	}

	if err := s.fill(ctx, page, selUsername, s.creds.Username); err != nil {
		slog.Warn("username field not usable, continuing", "error", err)
	}
	if err := s.click(ctx, page, selContinue); err != nil {
		slog.Warn("continue button not usable, continuing", "error", err)
	}
	if err := s.fill(ctx, page, selPassword, s.creds.Password); err != nil {
		slog.Warn("password field not usable, continuing", "error", err)
	}
	// Submitted through JS, bypassing pointer hit-testing.
	if err := s.jsClick(ctx, page, selSubmit); err != nil {
		slog.Warn("login submit not usable, continuing", "error", err)
	}
	return nil
}

// stillAuthenticated waits for either the login form or the course table to
// render and reports whether the page is the course manager without a form,
// as happens when the browser kept its cookies from an earlier run.
func (s *Session) stillAuthenticated(ctx context.Context, page *rod.Page) bool {
	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	if _, err := p.Race().Element(selUsername).Element(selTable).Do(); err != nil {
		return false
	}
	info, err := page.Info()
	if err != nil {
		return false
	}
	return landedAuthenticated(info.URL, s.onLoginForm(page))
}

// landedAuthenticated reports whether a page at pageURL, with or without the
// login form, is an authenticated course manager.
func landedAuthenticated(pageURL string, loginForm bool) bool {
	if loginForm {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, managePath)
}

// WaitPathContains waits until the page's URL path contains sub.
func (s *Session) WaitPathContains(ctx context.Context, page *rod.Page, sub string) error {
	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	if err := p.Wait(rod.Eval(`(s) => location.pathname.includes(s)`, sub)); err != nil {
		return categorizeError(err, "timed out waiting for "+sub)
	}
	return nil
}

func (s *Session) fill(ctx context.Context, page *rod.Page, selector, value string) error {
	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, selector+" not found")
	}
	if _, err := el.WaitInteractable(); err != nil {
		return categorizeError(err, selector+" not interactable")
	}
	if err := el.SelectAllText(); err != nil {
		slog.Debug("could not select existing text", "selector", selector, "error", err)
	}
	if err := el.Input(value); err != nil {
		return categorizeError(err, "typing into "+selector+" failed")
	}
	return nil
}

func (s *Session) click(ctx context.Context, page *rod.Page, selector string) error {
	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, selector+" not found")
	}
	if _, err := el.WaitInteractable(); err != nil {
		return categorizeError(err, selector+" not interactable")
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "clicking "+selector+" failed")
	}
	return nil
}

func (s *Session) jsClick(ctx context.Context, page *rod.Page, selector string) error {
	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	el, err := p.Element(selector)
	if err != nil {
		return categorizeError(err, selector+" not found")
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return categorizeError(err, "clicking "+selector+" failed")
	}
	return nil
}

// ── ListView ─────────────────────────────────────────────────────────

// CourseTableHTML returns the outer HTML of the second table on the page,
// which is the course list.
func (s *Session) CourseTableHTML(ctx context.Context) (string, error) {
	p, cancel := s.bounded(ctx, s.list.page, s.cfg.WaitTimeout)
	defer cancel()

	if err := p.WaitElementsMoreThan(selTable, 1); err != nil {
		return "", categorizeError(err, "course table did not render")
	}
	tables, err := p.Elements(selTable)
	if err != nil {
		return "", categorizeError(err, "failed to list tables")
	}
	if len(tables) < 2 {
		return "", models.NewScrapeError(models.ErrCodeNotFound, "course table not found", nil)
	}
	html, err := tables[1].HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read course table")
	}
	return html, nil
}

// NextDisabled locates the "next page" anchor, the link in the last div of
// the pagination controls inside the last table, and reports whether it
// carries the disabled class.
func (s *Session) NextDisabled(ctx context.Context) (bool, error) {
	s.next = nil

	p, cancel := s.bounded(ctx, s.list.page, s.cfg.WaitTimeout)
	defer cancel()

	tables, err := p.Elements(selTable)
	if err != nil {
		return false, categorizeError(err, "failed to list tables")
	}
	if tables.Empty() {
		return false, models.NewScrapeError(models.ErrCodeNotFound, "pagination table not found", nil)
	}
	controls, err := tables.Last().Element(selPaginationControls)
	if err != nil {
		return false, categorizeError(err, "pagination controls not found")
	}
	divs, err := controls.Elements("div")
	if err != nil {
		return false, categorizeError(err, "failed to list pagination controls")
	}
	if divs.Empty() {
		return false, models.NewScrapeError(models.ErrCodeNotFound, "pagination controls are empty", nil)
	}
	next, err := divs.Last().Element("a")
	if err != nil {
		return false, categorizeError(err, "next page control not found")
	}
	class, err := next.Attribute("class")
	if err != nil {
		return false, categorizeError(err, "failed to read next page control")
	}

	s.next = next
	return class != nil && strings.Contains(*class, "disabled"), nil
}

// Next clicks the anchor found by NextDisabled (locating it again if needed)
// and waits for the table to settle.
func (s *Session) Next(ctx context.Context) error {
	if s.next == nil {
		if _, err := s.NextDisabled(ctx); err != nil {
			return err
		}
	}

	p, cancel := s.bounded(ctx, s.list.page, s.cfg.WaitTimeout)
	defer cancel()

	next := s.next.Context(p.GetContext())
	s.next = nil
	if _, err := next.Eval(`() => this.click()`); err != nil {
		return categorizeError(err, "failed to click next page")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// ── DetailSource ─────────────────────────────────────────────────────

// ReportHTML opens reportURL on the report tab and returns the HTML of the
// embedded report frame once its stats counters are present. If the tab
// lands on the login form it logs in once per session and retries.
func (s *Session) ReportHTML(ctx context.Context, reportURL string) (string, error) {
	if s.detail == nil {
		t, err := s.scraper.acquireTab()
		if err != nil {
			return "", err
		}
		s.detail = t
	}
	page := s.detail.page

	if err := s.navigate(ctx, page, reportURL); err != nil {
		return "", err
	}
	if s.onLoginForm(page) {
		if s.detailRelogged {
			return "", models.NewScrapeError(models.ErrCodeAuthFailed, "report tab is logged out", nil)
		}
		s.detailRelogged = true
		slog.Warn("report tab is logged out, logging in again")
		if err := s.Login(ctx, page); err != nil {
			return "", err
		}
		if err := s.WaitPathContains(ctx, page, managePath); err != nil {
			return "", models.NewScrapeError(models.ErrCodeAuthFailed, "report tab login failed", err)
		}
		if err := s.navigate(ctx, page, reportURL); err != nil {
			return "", err
		}
	}

	p, cancel := s.bounded(ctx, page, s.cfg.WaitTimeout)
	defer cancel()

	iframe, err := p.Element(selReportFrame)
	if err != nil {
		return "", categorizeError(err, "report frame not found")
	}
	frame, err := iframe.Frame()
	if err != nil {
		return "", categorizeError(err, "failed to enter report frame")
	}
	frame = frame.Context(p.GetContext())
	if err := frame.WaitElementsMoreThan(selCounter, 0); err != nil {
		return "", categorizeError(err, "stats counters did not render")
	}
	html, err := frame.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read report frame")
	}
	return html, nil
}

func (s *Session) onLoginForm(page *rod.Page) bool {
	has, _, err := page.Has(selUsername)
	return err == nil && has
}

// Close returns both tabs to the pool.
func (s *Session) Close() error {
	if s.detail != nil {
		s.scraper.releaseTab(s.detail)
		s.detail = nil
	}
	if s.list != nil {
		s.scraper.releaseTab(s.list)
		s.list = nil
	}
	return nil
}
