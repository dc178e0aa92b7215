// Package scraper drives the LMS web UI with a Rod-controlled Chromium: login,
// the paginated course table and the per-course report pages.
package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/lmstrack/config"
	"github.com/use-agent/lmstrack/models"
)

// poolSize is one listing tab plus one report tab.
const poolSize = 2

// Scraper owns the browser process and its tab pool.
// It is safe for concurrent use; Sessions are not.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	lmsCfg      config.LMSConfig
	activePages atomic.Int32
}

// NewScraper launches Chromium and initialises the tab pool.
func NewScraper(browserCfg config.BrowserConfig, lmsCfg config.LMSConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &Scraper{
		browser:    browser,
		pagePool:   rod.NewPagePool(poolSize),
		browserCfg: browserCfg,
		lmsCfg:     lmsCfg,
	}, nil
}

// ActivePages returns the number of tabs currently checked out.
func (s *Scraper) ActivePages() int {
	return int(s.activePages.Load())
}

// Close drains the tab pool and kills the browser process.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("failed to close browser", "error", err)
	}
}

// tab is a pooled page plus the request interceptor mounted on it.
type tab struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// acquireTab borrows a page from the pool and prepares it: stealth on first
// use, extra headers, resource blocking.
func (s *Scraper) acquireTab() (*tab, error) {
	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		p, err := s.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, err
		}
		if s.browserCfg.Stealth {
			if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
				slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	s.activePages.Add(1)

	if len(s.lmsCfg.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(s.lmsCfg.Headers)}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	return &tab{
		page:   page,
		router: setupHijack(page, s.browserCfg.BlockedResourceTypes, s.browserCfg.BlockTrackers),
	}, nil
}

// releaseTab stops the interceptor, blanks the page and returns it to the pool.
func (s *Scraper) releaseTab(t *tab) {
	if t.router != nil {
		_ = t.router.Stop()
	}
	if err := t.page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	s.pagePool.Put(t.page)
	s.activePages.Add(-1)
}

// Connect opens the listing tab and authenticates it. The returned Session
// lists courses and reads report pages over the same browser cookies.
func (s *Scraper) Connect(ctx context.Context, creds Credentials) (*Session, error) {
	list, err := s.acquireTab()
	if err != nil {
		return nil, err
	}
	sess := &Session{scraper: s, cfg: s.lmsCfg, creds: creds, list: list}

	if err := sess.Login(ctx, list.page); err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.WaitPathContains(ctx, list.page, managePath); err != nil {
		sess.Close()
		return nil, models.NewScrapeError(models.ErrCodeAuthFailed, "login did not reach the course manager", err)
	}
	slog.Info("authenticated", "base_url", s.lmsCfg.BaseURL)
	return sess, nil
}
