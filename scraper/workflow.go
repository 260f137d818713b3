// Package scraper runs the end-to-end workflow for one domain: acquire a
// context, load the authority-checker page, clear up to two checkbox
// challenges, and read the metrics off the DOM.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/vision"
)

// Workflow is the reusable scrape pipeline. Safe for concurrent Runs;
// the pool serializes the unsafe engine operations internally.
type Workflow struct {
	pool    *pool.SessionPool
	locator *vision.Locator
	cfg     config.WorkflowConfig
}

func New(p *pool.SessionPool, locator *vision.Locator, cfg config.WorkflowConfig) *Workflow {
	return &Workflow{pool: p, locator: locator, cfg: cfg}
}

// Run scrapes one domain.
//
// checkpoint, when non-nil, is closed exactly once: normally right after
// the first challenge has been handled (the expensive navigation phase is
// over and the next task can start loading), and on any early exit before
// that point. The page is always closed; the context never is, it belongs
// to the pool.
func (w *Workflow) Run(ctx context.Context, domain string, proxy *models.Proxy, checkpoint chan<- struct{}) (*models.ScrapeResult, error) {
	started := time.Now()

	fireCheckpoint := func() {
		if checkpoint != nil {
			close(checkpoint)
			checkpoint = nil
		}
	}
	defer fireCheckpoint()

	bctx, err := w.pool.AcquireContext(proxy)
	if err != nil {
		return nil, err
	}

	page, err := w.pool.OpenPage(bctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("failed to close page", "domain", domain, "error", err)
		}
	}()

	url := fmt.Sprintf(w.cfg.URLTemplate, domain)
	if err := w.navigate(ctx, page, domain, url); err != nil {
		return nil, err
	}

	// Let late XHRs and the challenge overlay render before screenshotting.
	if err := sleepCtx(ctx, w.cfg.SettleDelay); err != nil {
		return nil, canceled(err)
	}

	first := w.clickCheckbox(page, domain, vision.FullPage)
	if first {
		if err := sleepCtx(ctx, w.cfg.SettleDelay); err != nil {
			return nil, canceled(err)
		}
		_ = page.WaitNetworkIdle(w.cfg.NetworkIdleTimeout)
	}

	// The slot can be reused from here on: the remaining work is light.
	fireCheckpoint()

	second := w.clickCheckbox(page, domain, vision.MainPanel)
	if second {
		if err := sleepCtx(ctx, w.cfg.FinalSettleDelay); err != nil {
			return nil, canceled(err)
		}
		_ = page.WaitNetworkIdle(w.cfg.NetworkIdleTimeout)
	}

	metrics := extractMetrics(page, domain)

	elapsed := time.Since(started)
	slog.Info("scrape complete",
		"domain", domain,
		"firstChallenge", first,
		"secondChallenge", second,
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return &models.ScrapeResult{
		Domain:        domain,
		Metrics:       metrics,
		FirstCaptcha:  first,
		SecondCaptcha: second,
		Elapsed:       elapsed,
		ElapsedSec:    elapsed.Seconds(),
	}, nil
}

// navigate loads the URL with a bounded number of attempts. Each attempt
// gets the full navigation timeout; attempts are separated by a short
// pause so a transient proxy hiccup can clear.
func (w *Workflow) navigate(ctx context.Context, page engine.Page, domain, url string) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.NavRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}

		if err := page.Navigate(ctx, url, w.cfg.NavTimeout); err != nil {
			lastErr = err
			slog.Warn("navigation attempt failed",
				"domain", domain,
				"attempt", attempt,
				"maxAttempts", w.cfg.NavRetries,
				"error", err,
			)
			if attempt < w.cfg.NavRetries {
				if err := sleepCtx(ctx, w.cfg.NavRetryPause); err != nil {
					return canceled(err)
				}
			}
			continue
		}

		_ = page.WaitNetworkIdle(w.cfg.NetworkIdleTimeout)
		return nil
	}

	return models.NewScrapeError(
		models.ErrCodeNavTimeout,
		fmt.Sprintf("navigation failed after %d attempts", w.cfg.NavRetries),
		lastErr,
	)
}

// clickCheckbox screenshots the page, looks for the challenge checkbox
// in the given region, and clicks it when present. Every failure mode
// degrades to "not clicked": a missing challenge is the common case, and
// a scrape can still succeed without clearing one.
func (w *Workflow) clickCheckbox(page engine.Page, domain string, region vision.Region) bool {
	shot, err := page.Screenshot()
	if err != nil {
		slog.Warn("screenshot failed", "domain", domain, "region", region, "error", err)
		return false
	}

	pt, found, err := w.locator.Locate(shot, region)
	if err != nil {
		slog.Warn("challenge detection failed", "domain", domain, "region", region, "error", err)
		return false
	}
	if !found {
		return false
	}

	if err := page.Click(pt.X, pt.Y); err != nil {
		slog.Warn("challenge click failed",
			"domain", domain,
			"region", region,
			"x", pt.X,
			"y", pt.Y,
			"error", err,
		)
		return false
	}
	slog.Info("challenge checkbox clicked", "domain", domain, "region", region, "x", pt.X, "y", pt.Y)
	return true
}

func canceled(err error) error {
	return models.NewScrapeError(models.ErrCodeCanceled, "task canceled", err)
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
