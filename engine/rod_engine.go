package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/models"
	"github.com/ysmood/gson"
)

// RodSession implements Session on a go-rod controlled Chromium.
type RodSession struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// LaunchRodSession starts a headless browser and connects to it.
func LaunchRodSession(cfg config.BrowserConfig) (*RodSession, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
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
		return nil, models.NewScrapeError(
			models.ErrCodeEngine,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeEngine,
			"failed to connect to browser",
			err,
		)
	}

	return &RodSession{browser: browser, cfg: cfg}, nil
}

// NewContext creates an isolated browser context via CDP, bound to the
// proxy when one is given. The caller (the pool) serializes these calls.
func (s *RodSession) NewContext(proxy *models.Proxy) (Context, error) {
	req := proto.TargetCreateBrowserContext{}
	if proxy != nil {
		req.ProxyServer = proxy.Server()
	}

	res, err := req.Call(s.browser)
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeEngine,
			"failed to create browser context",
			err,
		)
	}

	return &rodContext{
		session: s,
		id:      res.BrowserContextID,
		proxy:   proxy,
	}, nil
}

// Close kills the browser process. Pages and contexts die with it.
func (s *RodSession) Close() error {
	return s.browser.Close()
}

// rodContext is an isolated cookie/storage/network scope within the session.
type rodContext struct {
	session *RodSession
	id      proto.BrowserBrowserContextID
	proxy   *models.Proxy
}

// NewPage opens a tab inside this context, fixes the viewport (the CV
// region rectangles depend on it) and installs the stealth script before
// any navigation. The caller serializes page creation.
func (c *rodContext) NewPage() (Page, error) {
	page, err := c.session.browser.Page(proto.TargetCreateTarget{
		URL:              "about:blank",
		BrowserContextID: c.id,
	})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeEngine,
			"failed to create page",
			err,
		)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.session.cfg.ViewportWidth,
		Height:            c.session.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, models.NewScrapeError(
			models.ErrCodeEngine,
			"failed to set viewport",
			err,
		)
	}

	// Stealth JS must be installed before navigation to take effect.
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", err,
		)
	}

	// Proxy credentials are answered through the browser's auth handler;
	// arm it before the first navigation of this page.
	if c.proxy != nil && c.proxy.Username != "" {
		wait := c.session.browser.HandleAuth(c.proxy.Username, c.proxy.Password)
		go func() {
			if err := wait(); err != nil {
				slog.Debug("proxy auth handler finished", "error", err)
			}
		}()
	}

	return &rodPage{page: page}, nil
}

// Close disposes the browser context and every page still open in it.
func (c *rodContext) Close() error {
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: c.id,
	}.Call(c.session.browser)
}

// rodPage is one tab. It is never shared between workflows.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) WaitNetworkIdle(timeout time.Duration) error {
	pg := p.page.Timeout(timeout)
	defer pg.CancelTimeout()

	// WaitRequestIdle returns when no request has been in flight for
	// 500ms, or when the timeout expires. Expiry is not an error here:
	// idleness is a readiness heuristic, and the workflow's fixed settle
	// delays are the real synchronization.
	pg.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return nil
}

func (p *rodPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(85),
	})
}

func (p *rodPage) Eval(js string) (gson.JSON, error) {
	obj, err := p.page.Eval(js)
	if err != nil {
		return gson.New(nil), err
	}
	return obj.Value, nil
}

func (p *rodPage) Click(x, y float64) error {
	if err := p.page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return err
	}
	return p.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
