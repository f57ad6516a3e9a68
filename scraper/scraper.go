package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/posterbridge/config"
	"github.com/use-agent/posterbridge/models"
)

// blockedResourceTypes are never needed to read result or detail markup.
// Poster bytes are fetched over plain HTTP with the session cookies.
var blockedResourceTypes = []string{"Image", "Font", "Media"}

// rodDriver owns one Chromium process and the single tab used for every
// navigation of the session.
type rodDriver struct {
	launcher     *launcher.Launcher
	browser      *rod.Browser
	page         *rod.Page
	router       *rod.HijackRouter
	navTimeout   time.Duration
	loginTimeout time.Duration
}

// NewRodDriverFactory returns a DriverFactory that launches a headless
// Chromium configured from cfg.
func NewRodDriverFactory(cfg config.BrowserConfig) DriverFactory {
	return func(ctx context.Context) (Driver, error) {
		return launchRodDriver(ctx, cfg)
	}
}

func launchRodDriver(ctx context.Context, cfg config.BrowserConfig) (*rodDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	d := &rodDriver{
		launcher:     l,
		navTimeout:   cfg.NavigationTimeout.Duration,
		loginTimeout: cfg.LoginTimeout.Duration,
	}

	d.browser = rod.New().ControlURL(controlURL)
	if err := d.browser.Connect(); err != nil {
		d.browser = nil
		_ = d.Close()
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = d.Close()
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}
	d.page = page

	// Stealth and hijack must be installed before the first navigation.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth",
			"error", evalErr,
		)
	}
	setExtraHeaders(page, map[string]string{"Accept-Language": "en-US,en;q=0.9"})
	d.router = setupHijack(page, blockedResourceTypes, true)

	return d, nil
}

// Cookies returns every cookie the browser currently holds.
func (d *rodDriver) Cookies(ctx context.Context) (map[string]string, error) {
	cookies, err := d.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out, nil
}

// Close stops the hijack router, closes the tab and kills the browser.
// Call this on shutdown to prevent zombie Chrome processes.
func (d *rodDriver) Close() error {
	var errs []error
	if d.router != nil {
		errs = append(errs, d.router.Stop())
		d.router = nil
	}
	if d.page != nil {
		errs = append(errs, d.page.Close())
		d.page = nil
	}
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
	slog.Info("browser closed")
	return errors.Join(errs...)
}
