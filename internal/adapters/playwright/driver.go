// Package playwright drives the studio page through a controlled
// Chromium instance. It is the only code that talks to the browser; the
// rest of the system sees the ports.Page capability and nothing else.
package playwright

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pw "github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// ErrNoSession means the ready markers never appeared: the controlled
// profile is not signed in to the studio.
var ErrNoSession = errors.New("no signed-in studio session")

// Config describes the controlled browser session.
type Config struct {
	// AppURL is the studio page to drive.
	AppURL string
	// DownloadDir receives every download silently, saved under the
	// browser's suggested filename, overwriting by name.
	DownloadDir string
	Headless    bool

	// ReadyMarkers are selectors whose presence proves the session is
	// signed in and the studio surface is usable.
	ReadyMarkers []string

	NavTimeout   time.Duration
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if len(c.ReadyMarkers) == 0 {
		c.ReadyMarkers = []string{`[data-test-id="studio-panel"]`, `[aria-label*="studio" i]`}
	}
}

// Driver implements ports.Page and ports.SessionGate.
type Driver struct {
	runner  *pw.Playwright
	browser pw.Browser
	page    pw.Page
	cfg     Config
	log     *zap.Logger
}

// Launch starts Chromium, applies the silent-download policy and
// navigates to the studio page.
func Launch(cfg Config, log *zap.Logger) (*Driver, error) {
	cfg.applyDefaults()
	if cfg.AppURL == "" {
		return nil, errors.New("app URL is required")
	}
	if cfg.DownloadDir == "" {
		return nil, errors.New("download directory is required")
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	log = log.Named("browser")

	runner, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}
	browser, err := runner.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless:      pw.Bool(cfg.Headless),
		DownloadsPath: pw.String(cfg.DownloadDir),
	})
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	browserCtx, err := browser.NewContext(pw.BrowserNewContextOptions{
		AcceptDownloads: pw.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = runner.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = runner.Stop()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	page.SetDefaultTimeout(float64(cfg.NavTimeout.Milliseconds()))

	dir := cfg.DownloadDir
	page.OnDownload(func(dl pw.Download) {
		name := dl.SuggestedFilename()
		if name == "" {
			name = fmt.Sprintf("artifact-%d", time.Now().Unix())
		}
		if err := dl.SaveAs(filepath.Join(dir, name)); err != nil {
			log.Warn("saving download failed", zap.String("name", name), zap.Error(err))
			return
		}
		log.Info("download saved", zap.String("name", name))
	})

	log.Info("navigating to studio", zap.String("url", cfg.AppURL))
	if _, err := page.Goto(cfg.AppURL, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   pw.Float(float64(cfg.NavTimeout.Milliseconds())),
	}); err != nil {
		_ = browser.Close()
		_ = runner.Stop()
		return nil, fmt.Errorf("navigating to %s: %w", cfg.AppURL, err)
	}

	return &Driver{runner: runner, browser: browser, page: page, cfg: cfg, log: log}, nil
}

// Evaluate runs the script in the page and decodes its JSON-serializable
// result into out. The result goes through a JSON round-trip so callers
// decode into their own typed structs instead of poking interface maps.
func (d *Driver) Evaluate(ctx context.Context, script string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := d.page.Evaluate(script)
	if err != nil {
		return fmt.Errorf("page evaluation failed: %w", err)
	}
	if out == nil || res == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding evaluation result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding evaluation result: %w", err)
	}
	return nil
}

// Reload reloads the studio page and waits for the DOM to be available
// again.
func (d *Driver) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.page.Reload(pw.PageReloadOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("reloading page: %w", err)
	}
	return nil
}

// WaitReady blocks until one of the ready markers is present, proving
// the session is signed in. Authentication itself happens outside this
// process (a persistent profile, a prior manual sign-in); this is only
// the gate.
func (d *Driver) WaitReady(ctx context.Context, timeout time.Duration) error {
	script := readyScript(d.cfg.ReadyMarkers)
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var ready bool
		if err := d.Evaluate(ctx, script, &ready); err != nil {
			d.log.Debug("readiness probe failed", zap.Error(err))
		} else if ready {
			d.log.Info("session ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after %s, sign in to the studio in the controlled profile and retry: %w", timeout, ErrNoSession)
		}
		t := time.NewTimer(d.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Close tears the browser session down.
func (d *Driver) Close() error {
	var errs []error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.runner != nil {
		if err := d.runner.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func readyScript(markers []string) string {
	args, _ := json.Marshal(markers)
	return fmt.Sprintf(`/* session-ready */
(function(markers) {
	for (const s of markers) {
		try { if (document.querySelector(s)) return true; } catch (e) {}
	}
	return false;
})(%s)`, string(args))
}
