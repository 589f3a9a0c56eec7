// Package capture renders the printable month page to a PNG with headless
// Chromium.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/afero"

	appLog "smartcal/internal/log"
)

// A4 landscape at 96 dpi, the size the print page is laid out for.
const (
	DefaultWidth   = 1123
	DefaultHeight  = 794
	DefaultTimeout = 30 * time.Second
)

// ReadySelector is set by the print page once the grid is rendered.
const ReadySelector = `[data-ready="true"]`

type Options struct {
	// URL of the print page, e.g. "http://127.0.0.1:8080/print?year=2026&month=10".
	URL string

	Width   int
	Height  int
	Timeout time.Duration
}

func (o *Options) defaults() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// PNG loads opts.URL, waits for ReadySelector and returns a full-page
// screenshot.
func PNG(parent context.Context, opts Options) ([]byte, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts finish painting.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	start := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	appLog.Info("print page captured", "bytes", len(png), "took", time.Since(start).Round(time.Millisecond).String())
	return png, nil
}

// ToFile captures the page and writes it to path on fs.
func ToFile(ctx context.Context, fs afero.Fs, path string, opts Options) error {
	png, err := PNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
