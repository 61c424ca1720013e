package preview

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// BrowserOptions configures the headless browser backing ChromeSurface.
type BrowserOptions struct {
	// ExecPath overrides the Chrome binary chromedp would otherwise find.
	ExecPath string
	Logger   *zap.Logger
}

// Browser is a headless Chrome process. Each surface is a tab in it.
type Browser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancel      context.CancelFunc
	logger      *zap.Logger
}

// NewBrowser starts headless Chrome and waits for it to accept commands.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &Browser{
		ctx:         browserCtx,
		cancelAlloc: cancelAlloc,
		cancel:      cancel,
		logger:      logging.OrNop(opts.Logger),
	}, nil
}

// NewSurface opens a new tab.
func (b *Browser) NewSurface(name string) (*ChromeSurface, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab %s: %w", name, err)
	}
	return &ChromeSurface{name: name, ctx: tabCtx, cancel: cancel, logger: b.logger}, nil
}

// Close shuts the browser down along with every tab.
func (b *Browser) Close() {
	b.cancel()
	b.cancelAlloc()
}

// ChromeSurface renders documents in a headless Chrome tab.
type ChromeSurface struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// DataURL encodes html so a browser can navigate straight to it.
func DataURL(html string) string {
	return "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}

// Load navigates the tab to html and calls done once the page has loaded,
// or failed to.
func (c *ChromeSurface) Load(html string, done func()) {
	go func() {
		defer done()
		if err := chromedp.Run(c.ctx, chromedp.Navigate(DataURL(html))); err != nil {
			c.logger.Warn("preview load failed", zap.String("surface", c.name), zap.Error(err))
		}
	}()
}

// Show is a no-op for a headless tab. The renderer tracks which tab is
// current for screenshots.
func (c *ChromeSurface) Show(visible bool) {
	c.logger.Debug("preview visibility", zap.String("surface", c.name), zap.Bool("visible", visible))
}

// Screenshot captures the full page as PNG.
func (c *ChromeSurface) Screenshot() ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(c.ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", c.name, err)
	}
	return buf, nil
}

// Close closes the tab.
func (c *ChromeSurface) Close() {
	c.cancel()
}
