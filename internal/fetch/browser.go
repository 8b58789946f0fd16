package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the headless rendering transport.
type BrowserOptions struct {
	Headless        bool
	WindowWidth     int
	WindowHeight    int
	PageLoadTimeout time.Duration
	SettleMin       time.Duration
	SettleMax       time.Duration
}

// chromeTransport renders pages with a headless Chrome session. The session
// is shared across fetches and torn down by Close.
type chromeTransport struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        BrowserOptions
	rng         *rand.Rand
}

// newChromeTransport starts the browser eagerly so startup failures surface
// at construction instead of on the first page.
func newChromeTransport(opts BrowserOptions, userAgent string) (Transport, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.UserAgent(userAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &chromeTransport{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (t *chromeTransport) Name() string { return transportBrowser }

// Get navigates, waits a randomized settle delay for client-side rendering,
// and returns the rendered document.
func (t *chromeTransport) Get(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	settle := t.opts.SettleMin
	if t.opts.SettleMax > t.opts.SettleMin {
		settle += time.Duration(t.rng.Int63n(int64(t.opts.SettleMax - t.opts.SettleMin)))
	}
	runCtx, cancel := context.WithTimeout(t.ctx, t.opts.PageLoadTimeout+settle)
	defer cancel()
	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

func (t *chromeTransport) Close() error {
	t.cancel()
	t.allocCancel()
	return nil
}
