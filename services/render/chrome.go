package render

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/coderfong/moq-pools-sub002/logger"
	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
)

// ChromeRenderer renders pages in a single headless Chrome instance. The
// browser process is started lazily on the first Render call and reused for
// the remainder of the run to amortize startup cost. Render calls are
// serialized with a mutex; the shared instance is not safe beyond that.
type ChromeRenderer struct {
	settleDelay time.Duration
	navTimeout  time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	log           *logger.Logger
}

// NewChromeRenderer creates a renderer. The browser is not started until the
// first Render call.
func NewChromeRenderer(settleDelay, navTimeout time.Duration) *ChromeRenderer {
	return &ChromeRenderer{
		settleDelay: settleDelay,
		navTimeout:  navTimeout,
		log:         logger.ForRenderer(),
	}
}

// ensureBrowser starts the shared browser instance if it is not running.
// Caller must hold r.mu.
func (r *ChromeRenderer) ensureBrowser() error {
	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("blink-settings", "imagesEnabled=false"),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Launch the browser process now so a broken Chrome install surfaces here
	// rather than inside the first page render.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return pkgerr.NewRender("", "failed to start headless browser", err)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.log.Info().Msg("Headless browser started")
	return nil
}

// Render navigates to the URL in a fresh tab, waits for the settle delay, and
// returns the rendered HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureBrowser(); err != nil {
		return "", err
	}

	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.navTimeout)
	defer timeoutCancel()

	// Honor the caller's deadline if it is tighter.
	if deadline, ok := ctx.Deadline(); ok {
		var dlCancel context.CancelFunc
		tabCtx, dlCancel = context.WithDeadline(tabCtx, deadline)
		defer dlCancel()
	}

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(r.settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", pkgerr.NewRender(url, "render failed", err)
	}

	r.log.Debug().Str("url", url).Int("bytes", len(html)).Msg("Rendered page")
	return html, nil
}

// Close tears down the shared browser instance. Safe to call when the browser
// was never started.
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCancel != nil {
		r.browserCancel()
		r.browserCancel = nil
	}
	if r.allocCancel != nil {
		r.allocCancel()
		r.allocCancel = nil
	}
	r.browserCtx = nil
}
