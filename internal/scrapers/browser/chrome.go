package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides the chrome binary, empty uses the default lookup.
	ExecPath string
	// NewWindowTimeout bounds how long a click may take to open a tab.
	NewWindowTimeout time.Duration
}

type chromeWindow struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewChrome starts a browser process and returns its first tab. Closing
// that tab shuts the browser down.
func NewChrome(ctx context.Context, opts ChromeOptions) (Window, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NewWindowTimeout == 0 {
		opts.NewWindowTimeout = 15 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return chromeWindow{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		timeout: opts.NewWindowTimeout,
	}, nil
}

// run executes actions on the tab while honouring the caller's context.
func (w chromeWindow) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(w.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (w chromeWindow) Navigate(ctx context.Context, url string) error {
	return w.run(ctx, chromedp.Navigate(url))
}

func (w chromeWindow) Location(ctx context.Context) (string, error) {
	var location string
	err := w.run(ctx, chromedp.Location(&location))
	return location, err
}

func (w chromeWindow) Count(ctx context.Context, selector string) (int, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return 0, err
	}
	var n int
	err = w.run(ctx, chromedp.Evaluate(
		fmt.Sprintf("document.querySelectorAll(%s).length", quoted),
		&n,
	))
	return n, err
}

func (w chromeWindow) OuterHTML(ctx context.Context, selector string) (string, error) {
	var markup string
	err := w.run(ctx, chromedp.OuterHTML(selector, &markup, chromedp.ByQuery))
	return markup, err
}

func (w chromeWindow) Click(ctx context.Context, selector string) error {
	return w.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

var errNoNewWindow = errors.New("click did not open a new window")

func (w chromeWindow) ClickNewWindow(ctx context.Context, selector string) (Window, error) {
	opened := chromedp.WaitNewTarget(w.ctx, func(info *target.Info) bool {
		return info.Type == "page"
	})
	err := w.Click(ctx, selector)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case id := <-opened:
		tabCtx, cancel := chromedp.NewContext(w.ctx, chromedp.WithTargetID(id))
		err = chromedp.Run(tabCtx)
		if err != nil {
			cancel()
			return nil, err
		}
		return chromeWindow{ctx: tabCtx, cancel: cancel, timeout: w.timeout}, nil
	case <-timer.C:
		return nil, errNoNewWindow
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w chromeWindow) NewWindow(_ context.Context) (Window, error) {
	tabCtx, cancel := chromedp.NewContext(w.ctx)
	window := chromeWindow{ctx: tabCtx, cancel: cancel, timeout: w.timeout}
	// the first Run on a tab context allocates the tab and must not be
	// given a context that is cancelled afterwards.
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	return window, nil
}

func (w chromeWindow) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	err := w.run(ctx, chromedp.FullScreenshot(&png, 100))
	return png, err
}

func (w chromeWindow) Close() error {
	w.cancel()
	return nil
}
