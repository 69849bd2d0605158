package browser

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/bringten-smoke/internal/errs"
	"github.com/kuitang/bringten-smoke/internal/obs"
)

// clickablePollInterval matches the polling cadence of a WebDriver wait.
const clickablePollInterval = 100 * time.Millisecond

// PlaywrightDriver drives Chromium (or an installed channel such as msedge)
// through playwright-go. All tabs live in one browser context.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	opts    Options
}

// OpenPlaywright starts the Playwright driver and launches the browser.
func OpenPlaywright(ctx context.Context, opts Options) (*PlaywrightDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := obs.From(ctx).With("pkg", "browser", "driver", "playwright")

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "playwright is not available (install with: go run github.com/playwright-community/playwright-go/cmd/playwright install)", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(ms(opts.actionTimeout() * 6)),
	}
	if opts.Channel != "" {
		launch.Channel = playwright.String(opts.Channel)
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "could not launch browser", err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "could not create browser context", err)
	}
	bctx.SetDefaultTimeout(ms(opts.actionTimeout()))
	bctx.SetDefaultNavigationTimeout(ms(opts.actionTimeout()))

	log.Info("browser_launched", "headless", opts.Headless, "channel", opts.Channel, "version", browser.Version())
	return &PlaywrightDriver{pw: pw, browser: browser, bctx: bctx, opts: opts}, nil
}

func (d *PlaywrightDriver) Name() string { return "playwright" }

// NewTab opens a page in the shared context.
func (d *PlaywrightDriver) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := d.bctx.NewPage()
	if err != nil {
		return nil, classify("open tab", "", err, playwright.ErrTimeout)
	}
	return &playwrightTab{page: page, opts: d.opts}, nil
}

// Close shuts down the browser and the driver process.
func (d *PlaywrightDriver) Close() error {
	var firstErr error
	if d.bctx != nil {
		if err := d.bctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type playwrightTab struct {
	page playwright.Page
	opts Options
}

func (t *playwrightTab) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return classify("navigate", url, err)
	}
	_, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(t.timeoutMS(ctx)),
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, "navigate to "+url+" failed", err)
	}
	return nil
}

func (t *playwrightTab) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("read title", "", err)
	}
	title, err := t.page.Title()
	return title, classify("read title", "", err, playwright.ErrTimeout)
}

func (t *playwrightTab) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("read page source", "", err)
	}
	content, err := t.page.Content()
	return content, classify("read page source", "", err, playwright.ErrTimeout)
}

func (t *playwrightTab) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	first := t.page.Locator(selector).First()
	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(t.timeoutMS(ctx)),
	})
	if err != nil {
		return classify("wait clickable", selector, err, playwright.ErrTimeout)
	}

	ticker := time.NewTicker(clickablePollInterval)
	defer ticker.Stop()
	for {
		enabled, err := first.IsEnabled()
		if err != nil {
			return classify("wait clickable", selector, err, playwright.ErrTimeout)
		}
		if enabled {
			return nil
		}
		select {
		case <-ctx.Done():
			return classify("wait clickable", selector, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (t *playwrightTab) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return classify("click", selector, err)
	}
	err := t.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(t.timeoutMS(ctx)),
	})
	return classify("click", selector, err, playwright.ErrTimeout)
}

func (t *playwrightTab) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return classify("fill", selector, err)
	}
	loc := t.page.Locator(selector).First()
	if err := loc.Clear(playwright.LocatorClearOptions{Timeout: playwright.Float(t.timeoutMS(ctx))}); err != nil {
		return classify("clear", selector, err, playwright.ErrTimeout)
	}
	err := loc.Fill(text, playwright.LocatorFillOptions{Timeout: playwright.Float(t.timeoutMS(ctx))})
	return classify("fill", selector, err, playwright.ErrTimeout)
}

func (t *playwrightTab) ClickNth(ctx context.Context, selector string, n int) error {
	if err := ctx.Err(); err != nil {
		return classify("click", selector, err)
	}
	loc := t.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return classify("count", selector, err, playwright.ErrTimeout)
	}
	if count <= n {
		return notEnoughMatches(selector, n, count)
	}
	err = loc.Nth(n).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(t.timeoutMS(ctx)),
	})
	return classify("click", selector, err, playwright.ErrTimeout)
}

func (t *playwrightTab) WaitSettled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classify("wait for load", "", err)
	}
	err := t.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(t.timeoutMS(ctx)),
	})
	return classify("wait for load", "", err, playwright.ErrTimeout)
}

func (t *playwrightTab) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("screenshot", "", err)
	}
	png, err := t.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  playwright.Float(t.timeoutMS(ctx)),
	})
	return png, classify("screenshot", "", err, playwright.ErrTimeout)
}

func (t *playwrightTab) Close() error {
	return t.page.Close()
}

// timeoutMS is the action timeout, shortened to the context deadline if that comes first.
func (t *playwrightTab) timeoutMS(ctx context.Context) float64 {
	d := t.opts.actionTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = max(left, time.Millisecond)
		}
	}
	return ms(d)
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
