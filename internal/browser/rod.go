package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kuitang/bringten-smoke/internal/errs"
	"github.com/kuitang/bringten-smoke/internal/obs"
)

// settleQuietPeriod is how long the DOM must stay unchanged to count as settled.
const settleQuietPeriod = 300 * time.Millisecond

// RodDriver drives Chromium over the DevTools protocol with Rod.
type RodDriver struct {
	browser *rod.Browser
	opts    Options
}

// OpenRod launches Chromium (downloading it on first use unless BrowserBin
// is set) and connects to it.
func OpenRod(ctx context.Context, opts Options) (*RodDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := obs.From(ctx).With("pkg", "browser", "driver", "rod")

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("disable-gpu")
	if opts.Headless {
		l = l.NoSandbox(true)
	}
	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}
	if opts.Detach {
		// Without leakless the browser outlives this process.
		l = l.Leakless(false)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to launch Chrome", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to connect to Chrome", err)
	}

	log.Info("browser_launched", "headless", opts.Headless, "bin", opts.BrowserBin, "control_url", url)
	return &RodDriver{browser: browser, opts: opts}, nil
}

func (d *RodDriver) Name() string { return "rod" }

// NewTab opens a blank page.
func (d *RodDriver) NewTab(ctx context.Context) (Tab, error) {
	page, err := d.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, classify("open tab", "", err)
	}
	return &rodTab{page: page, opts: d.opts}, nil
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (d *RodDriver) Close() error {
	if d.browser != nil {
		return d.browser.Close()
	}
	return nil
}

type rodTab struct {
	page *rod.Page
	opts Options
}

// bounded returns the page bound to ctx and the action timeout.
func (t *rodTab) bounded(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.actionTimeout())
	return t.page.Context(ctx), cancel
}

func (t *rodTab) Goto(ctx context.Context, url string) error {
	p, cancel := t.bounded(ctx)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return errs.Wrap(errs.Unavailable, "navigate to "+url+" failed", err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify("wait for load", url, err)
	}
	return nil
}

func (t *rodTab) Title(ctx context.Context) (string, error) {
	p, cancel := t.bounded(ctx)
	defer cancel()
	info, err := p.Info()
	if err != nil {
		return "", classify("read title", "", err)
	}
	return info.Title, nil
}

func (t *rodTab) Content(ctx context.Context) (string, error) {
	p, cancel := t.bounded(ctx)
	defer cancel()
	html, err := p.HTML()
	return html, classify("read page source", "", err)
}

func (t *rodTab) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := t.page.Context(ctx)

	// Element retries until the selector matches or ctx expires.
	el, err := p.Element(selector)
	if err != nil {
		return classify("wait clickable", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return classify("wait clickable", selector, err)
	}
	if err := el.WaitEnabled(); err != nil {
		return classify("wait clickable", selector, err)
	}
	return nil
}

func (t *rodTab) Click(ctx context.Context, selector string) error {
	p, cancel := t.bounded(ctx)
	defer cancel()
	el, err := p.Element(selector)
	if err != nil {
		return classify("click", selector, err)
	}
	return classify("click", selector, el.Click(proto.InputMouseButtonLeft, 1))
}

func (t *rodTab) Fill(ctx context.Context, selector, text string) error {
	p, cancel := t.bounded(ctx)
	defer cancel()
	el, err := p.Element(selector)
	if err != nil {
		return classify("fill", selector, err)
	}
	// Input replaces the current selection, so selecting everything clears the field.
	if err := el.SelectAllText(); err != nil {
		return classify("clear", selector, err)
	}
	return classify("fill", selector, el.Input(text))
}

func (t *rodTab) ClickNth(ctx context.Context, selector string, n int) error {
	p, cancel := t.bounded(ctx)
	defer cancel()
	els, err := p.Elements(selector)
	if err != nil {
		return classify("find", selector, err)
	}
	if len(els) <= n {
		return notEnoughMatches(selector, n, len(els))
	}
	return classify("click", selector, els[n].Click(proto.InputMouseButtonLeft, 1))
}

func (t *rodTab) WaitSettled(ctx context.Context) error {
	p, cancel := t.bounded(ctx)
	defer cancel()
	if err := p.WaitLoad(); err != nil {
		return classify("wait for load", "", err)
	}
	return classify("wait for load", "", p.WaitDOMStable(settleQuietPeriod, 0))
}

func (t *rodTab) Screenshot(ctx context.Context) ([]byte, error) {
	p, cancel := t.bounded(ctx)
	defer cancel()
	png, err := p.Screenshot(true, nil)
	return png, classify("screenshot", "", err)
}

func (t *rodTab) Close() error {
	return t.page.Close()
}
