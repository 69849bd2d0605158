// Package browser hides the browser automation library behind the handful of
// operations a UI walk-through needs: open a tab, navigate, wait until an
// element is clickable, click, type, and read the title or page source.
//
// Two backends exist: Playwright (default, can drive installed Edge or Chrome
// through a channel) and Rod (Chromium over the DevTools protocol).
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/bringten-smoke/internal/errs"
)

// Tab is one browser tab. All tabs of a Driver share cookies and storage.
type Tab interface {
	// Goto loads url and waits for DOMContentLoaded.
	Goto(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Content returns the serialized DOM of the page.
	Content(ctx context.Context) (string, error)
	// WaitClickable polls until the first element matching selector is
	// visible and enabled, or timeout elapses.
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	// Fill clears the first element matching selector and types text into it.
	Fill(ctx context.Context, selector, text string) error
	// ClickNth clicks the n-th (0-based) element matching selector.
	ClickNth(ctx context.Context, selector string, n int) error
	// WaitSettled waits for the load triggered by the previous action.
	WaitSettled(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Driver owns a browser process.
type Driver interface {
	Name() string
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Options configures a browser launch.
type Options struct {
	Headless      bool
	Channel       string // Playwright only
	BrowserBin    string // Rod only
	Detach        bool   // Do not tie the browser's lifetime to this process where the backend allows it
	ActionTimeout time.Duration
}

const defaultActionTimeout = 5 * time.Second

func (o Options) actionTimeout() time.Duration {
	if o.ActionTimeout <= 0 {
		return defaultActionTimeout
	}
	return o.ActionTimeout
}

// Open launches the named backend.
func Open(ctx context.Context, name string, opts Options) (Driver, error) {
	switch name {
	case "playwright", "":
		return OpenPlaywright(ctx, opts)
	case "rod":
		return OpenRod(ctx, opts)
	default:
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser driver %q", name))
	}
}

// classify turns a backend error into a coded error describing the failed action.
func classify(action, selector string, err error, timeoutErrs ...error) error {
	if err == nil {
		return nil
	}
	target := action
	if selector != "" {
		target = fmt.Sprintf("%s %s", action, selector)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.Canceled, target+" canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.Timeout, target+" timed out", err)
	}
	for _, te := range timeoutErrs {
		if te != nil && errors.Is(err, te) {
			return errs.Wrap(errs.Timeout, target+" timed out", err)
		}
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.Internal, target+" failed", err)
}

func notEnoughMatches(selector string, n, count int) error {
	return errs.New(errs.NotFound, fmt.Sprintf("no element #%d for %s (found %d)", n, selector, count))
}
