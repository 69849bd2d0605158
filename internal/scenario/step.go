// Package scenario runs UI walk-throughs as an ordered list of steps against a
// browser.Driver, one tab at a time, stopping at the first failure.
package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/bringten-smoke/internal/browser"
	"github.com/kuitang/bringten-smoke/internal/errs"
)

// Step is one action or check.
type Step interface {
	Name() string
	Run(ctx context.Context, s *Session) error
}

// Scenario is a named, ordered list of steps.
type Scenario struct {
	Name  string
	Steps []Step
}

// Session is the browser state shared by the steps of one run.
type Session struct {
	Driver browser.Driver
	tabs   []browser.Tab
}

// Tab returns the current (most recently opened) tab.
func (s *Session) Tab() (browser.Tab, error) {
	if len(s.tabs) == 0 {
		return nil, errs.New(errs.FailedPrecondition, "no tab is open")
	}
	return s.tabs[len(s.tabs)-1], nil
}

// TabNumber is the 1-based number of the current tab, zero before the first.
func (s *Session) TabNumber() int {
	return len(s.tabs)
}

type step struct {
	name string
	run  func(ctx context.Context, s *Session) error
}

func (st step) Name() string                              { return st.name }
func (st step) Run(ctx context.Context, s *Session) error { return st.run(ctx, s) }

// onTab builds a step that acts on the current tab.
func onTab(name string, fn func(ctx context.Context, tab browser.Tab) error) Step {
	return step{name: name, run: func(ctx context.Context, s *Session) error {
		tab, err := s.Tab()
		if err != nil {
			return err
		}
		return fn(ctx, tab)
	}}
}

// NewTab opens a tab and makes it current.
func NewTab() Step {
	return step{name: "open tab", run: func(ctx context.Context, s *Session) error {
		tab, err := s.Driver.NewTab(ctx)
		if err != nil {
			return err
		}
		s.tabs = append(s.tabs, tab)
		return nil
	}}
}

// Navigate loads url in the current tab.
func Navigate(url string) Step {
	return onTab("navigate "+url, func(ctx context.Context, tab browser.Tab) error {
		return tab.Goto(ctx, url)
	})
}

// Pause sleeps for d unless ctx ends first.
func Pause(d time.Duration) Step {
	return step{name: "pause " + d.String(), run: func(ctx context.Context, _ *Session) error {
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.Canceled, "pause interrupted", ctx.Err())
		case <-timer.C:
			return nil
		}
	}}
}

// WaitClickable waits up to timeout for selector to be visible and enabled.
func WaitClickable(selector string, timeout time.Duration) Step {
	return onTab(fmt.Sprintf("wait clickable %s", selector), func(ctx context.Context, tab browser.Tab) error {
		return tab.WaitClickable(ctx, selector, timeout)
	})
}

// Click clicks the first element matching selector.
func Click(selector string) Step {
	return onTab("click "+selector, func(ctx context.Context, tab browser.Tab) error {
		return tab.Click(ctx, selector)
	})
}

// Fill clears selector and types text.
func Fill(selector, text string) Step {
	return onTab(fmt.Sprintf("type %q into %s", text, selector), func(ctx context.Context, tab browser.Tab) error {
		return tab.Fill(ctx, selector, text)
	})
}

// ClickNth clicks the n-th (0-based) element matching selector.
func ClickNth(selector string, n int) Step {
	return onTab(fmt.Sprintf("click %s[%d]", selector, n), func(ctx context.Context, tab browser.Tab) error {
		return tab.ClickNth(ctx, selector, n)
	})
}

// WaitSettled waits for the navigation started by the previous click.
func WaitSettled() Step {
	return onTab("wait for page", func(ctx context.Context, tab browser.Tab) error {
		return tab.WaitSettled(ctx)
	})
}

// AssertTitleContains fails unless the page title contains substr.
func AssertTitleContains(substr string) Step {
	return onTab(fmt.Sprintf("assert title contains %q", substr), func(ctx context.Context, tab browser.Tab) error {
		title, err := tab.Title(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(title, substr) {
			return errs.New(errs.AssertionFailed, fmt.Sprintf("title %q does not contain %q", title, substr))
		}
		return nil
	})
}

// AssertContentLacks fails if the page source contains substr.
func AssertContentLacks(substr string) Step {
	return onTab(fmt.Sprintf("assert page lacks %q", substr), func(ctx context.Context, tab browser.Tab) error {
		content, err := tab.Content(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(content, substr) {
			return errs.New(errs.AssertionFailed, fmt.Sprintf("page source contains %q", substr))
		}
		return nil
	})
}
