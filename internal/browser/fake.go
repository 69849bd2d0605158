package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/bringten-smoke/internal/errs"
)

// Fake is an in-memory Driver for tests. It records every call as
// "tabN verb arg" and answers Title and Content from its fields.
type Fake struct {
	TitleText   string
	ContentText string
	// ContentAfter overrides ContentText once the given selector was clicked
	// in the same tab, keyed by selector.
	ContentAfter map[string]string
	Unclickable  map[string]bool // WaitClickable times out
	Missing      map[string]bool // Click, Fill and ClickNth report NotFound
	Matches      map[string]int  // Number of elements ClickNth sees; default 1
	Screenshot   []byte

	mu     sync.Mutex
	calls  []string
	tabs   int
	closed bool
}

var _ Driver = (*Fake)(nil)

func (f *Fake) Name() string { return "fake" }

// NewTab opens a new recorded tab.
func (f *Fake) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs++
	f.calls = append(f.calls, fmt.Sprintf("tab%d open", f.tabs))
	return &fakeTab{fake: f, id: f.tabs}, nil
}

// Close marks the driver closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) record(id int, format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("tab%d ", id)+fmt.Sprintf(format, args...))
}

type fakeTab struct {
	fake    *Fake
	id      int
	clicked []string
}

func (t *fakeTab) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return classify("navigate", url, err)
	}
	t.clicked = nil
	t.fake.record(t.id, "goto %s", url)
	return nil
}

func (t *fakeTab) Title(ctx context.Context) (string, error) {
	return t.fake.TitleText, ctx.Err()
}

func (t *fakeTab) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content := t.fake.ContentText
	for _, sel := range t.clicked {
		if after, ok := t.fake.ContentAfter[sel]; ok {
			content = after
		}
	}
	return content, nil
}

func (t *fakeTab) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	if t.fake.Unclickable[selector] {
		return errs.New(errs.Timeout, fmt.Sprintf("wait clickable %s timed out after %s", selector, timeout))
	}
	if err := ctx.Err(); err != nil {
		return classify("wait clickable", selector, err)
	}
	t.fake.record(t.id, "wait %s", selector)
	return nil
}

func (t *fakeTab) Click(ctx context.Context, selector string) error {
	if t.fake.Missing[selector] {
		return errs.New(errs.NotFound, "no element for "+selector)
	}
	if err := ctx.Err(); err != nil {
		return classify("click", selector, err)
	}
	t.clicked = append(t.clicked, selector)
	t.fake.record(t.id, "click %s", selector)
	return nil
}

func (t *fakeTab) Fill(ctx context.Context, selector, text string) error {
	if t.fake.Missing[selector] {
		return errs.New(errs.NotFound, "no element for "+selector)
	}
	if err := ctx.Err(); err != nil {
		return classify("fill", selector, err)
	}
	t.fake.record(t.id, "fill %s=%s", selector, text)
	return nil
}

func (t *fakeTab) ClickNth(ctx context.Context, selector string, n int) error {
	count := 1
	if c, ok := t.fake.Matches[selector]; ok {
		count = c
	}
	if t.fake.Missing[selector] {
		count = 0
	}
	if count <= n {
		return notEnoughMatches(selector, n, count)
	}
	if err := ctx.Err(); err != nil {
		return classify("click", selector, err)
	}
	t.clicked = append(t.clicked, selector)
	t.fake.record(t.id, "click %s[%d]", selector, n)
	return nil
}

func (t *fakeTab) WaitSettled(ctx context.Context) error {
	return ctx.Err()
}

func (t *fakeTab) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.fake.record(t.id, "screenshot")
	if t.fake.Screenshot == nil {
		return []byte("\x89PNG fake"), nil
	}
	return t.fake.Screenshot, nil
}

func (t *fakeTab) Close() error {
	t.fake.record(t.id, "close")
	return nil
}

// CallsMatching returns the recorded calls containing substr.
func (f *Fake) CallsMatching(substr string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}
