// Package browser runs the quick-game walk-through in real browsers against
// the in-memory lobby. Every test shares one lobby server; the registry is
// reset between tests. Tests skip when no browser can be launched.
package browser

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/bringten-smoke/internal/browser"
	"github.com/kuitang/bringten-smoke/internal/lobby"
	"github.com/kuitang/bringten-smoke/internal/scenario"
)

const (
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeoutMS = 5000
	browserMaxTimeout   = 5 * time.Second
)

var (
	lobbyFixtureMu sync.Mutex
	lobbyFixture   *LobbyTestEnv
)

// LobbyTestEnv is the shared lobby server.
type LobbyTestEnv struct {
	Server   *httptest.Server
	BaseURL  string
	Registry *lobby.Registry
}

// SetupLobbyTestEnv returns the shared lobby with no rooms.
func SetupLobbyTestEnv(t *testing.T) *LobbyTestEnv {
	t.Helper()

	lobbyFixtureMu.Lock()
	defer lobbyFixtureMu.Unlock()

	if lobbyFixture == nil {
		registry := lobby.NewRegistry()
		srv, err := lobby.NewServer(registry)
		if err != nil {
			t.Fatalf("Failed to create lobby server: %v", err)
		}
		ts := httptest.NewServer(srv.Handler())
		lobbyFixture = &LobbyTestEnv{Server: ts, BaseURL: ts.URL, Registry: registry}
	}
	lobbyFixture.Registry.Reset()
	return lobbyFixture
}

func TestMain(m *testing.M) {
	code := m.Run()
	lobbyFixtureMu.Lock()
	if lobbyFixture != nil {
		lobbyFixture.Server.Close()
	}
	lobbyFixtureMu.Unlock()
	os.Exit(code)
}

// HomeURL is the lobby page the walk-through starts from.
func (env *LobbyTestEnv) HomeURL() string {
	return env.BaseURL + "/"
}

// QuickGameParams are the default walk-through against this lobby with no
// settle delay.
func (env *LobbyTestEnv) QuickGameParams() scenario.QuickGameParams {
	return scenario.QuickGameParams{
		HomeURL:       env.HomeURL(),
		TitleText:     "BringTen",
		NoResultsText: "No results found.",
		HostName:      "Akil",
		RoomName:      "Game Grumps",
		Joiners:       []string{"Des", "Jabari", "Momz"},
		WaitTimeout:   2 * time.Second,
	}
}

// OpenDriver launches the named backend headless, skipping the test when the
// browser is not installed.
func OpenDriver(t *testing.T, name string) browser.Driver {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 6*browserMaxTimeout)
	defer cancel()

	d, err := browser.Open(ctx, name, browser.Options{
		Headless:      true,
		ActionTimeout: browserMaxTimeout,
	})
	if err != nil {
		t.Skipf("%s browser not available: %v", name, err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// NewPlaywrightPage starts Playwright directly for tests that inspect the
// lobby without the runner.
func NewPlaywrightPage(t *testing.T) playwright.Page {
	t.Helper()

	pw, err := playwright.Run()
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		t.Skip("Could not launch browser:", err)
	}
	t.Cleanup(func() {
		_ = b.Close()
		_ = pw.Stop()
	})

	page, err := b.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	page.SetDefaultTimeout(browserMaxTimeoutMS)
	page.SetDefaultNavigationTimeout(browserMaxTimeoutMS)
	return page
}

// Navigate goes to url and waits for DOMContentLoaded.
func Navigate(t *testing.T, page playwright.Page, url string) {
	t.Helper()

	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Failed to navigate to %s: %v", url, err)
	}
}

// WaitForSelector waits for an element to be visible and returns its locator.
func WaitForSelector(t *testing.T, page playwright.Page, selector string) playwright.Locator {
	t.Helper()

	first := page.Locator(selector).First()
	err := first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		title, _ := page.Title()
		content, _ := page.Content()
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		t.Logf("Current URL: %s", page.URL())
		t.Logf("Current title: %s", title)
		t.Logf("Content preview: %s", strings.TrimSpace(content))
		t.Fatalf("Failed to wait for selector %s: %v", selector, err)
	}
	return first
}
