package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/bringten-smoke/internal/errs"
)

var errBackendTimeout = errors.New("timeout")

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want errs.Code
	}{
		{"deadline", fmt.Errorf("rod: %w", context.DeadlineExceeded), errs.Timeout},
		{"canceled", context.Canceled, errs.Canceled},
		{"backend timeout", fmt.Errorf("locator.click: %w", errBackendTimeout), errs.Timeout},
		{"already coded", errs.New(errs.NotFound, "gone"), errs.NotFound},
		{"other", errors.New("target closed"), errs.Internal},
	}
	for _, tc := range cases {
		got := classify("click", "#create_game_submit", tc.err, errBackendTimeout)
		assert.Equal(t, tc.want, errs.CodeOf(got), tc.name)
	}
	assert.NoError(t, classify("click", "#x", nil))
	assert.Contains(t, classify("click", "#create_game_tab", context.DeadlineExceeded).Error(), "click #create_game_tab timed out")
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), "selenium", Options{})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestOptions_ActionTimeoutDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5*time.Second, Options{}.actionTimeout())
	assert.Equal(t, time.Second, Options{ActionTimeout: time.Second}.actionTimeout())
}

func TestFake_RecordsCallsPerTab(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := &Fake{
		TitleText:    "BringTen - Lobby",
		ContentText:  "<tbody><tr><td>No results found.</td></tr></tbody>",
		ContentAfter: map[string]string{"#create_game_submit": "<h1>Game Grumps</h1>"},
	}

	tab, err := f.NewTab(ctx)
	require.NoError(t, err)
	require.NoError(t, tab.Goto(ctx, "http://localhost:5173/"))
	before, _ := tab.Content(ctx)
	assert.Contains(t, before, "No results found.")
	require.NoError(t, tab.Click(ctx, "#create_game_submit"))
	after, _ := tab.Content(ctx)
	assert.Equal(t, "<h1>Game Grumps</h1>", after)

	second, err := f.NewTab(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Fill(ctx, "#join_game_username", "Des"))

	assert.Equal(t, []string{
		"tab1 open",
		"tab1 goto http://localhost:5173/",
		"tab1 click #create_game_submit",
		"tab2 open",
		"tab2 fill #join_game_username=Des",
	}, f.Calls())
}

func TestFake_ClickNthOutOfRange(t *testing.T) {
	t.Parallel()
	f := &Fake{Matches: map[string]int{"tbody button": 0}}
	tab, err := f.NewTab(context.Background())
	require.NoError(t, err)

	err = tab.ClickNth(context.Background(), "tbody button", 0)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "found 0")
}
