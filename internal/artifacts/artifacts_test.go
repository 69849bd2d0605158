package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "runs/run-1/report.md", Key("run-1", "report.md"))
}

func TestDirStore_PutWritesUnderRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store, err := NewDirStore(filepath.Join(root, "evidence"))
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), Key("run-1", "step-03.png"), []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "evidence", "runs", "run-1", "step-03.png"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestDirStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.txt", "runs/../../outside.txt", ""} {
		_, err := store.Put(context.Background(), key, []byte("x"), "text/plain")
		assert.Error(t, err, "key %q", key)
	}
}

func TestDirStore_CanceledContext(t *testing.T) {
	t.Parallel()
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.txt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestS3Store_PutAndGet(t *testing.T) {
	store := TestS3Store(t, "evidence")
	ctx := context.Background()

	loc, err := store.Put(ctx, Key("run-9", "report.json"), []byte(`{"passed":true}`), "application/json")
	require.NoError(t, err)
	assert.Contains(t, loc, "/evidence/runs/run-9/report.json")

	data, err := store.Get(ctx, Key("run-9", "report.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"passed":true}`, string(data))

	_, err = store.Get(ctx, Key("run-9", "missing.png"))
	assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
}

func TestS3Store_URLWithoutPublicBase(t *testing.T) {
	t.Parallel()
	store := NewS3StoreFromClient(nil, "evidence", "")
	assert.Equal(t, "s3://evidence/runs/r/a.png", store.URL("/runs/r/a.png"))
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	loc, err := Discard{}.Put(context.Background(), "x", nil, "")
	require.NoError(t, err)
	assert.Empty(t, loc)
}
