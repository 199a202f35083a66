package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/file"
	"github.com/dmitrymomot/flowstate/pkg/historystore/storetest"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func TestLocalStore(t *testing.T) {
	t.Parallel()
	store, err := file.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	storetest.Run(t, store)
}

func TestLocalStoreLayout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "history")

	store, err := file.NewLocalStore(dir, file.WithFileMode(0o600))
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
	require.NoError(t, store.Healthcheck(ctx))

	h := statemachine.History{
		{Time: 1700000000, Action: statemachine.InitAction, State: "draft"},
	}
	require.NoError(t, store.Replace(ctx, "order-1", h))

	data, err := os.ReadFile(filepath.Join(dir, "order-1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"time":1700000000,"action":"init","state":"draft"}]`, string(data))

	info, err := os.Stat(filepath.Join(dir, "order-1.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestLocalStoreIDsStayInside(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "history")

	store, err := file.NewLocalStore(dir)
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", `c\d`} {
		require.NoError(t, store.Append(ctx, id, statemachine.HistoryEntry{State: "x"}))
		h, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Len(t, h, 1, id)
	}

	_, err = store.Load(ctx, "..")
	assert.ErrorIs(t, err, file.ErrInvalidPath)

	outside, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, outside, 1)
}

func TestLocalStoreCorruptFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{oops"), 0o644))

	store, err := file.NewLocalStore(dir)
	require.NoError(t, err)
	_, err = store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, file.ErrCorruptHistory)

	err = store.Append(context.Background(), "bad", statemachine.HistoryEntry{State: "x"})
	assert.ErrorIs(t, err, file.ErrCorruptHistory)
}

func TestLocalStoreConfig(t *testing.T) {
	t.Parallel()
	_, err := file.NewLocalStore("")
	assert.ErrorIs(t, err, file.ErrInvalidConfig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store, err := file.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Load(ctx, "m")
	assert.ErrorIs(t, err, context.Canceled)
}
