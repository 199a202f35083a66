// Package storetest holds the behavior every historystore.Store must share.
// Backend packages run it against their implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// Run exercises store with fresh random machine ids, so it can share a
// database with other tests.
func Run(t *testing.T, store historystore.Store) {
	t.Helper()
	ctx := context.Background()

	seed := statemachine.History{
		{Time: 100, Action: statemachine.InitAction, State: "draft"},
	}
	step := statemachine.HistoryEntry{Time: 101, Action: "submit", State: "review"}

	t.Run("unknown id loads empty", func(t *testing.T) {
		h, err := store.Load(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, h)
	})

	t.Run("append keeps order", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Append(ctx, id, seed...))
		require.NoError(t, store.Append(ctx, id, step))
		require.NoError(t, store.Append(ctx, id))

		h, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, statemachine.History{seed[0], step}, h)
	})

	t.Run("replace overwrites", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Append(ctx, id, seed[0], step))

		fresh := statemachine.History{{Time: 200, Action: statemachine.InitAction, State: "draft"}}
		require.NoError(t, store.Replace(ctx, id, fresh))

		h, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, fresh, h)
	})

	t.Run("delete", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Append(ctx, id, seed...))
		require.NoError(t, store.Delete(ctx, id))
		require.NoError(t, store.Delete(ctx, id))

		h, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, h)
	})

	t.Run("histories are isolated", func(t *testing.T) {
		a, b := uuid.NewString(), uuid.NewString()
		require.NoError(t, store.Append(ctx, a, seed...))
		require.NoError(t, store.Append(ctx, b, step))

		h, err := store.Load(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, seed, h)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := store.Load(ctx, " ")
		assert.ErrorIs(t, err, historystore.ErrEmptyID)
		assert.ErrorIs(t, store.Append(ctx, "", step), historystore.ErrEmptyID)
		assert.ErrorIs(t, store.Replace(ctx, "", seed), historystore.ErrEmptyID)
		assert.ErrorIs(t, store.Delete(ctx, ""), historystore.ErrEmptyID)
	})
}
