package statemachine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func TestTable(t *testing.T) {
	t.Parallel()

	t.Run("keeps insertion order", func(t *testing.T) {
		t.Parallel()
		table := statemachine.NewTable().
			Add("zeta", "b", statemachine.Literal("alpha")).
			Add("zeta", "a", statemachine.Literal("alpha")).
			AddState("alpha").
			Add("mid", "x", statemachine.Literal("zeta"))

		assert.Equal(t, []statemachine.State{"zeta", "alpha", "mid"}, table.States())
		assert.Equal(t, []statemachine.Action{"b", "a"}, table.Actions("zeta"))

		first, ok := table.First()
		require.True(t, ok)
		assert.Equal(t, statemachine.State("zeta"), first)
		assert.Equal(t, 3, table.Len())
	})

	t.Run("overwrite keeps position", func(t *testing.T) {
		t.Parallel()
		table := statemachine.NewTable().
			Add("s", "a", statemachine.Literal("x")).
			Add("s", "b", statemachine.Literal("y")).
			Add("s", "a", statemachine.Literal("z"))

		assert.Equal(t, []statemachine.Action{"a", "b"}, table.Actions("s"))
		target, ok := table.Lookup("s", "a")
		require.True(t, ok)
		assert.Equal(t, statemachine.State("z"), target.State())
	})

	t.Run("lookup absence", func(t *testing.T) {
		t.Parallel()
		table := statemachine.NewTable().AddState("only")

		_, ok := table.Lookup("only", "missing")
		assert.False(t, ok)
		_, ok = table.Lookup("missing", "missing")
		assert.False(t, ok)
		assert.Nil(t, table.Actions("only"))
		assert.Nil(t, table.Actions("missing"))
	})

	t.Run("empty table has no first state", func(t *testing.T) {
		t.Parallel()
		_, ok := statemachine.NewTable().First()
		assert.False(t, ok)
	})

	t.Run("clone is independent", func(t *testing.T) {
		t.Parallel()
		table := statemachine.NewTable().Add("s", "a", statemachine.Literal("s"))
		clone := table.Clone()
		clone.Add("s", "b", statemachine.Literal("t")).AddState("t")

		assert.Equal(t, []statemachine.Action{"a"}, table.Actions("s"))
		assert.False(t, table.HasState("t"))
		assert.True(t, clone.HasState("t"))
	})
}

func TestTargetResolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	lit := statemachine.Literal("done")
	assert.False(t, lit.IsComputed())
	assert.Equal(t, statemachine.State("done"), lit.State())
	assert.Equal(t, statemachine.State("done"), lit.Resolve(ctx, statemachine.Snapshot{}, nil))

	comp := statemachine.Computed(func(_ context.Context, snap statemachine.Snapshot, payload any) statemachine.State {
		return statemachine.State(string(snap.Current) + "-" + payload.(string))
	})
	assert.True(t, comp.IsComputed())
	assert.Empty(t, comp.State())
	assert.Equal(t, statemachine.State("a-b"), comp.Resolve(ctx, statemachine.Snapshot{Current: "a"}, "b"))

	var zero statemachine.Target
	assert.Empty(t, zero.Resolve(ctx, statemachine.Snapshot{}, nil))
}

func TestBuilder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fluent table", func(t *testing.T) {
		t.Parallel()
		m, err := statemachine.NewBuilder().
			From("locked").When("coin").To("unlocked").
			When("push").To("locked").
			From("unlocked").When("push").To("locked").
			When("coin").To("unlocked").
			Build()
		require.NoError(t, err)

		assert.Equal(t, statemachine.State("locked"), m.CurrentState())
		assert.Equal(t, []statemachine.Action{"coin", "push"}, m.Actions())

		state, err := m.DoAction(ctx, "coin", nil)
		require.NoError(t, err)
		assert.Equal(t, statemachine.State("unlocked"), state)
	})

	t.Run("terminal state and computed target", func(t *testing.T) {
		t.Parallel()
		table, err := statemachine.NewBuilder().
			From("new").When("pay").Compute(func(context.Context, statemachine.Snapshot, any) statemachine.State {
			return "paid"
		}).
			State("paid").
			Table()
		require.NoError(t, err)
		assert.Equal(t, []statemachine.State{"new", "paid"}, table.States())

		target, ok := table.Lookup("new", "pay")
		require.True(t, ok)
		assert.True(t, target.IsComputed())
	})

	t.Run("target without action", func(t *testing.T) {
		t.Parallel()
		_, err := statemachine.NewBuilder().From("a").To("b").Table()
		assert.ErrorIs(t, err, statemachine.ErrIncompleteTransition)

		_, err = statemachine.NewBuilder().When("go").To("b").Build()
		assert.ErrorIs(t, err, statemachine.ErrIncompleteTransition)
	})

	t.Run("nil compute handler", func(t *testing.T) {
		t.Parallel()
		_, err := statemachine.NewBuilder().From("a").When("go").Compute(nil).Table()
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "nil compute handler"))
	})

	t.Run("empty builder", func(t *testing.T) {
		t.Parallel()
		_, err := statemachine.NewBuilder().Build()
		assert.ErrorIs(t, err, statemachine.ErrEmptyTable)
	})
}
