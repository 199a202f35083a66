package metrics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/metrics"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func turnstile(t *testing.T, name string, c *metrics.Collector) *statemachine.Machine {
	t.Helper()
	table := statemachine.NewTable().
		Add("locked", "coin", statemachine.Literal("unlocked")).
		Add("unlocked", "push", statemachine.Literal("locked")).
		Add("unlocked", "coin", statemachine.Literal("unlocked"))
	m, err := statemachine.New(table,
		statemachine.WithName(name),
		statemachine.WithObserver(c.Observer()),
	)
	require.NoError(t, err)
	return m
}

func TestCollector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := prometheus.NewPedanticRegistry()
	c := metrics.NewCollector(reg)

	m := turnstile(t, "gate-1", c)
	_, err := m.DoAction(ctx, "coin", nil)
	require.NoError(t, err)
	_, err = m.DoAction(ctx, "push", nil)
	require.NoError(t, err)
	_, err = m.DoAction(ctx, "push", nil)
	require.Error(t, err)
	_, err = m.NextAction(ctx)
	require.NoError(t, err)
	_, err = m.NextAction(ctx)
	require.Error(t, err)

	expected := `
# HELP flowstate_transitions_total Total number of applied transitions by machine, action, from and to state
# TYPE flowstate_transitions_total counter
flowstate_transitions_total{action="coin",from="locked",machine="gate-1",to="unlocked"} 2
flowstate_transitions_total{action="push",from="unlocked",machine="gate-1",to="locked"} 1
# HELP flowstate_rejections_total Total number of rejected actions by machine, action and error code
# TYPE flowstate_rejections_total counter
flowstate_rejections_total{action="none",code="forked_next_action",machine="gate-1"} 1
flowstate_rejections_total{action="push",code="invalid_action",machine="gate-1"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"flowstate_transitions_total", "flowstate_rejections_total")
	assert.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "flowstate_transition_duration_seconds"))
}

func TestCollectorMachineLabel(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg, metrics.WithMachineLabel(func(string) string { return "orders" }))

	c.Observe(context.Background(), statemachine.TransitionEvent{
		Machine: "3f7c2a9e", Action: "pay", From: "created", To: "paid", Duration: time.Millisecond,
	})
	c.Observe(context.Background(), statemachine.TransitionEvent{
		Machine: "91bd0e44", Action: "pay", From: "created", To: "paid", Duration: time.Millisecond,
	})

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "flowstate_transitions_total"))
}

func TestCollectorDoubleRegistration(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)
	assert.Panics(t, func() { metrics.NewCollector(reg) })
}
