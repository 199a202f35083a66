// Package metrics exports state machine activity to Prometheus.
//
// A Collector turns statemachine.TransitionEvent values into three series:
//
//	flowstate_transitions_total{machine,action,from,to}
//	flowstate_rejections_total{machine,action,code}
//	flowstate_transition_duration_seconds{machine}
//
// Install it on machines with statemachine.WithObserver(c.Observe), or on
// every machine of a registry with registry.WithMachineOptions.
//
// Machine names are often unique per instance (the registry names new
// machines with UUIDs). Use WithMachineLabel to map names onto a bounded set
// of label values, for example the workflow a machine belongs to.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

const namespace = "flowstate"

// Collector records transition events. It is safe for concurrent use.
type Collector struct {
	transitions  *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	machineLabel func(name string) string
}

// Option configures a Collector.
type Option func(*Collector)

// WithMachineLabel maps a machine name to the value of the machine label.
func WithMachineLabel(fn func(name string) string) Option {
	return func(c *Collector) {
		if fn != nil {
			c.machineLabel = fn
		}
	}
}

// NewCollector registers the flowstate series with reg. A nil reg uses
// prometheus.DefaultRegisterer. Registering twice with the same registry
// panics, as promauto does.
func NewCollector(reg prometheus.Registerer, opts ...Option) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of applied transitions by machine, action, from and to state",
		}, []string{"machine", "action", "from", "to"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total number of rejected actions by machine, action and error code",
		}, []string{"machine", "action", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time spent resolving and applying a transition, including computed handlers",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"machine"}),
		machineLabel: defaultMachineLabel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe records ev. Its signature matches statemachine.Observer.
func (c *Collector) Observe(_ context.Context, ev statemachine.TransitionEvent) {
	machine := c.machineLabel(ev.Machine)
	action := sanitize(string(ev.Action), "none")

	if ev.Err != nil {
		c.rejections.WithLabelValues(machine, action, errorCode(ev.Err)).Inc()
		return
	}
	c.transitions.WithLabelValues(machine, action, string(ev.From), string(ev.To)).Inc()
	c.duration.WithLabelValues(machine).Observe(ev.Duration.Seconds())
}

// Observer returns Observe as a statemachine.Observer.
func (c *Collector) Observer() statemachine.Observer {
	return c.Observe
}

func errorCode(err error) string {
	if code, ok := statemachine.CodeOf(err); ok {
		return code.String()
	}
	return "other"
}

func defaultMachineLabel(name string) string {
	return sanitize(name, "unknown")
}

func sanitize(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
