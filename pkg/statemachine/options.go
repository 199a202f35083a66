package statemachine

import (
	"fmt"
	"log/slog"
	"time"
)

// Option configures a machine during construction.
type Option func(*Machine) error

// WithName labels the machine in logs, snapshots and observer events.
func WithName(name string) Option {
	return func(m *Machine) error {
		m.name = name
		return nil
	}
}

// WithHistory resumes the machine from a previously persisted history.
// The current state becomes the state of the last entry. An empty history is
// ignored and the machine starts fresh.
func WithHistory(h History) Option {
	return func(m *Machine) error {
		m.resume = h.Clone()
		return nil
	}
}

// WithInitialState overrides the default initial state (the first state of
// the table) with an explicit one, which must be a state of the table.
func WithInitialState(s State) Option {
	return func(m *Machine) error {
		if !m.transitions.HasState(s) {
			return fmt.Errorf("initial state '%s': %w", s, ErrUnknownState)
		}
		m.initState = s
		return nil
	}
}

// WithClock replaces the source of history timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// WithTimestamps toggles timestamps on new history entries.
// When disabled, entries are recorded with a zero Time.
func WithTimestamps(enabled bool) Option {
	return func(m *Machine) error {
		m.timestamps = enabled
		return nil
	}
}

// WithLogger sets the logger used for debug output of transitions.
// Nil loggers are ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) error {
		if l != nil {
			m.logger = l
		}
		return nil
	}
}

// WithObserver registers a callback notified after every DoAction attempt.
func WithObserver(o Observer) Option {
	return func(m *Machine) error {
		if o != nil {
			m.observers = append(m.observers, o)
		}
		return nil
	}
}

// WithImmutable disables AddTransition, AddComputedTransition and Reset.
func WithImmutable() Option {
	return func(m *Machine) error {
		m.immutable = true
		return nil
	}
}
