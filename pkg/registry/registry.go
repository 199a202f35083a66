// Package registry keeps named state machine instances and their durable
// histories in step.
//
// A Registry resolves a machine name to a single live *statemachine.Machine,
// building it on first use from a Factory and resuming it from the history
// found in a historystore.Store. Every mutating call (Do, Next, Reset) runs
// under a per-name lock and writes the entries it produced back to the store
// before returning, so any process can later resume the machine from the
// store alone.
//
// Live instances are kept in an LRU bounded by WithCapacity. Evicting an
// instance loses nothing: the next call for that name resumes it from the
// store.
//
// Mutations must go through the Registry. Calling DoAction on a machine
// returned by Get bypasses persistence.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

var (
	ErrEmptyName = errors.New("registry: empty machine name")
	// ErrPersist means the in-memory transition happened but the store did
	// not record it. The live machine is evicted so the next call reloads
	// from the store.
	ErrPersist = errors.New("registry: failed to persist history")
	ErrFactory = errors.New("registry: failed to build machine")
	ErrLoad    = errors.New("registry: failed to load history")
)

// Factory returns the table and per-machine options for a machine name.
// Options returned here are applied after the registry-wide ones.
type Factory func(name string) (*statemachine.Table, []statemachine.Option, error)

// StaticFactory serves every name with the same table.
func StaticFactory(table *statemachine.Table, opts ...statemachine.Option) Factory {
	return func(string) (*statemachine.Table, []statemachine.Option, error) {
		return table, opts, nil
	}
}

// Registry is safe for concurrent use.
type Registry struct {
	factory  Factory
	store    historystore.Store
	machines *lru[string, *statemachine.Machine]
	locks    *keyedMutex
	logger   *slog.Logger
	opts     []statemachine.Option
	capacity int
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity bounds the number of live machines. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.capacity = n
		}
	}
}

// WithMachineOptions adds options applied to every machine the registry
// builds, such as statemachine.WithObserver or statemachine.WithLogger.
func WithMachineOptions(opts ...statemachine.Option) Option {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a registry. A nil store keeps histories in memory.
func New(factory Factory, store historystore.Store, opts ...Option) *Registry {
	if store == nil {
		store = historystore.NewMemory()
	}
	r := &Registry{
		factory:  factory,
		store:    store,
		locks:    newKeyedMutex(),
		logger:   logger.Discard(),
		capacity: 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.machines = newLRU(r.capacity, func(name string, _ *statemachine.Machine) {
		r.logger.Debug("machine evicted", logger.Component("registry"), logger.Machine(name))
	})
	return r
}

// Store returns the history store backing the registry.
func (r *Registry) Store() historystore.Store {
	return r.store
}

// Len reports how many machines are live.
func (r *Registry) Len() int {
	return r.machines.len()
}

// Names lists live machines, most recently used first.
func (r *Registry) Names() []string {
	return r.machines.keys()
}

// Get returns the machine called name, resuming or creating it as needed.
// A machine created here has its seed entry persisted before Get returns.
func (r *Registry) Get(ctx context.Context, name string) (*statemachine.Machine, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	unlock := r.locks.lock(name)
	defer unlock()
	return r.getLocked(ctx, name)
}

// Create builds a new machine under a random UUID name.
func (r *Registry) Create(ctx context.Context) (string, *statemachine.Machine, error) {
	name := uuid.NewString()
	m, err := r.Get(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, m, nil
}

// Do runs DoAction on the named machine and persists the new entry.
// Engine errors are returned unchanged and nothing is persisted.
func (r *Registry) Do(ctx context.Context, name string, action statemachine.Action, payload any) (statemachine.State, error) {
	return r.mutate(ctx, name, func(m *statemachine.Machine) (statemachine.State, error) {
		return m.DoAction(ctx, action, payload)
	})
}

// Next runs NextAction on the named machine and persists the new entry.
func (r *Registry) Next(ctx context.Context, name string) (statemachine.State, error) {
	return r.mutate(ctx, name, func(m *statemachine.Machine) (statemachine.State, error) {
		return m.NextAction(ctx)
	})
}

// Reset returns the named machine to its initial state and replaces the
// stored history with the fresh seed entry.
func (r *Registry) Reset(ctx context.Context, name string) (statemachine.State, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	unlock := r.locks.lock(name)
	defer unlock()

	m, err := r.getLocked(ctx, name)
	if err != nil {
		return "", err
	}
	if err := m.Reset(); err != nil {
		return "", err
	}
	if err := r.store.Replace(ctx, name, m.History()); err != nil {
		return m.CurrentState(), r.persistFailed(ctx, name, err)
	}
	return m.CurrentState(), nil
}

// Remove forgets the live instance. With purge the stored history is
// deleted too, so the next Get starts from scratch.
func (r *Registry) Remove(ctx context.Context, name string, purge bool) error {
	if err := validName(name); err != nil {
		return err
	}
	unlock := r.locks.lock(name)
	defer unlock()

	r.machines.remove(name)
	if !purge {
		return nil
	}
	if err := r.store.Delete(ctx, name); err != nil {
		return errors.Join(ErrPersist, err)
	}
	return nil
}

func (r *Registry) mutate(ctx context.Context, name string, op func(*statemachine.Machine) (statemachine.State, error)) (statemachine.State, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	unlock := r.locks.lock(name)
	defer unlock()

	m, err := r.getLocked(ctx, name)
	if err != nil {
		return "", err
	}
	state, err := op(m)
	if err != nil {
		return state, err
	}

	last, _ := m.LastEntry()
	if err := r.store.Append(ctx, name, last); err != nil {
		return state, r.persistFailed(ctx, name, err)
	}
	return state, nil
}

// Must be called with the name lock held.
func (r *Registry) getLocked(ctx context.Context, name string) (*statemachine.Machine, error) {
	if m, ok := r.machines.get(name); ok {
		return m, nil
	}

	h, err := r.store.Load(ctx, name)
	if err != nil {
		return nil, errors.Join(ErrLoad, err)
	}

	table, extra, err := r.factory(name)
	if err != nil {
		return nil, errors.Join(ErrFactory, err)
	}
	opts := make([]statemachine.Option, 0, len(r.opts)+len(extra)+2)
	opts = append(opts, r.opts...)
	opts = append(opts, extra...)
	opts = append(opts, statemachine.WithName(name))
	if len(h) > 0 {
		opts = append(opts, statemachine.WithHistory(h))
	}

	m, err := statemachine.New(table, opts...)
	if err != nil {
		return nil, errors.Join(ErrFactory, fmt.Errorf("machine %q: %w", name, err))
	}

	if len(h) == 0 {
		if err := r.store.Append(ctx, name, m.History()...); err != nil {
			return nil, errors.Join(ErrPersist, err)
		}
		r.logger.DebugContext(ctx, "machine created",
			logger.Component("registry"),
			logger.Machine(name),
			logger.State(string(m.CurrentState())),
		)
	} else {
		r.logger.DebugContext(ctx, "machine resumed",
			logger.Component("registry"),
			logger.Machine(name),
			logger.State(string(m.CurrentState())),
			slog.Int("entries", len(h)),
		)
	}

	r.machines.put(name, m)
	return m, nil
}

func (r *Registry) persistFailed(ctx context.Context, name string, err error) error {
	r.machines.remove(name)
	r.logger.ErrorContext(ctx, "history not persisted",
		logger.Component("registry"),
		logger.Machine(name),
		logger.Error(err),
	)
	return errors.Join(ErrPersist, err)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}
