package statemachine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/flowstate/pkg/logger"
)

// Machine executes actions against a transition table, tracking the current
// state and an append-only history of the states it went through.
// Mutations are serialized; accessors may be called concurrently.
type Machine struct {
	name        string
	transitions *Table
	initState   State
	current     State
	previous    State
	hasPrevious bool
	history     History

	now        func() time.Time
	timestamps bool
	logger     *slog.Logger
	observers  []Observer
	immutable  bool
	resume     History

	mu sync.RWMutex
}

// New builds a machine over a private copy of table. Without WithHistory the
// machine starts in the initial state with a single "init" history entry.
func New(table *Table, opts ...Option) (*Machine, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if table.Len() == 0 {
		return nil, ErrEmptyTable
	}

	m := &Machine{
		transitions: table.Clone(),
		now:         time.Now,
		timestamps:  true,
		logger:      slog.New(slog.DiscardHandler),
	}
	m.initState, _ = m.transitions.First()

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.initLocked(m.resume)
	m.resume = nil
	return m, nil
}

// MustNew is like New but panics on error.
func MustNew(table *Table, opts ...Option) *Machine {
	m, err := New(table, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// initLocked seeds or resumes the machine. The caller must hold the write
// lock or own the machine exclusively.
func (m *Machine) initLocked(h History) {
	m.previous = ""
	m.hasPrevious = false

	if last, ok := h.Last(); ok {
		m.history = h.Clone()
		m.current = last.State
		return
	}

	m.current = m.initState
	m.history = History{m.entry(InitAction, m.initState)}
}

func (m *Machine) entry(action Action, state State) HistoryEntry {
	e := HistoryEntry{Action: action, State: state}
	if !m.timestamps {
		return e
	}
	e.Time = m.now().Unix()
	// Keep timestamps non-decreasing even if the clock steps back.
	if last, ok := m.history.Last(); ok && e.Time < last.Time {
		e.Time = last.Time
	}
	return e
}

// Name returns the label given with WithName.
func (m *Machine) Name() string {
	return m.name
}

// CurrentState returns the state the machine is in.
func (m *Machine) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// PreviousState returns the state before the last transition. The second
// result is false right after construction, Init or Reset.
func (m *Machine) PreviousState() (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.previous, m.hasPrevious
}

// InitState returns the state a fresh or reset machine starts in.
func (m *Machine) InitState() State {
	return m.initState
}

// History returns a copy of the audit log.
func (m *Machine) History() History {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Clone()
}

// LastEntry returns the most recent history entry without copying the log.
func (m *Machine) LastEntry() (HistoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Last()
}

// Snapshot returns a read-only view of the machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Name:        m.name,
		Current:     m.current,
		Previous:    m.previous,
		HasPrevious: m.hasPrevious,
		History:     m.history.Clone(),
	}
}

// Actions returns the actions defined for the current state in table order.
func (m *Machine) Actions() []Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transitions.Actions(m.current)
}

// CanDoAction reports whether action is defined for the current state.
// It does not evaluate computed targets.
func (m *Machine) CanDoAction(action Action) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions.Lookup(m.current, action)
	return ok
}

// DoAction takes action from the current state and returns the new state.
// The payload is handed to computed targets untouched.
//
// If the action is not defined for the current state, or resolves to a
// state missing from the table, DoAction returns an InvalidAction
// *TransitionError and the machine is left exactly as it was.
func (m *Machine) DoAction(ctx context.Context, action Action, payload any) (State, error) {
	start := time.Now()
	from, to, err := m.doAction(ctx, action, payload)
	m.finish(ctx, start, action, from, to, err)
	return to, err
}

func (m *Machine) doAction(ctx context.Context, action Action, payload any) (from, to State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from = m.current
	to, err = m.doLocked(ctx, action, payload)
	return from, to, err
}

// NextAction takes the only action defined for the current state.
// It fails with NoNextAction when the state has no actions and with
// ForkedNextAction when it has more than one.
func (m *Machine) NextAction(ctx context.Context) (State, error) {
	start := time.Now()
	action, from, to, err := m.nextAction(ctx)
	m.finish(ctx, start, action, from, to, err)
	return to, err
}

func (m *Machine) nextAction(ctx context.Context) (action Action, from, to State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from = m.current
	switch actions := m.transitions.Actions(from); len(actions) {
	case 0:
		return "", from, "", &TransitionError{Code: CodeNoNextAction, State: from}
	case 1:
		action = actions[0]
		to, err = m.doLocked(ctx, action, nil)
		return action, from, to, err
	default:
		return "", from, "", &TransitionError{Code: CodeForkedNextAction, State: from, Actions: actions}
	}
}

// doLocked runs the transition algorithm. The caller holds the write lock.
func (m *Machine) doLocked(ctx context.Context, action Action, payload any) (State, error) {
	from := m.current

	target, ok := m.transitions.Lookup(from, action)
	if !ok {
		return "", newInvalidActionError(from, action, "")
	}

	candidate := target.Resolve(ctx, m.snapshotLocked(), payload)
	if !m.transitions.HasState(candidate) {
		return "", newInvalidActionError(from, action, candidate)
	}

	m.previous = from
	m.hasPrevious = true
	m.current = candidate
	m.history = append(m.history, m.entry(action, candidate))
	return candidate, nil
}

func (m *Machine) finish(ctx context.Context, start time.Time, action Action, from, to State, err error) {
	elapsed := time.Since(start)

	if err != nil {
		m.logger.DebugContext(ctx, "action rejected",
			logger.Machine(m.name),
			logger.Action(string(action)),
			logger.State(string(from)),
			logger.Error(err),
		)
	} else {
		m.logger.DebugContext(ctx, "transition applied",
			logger.Machine(m.name),
			logger.Action(string(action)),
			logger.FromState(string(from)),
			logger.ToState(string(to)),
			logger.Duration(elapsed),
		)
	}

	if len(m.observers) == 0 {
		return
	}
	ev := TransitionEvent{
		Machine:  m.name,
		Action:   action,
		From:     from,
		To:       to,
		Duration: elapsed,
		Err:      err,
	}
	for _, o := range m.observers {
		o(ctx, ev)
	}
}

// Init re-initializes the machine: with an empty history it returns to the
// initial state with a fresh "init" entry, otherwise it resumes from h.
func (m *Machine) Init(h History) (State, error) {
	if m.immutable {
		return "", ErrImmutable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initLocked(h)
	return m.current, nil
}

// Reset returns the machine to its initial state. The history is replaced by
// a single "init" entry, matching a freshly constructed machine.
func (m *Machine) Reset() error {
	_, err := m.Init(nil)
	return err
}

// AddTransition sets a literal target for action in state from on this
// machine's table. The target state is not checked here; taking the action
// fails with InvalidAction while it is not a state of the table.
func (m *Machine) AddTransition(from State, action Action, to State) error {
	return m.addTarget(from, action, Literal(to))
}

// AddComputedTransition is like AddTransition with a computed target.
func (m *Machine) AddComputedTransition(from State, action Action, fn ComputeFunc) error {
	if fn == nil {
		return fmt.Errorf("computed transition '%s' from '%s': nil handler", action, from)
	}
	return m.addTarget(from, action, Computed(fn))
}

func (m *Machine) addTarget(from State, action Action, target Target) error {
	if m.immutable {
		return ErrImmutable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions.Add(from, action, target)
	return nil
}
