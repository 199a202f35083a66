package statemachine

// Table maps states to the actions available in them and the targets those
// actions lead to. States and actions keep their insertion order; the first
// state added is the default initial state of machines built from the table.
//
// A Table is not safe for concurrent mutation. Machines take a private copy
// at construction time.
type Table struct {
	order []State
	rows  map[State]*row
}

type row struct {
	actions []Action
	targets map[Action]Target
}

// NewTable creates an empty transition table.
func NewTable() *Table {
	return &Table{rows: make(map[State]*row)}
}

// AddState registers a state without adding any action to it. Adding an
// existing state is a no-op. Terminal states must be registered this way
// (or appear as a source of some action) to be valid transition targets.
func (t *Table) AddState(s State) *Table {
	t.ensure(s)
	return t
}

// Add sets the target of action in state from, registering from when needed.
// An existing entry for the same pair is overwritten in place.
func (t *Table) Add(from State, action Action, target Target) *Table {
	r := t.ensure(from)
	if _, ok := r.targets[action]; !ok {
		r.actions = append(r.actions, action)
	}
	r.targets[action] = target
	return t
}

func (t *Table) ensure(s State) *row {
	if r, ok := t.rows[s]; ok {
		return r
	}
	r := &row{targets: make(map[Action]Target)}
	t.rows[s] = r
	t.order = append(t.order, s)
	return r
}

// Lookup returns the target of action in state. The second result is false
// when either the state or the action is not defined.
func (t *Table) Lookup(state State, action Action) (Target, bool) {
	r, ok := t.rows[state]
	if !ok {
		return Target{}, false
	}
	target, ok := r.targets[action]
	return target, ok
}

// HasState reports whether s is a key of the table.
func (t *Table) HasState(s State) bool {
	_, ok := t.rows[s]
	return ok
}

// States returns all states in insertion order.
func (t *Table) States() []State {
	out := make([]State, len(t.order))
	copy(out, t.order)
	return out
}

// Actions returns the actions defined for s in insertion order, or nil when s is unknown.
func (t *Table) Actions(s State) []Action {
	r, ok := t.rows[s]
	if !ok || len(r.actions) == 0 {
		return nil
	}
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// First returns the first state added to the table.
func (t *Table) First() (State, bool) {
	if len(t.order) == 0 {
		return "", false
	}
	return t.order[0], true
}

// Len returns the number of states.
func (t *Table) Len() int {
	return len(t.order)
}

// Clone returns a deep copy of the table structure. Computed handlers are shared.
func (t *Table) Clone() *Table {
	c := &Table{
		order: make([]State, len(t.order)),
		rows:  make(map[State]*row, len(t.rows)),
	}
	copy(c.order, t.order)
	for s, r := range t.rows {
		cr := &row{
			actions: make([]Action, len(r.actions)),
			targets: make(map[Action]Target, len(r.targets)),
		}
		copy(cr.actions, r.actions)
		for a, target := range r.targets {
			cr.targets[a] = target
		}
		c.rows[s] = cr
	}
	return c
}
