// Package statemachine implements a finite-state-machine execution engine
// driven by a declarative transition table.
//
// A Table maps every state to the actions available in it and to the Target
// each action leads to. Targets are either Literal (a fixed state) or
// Computed (a ComputeFunc deciding the state from a read-only Snapshot of the
// machine and a caller-supplied payload). The engine:
//  1. Validates actions against the current state (CanDoAction)
//  2. Resolves targets and rejects results missing from the table (DoAction)
//  3. Auto-advances through states with exactly one action (NextAction)
//  4. Keeps an append-only History that is also the resume format
//
// # Architecture
//
// Tables keep insertion order: the first state added is the initial state
// unless WithInitialState names another one. A Machine copies the table at
// construction, so later changes to the caller's table never leak in. All
// mutations hold the machine's write lock for their whole duration,
// including the call into a computed handler, which is why handlers receive
// a Snapshot instead of the machine itself.
//
// The engine never persists anything. A caller that wants durability stores
// History (a JSON array of {time, action, state}) and resumes with
// WithHistory; the last entry's state becomes the current state.
//
// # Usage
//
//	import "github.com/dmitrymomot/flowstate/pkg/statemachine"
//
//	table := statemachine.NewTable().
//	    Add("draft", "submit", statemachine.Literal("review")).
//	    Add("review", "approve", statemachine.Literal("published")).
//	    AddState("published")
//
//	m := statemachine.MustNew(table)
//	_, err := m.NextAction(ctx) // draft -> review
//
// Tables can also be built fluently with NewBuilder or loaded from YAML with
// LoadTable / ParseTable, where computed targets reference named Handlers.
//
// # Computed transitions
//
//	table.Add("locked", "coin", statemachine.Computed(
//	    func(ctx context.Context, snap statemachine.Snapshot, payload any) statemachine.State {
//	        coins := payload.(*int)
//	        *coins--
//	        if *coins >= 0 {
//	            return "unlocked"
//	        }
//	        return "locked"
//	    },
//	))
//
// # Error Handling
//
// DoAction and NextAction return a *TransitionError carrying an ErrorCode:
// CodeInvalidAction, CodeNoNextAction or CodeForkedNextAction. Use errors.Is
// with ErrInvalidAction / ErrNoNextAction / ErrForkedNextAction, the
// IsXxxError helpers, or CodeOf. A failed call never changes the machine.
//
// # Concurrency
//
// Machine guards its state with a RWMutex; accessors are cheap read locks and
// DoAction/NextAction are serialized. A computed handler must not call back
// into the machine it was invoked from.
package statemachine
