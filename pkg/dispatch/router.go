// Package dispatch calls machine operations by name.
//
// It backs text-driven surfaces such as the CLI, where the operation arrives
// as a string. A name X resolves to the operation registered as X or, failing
// that, as X+"Action", so "do" and "doAction" reach the same operation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

var (
	ErrUnknownOperation = errors.New("dispatch: unknown operation")
	ErrInvalidArguments = errors.New("dispatch: invalid arguments")
)

// ActionSuffix is tried after the bare name when resolving a call.
const ActionSuffix = "Action"

// Operation runs against m with positional args.
type Operation func(ctx context.Context, m *statemachine.Machine, args ...any) (any, error)

// Router is safe for concurrent use.
type Router struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRouter returns a router with the engine operations registered:
// doAction, nextAction, initAction, canDoAction, reset, addTransition,
// currentState, previousState, actions and history.
func NewRouter() *Router {
	r := &Router{ops: make(map[string]Operation)}
	r.Register("doAction", doAction)
	r.Register("nextAction", nextAction)
	r.Register("initAction", initAction)
	r.Register("canDoAction", canDoAction)
	r.Register("reset", reset)
	r.Register("addTransition", addTransition)
	r.Register("currentState", currentState)
	r.Register("previousState", previousState)
	r.Register("actions", actions)
	r.Register("history", history)
	return r
}

// Register adds or replaces the operation under name.
func (r *Router) Register(name string, op Operation) {
	if name == "" || op == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = op
}

// Resolve returns the registered name and operation for a call name.
func (r *Router) Resolve(name string) (string, Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if op, ok := r.ops[name]; ok {
		return name, op, true
	}
	if op, ok := r.ops[name+ActionSuffix]; ok {
		return name + ActionSuffix, op, true
	}
	return "", nil, false
}

// Names lists registered operations in lexical order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the operation resolved from name. Engine errors are returned
// unchanged so callers can still use errors.Is and statemachine.CodeOf.
func (r *Router) Call(ctx context.Context, m *statemachine.Machine, name string, args ...any) (any, error) {
	_, op, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op(ctx, m, args...)
}
