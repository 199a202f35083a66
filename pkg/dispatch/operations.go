package dispatch

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

func doAction(ctx context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, argCount("doAction", "1 or 2", len(args))
	}
	action, err := actionArg(args[0])
	if err != nil {
		return nil, err
	}
	var payload any
	if len(args) == 2 {
		payload = args[1]
	}
	return m.DoAction(ctx, action, payload)
}

func nextAction(ctx context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("nextAction", "0", len(args))
	}
	return m.NextAction(ctx)
}

func initAction(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	switch len(args) {
	case 0:
		return m.Init(nil)
	case 1:
		h, ok := args[0].(statemachine.History)
		if !ok && args[0] != nil {
			return nil, fmt.Errorf("%w: initAction expects a history, got %T", ErrInvalidArguments, args[0])
		}
		return m.Init(h)
	default:
		return nil, argCount("initAction", "0 or 1", len(args))
	}
}

func canDoAction(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, argCount("canDoAction", "1", len(args))
	}
	action, err := actionArg(args[0])
	if err != nil {
		return nil, err
	}
	return m.CanDoAction(action), nil
}

func reset(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("reset", "0", len(args))
	}
	if err := m.Reset(); err != nil {
		return nil, err
	}
	return m.CurrentState(), nil
}

// addTransition takes (from, action, to) where to is a state name or a
// statemachine.ComputeFunc.
func addTransition(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 3 {
		return nil, argCount("addTransition", "3", len(args))
	}
	from, err := stateArg(args[0])
	if err != nil {
		return nil, err
	}
	action, err := actionArg(args[1])
	if err != nil {
		return nil, err
	}
	switch to := args[2].(type) {
	case statemachine.ComputeFunc:
		return nil, m.AddComputedTransition(from, action, to)
	case func(context.Context, statemachine.Snapshot, any) statemachine.State:
		return nil, m.AddComputedTransition(from, action, to)
	default:
		state, err := stateArg(to)
		if err != nil {
			return nil, err
		}
		return nil, m.AddTransition(from, action, state)
	}
}

func currentState(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("currentState", "0", len(args))
	}
	return m.CurrentState(), nil
}

// previousState returns the empty state when there is none.
func previousState(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("previousState", "0", len(args))
	}
	s, _ := m.PreviousState()
	return s, nil
}

func actions(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("actions", "0", len(args))
	}
	return m.Actions(), nil
}

func history(_ context.Context, m *statemachine.Machine, args ...any) (any, error) {
	if len(args) != 0 {
		return nil, argCount("history", "0", len(args))
	}
	return m.History(), nil
}

func argCount(op, want string, got int) error {
	return fmt.Errorf("%w: %s takes %s arguments, got %d", ErrInvalidArguments, op, want, got)
}

func actionArg(v any) (statemachine.Action, error) {
	switch a := v.(type) {
	case statemachine.Action:
		return a, nil
	case string:
		return statemachine.Action(a), nil
	case fmt.Stringer:
		return statemachine.Action(a.String()), nil
	}
	return "", fmt.Errorf("%w: expected an action name, got %T", ErrInvalidArguments, v)
}

func stateArg(v any) (statemachine.State, error) {
	switch s := v.(type) {
	case statemachine.State:
		return s, nil
	case string:
		return statemachine.State(s), nil
	case fmt.Stringer:
		return statemachine.State(s.String()), nil
	}
	return "", fmt.Errorf("%w: expected a state name, got %T", ErrInvalidArguments, v)
}
