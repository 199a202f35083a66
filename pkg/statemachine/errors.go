package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrNilTable     = errors.New("transition table cannot be nil")
	ErrEmptyTable   = errors.New("transition table has no states")
	ErrUnknownState = errors.New("state is not defined in the transition table")
	ErrImmutable    = errors.New("state machine is immutable")
)

// Sentinels matched by errors.Is against a *TransitionError.
var (
	ErrInvalidAction     = errors.New("invalid action")
	ErrNoNextAction      = errors.New("no next action")
	ErrForkedNextAction  = errors.New("forked next action")
	errUnknownTransition = errors.New("unknown transition error")
)

// ErrorCode classifies transition failures.
type ErrorCode int

const (
	// CodeInvalidAction: the action is not defined for the current state, or
	// it resolves to a state missing from the table.
	CodeInvalidAction ErrorCode = 10
	// CodeNoNextAction: auto-advance from a state with no outgoing actions.
	CodeNoNextAction ErrorCode = 20
	// CodeForkedNextAction: auto-advance from a state with several outgoing actions.
	CodeForkedNextAction ErrorCode = 30
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidAction:
		return "invalid_action"
	case CodeNoNextAction:
		return "no_next_action"
	case CodeForkedNextAction:
		return "forked_next_action"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// TransitionError is returned by DoAction and NextAction.
type TransitionError struct {
	Code   ErrorCode
	State  State  // current state when the call was made
	Action Action // requested action; empty for NoNextAction and ForkedNextAction
	// Resolved is the candidate a defined action resolved to when that
	// candidate is not a state of the table.
	Resolved State
	// Actions lists the outgoing actions of State for ForkedNextAction.
	Actions []Action
}

func (e *TransitionError) Error() string {
	switch e.Code {
	case CodeInvalidAction:
		return fmt.Sprintf("invalid action '%s' for current state '%s'", e.Action, e.State)
	case CodeNoNextAction:
		return fmt.Sprintf("no further actions for current state '%s'", e.State)
	case CodeForkedNextAction:
		return fmt.Sprintf("unable to call next on forked state '%s'", e.State)
	default:
		return fmt.Sprintf("transition error %d in state '%s'", int(e.Code), e.State)
	}
}

func (e *TransitionError) Unwrap() error {
	switch e.Code {
	case CodeInvalidAction:
		return ErrInvalidAction
	case CodeNoNextAction:
		return ErrNoNextAction
	case CodeForkedNextAction:
		return ErrForkedNextAction
	default:
		return errUnknownTransition
	}
}

func newInvalidActionError(state State, action Action, resolved State) *TransitionError {
	return &TransitionError{Code: CodeInvalidAction, State: state, Action: action, Resolved: resolved}
}

// IsInvalidActionError reports whether err is an InvalidAction failure.
func IsInvalidActionError(err error) bool {
	return errors.Is(err, ErrInvalidAction)
}

// IsNoNextActionError reports whether err is a NoNextAction failure.
func IsNoNextActionError(err error) bool {
	return errors.Is(err, ErrNoNextAction)
}

// IsForkedNextActionError reports whether err is a ForkedNextAction failure.
func IsForkedNextActionError(err error) bool {
	return errors.Is(err, ErrForkedNextAction)
}

// CodeOf extracts the ErrorCode of a transition failure.
func CodeOf(err error) (ErrorCode, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code, true
	}
	return 0, false
}
