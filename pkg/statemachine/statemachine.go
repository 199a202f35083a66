package statemachine

import (
	"context"
	"time"
)

// State identifies a state of the modelled workflow.
type State string

// Action identifies a named action that may move the machine out of a state.
type Action string

// InitAction is recorded as the action of the history entry that seeds a machine.
const InitAction Action = "init"

func (s State) String() string { return string(s) }

func (a Action) String() string { return string(a) }

// ComputeFunc decides the target state of a computed transition at the time
// the action is taken. The payload is the caller-supplied value passed to
// DoAction; handlers may write results back into it when it is a pointer or map.
type ComputeFunc func(ctx context.Context, snap Snapshot, payload any) State

// Snapshot is a read-only view of a machine handed to computed transitions.
type Snapshot struct {
	Name     string
	Current  State
	Previous State
	// HasPrevious is false until the machine performs its first transition
	// after construction, Init or Reset.
	HasPrevious bool
	History     History
}

// TransitionEvent describes a successful or rejected attempt to take an action.
type TransitionEvent struct {
	Machine  string
	Action   Action
	From     State
	To       State         // empty when Err is set
	Duration time.Duration // time spent resolving and applying the transition
	Err      error
}

// Observer is notified after every DoAction attempt, successful or not.
// Observers run synchronously after the machine lock is released.
type Observer func(ctx context.Context, ev TransitionEvent)
