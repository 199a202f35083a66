package statemachine

import "context"

// Target is where an action leads: either a fixed state or a state computed
// when the action is taken.
type Target struct {
	state   State
	compute ComputeFunc
}

// Literal returns a target that always resolves to s.
func Literal(s State) Target {
	return Target{state: s}
}

// Computed returns a target resolved by fn every time the action is taken.
func Computed(fn ComputeFunc) Target {
	return Target{compute: fn}
}

// IsComputed reports whether the target is resolved by a handler.
func (t Target) IsComputed() bool {
	return t.compute != nil
}

// State returns the literal state of the target, or an empty state for computed targets.
func (t Target) State() State {
	if t.compute != nil {
		return ""
	}
	return t.state
}

// Resolve produces the candidate state for this target. The result of a
// computed target is returned verbatim: validating it against the table is
// the machine's job.
func (t Target) Resolve(ctx context.Context, snap Snapshot, payload any) State {
	if t.compute != nil {
		return t.compute(ctx, snap, payload)
	}
	return t.state
}
