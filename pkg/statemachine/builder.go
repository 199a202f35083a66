package statemachine

import (
	"errors"
	"fmt"
)

// ErrIncompleteTransition is returned by the builder when a target is set
// before both the source state and the action.
var ErrIncompleteTransition = errors.New("transition needs a source state and an action before its target")

// Builder provides a fluent API for building transition tables.
// The first error stops the chain and is reported by Table or Build.
//
//	m, err := statemachine.NewBuilder().
//	    From("locked").When("coin").To("unlocked").
//	    When("push").To("locked").
//	    From("unlocked").When("push").To("locked").
//	    Build()
type Builder struct {
	table  *Table
	from   State
	action Action
	err    error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{table: NewTable()}
}

// State registers a state with no actions of its own, typically a terminal one.
func (b *Builder) State(s State) *Builder {
	if b.err == nil {
		b.table.AddState(s)
	}
	return b
}

// From selects the source state for the following When/To calls.
func (b *Builder) From(s State) *Builder {
	if b.err == nil {
		b.from = s
		b.action = ""
		b.table.AddState(s)
	}
	return b
}

// When selects the action of the current source state.
func (b *Builder) When(a Action) *Builder {
	if b.err == nil {
		b.action = a
	}
	return b
}

// To adds a literal transition for the selected state and action.
func (b *Builder) To(s State) *Builder {
	return b.add(Literal(s))
}

// Compute adds a computed transition for the selected state and action.
func (b *Builder) Compute(fn ComputeFunc) *Builder {
	if fn == nil && b.err == nil {
		b.err = fmt.Errorf("action '%s' from '%s': nil compute handler", b.action, b.from)
		return b
	}
	return b.add(Computed(fn))
}

func (b *Builder) add(target Target) *Builder {
	if b.err != nil {
		return b
	}
	if b.from == "" || b.action == "" {
		b.err = ErrIncompleteTransition
		return b
	}
	b.table.Add(b.from, b.action, target)
	b.action = ""
	return b
}

// Table returns the built table.
func (b *Builder) Table() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.table.Clone(), nil
}

// Build creates a machine from the built table.
func (b *Builder) Build(opts ...Option) (*Machine, error) {
	t, err := b.Table()
	if err != nil {
		return nil, err
	}
	return New(t, opts...)
}
