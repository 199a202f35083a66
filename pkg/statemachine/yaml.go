package statemachine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidTableDocument = errors.New("invalid transition table document")
	ErrUnknownHandler       = errors.New("unknown compute handler")
)

// HandlerPrefix marks a YAML target as a reference to a compute handler.
const HandlerPrefix = "@"

// Handlers resolves handler references of YAML tables by name.
type Handlers map[string]ComputeFunc

// LoadTable reads a YAML transition table from r. See ParseTable.
func LoadTable(r io.Reader, handlers Handlers) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(ErrInvalidTableDocument, err)
	}
	return ParseTable(data, handlers)
}

// ParseTable decodes a YAML document into a Table. The document is a mapping
// of states to mappings of actions to targets. Document order is kept, so the
// first state is the default initial state. A target starting with "@" names
// a compute handler; a state with an empty or null value is terminal.
//
//	locked:
//	  coin: "@insertCoin"
//	  push: locked
//	unlocked:
//	  push: locked
//	  coin: unlocked
func ParseTable(data []byte, handlers Handlers) (*Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidTableDocument, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmptyTable
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must map states to actions", ErrInvalidTableDocument, root.Line)
	}

	t := NewTable()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		state := State(key.Value)
		if key.Kind != yaml.ScalarNode || state == "" {
			return nil, fmt.Errorf("%w: line %d: state name must be a non-empty scalar", ErrInvalidTableDocument, key.Line)
		}
		if t.HasState(state) {
			return nil, fmt.Errorf("%w: line %d: duplicate state '%s'", ErrInvalidTableDocument, key.Line, state)
		}
		t.AddState(state)

		if err := parseRow(t, state, val, handlers); err != nil {
			return nil, err
		}
	}

	if t.Len() == 0 {
		return nil, ErrEmptyTable
	}
	return t, nil
}

func parseRow(t *Table, state State, node *yaml.Node, handlers Handlers) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			return nil
		}
		return fmt.Errorf("%w: line %d: actions of '%s' must be a mapping", ErrInvalidTableDocument, node.Line, state)
	case yaml.MappingNode:
	default:
		return fmt.Errorf("%w: line %d: actions of '%s' must be a mapping", ErrInvalidTableDocument, node.Line, state)
	}

	seen := make(map[Action]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		action := Action(key.Value)
		if key.Kind != yaml.ScalarNode || action == "" {
			return fmt.Errorf("%w: line %d: action name must be a non-empty scalar", ErrInvalidTableDocument, key.Line)
		}
		if _, dup := seen[action]; dup {
			return fmt.Errorf("%w: line %d: duplicate action '%s' in state '%s'", ErrInvalidTableDocument, key.Line, action, state)
		}
		seen[action] = struct{}{}

		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return fmt.Errorf("%w: line %d: target of '%s.%s' must be a state or handler reference", ErrInvalidTableDocument, val.Line, state, action)
		}

		if name, ok := strings.CutPrefix(val.Value, HandlerPrefix); ok {
			fn, found := handlers[name]
			if !found || fn == nil {
				return fmt.Errorf("%w: '%s' referenced by '%s.%s'", ErrUnknownHandler, name, state, action)
			}
			t.Add(state, action, Computed(fn))
			continue
		}
		t.Add(state, action, Literal(State(val.Value)))
	}
	return nil
}
