package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under the key "error". A nil error yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under the key "errors".
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Machine records a machine name under the key "machine".
// An empty name yields an empty Attr.
func Machine(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("machine", name)
}

// State records the current state under the key "state".
func State(s string) slog.Attr {
	return slog.String("state", s)
}

// Action records an action name under the key "action".
// An empty action yields an empty Attr.
func Action(a string) slog.Attr {
	if a == "" {
		return slog.Attr{}
	}
	return slog.String("action", a)
}

// FromState records the source state of a transition under the key "from".
func FromState(s string) slog.Attr {
	return slog.String("from", s)
}

// ToState records the target state of a transition under the key "to".
func ToState(s string) slog.Attr {
	return slog.String("to", s)
}

// Store records the history backend name under the key "store".
func Store(name string) slog.Attr {
	return slog.String("store", name)
}

// RequestID records the request identifier under the key "request_id".
// If id is nil, it returns an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}
