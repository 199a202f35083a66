package statemachine

// HistoryEntry records one state the machine entered and the action that led there.
type HistoryEntry struct {
	Time   int64  `json:"time,omitempty"` // unix seconds; zero when timestamps are disabled
	Action Action `json:"action"`
	State  State  `json:"state"`
}

// History is the ordered audit log of a machine. It is also the complete
// durable representation needed to resume a machine: the last entry's state
// becomes the current state.
type History []HistoryEntry

// Last returns the most recent entry.
func (h History) Last() (HistoryEntry, bool) {
	if len(h) == 0 {
		return HistoryEntry{}, false
	}
	return h[len(h)-1], true
}

// Clone returns a copy that shares no memory with h.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Actions returns the action of every entry, oldest first.
func (h History) Actions() []Action {
	out := make([]Action, len(h))
	for i, e := range h {
		out[i] = e.Action
	}
	return out
}

// States returns the state of every entry, oldest first.
func (h History) States() []State {
	out := make([]State, len(h))
	for i, e := range h {
		out[i] = e.State
	}
	return out
}
