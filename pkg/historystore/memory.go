package historystore

import (
	"context"
	"sync"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// Memory is a Store backed by a map. Histories are copied on the way in and
// out, so callers can't alias stored data.
type Memory struct {
	mu   sync.RWMutex
	data map[string]statemachine.History
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]statemachine.History)}
}

func (s *Memory) Load(_ context.Context, id string) (statemachine.History, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id].Clone(), nil
}

func (s *Memory) Append(_ context.Context, id string, entries ...statemachine.HistoryEntry) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = append(s.data[id], entries...)
	return nil
}

func (s *Memory) Replace(_ context.Context, id string, h statemachine.History) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = h.Clone()
	return nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// IDs returns the ids with a stored history, in no particular order.
func (s *Memory) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids
}
