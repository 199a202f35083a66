// Package historystore defines where machine histories live between process
// restarts.
//
// A Store keeps one append-only statemachine.History per machine id. The
// engine never talks to a Store directly: the registry loads a history,
// resumes a machine from it with statemachine.WithHistory and appends the
// entries each operation produced.
//
// Memory is the in-process implementation used by tests and the CLI default.
// Durable backends live next to their drivers: redis.HistoryStore,
// pg.HistoryStore, mongo.HistoryStore, file.LocalStore and file.S3Store.
package historystore

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// ErrEmptyID is returned by every Store operation given a blank machine id.
var ErrEmptyID = errors.New("historystore: empty machine id")

// Store persists machine histories.
//
// Load returns an empty history and a nil error for unknown ids. Append adds
// entries to the end of the stored history, creating it if needed. Replace
// overwrites the whole history. Delete is a no-op for unknown ids.
type Store interface {
	Load(ctx context.Context, id string) (statemachine.History, error)
	Append(ctx context.Context, id string, entries ...statemachine.HistoryEntry) error
	Replace(ctx context.Context, id string, h statemachine.History) error
	Delete(ctx context.Context, id string) error
}

// ValidateID reports ErrEmptyID for blank ids. Backends call it first.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return nil
}
