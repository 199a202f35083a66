package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// DB is the subset of *pgxpool.Pool used by HistoryStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	selectHistory = `SELECT ts, action, state FROM fsm_history WHERE machine_id = $1 ORDER BY id`
	deleteHistory = `DELETE FROM fsm_history WHERE machine_id = $1`
	// One round trip for any number of entries; unnest keeps array order.
	insertHistory = `INSERT INTO fsm_history (machine_id, ts, action, state)
SELECT $1::text, e.ts, e.action, e.state
FROM unnest($2::bigint[], $3::text[], $4::text[]) WITH ORDINALITY AS e(ts, action, state, n)
ORDER BY e.n`
)

// HistoryStore keeps one row per history entry in the fsm_history table
// created by MigrateHistory. Entry order is the insertion order of rows.
type HistoryStore struct {
	db DB
}

var _ historystore.Store = (*HistoryStore)(nil)

func NewHistoryStore(db DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Load(ctx context.Context, id string) (statemachine.History, error) {
	if err := historystore.ValidateID(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, selectHistory, id)
	if err != nil {
		return nil, errors.Join(ErrHistoryStore, err)
	}
	h, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (statemachine.HistoryEntry, error) {
		var e statemachine.HistoryEntry
		err := row.Scan(&e.Time, &e.Action, &e.State)
		return e, err
	})
	if err != nil {
		return nil, errors.Join(ErrHistoryStore, err)
	}
	if h == nil {
		h = statemachine.History{}
	}
	return h, nil
}

func (s *HistoryStore) Append(ctx context.Context, id string, entries ...statemachine.HistoryEntry) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, insertHistory, insertArgs(id, entries)...); err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func (s *HistoryStore) Replace(ctx context.Context, id string, h statemachine.History) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteHistory, id); err != nil {
			return err
		}
		if len(h) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, insertHistory, insertArgs(id, h)...)
		return err
	})
	if err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, deleteHistory, id); err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func insertArgs(id string, entries []statemachine.HistoryEntry) []any {
	ts := make([]int64, len(entries))
	actions := make([]string, len(entries))
	states := make([]string, len(entries))
	for i, e := range entries {
		ts[i] = e.Time
		actions[i] = string(e.Action)
		states[i] = string(e.State)
	}
	return []any{id, ts, actions, states}
}
