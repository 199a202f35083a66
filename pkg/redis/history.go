package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// DefaultHistoryPrefix is used when no key prefix is configured.
const DefaultHistoryPrefix = "flowstate:history:"

// Client is the subset of redis.UniversalClient used by HistoryStore.
type Client interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// HistoryStore keeps each machine history in a Redis list.
type HistoryStore struct {
	client Client
	prefix string
	ttl    time.Duration
}

var _ historystore.Store = (*HistoryStore)(nil)

// HistoryOption configures a HistoryStore.
type HistoryOption func(*HistoryStore)

// WithKeyPrefix sets the list key prefix. Empty values are ignored.
func WithKeyPrefix(prefix string) HistoryOption {
	return func(s *HistoryStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires a history ttl after its last write. Zero disables expiry.
func WithTTL(ttl time.Duration) HistoryOption {
	return func(s *HistoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewHistoryStore(client Client, opts ...HistoryOption) *HistoryStore {
	s := &HistoryStore{client: client, prefix: DefaultHistoryPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HistoryStore) key(id string) string {
	return s.prefix + id
}

func (s *HistoryStore) Load(ctx context.Context, id string) (statemachine.History, error) {
	if err := historystore.ValidateID(id); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, s.key(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Join(ErrHistoryStore, err)
	}

	h := make(statemachine.History, 0, len(raw))
	for i, item := range raw {
		var e statemachine.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errors.Join(ErrCorruptEntry, fmt.Errorf("%s[%d]: %w", s.key(id), i, err))
		}
		h = append(h, e)
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
	values, err := encode(entries)
	if err != nil {
		return err
	}

	key := s.key(id)
	if s.ttl == 0 {
		if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
			return errors.Join(ErrHistoryStore, err)
		}
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

// Replace swaps the whole list inside MULTI/EXEC, so readers never observe
// a partially written history.
func (s *HistoryStore) Replace(ctx context.Context, id string, h statemachine.History) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	values, err := encode(h)
	if err != nil {
		return err
	}

	key := s.key(id)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(values) > 0 {
			p.RPush(ctx, key, values...)
			if s.ttl > 0 {
				p.Expire(ctx, key, s.ttl)
			}
		}
		return nil
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
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func encode(entries []statemachine.HistoryEntry) ([]any, error) {
	values := make([]any, len(entries))
	for i, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Join(ErrHistoryStore, err)
		}
		values[i] = string(b)
	}
	return values, nil
}
