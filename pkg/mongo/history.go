package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

// Collection is the subset of *mongo.Collection used by HistoryStore.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

type historyDoc struct {
	ID      string     `bson:"_id"`
	Entries []entryDoc `bson:"entries"`
}

type entryDoc struct {
	Time   int64  `bson:"time"`
	Action string `bson:"action"`
	State  string `bson:"state"`
}

// HistoryStore keeps each machine history as one document whose entries
// array grows with $push.
type HistoryStore struct {
	coll Collection
}

var _ historystore.Store = (*HistoryStore)(nil)

func NewHistoryStore(coll Collection) *HistoryStore {
	return &HistoryStore{coll: coll}
}

func (s *HistoryStore) Load(ctx context.Context, id string) (statemachine.History, error) {
	if err := historystore.ValidateID(id); err != nil {
		return nil, err
	}
	var doc historyDoc
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return statemachine.History{}, nil
		}
		return nil, errors.Join(ErrHistoryStore, err)
	}

	h := make(statemachine.History, len(doc.Entries))
	for i, e := range doc.Entries {
		h[i] = statemachine.HistoryEntry{
			Time:   e.Time,
			Action: statemachine.Action(e.Action),
			State:  statemachine.State(e.State),
		}
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
	update := bson.D{{Key: "$push", Value: bson.D{
		{Key: "entries", Value: bson.D{{Key: "$each", Value: toDocs(entries)}}},
	}}}
	_, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func (s *HistoryStore) Replace(ctx context.Context, id string, h statemachine.History) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	doc := historyDoc{ID: id, Entries: toDocs(h)}
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	if err := historystore.ValidateID(id); err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return errors.Join(ErrHistoryStore, err)
	}
	return nil
}

func toDocs(entries []statemachine.HistoryEntry) []entryDoc {
	out := make([]entryDoc, len(entries))
	for i, e := range entries {
		out[i] = entryDoc{Time: e.Time, Action: string(e.Action), State: string(e.State)}
	}
	return out
}
