package mongo_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/historystore/storetest"
	"github.com/dmitrymomot/flowstate/pkg/mongo"
	"github.com/dmitrymomot/flowstate/pkg/statemachine"
)

type mockCollection struct {
	mock.Mock
}

func (m *mockCollection) FindOne(ctx context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *driver.SingleResult {
	args := m.Called(ctx, filter)
	return args.Get(0).(*driver.SingleResult)
}

func (m *mockCollection) UpdateOne(ctx context.Context, filter, update any, _ ...options.Lister[options.UpdateOneOptions]) (*driver.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	res, _ := args.Get(0).(*driver.UpdateResult)
	return res, args.Error(1)
}

func (m *mockCollection) ReplaceOne(ctx context.Context, filter, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*driver.UpdateResult, error) {
	args := m.Called(ctx, filter, replacement)
	res, _ := args.Get(0).(*driver.UpdateResult)
	return res, args.Error(1)
}

func (m *mockCollection) DeleteOne(ctx context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*driver.DeleteResult, error) {
	args := m.Called(ctx, filter)
	res, _ := args.Get(0).(*driver.DeleteResult)
	return res, args.Error(1)
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func TestHistoryStoreLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("decodes document", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		doc := bson.D{
			{Key: "_id", Value: "m1"},
			{Key: "entries", Value: bson.A{
				bson.D{{Key: "time", Value: int64(10)}, {Key: "action", Value: "init"}, {Key: "state", Value: "draft"}},
				bson.D{{Key: "time", Value: int64(11)}, {Key: "action", Value: "submit"}, {Key: "state", Value: "review"}},
			}},
		}
		coll.On("FindOne", ctx, byID("m1")).Return(driver.NewSingleResultFromDocument(doc, nil, nil))

		h, err := mongo.NewHistoryStore(coll).Load(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, statemachine.History{
			{Time: 10, Action: statemachine.InitAction, State: "draft"},
			{Time: 11, Action: "submit", State: "review"},
		}, h)
	})

	t.Run("unknown machine", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		coll.On("FindOne", ctx, byID("m2")).
			Return(driver.NewSingleResultFromDocument(bson.D{}, driver.ErrNoDocuments, nil))

		h, err := mongo.NewHistoryStore(coll).Load(ctx, "m2")
		require.NoError(t, err)
		assert.Empty(t, h)
	})

	t.Run("driver failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("server selection timeout")
		coll := &mockCollection{}
		coll.On("FindOne", ctx, byID("m3")).
			Return(driver.NewSingleResultFromDocument(bson.D{}, boom, nil))

		_, err := mongo.NewHistoryStore(coll).Load(ctx, "m3")
		assert.ErrorIs(t, err, mongo.ErrHistoryStore)
		assert.ErrorIs(t, err, boom)
	})
}

func TestHistoryStoreWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	entry := statemachine.HistoryEntry{Time: 5, Action: "submit", State: "review"}

	t.Run("append pushes with upsert", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		coll.On("UpdateOne", ctx, byID("m1"), mock.MatchedBy(func(update bson.D) bool {
			return len(update) == 1 && update[0].Key == "$push"
		})).Return(&driver.UpdateResult{UpsertedCount: 1}, nil)

		store := mongo.NewHistoryStore(coll)
		require.NoError(t, store.Append(ctx, "m1", entry))
		require.NoError(t, store.Append(ctx, "m1"))
		coll.AssertNumberOfCalls(t, "UpdateOne", 1)
	})

	t.Run("replace writes the whole document", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		coll.On("ReplaceOne", ctx, byID("m1"), mock.Anything).Return(&driver.UpdateResult{MatchedCount: 1}, nil)

		require.NoError(t, mongo.NewHistoryStore(coll).Replace(ctx, "m1", statemachine.History{entry}))
		coll.AssertExpectations(t)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		coll.On("DeleteOne", ctx, byID("m1")).Return(nil, errors.New("not primary"))

		err := mongo.NewHistoryStore(coll).Delete(ctx, "m1")
		assert.ErrorIs(t, err, mongo.ErrHistoryStore)
	})

	t.Run("empty id", func(t *testing.T) {
		t.Parallel()
		coll := &mockCollection{}
		store := mongo.NewHistoryStore(coll)
		assert.ErrorIs(t, store.Append(ctx, "", entry), historystore.ErrEmptyID)
		assert.ErrorIs(t, store.Replace(ctx, "", nil), historystore.ErrEmptyID)
		coll.AssertNotCalled(t, "UpdateOne")
		coll.AssertNotCalled(t, "ReplaceOne")
	})
}

func TestHistoryStoreIntegration(t *testing.T) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}
	ctx := context.Background()

	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    4,
		RetryAttempts:  1,
		Database:       "flowstate_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })

	require.NoError(t, mongo.Healthcheck(db.Client())(ctx))

	coll := db.Collection("history_" + uuid.NewString())
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })
	storetest.Run(t, mongo.NewHistoryStore(coll))
}
