package pg_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/flowstate/pkg/pg"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{})
		assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
	})

	t.Run("unparsable connection string", func(t *testing.T) {
		t.Parallel()
		_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://host:notaport/db"})
		assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
	})

	t.Run("cancelled while waiting to retry", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := pg.Connect(ctx, pg.Config{
			ConnectionString: "postgres://u:p@127.0.0.1:1/db?connect_timeout=1",
			RetryAttempts:    5,
			RetryInterval:    time.Minute,
		})
		assert.ErrorIs(t, err, pg.ErrFailedToOpenDBConnection)
	})
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.NoError(t, pg.Healthcheck(pingerFunc(func(context.Context) error { return nil }))(ctx))

	boom := errors.New("down")
	err := pg.Healthcheck(pingerFunc(func(context.Context) error { return boom }))(ctx)
	assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, boom)
}
