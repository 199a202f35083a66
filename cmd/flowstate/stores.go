package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/flowstate/pkg/config"
	"github.com/dmitrymomot/flowstate/pkg/file"
	"github.com/dmitrymomot/flowstate/pkg/historystore"
	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/mongo"
	"github.com/dmitrymomot/flowstate/pkg/pg"
	"github.com/dmitrymomot/flowstate/pkg/redis"
)

// History backends selectable with FLOWSTATE_STORE.
const (
	storeMemory   = "memory"
	storeFile     = "file"
	storeRedis    = "redis"
	storePostgres = "postgres"
	storeMongo    = "mongo"
	storeS3       = "s3"
)

// backend is an opened history store with its readiness probe and cleanup.
type backend struct {
	name  string
	store historystore.Store
	check func(context.Context) error
	close func()
}

func ready(context.Context) error { return nil }

// openStore connects the backend named kind. Backend settings come from the
// backend's own environment variables, loaded only when selected.
func openStore(ctx context.Context, kind, dir string, env map[string]string, log *slog.Logger) (*backend, error) {
	var loadOpts []config.Option
	if env != nil {
		loadOpts = append(loadOpts, config.WithEnvironment(env))
	}
	log = log.With(logger.Store(kind))

	switch kind {
	case storeMemory, "":
		return &backend{name: storeMemory, store: historystore.NewMemory(), check: ready, close: func() {}}, nil

	case storeFile:
		s, err := file.NewLocalStore(dir)
		if err != nil {
			return nil, err
		}
		return &backend{name: kind, store: s, check: s.Healthcheck, close: func() {}}, nil

	case storeRedis:
		var cfg redis.Config
		if err := config.Load(&cfg, loadOpts...); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s := redis.NewHistoryStore(client, redis.WithKeyPrefix(cfg.HistoryPrefix), redis.WithTTL(cfg.HistoryTTL))
		return &backend{
			name:  kind,
			store: s,
			check: redis.Healthcheck(client),
			close: func() {
				if err := client.Close(); err != nil {
					log.Error("close redis client", logger.Error(err))
				}
			},
		}, nil

	case storePostgres:
		var cfg pg.Config
		if err := config.Load(&cfg, loadOpts...); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.MigrateHistory(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{name: kind, store: pg.NewHistoryStore(pool), check: pg.Healthcheck(pool), close: pool.Close}, nil

	case storeMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg, loadOpts...); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		coll := client.Database(cfg.Database).Collection(cfg.HistoryCollection)
		return &backend{
			name:  kind,
			store: mongo.NewHistoryStore(coll),
			check: mongo.Healthcheck(client),
			close: func() {
				if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
					log.Error("disconnect mongo client", logger.Error(err))
				}
			},
		}, nil

	case storeS3:
		var cfg file.S3Config
		if err := config.Load(&cfg, loadOpts...); err != nil {
			return nil, err
		}
		s, err := file.NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{name: kind, store: s, check: s.Healthcheck, close: func() {}}, nil
	}

	return nil, fmt.Errorf("unknown history store %q: use memory, file, redis, postgres, mongo or s3", kind)
}
