// Package redis connects to Redis and stores machine histories in it.
//
// Connect retries the initial ping according to Config. Healthcheck returns
// a probe for readiness endpoints. HistoryStore implements
// historystore.Store with one Redis list per machine, each element a JSON
// encoded statemachine.HistoryEntry:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := redis.NewHistoryStore(client,
//	    redis.WithKeyPrefix(cfg.HistoryPrefix),
//	    redis.WithTTL(cfg.HistoryTTL),
//	)
//
// Errors wrap the go-redis cause with errors.Join, so both the package
// sentinel and the driver error match errors.Is.
package redis
