// Package pg connects to PostgreSQL with pgx/v5 and stores machine histories
// in it.
//
// Connect opens a *pgxpool.Pool from Config, retrying while the database
// comes up. MigrateHistory applies the embedded goose migrations that create
// the fsm_history table. HistoryStore implements historystore.Store on top of
// that table, one row per history entry.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateHistory(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//	store := pg.NewHistoryStore(pool)
//
// Healthcheck returns a probe suitable for the API readiness endpoint.
package pg
