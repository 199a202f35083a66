package pg

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	logattr "github.com/dmitrymomot/flowstate/pkg/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultMigrationsTable is used when Config.MigrationsTable is empty.
const DefaultMigrationsTable = "flowstate_migrations"

// MigrateHistory creates or upgrades the fsm_history table using the
// migrations embedded in this package.
func MigrateHistory(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	table := cfg.MigrationsTable
	if table == "" {
		table = DefaultMigrationsTable
	}
	store, err := database.NewStore(database.DialectPostgres, table)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	// goose works on database/sql; this shares the pool's connections.
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", logattr.Error(err))
		}
	}()

	provider, err := goose.NewProvider("", db, migrations,
		goose.WithStore(store),
		goose.WithLogger(&gooseLogger{log: log}),
	)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	for _, r := range results {
		log.InfoContext(ctx, "migration applied",
			logattr.Component("pg"),
			logattr.Duration(r.Duration),
			"version", r.Source.Version,
			"path", r.Source.Path,
		)
	}
	return nil
}

// gooseLogger routes goose output through the application logger.
type gooseLogger struct {
	log logger
}

func (a *gooseLogger) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *gooseLogger) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
