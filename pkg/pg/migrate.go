package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its dialect, table, base FS and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration found in the root of migrations
// (typically an embed.FS) and returns the resulting schema version.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, migrations fs.FS, log logger) (int64, error) {
	if migrations == nil {
		return 0, errors.Join(ErrFailedToApplyMigrations, ErrNoMigrations)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}(db)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(ctx, cfg, migrations, log); err != nil {
		return 0, errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return 0, errors.Join(ErrFailedToApplyMigrations, err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, errors.Join(ErrFailedToApplyMigrations, err)
	}
	return version, nil
}

// Version reports the current schema version without applying anything.
func Version(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) (int64, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(ctx, cfg, nil, log); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}

func prepareGoose(ctx context.Context, cfg Config, migrations fs.FS, log logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	return goose.SetDialect("postgres")
}
