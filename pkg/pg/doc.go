// Package pg connects to PostgreSQL through a pgx pool and applies embedded
// goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	version, err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, log)
//
// Healthcheck adapts any Pinger into a readiness check. The Is* helpers
// classify pgx and SQLSTATE errors.
package pg
