// Package pg provides the PostgreSQL plumbing for the MFA stores using the
// pgx/v5 driver: connection pooling with retry, schema migrations via
// goose/v3, a health check closure, and common error classification helpers.
//
// Configuration comes from environment variables (see the field tags on
// Config), so pool limits and migration paths can be tuned per environment
// without code changes.
//
// Typical bootstrap:
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//	    panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    panic(err)
//	}
//
// Error helpers such as IsNotFoundError and IsDuplicateKeyError unwrap pgx
// and pgconn errors so business logic can classify failures without
// importing driver internals.
package pg
