package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sunat-tools/ruc-resolver/internal/resilience"
	"github.com/sunat-tools/ruc-resolver/internal/store"
)

// initStore opens the configured driver and verifies connectivity, retrying
// transient connect failures.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ruc.db"
		}
		s, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := resilience.Do(ctx, resilience.DefaultRetryConfig(), st.Ping); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "store ping")
	}
	return st, nil
}
