package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-triage/internal/store"
)

// initStore opens the configured store and creates its tables. memory
// forces the in-memory backend regardless of config.
func initStore(ctx context.Context, memory bool) (store.Store, error) {
	driver := cfg.Store.Driver
	if memory {
		driver = "memory"
	}

	var (
		st  store.Store
		err error
	)
	switch driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "triage.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
