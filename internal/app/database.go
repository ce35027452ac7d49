package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/storefront/internal/store"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config"
)

// OpenStore connects to the configured database, applies migrations when enabled and
// returns the matching store. The returned function releases the connection.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSqlite:
		db, err := bootstrap.NewSqliteDB(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := store.MigrateSqlite(db.DB); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
			logger.Info("Database migrations applied", "driver", cfg.Driver)
		}
		return store.NewSqliteStore(db), func() { _ = db.Close() }, nil
	case config.DriverPostgres, "":
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := store.MigratePostgres(cfg.URL); err != nil {
				dbPool.Close()
				return nil, nil, err
			}
			logger.Info("Database migrations applied", "driver", config.DriverPostgres)
		}
		return store.NewPgStore(dbPool), dbPool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
