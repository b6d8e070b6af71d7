// Package backend opens the record store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/kv"
	"github.com/shelfwise/shelfwise-server/internal/store/postgres"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
)

// Open opens the store named by cfg.Driver at cfg.DSN, creating the parent
// directory of file-based stores.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, opts ...store.Option) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		st, err := sqlite.Open(cfg.DSN, logger, opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverBadger:
		if err := os.MkdirAll(cfg.DSN, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		st, err := kv.Open(cfg.DSN, logger, opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN, logger, opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
