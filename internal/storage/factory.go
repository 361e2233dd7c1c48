// Package storage selects the user store backend from configuration.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/storage/sqlite"
	"github.com/bobmcallan/stockstash/internal/storage/surrealdb"
)

// NewUserStore builds the configured backend.
// Supported drivers: "sqlite" (default), "surrealdb".
func NewUserStore(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.UserStore, error) {
	driver := config.Storage.Driver
	if driver == "" {
		driver = common.DriverSQLite
	}

	switch driver {
	case common.DriverSQLite:
		path := config.Storage.SQLite.Path
		if path != "" && path != sqlite.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return sqlite.NewUserStore(ctx, path, logger)

	case common.DriverSurrealDB:
		db, err := surrealdb.Connect(ctx, config.Storage.SurrealDB, logger)
		if err != nil {
			return nil, err
		}
		return surrealdb.NewUserStore(db, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, surrealdb)", driver)
	}
}
