package database

import (
	"fmt"
	"path/filepath"

	"chatvault/internal/archive"
	"chatvault/internal/config"
)

// historyFile is the SQLite file name under the data directory.
const historyFile = "history.db"

// NewDatabaseFromConfig opens the operation history named by the database
// config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock archive.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, historyFile), clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
