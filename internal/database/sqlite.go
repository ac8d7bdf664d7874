package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"chatvault/internal/archive"
	"chatvault/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores operation history in SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock archive.Clock
}

var _ archive.History = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path (or ":memory:") and applies
// pending migrations. clock stamps operation start and finish times; nil
// means the real clock.
func NewSQLiteDatabase(path string, clock archive.Clock) (*SQLiteDatabase, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an open, migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock archive.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = archive.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection: writers are serialized anyway, and
// an in-memory database only exists on the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, guildID int64, operation, parameters string) (*archive.Operation, error) {
	op := &archive.Operation{
		GuildID:    guildID,
		Operation:  operation,
		Parameters: parameters,
		Status:     archive.StatusRunning,
		StartedAt:  s.clock.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (guild_id, operation, parameters, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		op.GuildID, op.Operation, op.Parameters, op.Status, op.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, s.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation %d: not found", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(ctx context.Context, guildID int64, limit int) ([]*archive.Operation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, guild_id, operation, parameters, status, started_at, finished_at FROM operations`
	args := []any{}
	if guildID != 0 {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*archive.Operation
	for rows.Next() {
		var (
			op       archive.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.GuildID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckSchema(s.db)
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
