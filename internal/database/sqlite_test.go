package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chatvault/internal/archive"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestDB(t *testing.T) (*SQLiteDatabase, *stepClock) {
	t.Helper()
	clock := &stepClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	db, err := NewSQLiteDatabase(":memory:", clock)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, clock
}

func TestSQLiteDatabase_CreateAndFinishOperation(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	op, err := db.CreateOperation(ctx, 1234, "purge", "channel=general")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if op.ID == 0 {
		t.Error("CreateOperation() returned zero ID")
	}
	if op.Status != archive.StatusRunning {
		t.Errorf("Status = %q, want %q", op.Status, archive.StatusRunning)
	}

	if err := db.FinishOperation(ctx, op.ID, archive.StatusSuccess); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	ops, err := db.ListOperations(ctx, 1234, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("ListOperations() returned %d operations, want 1", len(ops))
	}
	got := ops[0]
	if got.Operation != "purge" || got.Parameters != "channel=general" || got.Status != archive.StatusSuccess {
		t.Errorf("operation = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("FinishedAt = nil, want set")
	}
	if d := got.Duration(time.Time{}); d != time.Second {
		t.Errorf("Duration() = %v, want 1s", d)
	}
	if !got.StartedAt.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
}

func TestSQLiteDatabase_FinishUnknownOperation(t *testing.T) {
	db, _ := newTestDB(t)
	if err := db.FinishOperation(context.Background(), 999, archive.StatusError); err == nil {
		t.Error("FinishOperation() expected error for unknown id")
	}
}

func TestSQLiteDatabase_ListOperations(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()

	for i, guild := range []int64{1, 2, 1, 1} {
		if _, err := db.CreateOperation(ctx, guild, "export", string(rune('a'+i))); err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
	}

	tests := []struct {
		name       string
		guildID    int64
		limit      int
		wantParams []string
	}{
		{name: "one guild newest first", guildID: 1, limit: 10, wantParams: []string{"d", "c", "a"}},
		{name: "limit applies", guildID: 1, limit: 2, wantParams: []string{"d", "c"}},
		{name: "all guilds", guildID: 0, limit: 10, wantParams: []string{"d", "c", "b", "a"}},
		{name: "default limit", guildID: 2, limit: 0, wantParams: []string{"b"}},
		{name: "unknown guild", guildID: 3, limit: 10, wantParams: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := db.ListOperations(ctx, tt.guildID, tt.limit)
			if err != nil {
				t.Fatalf("ListOperations() error = %v", err)
			}
			if len(ops) != len(tt.wantParams) {
				t.Fatalf("ListOperations() returned %d operations, want %d", len(ops), len(tt.wantParams))
			}
			for i, op := range ops {
				if op.Parameters != tt.wantParams[i] {
					t.Errorf("ops[%d].Parameters = %q, want %q", i, op.Parameters, tt.wantParams[i])
				}
				if op.FinishedAt != nil {
					t.Errorf("ops[%d].FinishedAt = %v, want nil", i, op.FinishedAt)
				}
			}
		})
	}
}

func TestSQLiteDatabase_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "history.db")
	ctx := context.Background()

	db, err := NewSQLiteDatabase(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if _, err := db.CreateOperation(ctx, 7, "test-export", ""); err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteDatabase(path, nil)
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer reopened.Close()

	if err := reopened.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
	ops, err := reopened.ListOperations(ctx, 7, 10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "test-export" {
		t.Errorf("ListOperations() = %+v, want one test-export", ops)
	}
	if reopened.Path() != path {
		t.Errorf("Path() = %q, want %q", reopened.Path(), path)
	}
}
