package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("CARTOGRAPH_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CARTOGRAPH_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db)
}

func TestJournalEntryVersioningPostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.InsertJournalEntry(ctx, JournalEntry{
		ID:        "jnl_1",
		TargetID:  "node-1",
		Snapshot:  `{"type":"doc"}`,
		PlainText: "first draft",
		Metadata:  map[string]string{"label": "Harbor"},
	})
	if err != nil {
		t.Fatalf("InsertJournalEntry() error = %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("first version = %d", first.Version)
	}

	updated, err := s.UpdateJournalEntry(ctx, JournalEntry{ID: "jnl_1", TargetID: "node-1", Snapshot: `{"type":"doc"}`, PlainText: "first draft, edited"})
	if err != nil {
		t.Fatalf("UpdateJournalEntry() error = %v", err)
	}
	if updated.Version != 1 {
		t.Fatalf("in-place update changed version to %d", updated.Version)
	}

	second, err := s.InsertJournalEntry(ctx, JournalEntry{ID: "jnl_2", TargetID: "node-1", Snapshot: `{"type":"doc"}`, PlainText: "second"})
	if err != nil {
		t.Fatalf("InsertJournalEntry() error = %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("second version = %d", second.Version)
	}

	latest, err := s.LatestJournalEntry(ctx, "node-1")
	if err != nil {
		t.Fatalf("LatestJournalEntry() error = %v", err)
	}
	if latest.ID != "jnl_2" {
		t.Fatalf("latest = %q", latest.ID)
	}

	got, err := s.GetJournalEntry(ctx, "jnl_1")
	if err != nil {
		t.Fatalf("GetJournalEntry() error = %v", err)
	}
	if got.PlainText != "first draft, edited" || got.Metadata["label"] != "Harbor" {
		t.Fatalf("entry = %+v", got)
	}

	history, err := s.ListJournalHistory(ctx, "node-1", 10)
	if err != nil {
		t.Fatalf("ListJournalHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].Version != 2 {
		t.Fatalf("history = %+v", history)
	}

	if _, err := s.GetJournalEntry(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetJournalEntry(missing) error = %v", err)
	}
	if _, err := s.UpdateJournalEntry(ctx, JournalEntry{ID: "jnl_1", TargetID: "node-2", Snapshot: `{}`}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-target update error = %v", err)
	}
}
