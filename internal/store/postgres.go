package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const excerptRunes = 160

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// InsertJournalEntry stores entry as the next version of its target.
func (s *PostgresStore) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	metadata, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return JournalEntry{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO journal_entries (id, target_id, target_label, version, snapshot, plain_text, fingerprint, metadata)
		VALUES (
			$1, $2, $3,
			COALESCE((SELECT MAX(version) FROM journal_entries WHERE target_id=$2), 0) + 1,
			$4::jsonb, $5, $6, $7::jsonb
		)
		RETURNING version, created_at, updated_at
	`, entry.ID, entry.TargetID, entry.TargetLabel, entry.Snapshot, entry.PlainText, entry.Fingerprint, metadata).
		Scan(&entry.Version, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("insert journal entry: %w", err)
	}
	return entry, nil
}

// UpdateJournalEntry overwrites the content of an existing version in place.
func (s *PostgresStore) UpdateJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	metadata, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return JournalEntry{}, err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE journal_entries
		SET snapshot=$3::jsonb, plain_text=$4, fingerprint=$5,
		    target_label=CASE WHEN $6='' THEN target_label ELSE $6 END,
		    metadata=metadata || $7::jsonb, updated_at=NOW()
		WHERE id=$1 AND target_id=$2
		RETURNING version, created_at, updated_at
	`, entry.ID, entry.TargetID, entry.Snapshot, entry.PlainText, entry.Fingerprint, entry.TargetLabel, metadata).
		Scan(&entry.Version, &entry.CreatedAt, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return JournalEntry{}, fmt.Errorf("update journal entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) SetCommitHash(ctx context.Context, entryID, hash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE journal_entries SET commit_hash=$2 WHERE id=$1`, entryID, hash)
	if err != nil {
		return fmt.Errorf("set commit hash: %w", err)
	}
	return nil
}

const entryColumns = `id, target_id, target_label, version, snapshot::text, plain_text, fingerprint, commit_hash, metadata::text, created_at, updated_at`

func (s *PostgresStore) GetJournalEntry(ctx context.Context, entryID string) (JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID)
	return scanEntry(row)
}

// LatestJournalEntry returns the highest version saved for target.
func (s *PostgresStore) LatestJournalEntry(ctx context.Context, targetID string) (JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE target_id=$1
		ORDER BY version DESC
		LIMIT 1
	`, targetID)
	return scanEntry(row)
}

// ListJournalHistory lists the versions of target, newest first.
func (s *PostgresStore) ListJournalHistory(ctx context.Context, targetID string, limit int) ([]JournalSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_id, target_label, version, LEFT(plain_text, $3), commit_hash, created_at, updated_at
		FROM journal_entries
		WHERE target_id=$1
		ORDER BY version DESC
		LIMIT $2
	`, targetID, limit, excerptRunes)
	if err != nil {
		return nil, fmt.Errorf("list journal history: %w", err)
	}
	defer rows.Close()

	items := make([]JournalSummary, 0)
	for rows.Next() {
		var item JournalSummary
		if err := rows.Scan(&item.ID, &item.TargetID, &item.TargetLabel, &item.Version, &item.Excerpt, &item.CommitHash, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan journal summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal history: %w", err)
	}
	return items, nil
}

// LatestJournalEntries returns the newest version of every target.
func (s *PostgresStore) LatestJournalEntries(ctx context.Context) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (target_id) `+entryColumns+`
		FROM journal_entries
		ORDER BY target_id, version DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list latest journal entries: %w", err)
	}
	defer rows.Close()

	items := make([]JournalEntry, 0)
	for rows.Next() {
		item, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (JournalEntry, error) {
	var item JournalEntry
	var metadataRaw string
	err := row.Scan(
		&item.ID,
		&item.TargetID,
		&item.TargetLabel,
		&item.Version,
		&item.Snapshot,
		&item.PlainText,
		&item.Fingerprint,
		&item.CommitHash,
		&metadataRaw,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	_ = json.Unmarshal([]byte(metadataRaw), &item.Metadata)
	return item, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}
