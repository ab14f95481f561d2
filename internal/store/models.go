package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// JournalEntry is one saved version of a canvas node's journal.
type JournalEntry struct {
	ID          string
	TargetID    string
	TargetLabel string
	Version     int
	Snapshot    string
	PlainText   string
	Fingerprint string
	CommitHash  string
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JournalSummary is a history row without the snapshot body.
type JournalSummary struct {
	ID          string
	TargetID    string
	TargetLabel string
	Version     int
	Excerpt     string
	CommitHash  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
