// Package search indexes journal text and answers full-text queries,
// preferring Meilisearch and falling back to PostgreSQL full-text search.
package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	TargetID string `json:"targetId"`
	EntryID  string `json:"entryId"`
	Label    string `json:"label"`
	Snippet  string `json:"snippet"`
	Version  int    `json:"version"`
}

// Query describes a search request.
type Query struct {
	Text     string
	TargetID string // empty = all journals
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push journals into a search index.
type Indexer interface {
	IndexJournals(records []JournalRecord) error
	DeleteJournal(targetID string) error
	Healthy() bool
}

// JournalRecord is the data we index for the latest version of a journal.
type JournalRecord struct {
	ID        string `json:"id"`
	TargetID  string `json:"targetId"`
	EntryID   string `json:"entryId"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	Version   int    `json:"version"`
	UpdatedAt int64  `json:"updatedAt"`
}

// RecordID maps a target id onto the character set index keys allow.
func RecordID(targetID string) string {
	out := make([]byte, 0, len(targetID))
	for i := 0; i < len(targetID); i++ {
		c := targetID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
