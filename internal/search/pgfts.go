package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, so is the app.
func (p *PgFTS) Healthy() bool {
	return true
}

// latestJournals restricts journal_entries to the newest version per target.
const latestJournals = `
	SELECT DISTINCT ON (target_id) id, target_id, target_label, version, plain_text, search_vector, updated_at
	FROM journal_entries
	ORDER BY target_id, version DESC`

// Search matches the newest version of every journal using plainto_tsquery
// and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "j.search_vector @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.TargetID != "" {
		where += " AND j.target_id = $2"
		args = append(args, q.TargetID)
	}

	var total int
	countSQL := fmt.Sprintf(`SELECT count(*) FROM (%s) j WHERE %s`, latestJournals, where)
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT j.target_id, j.id, j.target_label,
			ts_headline('english', j.plain_text, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'),
			j.version
		FROM (%s) j
		WHERE %s
		ORDER BY ts_rank(j.search_vector, plainto_tsquery('english', $1)) DESC, j.updated_at DESC
		LIMIT %d OFFSET %d`, latestJournals, where, limit, offset)
	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.TargetID, &r.EntryID, &r.Label, &r.Snippet, &r.Version); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
