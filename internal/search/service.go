package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.primary = meili
		s.indexer = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
	}
	return s
}

func newServiceWith(primary Searcher, indexer Indexer, fallback Searcher) *Service {
	return &Service{primary: primary, indexer: indexer, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Warn().Err(err).Msg("search: meilisearch error, falling back to pgfts")
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("search: pgfts error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexJournal indexes the latest version of a journal (fire-and-forget).
func (s *Service) IndexJournal(record JournalRecord) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	if record.ID == "" {
		record.ID = RecordID(record.TargetID)
	}
	go func() {
		if err := s.indexer.IndexJournals([]JournalRecord{record}); err != nil {
			log.Warn().Err(err).Str("target_id", record.TargetID).Msg("search: index journal")
		}
	}()
}

// DeleteJournal removes a journal from the index (fire-and-forget).
func (s *Service) DeleteJournal(targetID string) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	go func() {
		if err := s.indexer.DeleteJournal(targetID); err != nil {
			log.Warn().Err(err).Str("target_id", targetID).Msg("search: delete journal")
		}
	}()
}

// Reindex pushes records to Meilisearch synchronously and reports how many
// were sent.
func (s *Service) Reindex(records []JournalRecord) (int, error) {
	if s.indexer == nil || !s.indexer.Healthy() || len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = RecordID(records[i].TargetID)
		}
	}
	if err := s.indexer.IndexJournals(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
