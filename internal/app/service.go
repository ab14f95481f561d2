package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cartograph/internal/cache"
	"cartograph/internal/config"
	"cartograph/internal/contentsync"
	"cartograph/internal/doc"
	"cartograph/internal/export"
	"cartograph/internal/gitrepo"
	"cartograph/internal/search"
	"cartograph/internal/store"
	"cartograph/internal/util"
)

const (
	metaLabel  = "label"
	metaAuthor = "author"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// JournalView is a journal version as returned to clients.
type JournalView struct {
	ID         string            `json:"id"`
	TargetID   string            `json:"targetId"`
	Label      string            `json:"label"`
	Version    int               `json:"version"`
	Snapshot   json.RawMessage   `json:"snapshot"`
	Text       string            `json:"text"`
	CommitHash string            `json:"commitHash,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Cached     bool              `json:"cached,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// HistoryItem is one row of a journal's version history.
type HistoryItem struct {
	ID         string    `json:"id"`
	Version    int       `json:"version"`
	Label      string    `json:"label"`
	Excerpt    string    `json:"excerpt"`
	CommitHash string    `json:"commitHash,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type dataStore interface {
	InsertJournalEntry(context.Context, store.JournalEntry) (store.JournalEntry, error)
	UpdateJournalEntry(context.Context, store.JournalEntry) (store.JournalEntry, error)
	SetCommitHash(context.Context, string, string) error
	GetJournalEntry(context.Context, string) (store.JournalEntry, error)
	LatestJournalEntry(context.Context, string) (store.JournalEntry, error)
	ListJournalHistory(context.Context, string, int) ([]store.JournalSummary, error)
	LatestJournalEntries(context.Context) ([]store.JournalEntry, error)
	Ping(ctx context.Context) error
}

type gitService interface {
	CommitVersion(gitrepo.Content, string, string) (gitrepo.Commit, error)
	History(string, int) ([]gitrepo.Commit, error)
	ContentAt(string, string) (gitrepo.Content, error)
}

// DraftCache keeps the newest snapshot of each journal close at hand.
type DraftCache interface {
	PutDraft(context.Context, cache.Draft) error
	GetDraft(context.Context, string) (cache.Draft, error)
	DeleteDraft(context.Context, string) error
}

// HistoryNotifier tells the node graph that a journal's history changed.
type HistoryNotifier interface {
	PublishHistory(context.Context, cache.HistoryEvent) error
	SubscribeHistory(context.Context, string) (*cache.Subscription, error)
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	IndexJournal(search.JournalRecord)
	Reindex([]search.JournalRecord) (int, error)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

// Options carries the optional collaborators of a Service.
type Options struct {
	Drafts   DraftCache
	Notifier HistoryNotifier
	Search   *search.Service
	Uploader export.Uploader
}

// Service stores journal versions. It implements contentsync.Persister so an
// in-process editor session can save straight into it.
type Service struct {
	cfg      config.Config
	store    dataStore
	git      gitService
	drafts   DraftCache
	notifier HistoryNotifier
	search   searchService
	export   exporter
	now      func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

var _ contentsync.Persister = (*Service)(nil)

func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, opts Options) *Service {
	s := newService(cfg, dataStore, gitService)
	if opts.Drafts != nil {
		s.drafts = opts.Drafts
	}
	if opts.Notifier != nil {
		s.notifier = opts.Notifier
	}
	if opts.Search != nil {
		s.search = opts.Search
	}
	s.export = export.NewService(exportSource{s}, opts.Uploader)
	return s
}

func newService(cfg config.Config, st dataStore, git gitService) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		git:   git,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// SaveJournal validates and stores a snapshot. Without CreateNewVersion and
// with a known EntryID the version is updated in place; otherwise a new
// version is appended and committed to the journal's git history.
func (s *Service) SaveJournal(ctx context.Context, req contentsync.SaveRequest) (contentsync.SaveResult, error) {
	targetID := strings.TrimSpace(req.TargetID)
	if targetID == "" {
		return contentsync.SaveResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetId is required", nil)
	}

	d := doc.New()
	if strings.TrimSpace(req.Snapshot) != "" {
		parsed, err := doc.ParseStrict(req.Snapshot)
		if err != nil {
			return contentsync.SaveResult{}, domainError(http.StatusUnprocessableEntity, "INVALID_SNAPSHOT", "snapshot is not a journal document", nil)
		}
		d = parsed
	}
	snapshot, err := d.Snapshot()
	if err != nil {
		return contentsync.SaveResult{}, err
	}
	text := d.PlainText()

	entry := store.JournalEntry{
		ID:          req.EntryID,
		TargetID:    targetID,
		TargetLabel: strings.TrimSpace(req.Metadata[metaLabel]),
		Snapshot:    snapshot,
		PlainText:   text,
		Fingerprint: util.Fingerprint(snapshot, text),
		Metadata:    req.Metadata,
	}

	lock := s.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	var saved store.JournalEntry
	created := false
	if !req.CreateNewVersion && req.EntryID != "" {
		current, err := s.store.GetJournalEntry(ctx, req.EntryID)
		if err != nil {
			return contentsync.SaveResult{}, err
		}
		if current.TargetID != targetID {
			return contentsync.SaveResult{}, domainError(http.StatusConflict, "TARGET_MISMATCH", "entry belongs to another journal", nil)
		}
		if current.Fingerprint == entry.Fingerprint && (entry.TargetLabel == "" || entry.TargetLabel == current.TargetLabel) {
			return resultOf(current), nil
		}
		saved, err = s.store.UpdateJournalEntry(ctx, entry)
		if err != nil {
			return contentsync.SaveResult{}, err
		}
		saved.CommitHash = current.CommitHash
		if saved.TargetLabel == "" {
			saved.TargetLabel = current.TargetLabel
		}
	} else {
		entry.ID = util.NewID("je")
		saved, err = s.store.InsertJournalEntry(ctx, entry)
		if err != nil {
			return contentsync.SaveResult{}, err
		}
		created = true
		s.commit(ctx, &saved, req.Metadata[metaAuthor])
	}

	s.afterSave(ctx, saved, created)
	return resultOf(saved), nil
}

// commit records a new version in git. Failures are logged; the row in
// Postgres stays authoritative.
func (s *Service) commit(ctx context.Context, entry *store.JournalEntry, author string) {
	if s.git == nil {
		return
	}
	if author == "" {
		author = "cartograph"
	}
	c, err := s.git.CommitVersion(gitrepo.Content{
		TargetID: entry.TargetID,
		Label:    entry.TargetLabel,
		EntryID:  entry.ID,
		Version:  entry.Version,
		Text:     entry.PlainText,
		Doc:      json.RawMessage(entry.Snapshot),
	}, author, fmt.Sprintf("Save journal version %d", entry.Version))
	if err != nil {
		log.Warn().Err(err).Str("target_id", entry.TargetID).Int("version", entry.Version).Msg("journal: git commit failed")
		return
	}
	if err := s.store.SetCommitHash(ctx, entry.ID, c.Hash); err != nil {
		log.Warn().Err(err).Str("entry_id", entry.ID).Msg("journal: record commit hash")
		return
	}
	entry.CommitHash = c.Hash
}

func (s *Service) afterSave(ctx context.Context, entry store.JournalEntry, created bool) {
	if s.drafts != nil {
		err := s.drafts.PutDraft(ctx, cache.Draft{
			TargetID:  entry.TargetID,
			EntryID:   entry.ID,
			Version:   entry.Version,
			Snapshot:  entry.Snapshot,
			Text:      entry.PlainText,
			UpdatedAt: entry.UpdatedAt,
		})
		if err != nil {
			log.Warn().Err(err).Str("target_id", entry.TargetID).Msg("journal: cache draft")
		}
	}
	if s.notifier != nil {
		err := s.notifier.PublishHistory(ctx, cache.HistoryEvent{
			TargetID:   entry.TargetID,
			EntryID:    entry.ID,
			Version:    entry.Version,
			NewVersion: created,
			At:         s.now().UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("target_id", entry.TargetID).Msg("journal: publish history")
		}
	}
	if s.search != nil {
		s.search.IndexJournal(recordOf(entry))
	}
	log.Info().
		Str("target_id", entry.TargetID).
		Str("entry_id", entry.ID).
		Int("version", entry.Version).
		Bool("new_version", created).
		Msg("journal saved")
}

// LatestJournal returns the newest version of a journal, preferring the
// draft cache.
func (s *Service) LatestJournal(ctx context.Context, targetID string) (JournalView, error) {
	if s.drafts != nil {
		draft, err := s.drafts.GetDraft(ctx, targetID)
		switch {
		case err == nil:
			if _, perr := doc.ParseStrict(draft.Snapshot); perr == nil {
				return JournalView{
					ID:        draft.EntryID,
					TargetID:  draft.TargetID,
					Version:   draft.Version,
					Snapshot:  json.RawMessage(draft.Snapshot),
					Text:      draft.Text,
					Cached:    true,
					UpdatedAt: draft.UpdatedAt,
				}, nil
			}
			if derr := s.drafts.DeleteDraft(ctx, targetID); derr != nil {
				log.Warn().Err(derr).Str("target_id", targetID).Msg("journal: drop unreadable draft")
			}
		case !errors.Is(err, cache.ErrMiss):
			log.Warn().Err(err).Str("target_id", targetID).Msg("journal: draft lookup")
		}
	}
	entry, err := s.store.LatestJournalEntry(ctx, targetID)
	if err != nil {
		return JournalView{}, err
	}
	return viewOf(entry), nil
}

// JournalByID returns one stored version of a journal.
func (s *Service) JournalByID(ctx context.Context, targetID, entryID string) (JournalView, error) {
	entry, err := s.store.GetJournalEntry(ctx, entryID)
	if err != nil {
		return JournalView{}, err
	}
	if entry.TargetID != targetID {
		return JournalView{}, store.ErrNotFound
	}
	return viewOf(entry), nil
}

// History lists a journal's versions, newest first.
func (s *Service) History(ctx context.Context, targetID string, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.store.ListJournalHistory(ctx, targetID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, HistoryItem{
			ID:         row.ID,
			Version:    row.Version,
			Label:      row.TargetLabel,
			Excerpt:    row.Excerpt,
			CommitHash: row.CommitHash,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return items, nil
}

// Commits lists the git commits recorded for a journal.
func (s *Service) Commits(targetID string, limit int) ([]gitrepo.Commit, error) {
	if s.git == nil {
		return []gitrepo.Commit{}, nil
	}
	commits, err := s.git.History(targetID, limit)
	if errors.Is(err, gitrepo.ErrNoHistory) {
		return []gitrepo.Commit{}, nil
	}
	return commits, err
}

// CommitContent returns the journal as it was recorded in one commit.
func (s *Service) CommitContent(targetID, hash string) (gitrepo.Content, error) {
	if s.git == nil {
		return gitrepo.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Commit not found", nil)
	}
	content, err := s.git.ContentAt(targetID, hash)
	if err != nil {
		log.Debug().Err(err).Str("target_id", targetID).Str("hash", hash).Msg("commit lookup failed")
		return gitrepo.Content{}, domainError(http.StatusNotFound, "NOT_FOUND", "Commit not found", map[string]string{"hash": hash})
	}
	return content, nil
}

// Search runs a full-text query over the newest version of every journal.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Reindex pushes the newest version of every journal to the search index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}
	entries, err := s.store.LatestJournalEntries(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]search.JournalRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, recordOf(e))
	}
	return s.search.Reindex(records)
}

// Export renders a journal version.
func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	return s.export.Export(ctx, req)
}

// Subscribe streams history events of a journal. It fails when no notifier
// is configured.
func (s *Service) Subscribe(ctx context.Context, targetID string) (*cache.Subscription, error) {
	if s.notifier == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "History events are not configured", nil)
	}
	return s.notifier.SubscribeHistory(ctx, targetID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) targetLock(targetID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[targetID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[targetID] = lock
	}
	return lock
}

// exportSource adapts Service to export.Source; exports always read Postgres.
type exportSource struct {
	s *Service
}

func (e exportSource) LatestJournal(ctx context.Context, targetID string) (export.Journal, error) {
	entry, err := e.s.store.LatestJournalEntry(ctx, targetID)
	if err != nil {
		return export.Journal{}, err
	}
	return journalOf(entry), nil
}

func (e exportSource) JournalByID(ctx context.Context, targetID, entryID string) (export.Journal, error) {
	entry, err := e.s.store.GetJournalEntry(ctx, entryID)
	if err != nil {
		return export.Journal{}, err
	}
	if entry.TargetID != targetID {
		return export.Journal{}, store.ErrNotFound
	}
	return journalOf(entry), nil
}

func resultOf(e store.JournalEntry) contentsync.SaveResult {
	return contentsync.SaveResult{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func viewOf(e store.JournalEntry) JournalView {
	return JournalView{
		ID:         e.ID,
		TargetID:   e.TargetID,
		Label:      e.TargetLabel,
		Version:    e.Version,
		Snapshot:   json.RawMessage(e.Snapshot),
		Text:       e.PlainText,
		CommitHash: e.CommitHash,
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func journalOf(e store.JournalEntry) export.Journal {
	return export.Journal{
		TargetID:  e.TargetID,
		EntryID:   e.ID,
		Label:     e.TargetLabel,
		Version:   e.Version,
		Snapshot:  e.Snapshot,
		UpdatedAt: e.UpdatedAt,
	}
}

func recordOf(e store.JournalEntry) search.JournalRecord {
	return search.JournalRecord{
		ID:        search.RecordID(e.TargetID),
		TargetID:  e.TargetID,
		EntryID:   e.ID,
		Label:     e.TargetLabel,
		Text:      e.PlainText,
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt.Unix(),
	}
}
