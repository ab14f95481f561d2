package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"cartograph/internal/cache"
	"cartograph/internal/config"
	"cartograph/internal/contentsync"
	"cartograph/internal/export"
	"cartograph/internal/gitrepo"
	"cartograph/internal/search"
	"cartograph/internal/store"
)

const helloSnapshot = `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"},{"type":"text","text":" world","marks":[{"type":"bold"}]}]}]}`

// fakeStore keeps journal entries in memory.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]store.JournalEntry
	updates int

	pingFn func(context.Context) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]store.JournalEntry)}
}

func (f *fakeStore) InsertJournalEntry(_ context.Context, entry store.JournalEntry) (store.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.TargetID == entry.TargetID && e.Version >= entry.Version {
			entry.Version = e.Version
		}
	}
	entry.Version++
	now := time.Date(2026, 5, 1, 12, 0, entry.Version, 0, time.UTC)
	entry.CreatedAt, entry.UpdatedAt = now, now
	f.entries[entry.ID] = entry
	return entry, nil
}

func (f *fakeStore) UpdateJournalEntry(_ context.Context, entry store.JournalEntry) (store.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.entries[entry.ID]
	if !ok || current.TargetID != entry.TargetID {
		return store.JournalEntry{}, store.ErrNotFound
	}
	f.updates++
	current.Snapshot = entry.Snapshot
	current.PlainText = entry.PlainText
	current.Fingerprint = entry.Fingerprint
	if entry.TargetLabel != "" {
		current.TargetLabel = entry.TargetLabel
	}
	current.UpdatedAt = current.UpdatedAt.Add(time.Minute)
	f.entries[entry.ID] = current
	return current, nil
}

func (f *fakeStore) SetCommitHash(_ context.Context, entryID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return store.ErrNotFound
	}
	e.CommitHash = hash
	f.entries[entryID] = e
	return nil
}

func (f *fakeStore) GetJournalEntry(_ context.Context, entryID string) (store.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok {
		return store.JournalEntry{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) LatestJournalEntry(_ context.Context, targetID string) (store.JournalEntry, error) {
	versions := f.versions(targetID)
	if len(versions) == 0 {
		return store.JournalEntry{}, store.ErrNotFound
	}
	return versions[0], nil
}

func (f *fakeStore) ListJournalHistory(_ context.Context, targetID string, limit int) ([]store.JournalSummary, error) {
	var out []store.JournalSummary
	for _, e := range f.versions(targetID) {
		if len(out) == limit {
			break
		}
		out = append(out, store.JournalSummary{
			ID:          e.ID,
			TargetID:    e.TargetID,
			TargetLabel: e.TargetLabel,
			Version:     e.Version,
			Excerpt:     e.PlainText,
			CommitHash:  e.CommitHash,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) LatestJournalEntries(_ context.Context) ([]store.JournalEntry, error) {
	f.mu.Lock()
	latest := make(map[string]store.JournalEntry)
	for _, e := range f.entries {
		if cur, ok := latest[e.TargetID]; !ok || e.Version > cur.Version {
			latest[e.TargetID] = e
		}
	}
	f.mu.Unlock()
	out := make([]store.JournalEntry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// versions returns the entries of target, newest first.
func (f *fakeStore) versions(targetID string) []store.JournalEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.JournalEntry
	for _, e := range f.entries {
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

type fakeGit struct {
	mu       sync.Mutex
	commits  []gitrepo.Content
	authors  []string
	commitFn func(gitrepo.Content, string, string) (gitrepo.Commit, error)
}

func (f *fakeGit) CommitVersion(content gitrepo.Content, author, message string) (gitrepo.Commit, error) {
	if f.commitFn != nil {
		return f.commitFn(content, author, message)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, content)
	f.authors = append(f.authors, author)
	return gitrepo.Commit{Hash: fmt.Sprintf("hash-%d", len(f.commits)), Message: message, Author: author}, nil
}

func (f *fakeGit) History(targetID string, limit int) ([]gitrepo.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gitrepo.Commit
	for i := len(f.commits) - 1; i >= 0; i-- {
		if f.commits[i].TargetID == targetID {
			out = append(out, gitrepo.Commit{Hash: fmt.Sprintf("hash-%d", i+1), Author: f.authors[i]})
		}
	}
	if len(out) == 0 {
		return nil, gitrepo.ErrNoHistory
	}
	return out, nil
}

func (f *fakeGit) ContentAt(targetID, hash string) (gitrepo.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.commits {
		if c.TargetID == targetID && hash == fmt.Sprintf("hash-%d", i+1) {
			return c, nil
		}
	}
	return gitrepo.Content{}, gitrepo.ErrNoHistory
}

type fakeDrafts struct {
	mu      sync.Mutex
	drafts  map[string]cache.Draft
	deleted []string
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]cache.Draft)}
}

func (f *fakeDrafts) PutDraft(_ context.Context, d cache.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[d.TargetID] = d
	return nil
}

func (f *fakeDrafts) GetDraft(_ context.Context, targetID string) (cache.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[targetID]
	if !ok {
		return cache.Draft{}, cache.ErrMiss
	}
	return d, nil
}

func (f *fakeDrafts) DeleteDraft(_ context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, targetID)
	f.deleted = append(f.deleted, targetID)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []cache.HistoryEvent
}

func (f *fakeNotifier) PublishHistory(_ context.Context, ev cache.HistoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeNotifier) SubscribeHistory(context.Context, string) (*cache.Subscription, error) {
	return nil, errors.New("not supported")
}

func newTestService(fs *fakeStore, fg *fakeGit) *Service {
	svc := newService(config.Config{}, fs, fg)
	svc.export = export.NewService(exportSource{svc}, nil)
	return svc
}

func TestSaveJournalCreatesVersion(t *testing.T) {
	fs, fg := newFakeStore(), &fakeGit{}
	drafts, notifier := newFakeDrafts(), &fakeNotifier{}
	svc := newTestService(fs, fg)
	svc.drafts, svc.notifier = drafts, notifier

	res, err := svc.SaveJournal(context.Background(), contentsync.SaveRequest{
		TargetID:         "node-1",
		Snapshot:         helloSnapshot,
		Text:             "ignored",
		CreateNewVersion: true,
		Metadata:         map[string]string{"label": "Harbor", "author": "Avery"},
	})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	if !strings.HasPrefix(res.ID, "je_") {
		t.Fatalf("id = %q", res.ID)
	}

	entry, _ := fs.GetJournalEntry(context.Background(), res.ID)
	if entry.Version != 1 || entry.PlainText != "Hello world" || entry.TargetLabel != "Harbor" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.CommitHash != "hash-1" {
		t.Fatalf("commit hash = %q", entry.CommitHash)
	}
	if len(fg.commits) != 1 || fg.authors[0] != "Avery" || fg.commits[0].EntryID != res.ID {
		t.Fatalf("commits = %+v authors = %v", fg.commits, fg.authors)
	}
	if d := drafts.drafts["node-1"]; d.EntryID != res.ID || d.Text != "Hello world" {
		t.Fatalf("draft = %+v", d)
	}
	if len(notifier.events) != 1 || !notifier.events[0].NewVersion || notifier.events[0].Version != 1 {
		t.Fatalf("events = %+v", notifier.events)
	}
}

func TestSaveJournalAutosaveUpdatesInPlace(t *testing.T) {
	fs, fg := newFakeStore(), &fakeGit{}
	notifier := &fakeNotifier{}
	svc := newTestService(fs, fg)
	svc.notifier = notifier
	ctx := context.Background()

	first, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	edited := strings.Replace(helloSnapshot, "Hello", "Howdy", 1)
	second, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: edited, EntryID: first.ID})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("autosave created a new entry: %q != %q", second.ID, first.ID)
	}
	if fs.updates != 1 || len(fg.commits) != 1 {
		t.Fatalf("updates = %d commits = %d", fs.updates, len(fg.commits))
	}
	latest, _ := fs.LatestJournalEntry(ctx, "node-1")
	if latest.PlainText != "Howdy world" || latest.Version != 1 || latest.CommitHash != "hash-1" {
		t.Fatalf("latest = %+v", latest)
	}
	if got := notifier.events[1]; got.NewVersion {
		t.Fatalf("autosave event = %+v", got)
	}
}

func TestSaveJournalSkipsUnchangedContent(t *testing.T) {
	fs := newFakeStore()
	notifier := &fakeNotifier{}
	svc := newTestService(fs, &fakeGit{})
	svc.notifier = notifier
	ctx := context.Background()

	first, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	again, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot, EntryID: first.ID})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	if again.ID != first.ID || !again.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("unchanged save = %+v, want %+v", again, first)
	}
	if fs.updates != 0 || len(notifier.events) != 1 {
		t.Fatalf("updates = %d events = %d", fs.updates, len(notifier.events))
	}
}

func TestSaveJournalValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  contentsync.SaveRequest
		code string
	}{
		{name: "missing target", req: contentsync.SaveRequest{Snapshot: helloSnapshot}, code: "VALIDATION_ERROR"},
		{name: "malformed snapshot", req: contentsync.SaveRequest{TargetID: "node-1", Snapshot: "{bad"}, code: "INVALID_SNAPSHOT"},
		{name: "not a doc", req: contentsync.SaveRequest{TargetID: "node-1", Snapshot: `{"type":"paragraph"}`}, code: "INVALID_SNAPSHOT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveJournal(ctx, tt.req)
			var domainErr *DomainError
			if !errors.As(err, &domainErr) || domainErr.Code != tt.code {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestSaveJournalEmptySnapshotStoresEmptyDocument(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs, &fakeGit{})
	res, err := svc.SaveJournal(context.Background(), contentsync.SaveRequest{TargetID: "node-1"})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	entry, _ := fs.GetJournalEntry(context.Background(), res.ID)
	if entry.Snapshot != `{"type":"doc","content":[{"type":"paragraph"}]}` || entry.PlainText != "" {
		t.Fatalf("entry = %q %q", entry.Snapshot, entry.PlainText)
	}
}

func TestSaveJournalRejectsForeignEntry(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	ctx := context.Background()
	first, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	_, err = svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-2", Snapshot: helloSnapshot, EntryID: first.ID})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "TARGET_MISMATCH" {
		t.Fatalf("error = %v, want TARGET_MISMATCH", err)
	}
}

func TestSaveJournalSurvivesGitFailure(t *testing.T) {
	fs := newFakeStore()
	fg := &fakeGit{commitFn: func(gitrepo.Content, string, string) (gitrepo.Commit, error) {
		return gitrepo.Commit{}, errors.New("disk full")
	}}
	svc := newTestService(fs, fg)
	res, err := svc.SaveJournal(context.Background(), contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot, CreateNewVersion: true})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	entry, _ := fs.GetJournalEntry(context.Background(), res.ID)
	if entry.CommitHash != "" {
		t.Fatalf("commit hash = %q, want empty", entry.CommitHash)
	}
}

func TestLatestJournalPrefersDraft(t *testing.T) {
	fs := newFakeStore()
	drafts := newFakeDrafts()
	svc := newTestService(fs, &fakeGit{})
	svc.drafts = drafts
	ctx := context.Background()

	drafts.drafts["node-1"] = cache.Draft{TargetID: "node-1", EntryID: "je_cached", Version: 3, Snapshot: helloSnapshot, Text: "Hello world"}
	view, err := svc.LatestJournal(ctx, "node-1")
	if err != nil {
		t.Fatalf("LatestJournal() error = %v", err)
	}
	if !view.Cached || view.ID != "je_cached" || view.Version != 3 {
		t.Fatalf("view = %+v", view)
	}
}

func TestLatestJournalDropsUnreadableDraft(t *testing.T) {
	fs := newFakeStore()
	drafts := newFakeDrafts()
	svc := newTestService(fs, &fakeGit{})
	ctx := context.Background()

	res, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	svc.drafts = drafts
	drafts.drafts["node-1"] = cache.Draft{TargetID: "node-1", Snapshot: "{bad"}

	view, err := svc.LatestJournal(ctx, "node-1")
	if err != nil {
		t.Fatalf("LatestJournal() error = %v", err)
	}
	if view.Cached || view.ID != res.ID {
		t.Fatalf("view = %+v", view)
	}
	if len(drafts.deleted) != 1 {
		t.Fatal("unreadable draft was not deleted")
	}
}

func TestLatestJournalNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	if _, err := svc.LatestJournal(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestJournalByIDChecksTarget(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	ctx := context.Background()
	res, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil {
		t.Fatalf("SaveJournal() error = %v", err)
	}
	if _, err := svc.JournalByID(ctx, "node-2", res.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	view, err := svc.JournalByID(ctx, "node-1", res.ID)
	if err != nil || view.Text != "Hello world" {
		t.Fatalf("JournalByID() = %+v, %v", view, err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.SaveJournal(ctx, contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot, CreateNewVersion: true}); err != nil {
			t.Fatalf("SaveJournal() error = %v", err)
		}
	}
	items, err := svc.History(ctx, "node-1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(items) != 2 || items[0].Version != 3 || items[1].Version != 2 {
		t.Fatalf("items = %+v", items)
	}

	commits, err := svc.Commits("node-1", 0)
	if err != nil || len(commits) != 3 {
		t.Fatalf("Commits() = %+v, %v", commits, err)
	}
	commits, err = svc.Commits("unknown", 0)
	if err != nil || len(commits) != 0 {
		t.Fatalf("Commits(unknown) = %+v, %v", commits, err)
	}
}

func TestSearchWithoutIndexIsEmpty(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGit{})
	resp := svc.Search(context.Background(), search.Query{Text: "harbor"})
	if resp.Results == nil || len(resp.Results) != 0 || resp.Query != "harbor" {
		t.Fatalf("resp = %+v", resp)
	}
	if n, err := svc.Reindex(context.Background()); n != 0 || err != nil {
		t.Fatalf("Reindex() = %d, %v", n, err)
	}
}

func TestServicePersistsForEditorSession(t *testing.T) {
	var p contentsync.Persister = newTestService(newFakeStore(), &fakeGit{})
	res, err := p.SaveJournal(context.Background(), contentsync.SaveRequest{TargetID: "node-1", Snapshot: helloSnapshot})
	if err != nil || res.ID == "" {
		t.Fatalf("SaveJournal() = %+v, %v", res, err)
	}
}
