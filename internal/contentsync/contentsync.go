// Package contentsync keeps a live document and its persisted journal entry in
// step: local edits are debounced into saves, externally loaded content is
// never echoed back as an edit.
package contentsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce    = 800 * time.Millisecond
	defaultSaveTimeout = 15 * time.Second
)

var ErrClosed = errors.New("synchronizer closed")

// SaveRequest is what the persistence collaborator receives.
type SaveRequest struct {
	TargetID         string            `json:"targetId,omitempty"`
	Snapshot         string            `json:"snapshot"`
	Text             string            `json:"text"`
	EntryID          string            `json:"entryId,omitempty"`
	CreateNewVersion bool              `json:"createNewVersion"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type SaveResult struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Persister stores journal snapshots.
type Persister interface {
	SaveJournal(ctx context.Context, req SaveRequest) (SaveResult, error)
}

// Payload is the pair of artifacts kept in sync for one document.
type Payload struct {
	Snapshot string
	Text     string
}

type Options struct {
	Debounce    time.Duration
	SaveTimeout time.Duration
	// OnSaved and OnError run on the goroutine that performed the save and
	// must not call back into the synchronizer's owner under its lock.
	OnSaved func(SaveRequest, SaveResult)
	OnError func(error)
	// OnEmpty runs inside NotifyChange when the text goes from non-empty to
	// empty. It resets the document and returns the payload of the reset
	// document, which replaces the one being recorded.
	OnEmpty func() Payload
}

type state int

const (
	stateIdle state = iota
	stateApplyingExternal
)

// Synchronizer debounces local changes into saves. Only one target is synced
// at a time; SetTarget switches it.
type Synchronizer struct {
	persister Persister
	opts      Options

	mu       sync.Mutex
	state    state
	closed   bool
	targetID string
	entryID  string
	lastText string
	pending  *Payload
	timer    *time.Timer
	inflight sync.WaitGroup
}

func New(persister Persister, opts Options) *Synchronizer {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	return &Synchronizer{persister: persister, opts: opts}
}

// SetTarget points the synchronizer at another journal. Pending unsaved work
// for the previous target is dropped; call Flush first to keep it. text is the
// plain text of the content about to be loaded.
func (s *Synchronizer) SetTarget(targetID, entryID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.pending = nil
	s.targetID = targetID
	s.entryID = entryID
	s.lastText = text
}

// Target returns the current target and the entry saves update.
func (s *Synchronizer) Target() (targetID, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetID, s.entryID
}

// ApplyExternal runs fn, a mutation that installs content from outside the
// editor, with change notifications suppressed. The suppression ends when fn
// returns.
func (s *Synchronizer) ApplyExternal(fn func()) {
	s.mu.Lock()
	s.state = stateApplyingExternal
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.state = stateIdle
		s.mu.Unlock()
	}()
	fn()
}

// Applying reports whether an external mutation is in progress.
func (s *Synchronizer) Applying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateApplyingExternal
}

// NotifyChange records a document change and restarts the debounce window.
// It reports whether the change emptied the document.
func (s *Synchronizer) NotifyChange(p Payload) (emptied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateApplyingExternal {
		s.lastText = p.Text
		return false
	}
	if s.closed {
		return false
	}
	if s.lastText != "" && p.Text == "" {
		emptied = true
		if s.opts.OnEmpty != nil {
			p = s.opts.OnEmpty()
		}
	}
	s.lastText = p.Text
	s.pending = &p
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.opts.Debounce, s.fire)
	return emptied
}

// Pending reports whether a change is waiting for the debounce window.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Synchronizer) fire() {
	s.mu.Lock()
	p, req := s.takeLocked()
	if p != nil {
		s.inflight.Add(1)
	}
	s.mu.Unlock()
	if p == nil {
		return
	}
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()
	_, _ = s.save(ctx, req)
}

// Flush saves pending work now instead of waiting for the debounce window.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	p, req := s.takeLocked()
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	_, err := s.save(ctx, req)
	return err
}

// Save stores p as a new version of the current target. Pending debounced
// work is superseded by it.
func (s *Synchronizer) Save(ctx context.Context, p Payload, metadata map[string]string) (SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SaveResult{}, ErrClosed
	}
	s.stopTimerLocked()
	s.pending = nil
	req := SaveRequest{
		TargetID:         s.targetID,
		Snapshot:         p.Snapshot,
		Text:             p.Text,
		EntryID:          s.entryID,
		CreateNewVersion: true,
		Metadata:         metadata,
	}
	s.mu.Unlock()
	return s.save(ctx, req)
}

// Close saves pending work, waits for saves started by the debounce timer and
// stops accepting changes.
func (s *Synchronizer) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.pending = nil
	s.mu.Unlock()
	s.inflight.Wait()
	return err
}

func (s *Synchronizer) takeLocked() (*Payload, SaveRequest) {
	s.stopTimerLocked()
	p := s.pending
	s.pending = nil
	if p == nil {
		return nil, SaveRequest{}
	}
	return p, SaveRequest{
		TargetID: s.targetID,
		Snapshot: p.Snapshot,
		Text:     p.Text,
		EntryID:  s.entryID,
	}
}

func (s *Synchronizer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Synchronizer) save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	res, err := s.persister.SaveJournal(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("target_id", req.TargetID).Bool("new_version", req.CreateNewVersion).Msg("journal save failed")
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return SaveResult{}, err
	}
	s.mu.Lock()
	if s.targetID == req.TargetID {
		s.entryID = res.ID
	}
	s.mu.Unlock()
	if s.opts.OnSaved != nil {
		s.opts.OnSaved(req, res)
	}
	return res, nil
}
