// Package editor ties the document engines, the drag corrector and the
// content synchronizer into one editing session per open journal.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"cartograph/internal/contentsync"
	"cartograph/internal/doc"
	"cartograph/internal/gesture"
)

const DefaultThemeForeground = "#1f2328"

var ErrInvalidSelection = errors.New("selection does not address the document")

// Target identifies the canvas node a journal belongs to.
type Target struct {
	ID    string
	Label string
}

type Options struct {
	ThemeForeground string
	Debounce        time.Duration
	// OnSaved is called after every successful save, autosaves included, so
	// the node graph can refresh its history list. It must not call back into
	// the Session.
	OnSaved func(targetID string, res contentsync.SaveResult)
}

// pendingMarks are attributes chosen with a collapsed selection. They apply
// to text typed at the caret and are dropped when the caret moves.
type pendingMarks struct {
	toggled doc.Format
	color   string
}

func (m pendingMarks) empty() bool {
	return m.toggled == 0 && m.color == ""
}

// Session owns one live document. All methods are safe for concurrent use;
// the synchronizer's timer saves from its own goroutine.
type Session struct {
	mu         sync.Mutex
	doc        *doc.Document
	sel        doc.Selection
	pending    pendingMarks
	tracker    gesture.Tracker
	target     Target
	foreground string
	syncer     *contentsync.Synchronizer
	onSaved    func(targetID string, res contentsync.SaveResult)

	noticeMu sync.Mutex
	notice   string
}

func New(persister contentsync.Persister, opts Options) *Session {
	if opts.ThemeForeground == "" {
		opts.ThemeForeground = DefaultThemeForeground
	}
	s := &Session{
		doc:        doc.New(),
		foreground: opts.ThemeForeground,
		onSaved:    opts.OnSaved,
	}
	s.sel = doc.Caret(s.doc.Start())
	s.syncer = contentsync.New(persister, contentsync.Options{
		Debounce: opts.Debounce,
		OnSaved:  s.saved,
		OnError:  s.saveFailed,
		OnEmpty:  s.resetLocked,
	})
	return s
}

// Open replaces the document with the journal of target. Unsaved edits of the
// previous target are flushed first. A malformed snapshot opens an empty
// journal.
func (s *Session) Open(ctx context.Context, target Target, entryID, snapshot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncer.Flush(ctx); err != nil {
		log.Warn().Err(err).Str("target_id", s.target.ID).Msg("flush before switching journal")
	}
	next := doc.Parse(snapshot)
	s.syncer.SetTarget(target.ID, entryID, next.PlainText())
	s.syncer.ApplyExternal(func() {
		s.target = target
		s.doc = next
		s.sel = doc.Caret(s.doc.End())
		s.pending = pendingMarks{}
		s.notifyLocked()
	})
}

func (s *Session) Target() Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Select installs the native selection.
func (s *Session) Select(sel doc.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.Valid(sel) {
		return fmt.Errorf("select: %w", ErrInvalidSelection)
	}
	s.setSelectionLocked(sel)
	return nil
}

// SelectText selects the first occurrence of needle.
func (s *Session) SelectText(needle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, ok := s.doc.FindText(needle)
	if ok {
		s.setSelectionLocked(sel)
	}
	return ok
}

func (s *Session) Selection() doc.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

func (s *Session) setSelectionLocked(sel doc.Selection) {
	if sel != s.sel {
		s.pending = pendingMarks{}
	}
	s.sel = sel
}

// ToggleFormat toggles f over the selection. With a caret it only affects the
// next text typed there.
func (s *Session) ToggleFormat(f doc.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.Valid(s.sel) {
		return
	}
	if s.doc.IsCollapsed(s.sel) {
		s.pending.toggled ^= f
		return
	}
	sel, changed := s.doc.ToggleFormat(s.sel, f)
	s.sel = sel
	if changed {
		s.notifyLocked()
	}
}

func (s *Session) ToggleList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, changed := s.doc.ToggleList(s.sel)
	s.sel = sel
	if changed {
		s.notifyLocked()
	}
}

// SetColor colors the selection, or the next typed text for a caret.
func (s *Session) SetColor(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setColorLocked(color)
}

// ResetColor sets the theme foreground instead of clearing the color.
func (s *Session) ResetColor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setColorLocked(s.foreground)
}

func (s *Session) setColorLocked(color string) {
	if !s.doc.Valid(s.sel) {
		return
	}
	if s.doc.IsCollapsed(s.sel) {
		s.pending.color = color
		return
	}
	sel, changed := s.doc.SetStyle(s.sel, doc.StyleColor, color)
	s.sel = sel
	if changed {
		s.notifyLocked()
	}
}

// InsertText types text at the selection with the caret's attributes and any
// pending marks.
func (s *Session) InsertText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.doc.Valid(s.sel) {
		return
	}
	start, _ := s.doc.Bounds(s.sel)
	f, style := s.caretAttrsLocked(start)
	sel, changed := s.doc.InsertText(s.sel, text, f, style)
	s.sel = sel
	s.pending = pendingMarks{}
	if changed {
		s.notifyLocked()
	}
}

// Delete removes the selected range.
func (s *Session) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, changed := s.doc.DeleteSelection(s.sel)
	if changed {
		s.sel = sel
		s.notifyLocked()
	}
}

func (s *Session) caretAttrsLocked(p doc.Point) (doc.Format, map[string]string) {
	var f doc.Format
	color := ""
	if s.doc.Kind(p.Node) == doc.KindRun {
		f = s.doc.Format(p.Node)
		color = s.doc.Style(p.Node, doc.StyleColor)
	}
	f ^= s.pending.toggled
	if s.pending.color != "" {
		color = s.pending.color
	}
	if color == "" {
		return f, nil
	}
	return f, map[string]string{doc.StyleColor: color}
}

func (s *Session) PointerDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.PointerDown()
}

func (s *Session) PointerMove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.PointerMove()
}

// PointerUp ends a pointer gesture with the selection the platform reported.
// Drags are corrected; clicks keep native exactly. The installed selection
// is returned.
func (s *Session) PointerUp(native doc.Selection) doc.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	drag := s.tracker.PointerUp()
	if !s.doc.Valid(native) {
		return s.sel
	}
	if drag {
		native = gesture.Correct(s.doc, native)
	}
	s.setSelectionLocked(native)
	return s.sel
}

// Toolbar reports the active formats for the current selection, pending marks
// included.
func (s *Session) Toolbar() doc.ToolbarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.doc.ToolbarState(s.sel)
	if !s.pending.empty() && s.doc.IsCollapsed(s.sel) {
		state.Bold = state.Bold != s.pending.toggled.Has(doc.Bold)
		state.Italic = state.Italic != s.pending.toggled.Has(doc.Italic)
		state.Underline = state.Underline != s.pending.toggled.Has(doc.Underline)
		if s.pending.color != "" {
			state.ActiveColor = s.pending.color
		}
	}
	return state
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.PlainText()
}

func (s *Session) Snapshot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Snapshot()
}

// Document returns a copy of the live document.
func (s *Session) Document() *doc.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Save stores the journal as a new version.
func (s *Session) Save(ctx context.Context) (contentsync.SaveResult, error) {
	s.mu.Lock()
	snap, err := s.doc.Snapshot()
	text := s.doc.PlainText()
	label := s.target.Label
	s.mu.Unlock()
	if err != nil {
		return contentsync.SaveResult{}, err
	}
	var meta map[string]string
	if label != "" {
		meta = map[string]string{"label": label}
	}
	return s.syncer.Save(ctx, contentsync.Payload{Snapshot: snap, Text: text}, meta)
}

// Flush saves pending edits now.
func (s *Session) Flush(ctx context.Context) error {
	return s.syncer.Flush(ctx)
}

// Notice is the last save failure message, or "" after a successful save.
func (s *Session) Notice() string {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	return s.notice
}

func (s *Session) Close(ctx context.Context) error {
	return s.syncer.Close(ctx)
}

func (s *Session) notifyLocked() {
	snap, err := s.doc.Snapshot()
	if err != nil {
		log.Error().Err(err).Str("target_id", s.target.ID).Msg("serialize journal")
		return
	}
	s.syncer.NotifyChange(contentsync.Payload{Snapshot: snap, Text: s.doc.PlainText()})
}

// resetLocked runs from NotifyChange, under s.mu.
func (s *Session) resetLocked() contentsync.Payload {
	s.doc.Reset()
	s.sel = doc.Caret(s.doc.Start())
	s.pending = pendingMarks{}
	snap, err := s.doc.Snapshot()
	if err != nil {
		log.Error().Err(err).Msg("serialize empty journal")
	}
	return contentsync.Payload{Snapshot: snap, Text: ""}
}

// saved and saveFailed run on the saving goroutine, which may hold s.mu, so
// they only touch the notice.
func (s *Session) saved(req contentsync.SaveRequest, res contentsync.SaveResult) {
	s.noticeMu.Lock()
	s.notice = ""
	s.noticeMu.Unlock()
	if s.onSaved != nil {
		s.onSaved(req.TargetID, res)
	}
}

func (s *Session) saveFailed(err error) {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	s.notice = "Could not save journal: " + err.Error()
}
