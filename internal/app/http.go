package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cartograph/internal/contentsync"
	"cartograph/internal/export"
	"cartograph/internal/search"
)

const maxBodyBytes = 8 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "journals" {
		s.handleJournals(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleJournals(w http.ResponseWriter, r *http.Request, targetID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		view, err := s.service.LatestJournal(r.Context(), targetID)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut):
		var body saveBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		req, err := body.request(targetID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.SaveJournal(r.Context(), req)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case len(rest) == 1 && rest[0] == "versions" && r.Method == http.MethodGet:
		items, err := s.service.History(r.Context(), targetID, queryInt(r, "limit", 0))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"targetId": targetID, "items": items})

	case len(rest) == 2 && rest[0] == "versions" && r.Method == http.MethodGet:
		view, err := s.service.JournalByID(r.Context(), targetID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 1 && rest[0] == "commits" && r.Method == http.MethodGet:
		commits, err := s.service.Commits(targetID, queryInt(r, "limit", 0))
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"targetId": targetID, "commits": commits})

	case len(rest) == 2 && rest[0] == "commits" && r.Method == http.MethodGet:
		content, err := s.service.CommitContent(targetID, rest[1])
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)

	case len(rest) == 1 && rest[0] == "export" && r.Method == http.MethodPost:
		s.handleExport(w, r, targetID)

	case len(rest) == 1 && rest[0] == "events" && r.Method == http.MethodGet:
		s.handleEvents(w, r, targetID)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// saveBody accepts the snapshot either as a JSON string or inline JSON.
type saveBody struct {
	Snapshot         json.RawMessage   `json:"snapshot"`
	Text             string            `json:"text"`
	EntryID          string            `json:"entryId"`
	CreateNewVersion bool              `json:"createNewVersion"`
	Metadata         map[string]string `json:"metadata"`
}

func (b saveBody) request(targetID string) (contentsync.SaveRequest, error) {
	snapshot := string(b.Snapshot)
	if len(b.Snapshot) > 0 && b.Snapshot[0] == '"' {
		if err := json.Unmarshal(b.Snapshot, &snapshot); err != nil {
			return contentsync.SaveRequest{}, fmt.Errorf("invalid snapshot")
		}
	}
	if snapshot == "null" {
		snapshot = ""
	}
	return contentsync.SaveRequest{
		TargetID:         targetID,
		Snapshot:         snapshot,
		Text:             b.Text,
		EntryID:          b.EntryID,
		CreateNewVersion: b.CreateNewVersion,
		Metadata:         b.Metadata,
	}, nil
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, targetID string) {
	var body struct {
		Format  string `json:"format"`  // "html", "pdf" or "docx"
		EntryID string `json:"entryId"` // empty = latest
		Upload  bool   `json:"upload"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.service.Export(r.Context(), export.Request{
		TargetID: targetID,
		EntryID:  body.EntryID,
		Format:   format,
		Upload:   body.Upload,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	if body.Upload {
		writeJSON(w, http.StatusOK, map[string]any{"url": result.URL, "filename": result.Filename, "mimeType": result.MimeType})
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+result.Filename+"\"")
	w.Header().Set("Content-Type", result.MimeType)
	_, _ = w.Write(result.Data)
}

// handleEvents streams history events as server-sent events until the
// client goes away.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, targetID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Streaming unsupported", nil)
		return
	}
	sub, err := s.service.Subscribe(r.Context(), targetID)
	if err != nil {
		respondError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: history\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:     strings.TrimSpace(r.URL.Query().Get("q")),
		TargetID: r.URL.Query().Get("targetId"),
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
	}
	if q.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
