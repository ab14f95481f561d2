package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cartograph/internal/contentsync"
	"cartograph/internal/doc"
	"cartograph/internal/editor"
	"cartograph/internal/journalclient"
)

type journalServer struct {
	mu       sync.Mutex
	snapshot string
	saves    []contentsync.SaveRequest
}

func (s *journalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		if s.snapshot == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"NOT_FOUND","error":"Journal not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"je_1","targetId":"node-1","version":1,"snapshot":` + s.snapshot + `}`))
	case http.MethodPost:
		var req contentsync.SaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.saves = append(s.saves, req)
		_, _ = w.Write([]byte(`{"id":"je_2"}`))
	}
}

func (s *journalServer) lastSave(t *testing.T) contentsync.SaveRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		t.Fatal("no save received")
	}
	return s.saves[len(s.saves)-1]
}

func runAppend(t *testing.T, js *journalServer, ao *appendOptions, text string) string {
	t.Helper()
	srv := httptest.NewServer(js)
	defer srv.Close()

	var out bytes.Buffer
	client := journalclient.New(srv.URL, srv.Client())
	opts := editor.Options{Debounce: time.Hour}
	if err := appendLine(context.Background(), &out, client, opts, ao, text); err != nil {
		t.Fatalf("appendLine() error = %v", err)
	}
	return out.String()
}

func TestAppendToNewJournal(t *testing.T) {
	js := &journalServer{}
	out := runAppend(t, js, &appendOptions{target: "node-1", bold: true}, "Shipped")

	if out != "Shipped\n" {
		t.Fatalf("output = %q", out)
	}
	req := js.lastSave(t)
	if req.TargetID != "node-1" || req.Text != "Shipped" || req.CreateNewVersion {
		t.Fatalf("save = %+v", req)
	}
	d, err := doc.ParseStrict(req.Snapshot)
	if err != nil {
		t.Fatalf("ParseStrict() error = %v", err)
	}
	if state := d.ToolbarState(doc.Range(d.Start(), d.End())); !state.Bold {
		t.Fatalf("toolbar = %+v, want bold", state)
	}
}

func TestAppendAddsLineToExistingJournal(t *testing.T) {
	js := &journalServer{snapshot: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello"}]}]}`}
	out := runAppend(t, js, &appendOptions{target: "node-1", label: "Harbor", newVersion: true}, "World")

	if !strings.HasPrefix(out, "saved new version je_2\n") || !strings.HasSuffix(out, "Hello\nWorld\n") {
		t.Fatalf("output = %q", out)
	}
	req := js.lastSave(t)
	if !req.CreateNewVersion || req.EntryID != "je_1" || req.Metadata["label"] != "Harbor" {
		t.Fatalf("save = %+v", req)
	}
	if req.Text != "Hello\nWorld" {
		t.Fatalf("text = %q", req.Text)
	}
}
