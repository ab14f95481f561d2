// Package journalclient saves journals to a remote cartograph server.
package journalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cartograph/internal/contentsync"
)

// ErrNotFound reports a journal the server does not know.
var ErrNotFound = errors.New("journal not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("journal api %d %s: %s", e.Status, e.Code, e.Message)
}

// Journal is the latest stored version of a journal.
type Journal struct {
	ID       string          `json:"id"`
	TargetID string          `json:"targetId"`
	Label    string          `json:"label"`
	Version  int             `json:"version"`
	Snapshot json.RawMessage `json:"snapshot"`
	Text     string          `json:"text"`
}

// Client implements contentsync.Persister over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ contentsync.Persister = (*Client)(nil)

// New creates a client for the server at baseURL. A nil httpClient uses a
// client with a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SaveJournal posts req to the journal of req.TargetID.
func (c *Client) SaveJournal(ctx context.Context, req contentsync.SaveRequest) (contentsync.SaveResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return contentsync.SaveResult{}, fmt.Errorf("marshal save request: %w", err)
	}
	var out contentsync.SaveResult
	if err := c.do(ctx, http.MethodPost, c.journalURL(req.TargetID), bytes.NewReader(payload), &out); err != nil {
		return contentsync.SaveResult{}, err
	}
	return out, nil
}

// Latest loads the newest version of a journal.
func (c *Client) Latest(ctx context.Context, targetID string) (Journal, error) {
	var out Journal
	if err := c.do(ctx, http.MethodGet, c.journalURL(targetID), nil, &out); err != nil {
		return Journal{}, err
	}
	return out, nil
}

func (c *Client) journalURL(targetID string) string {
	return c.baseURL + "/api/journals/" + url.PathEscape(targetID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code  string `json:"code"`
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
