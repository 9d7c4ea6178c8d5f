// Package client is the conversation-side facade over the coordination
// server's control API. It remembers which sessions this process
// started so that cleanup on exit only tears down what it owns.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pksebben/Napkin/registry"
	"github.com/pksebben/Napkin/state"
)

const requestTimeout = 10 * time.Second

// SessionInfo is what a caller gets back when a session starts: the
// name to address it by and the URL a human opens to watch it.
type SessionInfo struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	AlreadyExists bool   `json:"alreadyExists"`
}

// SessionManager talks to the coordination server and tracks the
// sessions this process is responsible for.
type SessionManager struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewSessionManager returns a manager bound to the coordination server
// at baseURL.
func NewSessionManager(baseURL string) *SessionManager {
	return &SessionManager{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		owned:   make(map[string]struct{}),
	}
}

// Start creates (or joins) a session. The session is recorded as owned
// by this process only when this call actually created it, so StopAll
// never tears down a session some other conversation started.
func (m *SessionManager) Start(ctx context.Context, name string) (SessionInfo, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}

	var desc registry.Descriptor
	status, err := m.do(ctx, http.MethodPost, "/api/sessions", body, &desc)
	if err != nil {
		return SessionInfo{}, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return SessionInfo{}, fmt.Errorf("unexpected status %d creating session", status)
	}

	created := status == http.StatusCreated
	if created {
		m.mu.Lock()
		m.owned[desc.Name] = struct{}{}
		m.mu.Unlock()
	}

	return SessionInfo{
		Name:          desc.Name,
		URL:           m.baseURL + "/s/" + desc.Name,
		AlreadyExists: !created,
	}, nil
}

// Stop destroys a session by name, whether or not this process owns it.
func (m *SessionManager) Stop(ctx context.Context, name string) error {
	status, err := m.do(ctx, http.MethodDelete, "/api/sessions/"+name, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d stopping session %s", status, name)
	}

	m.mu.Lock()
	delete(m.owned, name)
	m.mu.Unlock()
	return nil
}

// StopAll destroys every session this process started. Sessions that
// already vanished are skipped; other failures are collected and the
// first one is returned.
func (m *SessionManager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.owned))
	for name := range m.owned {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		err := m.Stop(ctx, name)
		if err == nil || isNotFound(err) {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SessionURL returns the URL a human opens to watch a session.
func (m *SessionManager) SessionURL(name string) string {
	return m.baseURL + "/s/" + name
}

// Owned returns the names of sessions this process started, sorted.
func (m *SessionManager) Owned() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.owned))
	for name := range m.owned {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all sessions on the server, owned or not.
func (m *SessionManager) List(ctx context.Context) ([]registry.Descriptor, error) {
	var list []registry.Descriptor
	status, err := m.do(ctx, http.MethodGet, "/api/sessions", nil, &list)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d listing sessions", status)
	}
	return list, nil
}

// ReadDesign fetches the current document state of a session.
func (m *SessionManager) ReadDesign(ctx context.Context, name string) (registry.ReadResult, error) {
	var result registry.ReadResult
	status, err := m.do(ctx, http.MethodGet, "/api/sessions/"+name+"/design", nil, &result)
	if err != nil {
		return registry.ReadResult{}, err
	}
	if status == http.StatusNotFound {
		return registry.ReadResult{}, fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	}
	if status != http.StatusOK {
		return registry.ReadResult{}, fmt.Errorf("unexpected status %d reading design", status)
	}
	return result, nil
}

// WriteDesign replaces a session's document. A validation rejection is
// not an error: it comes back in the WriteResult.
func (m *SessionManager) WriteDesign(ctx context.Context, name, mermaidText string) (registry.WriteResult, error) {
	var result registry.WriteResult
	status, err := m.do(ctx, http.MethodPost, "/api/sessions/"+name+"/design",
		map[string]string{"mermaid": mermaidText}, &result)
	if err != nil {
		return registry.WriteResult{}, err
	}
	switch status {
	case http.StatusOK, http.StatusBadRequest:
		return result, nil
	case http.StatusNotFound:
		return registry.WriteResult{}, fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	default:
		return registry.WriteResult{}, fmt.Errorf("unexpected status %d writing design", status)
	}
}

// History fetches up to limit snapshots, oldest first. limit <= 0 uses
// the server default.
func (m *SessionManager) History(ctx context.Context, name string, limit int) ([]state.Snapshot, error) {
	path := "/api/sessions/" + name + "/history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var body struct {
		History []state.Snapshot `json:"history"`
	}
	status, err := m.do(ctx, http.MethodGet, path, nil, &body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching history", status)
	}
	return body.History, nil
}

// Rollback restores the document captured at timestamp and returns it.
func (m *SessionManager) Rollback(ctx context.Context, name, timestamp string) (string, error) {
	var body struct {
		Success bool   `json:"success"`
		Mermaid string `json:"mermaid"`
		Error   string `json:"error"`
	}
	status, err := m.do(ctx, http.MethodPost, "/api/sessions/"+name+"/rollback",
		map[string]string{"timestamp": timestamp}, &body)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	case status == http.StatusOK && body.Success:
		return body.Mermaid, nil
	case body.Error != "":
		return "", fmt.Errorf("rollback failed: %s", body.Error)
	default:
		return "", fmt.Errorf("unexpected status %d rolling back", status)
	}
}

// DeleteSnapshot removes a single history entry without touching the
// current document.
func (m *SessionManager) DeleteSnapshot(ctx context.Context, name, timestamp string) error {
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	status, err := m.do(ctx, http.MethodDelete,
		"/api/sessions/"+name+"/history/"+timestamp, nil, &body)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", registry.ErrSessionNotFound, name)
	case status == http.StatusOK:
		return nil
	case body.Error != "":
		return fmt.Errorf("delete snapshot failed: %s", body.Error)
	default:
		return fmt.Errorf("unexpected status %d deleting snapshot", status)
	}
}

// do issues one control-API request and decodes the response into out
// when out is non-nil and the body is JSON.
func (m *SessionManager) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coordination server request failed: %w", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("malformed response from coordination server: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, registry.ErrSessionNotFound)
}
