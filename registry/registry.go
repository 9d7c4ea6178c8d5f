// Package registry owns the map of session name to per-session state
// and connected viewers. Every mutation runs through here so that
// validation, broadcast, and background persistence stay in one place.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pksebben/Napkin/dehydrate"
	"github.com/pksebben/Napkin/mermaid"
	"github.com/pksebben/Napkin/metrics"
	"github.com/pksebben/Napkin/persist"
	"github.com/pksebben/Napkin/state"
)

// ErrSessionNotFound is returned for operations on an unknown session
// name.
var ErrSessionNotFound = errors.New("session not found")

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// persistTimeout bounds a single background save.
const persistTimeout = 10 * time.Second

// Descriptor is the public summary of one session.
type Descriptor struct {
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	SnapshotCount int       `json:"snapshotCount"`
}

// ReadResult is the current design state of one session.
type ReadResult struct {
	Mermaid          *string  `json:"mermaid"`
	SelectedElements []string `json:"selectedElements"`
	NodeCount        int      `json:"nodeCount"`
	EdgeCount        int      `json:"edgeCount"`
}

// WriteResult reports the outcome of a document write.
type WriteResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// Event is one push-channel message fanned out to viewers.
type Event struct {
	Type    string `json:"type"`
	Mermaid string `json:"mermaid,omitempty"`
}

// Push-channel event types.
const (
	EventDocumentUpdate = "document_update"
	EventHistoryChanged = "history_changed"
)

// Viewer is one connected push-channel endpoint. Send is fire-and-forget
// from the registry's perspective: a failed send is the viewer's problem.
type Viewer interface {
	ID() string
	Send(event Event) error
	CloseGoingAway(reason string)
}

// ConvertFunc converts a pushed raw document to mermaid text and counts.
type ConvertFunc func(raw json.RawMessage) (dehydrate.Result, error)

type sessionEntry struct {
	// mu serializes all state mutation and broadcast for one session,
	// so successive writes are observed in issue order by both history
	// and viewers.
	mu        sync.Mutex
	name      string
	createdAt time.Time
	state     *state.Store
	viewers   map[string]Viewer
}

// Registry is the session registry hosted by the coordination server.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	store        persist.Store // nil disables persistence
	validate     mermaid.ValidateFunc
	convert      ConvertFunc
	historyLimit int
}

// New constructs a registry. store may be nil to run without
// persistence; validate and convert must be non-nil.
func New(store persist.Store, validate mermaid.ValidateFunc, convert ConvertFunc, historyLimit int) *Registry {
	return &Registry{
		sessions:     make(map[string]*sessionEntry),
		store:        store,
		validate:     validate,
		convert:      convert,
		historyLimit: historyLimit,
	}
}

// GenerateName returns a fresh session name: a fixed prefix plus four
// random lowercase-alphanumeric characters. Collisions are resolved by
// the idempotent create, not defended against here.
func GenerateName() string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = nameAlphabet[rand.Intn(len(nameAlphabet))]
	}
	return "napkin-" + string(suffix)
}

// Create registers a session under name, generating a name if empty. If
// the name already exists the existing descriptor is returned unchanged;
// two processes racing to create the same name converge on one record.
// Persisted state, if any, is restored into the fresh session.
func (r *Registry) Create(ctx context.Context, name string) (Descriptor, bool, error) {
	if name == "" {
		name = GenerateName()
	}
	if err := persist.ValidateName(name); err != nil {
		return Descriptor{}, false, fmt.Errorf("%w: %q", err, name)
	}

	r.mu.RLock()
	entry, ok := r.sessions[name]
	r.mu.RUnlock()
	if ok {
		return r.describe(entry), false, nil
	}

	// Load any persisted record before taking the write lock; a slow
	// disk must not block unrelated sessions.
	var rec *persist.Record
	if r.store != nil {
		var err error
		rec, err = r.store.Load(ctx, name)
		if err != nil {
			// Fall back to an empty session rather than failing create.
			log.Printf("[%s] Failed to load persisted session: %v", name, err)
		}
	}

	st := state.NewStore(r.historyLimit)
	createdAt := time.Now().UTC()
	if rec != nil {
		st.Restore(rec.Document, rec.History, rec.NodeCount, rec.EdgeCount, rec.SelectedElements)
		createdAt = rec.CreatedAt
		log.Printf("[%s] Restored %d snapshots from persistence", name, len(rec.History))
	}

	r.mu.Lock()
	if existing, ok := r.sessions[name]; ok {
		// Lost the insert race; the first create wins.
		r.mu.Unlock()
		return r.describe(existing), false, nil
	}
	entry = &sessionEntry{
		name:      name,
		createdAt: createdAt,
		state:     st,
		viewers:   make(map[string]Viewer),
	}
	r.sessions[name] = entry
	r.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	return r.describe(entry), true, nil
}

// Destroy closes every viewer connection for the session, removes it
// from the registry, and deletes its persisted record.
func (r *Registry) Destroy(ctx context.Context, name string) error {
	r.mu.Lock()
	entry, ok := r.sessions[name]
	if ok {
		delete(r.sessions, name)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	entry.mu.Lock()
	for _, v := range entry.viewers {
		v.CloseGoingAway("session destroyed")
	}
	entry.viewers = make(map[string]Viewer)
	entry.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil {
			log.Printf("[%s] Failed to delete persisted session: %v", name, err)
		}
	}

	metrics.SessionsActive.Dec()
	return nil
}

// List returns descriptors for all registered sessions, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, entry := range r.sessions {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	list := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		list = append(list, r.describe(entry))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Read returns the current design state of a session.
func (r *Registry) Read(name string) (ReadResult, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return ReadResult{}, err
	}

	nodes, edges := entry.state.Counts()
	selected := entry.state.SelectedElements()
	if selected == nil {
		selected = []string{}
	}
	return ReadResult{
		Mermaid:          entry.state.CurrentRef(),
		SelectedElements: selected,
		NodeCount:        nodes,
		EdgeCount:        edges,
	}, nil
}

// Write validates the text and, on success, sets it as the session's
// current document, broadcasts to viewers, and schedules a background
// persist. A validation failure returns the validator's errors without
// mutating anything.
func (r *Registry) Write(ctx context.Context, name, text, source string) (WriteResult, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return WriteResult{}, err
	}

	if result := r.validate(text); !result.Valid {
		metrics.WritesRejected.Inc()
		return WriteResult{Success: false, Errors: result.Errors}, nil
	}

	entry.mu.Lock()
	entry.state.SetDocument(text, source)
	entry.broadcast(Event{Type: EventDocumentUpdate, Mermaid: text})
	entry.broadcast(Event{Type: EventHistoryChanged})
	rec := r.snapshotRecord(entry)
	entry.mu.Unlock()

	metrics.SnapshotsTaken.WithLabelValues(source).Inc()
	r.persistAsync(entry.name, rec)
	return WriteResult{Success: true}, nil
}

// HandlePush runs an inbound viewer document push: convert, store with
// source "user", update counts and selection, broadcast, persist.
// Conversion failures are returned for logging; nothing is mutated.
func (r *Registry) HandlePush(ctx context.Context, name string, raw json.RawMessage, selectionIDs []string) error {
	entry, err := r.lookup(name)
	if err != nil {
		return err
	}

	result, err := r.convert(raw)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.state.SetDocument(result.Mermaid, state.SourceUser)
	entry.state.SetCounts(result.NodeCount, result.EdgeCount)
	entry.state.SetSelectedElements(selectionIDs)
	entry.broadcast(Event{Type: EventDocumentUpdate, Mermaid: result.Mermaid})
	entry.broadcast(Event{Type: EventHistoryChanged})
	rec := r.snapshotRecord(entry)
	entry.mu.Unlock()

	log.Printf("[%s] Design pushed: %d nodes, %d edges", name, result.NodeCount, result.EdgeCount)
	metrics.SnapshotsTaken.WithLabelValues(state.SourceUser).Inc()
	r.persistAsync(entry.name, rec)
	return nil
}

// History returns the most recent limit snapshots, oldest first.
func (r *Registry) History(name string, limit int) ([]state.Snapshot, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.state.History(limit), nil
}

// Rollback restores a previous snapshot as the current document and
// returns its text. History is untouched.
func (r *Registry) Rollback(ctx context.Context, name, timestamp string) (string, error) {
	entry, err := r.lookup(name)
	if err != nil {
		return "", err
	}

	entry.mu.Lock()
	text, err := entry.state.Rollback(timestamp)
	if err != nil {
		entry.mu.Unlock()
		return "", err
	}
	entry.broadcast(Event{Type: EventDocumentUpdate, Mermaid: text})
	entry.broadcast(Event{Type: EventHistoryChanged})
	rec := r.snapshotRecord(entry)
	entry.mu.Unlock()

	metrics.Rollbacks.Inc()
	r.persistAsync(entry.name, rec)
	return text, nil
}

// DeleteSnapshot removes one snapshot from history by timestamp. The
// current document is never altered.
func (r *Registry) DeleteSnapshot(ctx context.Context, name, timestamp string) error {
	entry, err := r.lookup(name)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if err := entry.state.DeleteSnapshot(timestamp); err != nil {
		entry.mu.Unlock()
		return err
	}
	entry.broadcast(Event{Type: EventHistoryChanged})
	rec := r.snapshotRecord(entry)
	entry.mu.Unlock()

	r.persistAsync(entry.name, rec)
	return nil
}

// AddViewer registers a viewer in the session's fan-out set.
func (r *Registry) AddViewer(name string, v Viewer) error {
	entry, err := r.lookup(name)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.viewers[v.ID()] = v
	entry.mu.Unlock()

	metrics.ViewersActive.Inc()
	metrics.ViewersTotal.Inc()
	return nil
}

// RemoveViewer drops a viewer from the fan-out set. Unknown sessions and
// unknown viewers are no-ops; removal races with destroy.
func (r *Registry) RemoveViewer(name string, v Viewer) {
	r.mu.RLock()
	entry, ok := r.sessions[name]
	r.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	if _, present := entry.viewers[v.ID()]; present {
		delete(entry.viewers, v.ID())
		metrics.ViewersActive.Dec()
	}
	entry.mu.Unlock()
}

// Has reports whether a session exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[name]
	return ok
}

// Close tears down every session's viewer set. Used at server shutdown;
// persisted records are left in place so sessions survive a restart.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, entry := range r.sessions {
		entries = append(entries, entry)
	}
	r.sessions = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		for _, v := range entry.viewers {
			v.CloseGoingAway("server shutting down")
		}
		entry.viewers = make(map[string]Viewer)
		entry.mu.Unlock()
		metrics.SessionsActive.Dec()
	}
}

func (r *Registry) lookup(name string) (*sessionEntry, error) {
	r.mu.RLock()
	entry, ok := r.sessions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}
	return entry, nil
}

func (r *Registry) describe(entry *sessionEntry) Descriptor {
	return Descriptor{
		Name:          entry.name,
		CreatedAt:     entry.createdAt,
		SnapshotCount: entry.state.SnapshotCount(),
	}
}

// broadcast fans an event out to every registered viewer. Delivery is
// fire-and-forget: failed sends are logged and the viewer is left to its
// own close handling. Caller must hold entry.mu.
func (e *sessionEntry) broadcast(event Event) {
	for _, v := range e.viewers {
		if err := v.Send(event); err != nil {
			log.Printf("[%s] Failed to send %s to viewer %s: %v", e.name, event.Type, v.ID(), err)
			continue
		}
		metrics.BroadcastsSent.Inc()
	}
}

// snapshotRecord copies the session into its persisted form. Caller must
// hold entry.mu so the record is a consistent cut.
func (r *Registry) snapshotRecord(entry *sessionEntry) *persist.Record {
	nodes, edges := entry.state.Counts()
	selected := entry.state.SelectedElements()
	if selected == nil {
		selected = []string{}
	}
	return &persist.Record{
		Version:          persist.RecordVersion,
		Name:             entry.name,
		CreatedAt:        entry.createdAt,
		Document:         entry.state.CurrentRef(),
		NodeCount:        nodes,
		EdgeCount:        edges,
		SelectedElements: selected,
		History:          entry.state.History(0),
	}
}

// persistAsync saves the record in the background. The caller never
// waits: a slow or failing disk must not delay the client-visible
// response. Failures only log.
func (r *Registry) persistAsync(name string, rec *persist.Record) {
	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.store.Save(ctx, name, rec); err != nil {
			metrics.PersistFailures.Inc()
			log.Printf("[%s] Persist failed: %v", name, err)
		}
	}()
}
