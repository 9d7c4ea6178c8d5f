package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxHistory bounds per-session history when no explicit limit
// is configured.
const DefaultMaxHistory = 50

// Snapshot source tags.
const (
	SourceUser  = "user"
	SourceAgent = "agent"
)

// ErrSnapshotNotFound is returned by Rollback and DeleteSnapshot when no
// snapshot in history carries the requested timestamp.
var ErrSnapshotNotFound = errors.New("no snapshot found for timestamp")

// Snapshot is one immutable historical version of a session's document,
// keyed by its timestamp.
type Snapshot struct {
	Mermaid   string `json:"mermaid"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Store holds the in-memory document state for one session: the current
// mermaid text, node/edge counts, a selected-element hint, and a bounded
// history of snapshots. Eviction is strictly FIFO by insertion order.
// Store knows nothing about networking or persistence.
type Store struct {
	mu         sync.Mutex
	current    *string
	nodeCount  int
	edgeCount  int
	selected   []string
	history    []Snapshot
	maxHistory int
	lastTS     string
}

// NewStore creates an empty store. A non-positive maxHistory selects
// DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{maxHistory: maxHistory}
}

// Current returns the current document text, or ok=false if no document
// has ever been set.
func (s *Store) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "", false
	}
	return *s.current, true
}

// CurrentRef returns the current document as a nullable pointer for
// serialization. The returned pointer is a copy.
func (s *Store) CurrentRef() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	doc := *s.current
	return &doc
}

// Counts returns the last known node and edge counts.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeCount, s.edgeCount
}

// SetCounts records node and edge counts reported by the converter.
func (s *Store) SetCounts(nodes, edges int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeCount = nodes
	s.edgeCount = edges
}

// SelectedElements returns a copy of the selected-element hint.
func (s *Store) SelectedElements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// SetSelectedElements replaces the selected-element hint.
func (s *Store) SetSelectedElements(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append([]string(nil), ids...)
}

// SetDocument replaces the current document and appends a snapshot with a
// freshly generated timestamp, evicting the oldest entries beyond the
// history bound. No validation happens here; callers validate first.
func (s *Store) SetDocument(mermaid, source string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := mermaid
	s.current = &doc

	snap := Snapshot{
		Mermaid:   mermaid,
		Timestamp: s.nextTimestamp(),
		Source:    source,
	}
	s.history = append(s.history, snap)
	if len(s.history) > s.maxHistory {
		s.history = append([]Snapshot(nil), s.history[len(s.history)-s.maxHistory:]...)
	}
	return snap
}

// nextTimestamp generates an RFC3339Nano timestamp that is strictly
// greater than the previous one, so snapshot lookups stay unambiguous
// even when two writes land within clock resolution.
// Caller must hold s.mu.
func (s *Store) nextTimestamp() string {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if ts <= s.lastTS {
		if prev, err := time.Parse(time.RFC3339Nano, s.lastTS); err == nil {
			ts = prev.Add(time.Nanosecond).Format(time.RFC3339Nano)
		}
	}
	s.lastTS = ts
	return ts
}

// History returns the most recent limit snapshots, oldest first within
// the returned window. A non-positive limit returns the full history.
func (s *Store) History(limit int) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	return append([]Snapshot(nil), s.history[n-limit:]...)
}

// SnapshotCount returns the current history length.
func (s *Store) SnapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Rollback sets the current document to the snapshot matching the given
// timestamp and returns its text. History is not mutated; rollback does
// not truncate. Returns ErrSnapshotNotFound if no snapshot matches.
func (s *Store) Rollback(timestamp string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.history {
		if snap.Timestamp == timestamp {
			doc := snap.Mermaid
			s.current = &doc
			return doc, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, timestamp)
}

// DeleteSnapshot removes the snapshot with the given timestamp from
// history. The current document is left untouched even if it equals the
// deleted text. Returns ErrSnapshotNotFound if no snapshot matches.
func (s *Store) DeleteSnapshot(timestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, snap := range s.history {
		if snap.Timestamp == timestamp {
			s.history = append(s.history[:i:i], s.history[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrSnapshotNotFound, timestamp)
}

// Restore bulk-loads the store from persisted form. The incoming history
// is deep-copied so the caller's slice is never aliased, and an oversized
// history is truncated to the most recent entries within the bound.
func (s *Store) Restore(document *string, history []Snapshot, nodeCount, edgeCount int, selected []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if document != nil {
		doc := *document
		s.current = &doc
	} else {
		s.current = nil
	}

	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}
	s.history = append([]Snapshot(nil), history...)

	s.nodeCount = nodeCount
	s.edgeCount = edgeCount
	s.selected = append([]string(nil), selected...)

	if n := len(s.history); n > 0 {
		s.lastTS = s.history[n-1].Timestamp
	}
}
