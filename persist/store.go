// Package persist provides durable storage of full session records,
// keyed by validated session name. Two backends are available: flat
// files with atomic rename (the default) and redis.
package persist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pksebben/Napkin/state"
)

// RecordVersion is the persisted record schema version.
const RecordVersion = 1

// ErrInvalidName is returned when a session name fails the path-safety
// check. This is a security boundary: untrusted names must never reach
// the storage layer.
var ErrInvalidName = errors.New("invalid session name")

// Record is the full persisted form of one session.
type Record struct {
	Version          int              `json:"version"`
	Name             string           `json:"name"`
	CreatedAt        time.Time        `json:"createdAt"`
	Document         *string          `json:"document"`
	NodeCount        int              `json:"nodeCount"`
	EdgeCount        int              `json:"edgeCount"`
	SelectedElements []string         `json:"selectedElements"`
	History          []state.Snapshot `json:"history"`
}

// Store defines atomic load/save/delete of one session's record.
type Store interface {
	// Save durably writes the record under a key derived from name.
	// The write is atomic with respect to concurrent readers.
	Save(ctx context.Context, name string, rec *Record) error
	// Load returns nil, nil if no record exists for name.
	Load(ctx context.Context, name string) (*Record, error)
	// Delete is idempotent; a missing record is not an error.
	Delete(ctx context.Context, name string) error
}

// ValidateName rejects empty names and names containing path-separator
// characters or ".." segments.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}
