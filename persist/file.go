package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists each session as a JSON file under a base directory.
// Saves write to a temporary file and rename into place so a concurrent
// reader never observes a partially written record.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-backed store rooted at baseDir. The
// directory is created lazily on first save.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) filePath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return filepath.Join(s.baseDir, name+".json"), nil
}

// Save writes the record atomically under the validated name.
func (s *FileStore) Save(_ context.Context, name string, rec *Record) error {
	target, err := s.filePath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit session record: %w", err)
	}
	return nil
}

// Load reads the record for name, or returns nil, nil if absent.
func (s *FileStore) Load(_ context.Context, name string) (*Record, error) {
	target, err := s.filePath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record for name. Absence is not an error.
func (s *FileStore) Delete(_ context.Context, name string) error {
	target, err := s.filePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}
