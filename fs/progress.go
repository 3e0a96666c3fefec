// Package fs persists crawl progress on the local filesystem.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fwojciec/simpledocs"
)

// DefaultProgressFile is the snapshot file name used when none is configured.
const DefaultProgressFile = "progress.json"

// Ensure ProgressStore implements simpledocs.ProgressStore at compile time.
var _ simpledocs.ProgressStore = (*ProgressStore)(nil)

// ProgressStore keeps the last progress snapshot in a JSON file.
// Each save writes a temporary file next to the target and renames it over
// the target, so readers never observe a partial snapshot.
type ProgressStore struct {
	path string
	mu   sync.Mutex
}

// NewProgressStore creates a ProgressStore writing to path.
func NewProgressStore(path string) *ProgressStore {
	if path == "" {
		path = DefaultProgressFile
	}
	return &ProgressStore{path: path}
}

// Path returns the snapshot file path.
func (s *ProgressStore) Path() string {
	return s.path
}

func (s *ProgressStore) Load(_ context.Context) (*simpledocs.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, simpledocs.Errorf(simpledocs.ENOTFOUND, "no progress saved at %s", s.path)
	} else if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}

	var snap simpledocs.ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", s.path, err)
	}
	return &snap, nil
}

func (s *ProgressStore) Save(_ context.Context, snap *simpledocs.ProgressSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
