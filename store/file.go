package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists ownership flags as a single JSON document.
//
// Writes mutate an in-memory map; Flush serializes the map to a temporary
// file, fsyncs it, and renames it over the target path so readers never
// observe a torn document. Missing files read as an empty flag set.
type FileStore struct {
	mu    sync.Mutex
	path  string
	flags map[string]bool
	dirty bool
}

// NewFileStore opens (or lazily creates) the flag document at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		flags: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read flag store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.flags); err != nil {
		return nil, fmt.Errorf("failed to decode flag store: %w", err)
	}
	return s, nil
}

// Owned reads the flag for id.
func (s *FileStore) Owned(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[id], nil
}

// SetOwned records the flag for id. The write is buffered until Flush.
func (s *FileStore) SetOwned(id string, owned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags[id] == owned {
		return nil
	}
	s.flags[id] = owned
	s.dirty = true
	return nil
}

// Flush writes the flag document durably. A clean store flushes without
// touching the filesystem.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.Marshal(s.flags)
	if err != nil {
		return fmt.Errorf("failed to encode flag store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create flag store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".flags-*")
	if err != nil {
		return fmt.Errorf("failed to create temp flag store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write flag store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync flag store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close flag store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace flag store: %w", err)
	}

	s.dirty = false
	return nil
}

// Ensure FileStore implements FlagStore
var _ FlagStore = (*FileStore)(nil)
