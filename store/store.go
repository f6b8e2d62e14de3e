// Package store provides atomic read/write of named JSON snapshots under a
// fixed application data directory.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists named JSON blobs. Writes are atomic (write-temp-then-rename)
// so a crash mid-write never leaves a torn snapshot behind.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// DefaultDir returns the default data directory (~/.agentcord).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".agentcord"), nil
}

// New creates a store rooted at baseDir, creating the directory if needed.
// An empty baseDir uses the default.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		var err error
		baseDir, err = DefaultDir()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{baseDir: baseDir}, nil
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.baseDir }

func (s *Store) path(name string) string {
	return filepath.Join(s.baseDir, name+".json")
}

// Read unmarshals the named snapshot into v. A missing snapshot returns
// (false, nil) and leaves v untouched.
func (s *Store) Read(name string, v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read snapshot %q: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal snapshot %q: %w", name, err)
	}
	return true, nil
}

// Write marshals v and atomically replaces the named snapshot.
func (s *Store) Write(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %q: %w", name, err)
	}

	path := s.path(name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %q: %w", name, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot %q: %w", name, err)
	}

	return nil
}
