package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the server-issued visitor identifier between runs. The
// engine only ever reads the current value and rewrites it when the server
// issues a new one.
type Store interface {
	VisitorID() string
	SetVisitorID(id string) error
}

type fileState struct {
	VisitorID string `json:"visitorId"`
}

// FileStore keeps the visitor id in a JSON file, the terminal stand-in for
// the browser's local storage.
type FileStore struct {
	mu   sync.Mutex
	path string
	id   string
}

// NewFileStore loads existing state from path. A missing or unreadable
// state file is not an error: the server issues a fresh id on first contact.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read visitor state: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(raw, &state); err != nil {
		return s, nil
	}
	s.id = state.VisitorID
	return s, nil
}

// DefaultPath places the state file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "admissionchat", "visitor.json"), nil
}

func (s *FileStore) VisitorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetVisitorID stores a new server-issued id. Empty and unchanged values
// are ignored.
func (s *FileStore) SetVisitorID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" || id == s.id {
		return nil
	}
	s.id = id

	raw, err := json.Marshal(fileState{VisitorID: id})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write visitor state: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu sync.Mutex
	id string
}

func (s *MemoryStore) VisitorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *MemoryStore) SetVisitorID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		s.id = id
	}
	return nil
}
