package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// StateStore manages persistence of daemon state to a TOML file.
type StateStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewStateStore creates a state store backed by path. A sibling file with
// a .lock suffix serialises access between processes.
func NewStateStore(path string) *StateStore {
	return &StateStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// DefaultStatePath returns the conventional state file of a daemon:
// $XDG_DATA_HOME/yaqd-state/<kind>/<name>-state.toml.
func DefaultStatePath(kind, name string) string {
	return filepath.Join(dataHome(), "yaqd-state", kind, name+"-state.toml")
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return os.TempDir()
}

// Path returns the state file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save writes the state values to disk. The file is replaced atomically.
func (s *StateStore) Save(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}

// Load reads the state values from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *StateStore) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	values := make(map[string]any)
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return values, nil
}

// Clear removes the state file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
