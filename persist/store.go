// Package persist keeps the daemon's documents on disk: user settings, the agent state
// and the status snapshot the CLI reads. Documents are small JSON files replaced
// atomically; one daemon per data directory is enforced with a pid lock.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"rodeo/engine"
	"sync"
	"time"
)

const (
	settingsFile = "settings.json"
	stateFile    = "state.json"
	statusFile   = "status.json"
	pidFile      = "rodeo.pid"
)

// FileStore keeps documents in a data directory. Last writer wins.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ engine.Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) PIDPath() string {
	return filepath.Join(s.dir, pidFile)
}

// LoadSettings returns the defaults when no settings were saved yet.
func (s *FileStore) LoadSettings() (Settings, error) {
	b, ok, err := s.read(settingsFile)
	if err != nil || !ok {
		return DefaultSettings(), err
	}
	return decodeSettings(b)
}

func (s *FileStore) SaveSettings(settings Settings) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	return s.write(settingsFile, settings)
}

// UpdateSettings applies fn to the stored settings and saves the result.
func (s *FileStore) UpdateSettings(fn func(*Settings)) (Settings, error) {
	settings, err := s.LoadSettings()
	if err != nil {
		return settings, err
	}
	fn(&settings)
	return settings, s.SaveSettings(settings)
}

// Paused reports the paused flag. Unreadable settings count as not paused.
func (s *FileStore) Paused() bool {
	settings, err := s.LoadSettings()
	return err == nil && settings.Paused
}

func (s *FileStore) LoadAgentState() (engine.AgentState, bool, error) {
	b, ok, err := s.read(stateFile)
	if err != nil || !ok {
		return engine.AgentState{}, false, err
	}
	var st engine.AgentState
	if err := json.Unmarshal(b, &st); err != nil {
		return engine.AgentState{}, false, fmt.Errorf("parse agent state: %w", err)
	}
	return st, true, nil
}

func (s *FileStore) SaveAgentState(st engine.AgentState) error {
	return s.write(stateFile, st)
}

// ResetAgentState replaces the agent state with a fresh one.
func (s *FileStore) ResetAgentState() error {
	return s.SaveAgentState(engine.NewAgentState(time.Now()))
}

func (s *FileStore) SaveStatus(st engine.Status) error {
	return s.write(statusFile, st)
}

func (s *FileStore) LoadStatus() (engine.Status, bool, error) {
	b, ok, err := s.read(statusFile)
	if err != nil || !ok {
		return engine.Status{}, false, err
	}
	var st engine.Status
	if err := json.Unmarshal(b, &st); err != nil {
		return engine.Status{}, false, fmt.Errorf("parse status: %w", err)
	}
	return st, true, nil
}

func (s *FileStore) read(name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *FileStore) write(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(filepath.Join(s.dir, name), b)
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
