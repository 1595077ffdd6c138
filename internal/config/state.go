package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// StateFile represents the persisted preferences for mcp-base64
type StateFile struct {
	// DarkMode is the default theme for the web page and interactive mode.
	// Nil means never set, which reads as dark.
	DarkMode  *bool `json:"dark_mode,omitempty"`
	UpdatedAt int64 `json:"updated_at,omitempty"` // Unix timestamp

	path string
	mu   sync.RWMutex
}

// LoadState reads the state file at path. A missing or unreadable file
// yields default preferences.
func LoadState(path string) *StateFile {
	state := &StateFile{path: path}

	fileLock := flock.New(path + ".lock")
	if locked, err := fileLock.TryRLock(); err == nil && locked {
		defer func() { _ = fileLock.Unlock() }()
	}

	if data, err := os.ReadFile(path); err == nil {
		// Ignore JSON parsing errors and use defaults
		_ = json.Unmarshal(data, state)
	}

	return state
}

// Path returns the file backing this state
func (s *StateFile) Path() string {
	return s.path
}

// IsDarkMode returns the persisted theme preference, dark by default
func (s *StateFile) IsDarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.DarkMode == nil || *s.DarkMode
}

// SetDarkMode sets the theme preference and saves the state
func (s *StateFile) SetDarkMode(dark bool) error {
	s.mu.Lock()
	s.DarkMode = &dark
	s.UpdatedAt = time.Now().Unix()
	s.mu.Unlock()

	return s.Save()
}

// Save writes the state to disk under an exclusive file lock
func (s *StateFile) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	fileLock := flock.New(s.path + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire lock on state file %s", s.path)
	}
	defer func() { _ = fileLock.Unlock() }()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// DefaultStatePath returns the path to the state file
func DefaultStatePath() string {
	if customPath := os.Getenv("MCP_BASE64_STATE_PATH"); customPath != "" {
		return customPath
	}

	// Default to ~/.mcp-base64/state.json
	return filepath.Join(HomeDir(), "state.json")
}

// HomeDir returns the mcp-base64 data directory (~/.mcp-base64)
func HomeDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mcp-base64")
}
