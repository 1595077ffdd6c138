package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Store holds the active configuration and reloads it when the file changes
type Store struct {
	path    string
	logger  *logrus.Logger
	mu      sync.RWMutex
	current *Config
	watcher *fsnotify.Watcher
	done    chan struct{}

	listeners []func(*Config)
}

// NewStore loads the configuration at path
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:    path,
		logger:  logger,
		current: cfg,
		done:    make(chan struct{}),
	}, nil
}

// Get returns the active configuration. Callers must not modify it.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the configuration file. On error the previous
// configuration stays active.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = cfg
	listeners := append([]func(*Config){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// OnReload registers fn to be called with each successfully reloaded configuration
func (s *Store) OnReload(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch starts reloading the configuration whenever the file is written.
// The directory is watched so that editors replacing the file are noticed.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Use a channel to handle watcher.Add with timeout
	dir := filepath.Dir(s.path)
	added := make(chan error, 1)
	go func() {
		added <- watcher.Add(dir)
	}()

	select {
	case err := <-added:
		if err != nil {
			if closeErr := watcher.Close(); closeErr != nil {
				s.logger.WithError(closeErr).Warn("Failed to close watcher after add error")
			}
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
	case <-time.After(5 * time.Second):
		if closeErr := watcher.Close(); closeErr != nil {
			s.logger.WithError(closeErr).Warn("Failed to close watcher after timeout")
		}
		return fmt.Errorf("timeout adding config directory to watcher")
	}

	s.watcher = watcher
	go s.loop(watcher)
	return nil
}

func (s *Store) loop(watcher *fsnotify.Watcher) {
	defer func() {
		_ = watcher.Close()
	}()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			s.logger.WithField("path", s.path).Debug("Config file changed, reloading")
			if err := s.Reload(); err != nil {
				s.logger.WithError(err).Error("Failed to reload config, keeping previous configuration")
				continue
			}
			s.logger.WithField("path", s.path).Info("Config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("Config file watcher error")
		}
	}
}

// Close stops watching the configuration file
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
