// Package session holds the state of one interactive conversion surface:
// the selected mode, the current input and the result derived from it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sirupsen/logrus"
)

// CopyAcknowledgement is how long a successful copy stays acknowledged
const CopyAcknowledgement = 2 * time.Second

// Clipboard is write-only access to a system clipboard
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// State is a snapshot of the interactive surface. Output and Error share one
// display slot; at most one of them is non-empty.
type State struct {
	Mode     converter.Mode     `json:"mode"`
	Input    string             `json:"input"`
	Output   string             `json:"output"`
	Error    string             `json:"error"`
	Category converter.Category `json:"category,omitempty"`
	Advisory converter.Advisory `json:"advisory,omitempty"`
}

// Display returns what the output area shows
func (s State) Display() string {
	if s.Error != "" {
		return s.Error
	}
	return s.Output
}

// Session is an interactive conversion state machine. It is safe for
// concurrent use.
type Session struct {
	mu       sync.Mutex
	state    State
	copiedAt time.Time
	now      func() time.Time
	logger   *logrus.Logger
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session in the given mode with empty input
func New(mode converter.Mode, logger *logrus.Logger, opts ...Option) *Session {
	s := &Session{
		state:  State{Mode: mode},
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetInput replaces the input and recomputes the whole state from it
func (s *Session) SetInput(text string) State {
	mode := s.mode()
	result := converter.Convert(converter.Request{Mode: mode, Text: text})

	next := State{
		Mode:     mode,
		Input:    text,
		Advisory: result.Advisory,
	}
	if result.Failed() {
		next.Error = result.Message
		next.Category = result.Category
	} else {
		next.Output = result.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent mode switch wins; the input belonged to the previous mode
	if s.state.Mode != next.Mode {
		return s.state
	}
	s.state = next
	s.copiedAt = time.Time{}
	return s.state
}

// SwitchMode selects a mode and clears input, output, error and advisory. The
// previous input is not reinterpreted in the new mode.
func (s *Session) SwitchMode(mode converter.Mode) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Mode: mode}
	s.copiedAt = time.Time{}
	return s.state
}

// CanCopy reports whether there is output to copy
func (s *Session) CanCopy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.copyableLocked()
	return ok
}

// Copy writes the current output to the clipboard. A failed write is logged
// and leaves the state untouched. It reports whether the text was copied.
// The copy is only acknowledged if the output did not change while the
// clipboard was being written.
func (s *Session) Copy(ctx context.Context, clipboard Clipboard) bool {
	s.mu.Lock()
	output, ok := s.copyableLocked()
	s.mu.Unlock()
	if !ok {
		return false
	}

	if err := clipboard.WriteText(ctx, output); err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Warn("Failed to copy text to clipboard")
		}
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.copyableLocked(); ok && current == output {
		s.copiedAt = s.now()
	}
	return true
}

func (s *Session) copyableLocked() (string, bool) {
	return s.state.Output, s.state.Output != "" && s.state.Error == ""
}

// Copied reports whether a copy was acknowledged within the last
// CopyAcknowledgement interval
func (s *Session) Copied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.copiedAt.IsZero() {
		return false
	}
	return s.now().Sub(s.copiedAt) < CopyAcknowledgement
}

func (s *Session) mode() converter.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode
}
