package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClipboard struct {
	texts []string
	err   error
}

func (c *recordingClipboard) WriteText(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.texts = append(c.texts, text)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSession_SetInput(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())

	state := s.SetInput("Hello World")
	assert.Equal(t, "SGVsbG8gV29ybGQ=", state.Output)
	assert.Empty(t, state.Error)
	assert.Equal(t, "Hello World", state.Input)
	assert.Equal(t, state, s.State())

	state = s.SetInput("日")
	assert.Empty(t, state.Output, "error replaces output in the shared slot")
	assert.NotEmpty(t, state.Error)
	assert.Equal(t, converter.UnsupportedCharacter, state.Category)
	assert.Equal(t, state.Error, state.Display())
}

func TestSession_AdvisoryRecomputedOnEveryInput(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())

	state := s.SetInput("SGVsbG8gV29ybGQ=")
	assert.Equal(t, converter.LooksAlreadyEncoded, state.Advisory)
	assert.NotEmpty(t, state.Output)

	state = s.SetInput("SGVsbG8gV29ybGQ=!")
	assert.Equal(t, converter.NoAdvisory, state.Advisory)
}

func TestSession_SwitchModeResets(t *testing.T) {
	tests := []struct {
		name  string
		from  converter.Mode
		to    converter.Mode
		input string
	}{
		{name: "encode output", from: converter.ModeEncode, to: converter.ModeDecode, input: "Hello World"},
		{name: "encode advisory", from: converter.ModeEncode, to: converter.ModeDecode, input: "YQ=="},
		{name: "encode error", from: converter.ModeEncode, to: converter.ModeDecode, input: "日"},
		{name: "decode output", from: converter.ModeDecode, to: converter.ModeEncode, input: "YQ=="},
		{name: "decode error", from: converter.ModeDecode, to: converter.ModeEncode, input: "!!!!"},
		{name: "same mode", from: converter.ModeDecode, to: converter.ModeDecode, input: "YQ=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.from, testLogger())
			s.SetInput(tt.input)

			state := s.SwitchMode(tt.to)
			assert.Equal(t, State{Mode: tt.to}, state)
			assert.Empty(t, state.Input)
			assert.Empty(t, state.Output)
			assert.Empty(t, state.Error)
			assert.Empty(t, state.Advisory)
		})
	}
}

func TestSession_Copy(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(converter.ModeEncode, testLogger(), WithClock(clock.Now))
	clipboard := &recordingClipboard{}

	assert.False(t, s.CanCopy(), "nothing to copy yet")
	assert.False(t, s.Copy(context.Background(), clipboard))

	s.SetInput("a")
	require.True(t, s.CanCopy())
	require.True(t, s.Copy(context.Background(), clipboard))
	assert.Equal(t, []string{"YQ=="}, clipboard.texts)
	assert.True(t, s.Copied())

	clock.Advance(CopyAcknowledgement - time.Millisecond)
	assert.True(t, s.Copied())

	clock.Advance(time.Millisecond)
	assert.False(t, s.Copied(), "acknowledgement clears after the interval")
}

func TestSession_CopyDisabledOnError(t *testing.T) {
	s := New(converter.ModeDecode, testLogger())
	s.SetInput("!!!!")

	clipboard := &recordingClipboard{}
	assert.False(t, s.CanCopy())
	assert.False(t, s.Copy(context.Background(), clipboard))
	assert.Empty(t, clipboard.texts)
}

func TestSession_CopyFailureIsNotAnErrorState(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())
	before := s.SetInput("a")

	ok := s.Copy(context.Background(), &recordingClipboard{err: errors.New("clipboard unavailable")})
	assert.False(t, ok)
	assert.False(t, s.Copied())
	assert.Equal(t, before, s.State())
}

func TestSession_NewInputClearsAcknowledgement(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())
	s.SetInput("a")
	require.True(t, s.Copy(context.Background(), &recordingClipboard{}))

	s.SetInput("ab")
	assert.False(t, s.Copied())
}

// editingClipboard changes the session while the copy is in flight
type editingClipboard struct {
	recordingClipboard
	during func()
}

func (c *editingClipboard) WriteText(ctx context.Context, text string) error {
	c.during()
	return c.recordingClipboard.WriteText(ctx, text)
}

func TestSession_CopyNotAcknowledgedWhenOutputChanges(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())
	s.SetInput("a")

	clipboard := &editingClipboard{during: func() { s.SetInput("ab") }}
	require.True(t, s.Copy(context.Background(), clipboard))
	assert.Equal(t, []string{"YQ=="}, clipboard.texts)
	assert.False(t, s.Copied(), "the new output was never copied")

	clipboard = &editingClipboard{during: func() { s.SwitchMode(converter.ModeDecode) }}
	s.SwitchMode(converter.ModeEncode)
	s.SetInput("a")
	require.True(t, s.Copy(context.Background(), clipboard))
	assert.False(t, s.Copied())
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := New(converter.ModeEncode, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetInput("Hello World")
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.SwitchMode(converter.ModeDecode)
			} else {
				s.SwitchMode(converter.ModeEncode)
			}
		}(i)
	}
	wg.Wait()

	state := s.State()
	if state.Input == "" {
		assert.Empty(t, state.Output)
		assert.Empty(t, state.Error)
	}
}

func TestTerminalClipboard(t *testing.T) {
	var buf bytes.Buffer
	clipboard := NewTerminalClipboard(&buf)

	require.NoError(t, clipboard.WriteText(context.Background(), "hi"))
	assert.Equal(t, "\x1b]52;c;aGk=\x07", buf.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, clipboard.WriteText(ctx, "hi"))
}
