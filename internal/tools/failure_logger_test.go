package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func newTestFailureLogger(t *testing.T) *FailureLogger {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	l, err := NewFailureLogger(logger, filepath.Join(t.TempDir(), "logs", "conversion-failures.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func readEntries(t *testing.T, path string) []FailureLogEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []FailureLogEntry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry FailureLogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestFailureLogger_LogsOnlyFailures(t *testing.T) {
	l := newTestFailureLogger(t)

	ok := converter.Request{Mode: converter.ModeEncode, Text: "Hello"}
	l.LogFailure(ctx, "mcp", ok, converter.Convert(ok))

	bad := converter.Request{Mode: converter.ModeDecode, Text: "SGVsbG8"}
	l.LogFailure(ctx, "mcp", bad, converter.Convert(bad))

	entries := readEntries(t, l.GetLogFilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, "mcp", entries[0].Source)
	assert.Equal(t, converter.ModeDecode, entries[0].Mode)
	assert.Equal(t, converter.IncorrectPadding, entries[0].Category)
	assert.Equal(t, "SGVsbG8", entries[0].Input)
	assert.Equal(t, 7, entries[0].InputLen)
	assert.Empty(t, entries[0].RequestID)
}

func TestFailureLogger_RecordsRequestID(t *testing.T) {
	l := newTestFailureLogger(t)

	req := converter.Request{Mode: converter.ModeDecode, Text: "!!!!"}
	l.LogFailure(telemetry.ContextWithRequestID(ctx, "req-42"), "web", req, converter.Convert(req))

	entries := readEntries(t, l.GetLogFilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].RequestID)
}

func TestFailureLogger_ConcurrentRotateAndLog(t *testing.T) {
	l := newTestFailureLogger(t)
	req := converter.Request{Mode: converter.ModeDecode, Text: "@@@@"}
	result := converter.Convert(req)

	const iterations = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range iterations {
			assert.NoError(t, l.rotateOldLogs())
		}
	}()
	go func() {
		defer wg.Done()
		for range iterations {
			l.LogFailure(ctx, "mcp", req, result)
		}
	}()
	wg.Wait()

	// Entries are recent, so rotation keeps every one of them
	assert.Len(t, readEntries(t, l.GetLogFilePath()), iterations)
}

func TestFailureLogger_CloseTwice(t *testing.T) {
	l := newTestFailureLogger(t)
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close())

	req := converter.Request{Mode: converter.ModeDecode, Text: "@@@@"}
	assert.NotPanics(t, func() { l.LogFailure(ctx, "cli", req, converter.Convert(req)) })
}

func TestFailureLogger_TruncatesLongInput(t *testing.T) {
	l := newTestFailureLogger(t)

	req := converter.Request{Mode: converter.ModeDecode, Text: strings.Repeat("!", 1000)}
	l.LogFailure(ctx, "web", req, converter.Convert(req))

	entries := readEntries(t, l.GetLogFilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, 1000, entries[0].InputLen)
	assert.Len(t, entries[0].Input, maxLoggedInputLength+len("..."))
}

func TestFailureLogger_RotateDropsOldEntries(t *testing.T) {
	l := newTestFailureLogger(t)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return current.AddDate(0, 0, -(DefaultLogRetentionDays + 5)) }
	req := converter.Request{Mode: converter.ModeDecode, Text: "@@@@"}
	l.LogFailure(ctx, "cli", req, converter.Convert(req))

	l.now = func() time.Time { return current }
	l.LogFailure(ctx, "cli", req, converter.Convert(req))

	require.NoError(t, l.rotateOldLogs())

	entries := readEntries(t, l.GetLogFilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, current.Format(time.RFC3339), entries[0].Timestamp)

	// The log is writable again after rotation
	l.LogFailure(ctx, "cli", req, converter.Convert(req))
	assert.Len(t, readEntries(t, l.GetLogFilePath()), 2)
}

func TestFailureLogger_DisabledIsNoop(t *testing.T) {
	l := GetGlobalFailureLogger()
	if l.IsEnabled() {
		t.Skip("global failure logger enabled by environment")
	}

	req := converter.Request{Mode: converter.ModeDecode, Text: "@@@@"}
	assert.NotPanics(t, func() { l.LogFailure(ctx, "mcp", req, converter.Convert(req)) })
	assert.NoError(t, l.Close())
}

func TestTruncate_RespectsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abécd", 3))
}
