package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogRetentionDays is the default number of days to retain failure logs
	DefaultLogRetentionDays = 60
	// FailureLogEnvVar enables the conversion failure log
	FailureLogEnvVar = "LOG_CONVERSION_FAILURES"
	// maxLoggedInputLength bounds how much of an input is recorded
	maxLoggedInputLength = 256
)

// FailureLogEntry is one logged conversion failure
type FailureLogEntry struct {
	Timestamp string             `json:"timestamp"`
	RequestID string             `json:"request_id,omitempty"`
	Source    string             `json:"source"`
	Mode      converter.Mode     `json:"mode"`
	Category  converter.Category `json:"category"`
	Message   string             `json:"message"`
	Input     string             `json:"input,omitempty"`
	InputLen  int                `json:"input_length"`
}

// FailureLogger appends conversion failures to a JSON lines file
type FailureLogger struct {
	enabled  bool
	logFile  *os.File
	logger   *logrus.Logger
	mu       sync.Mutex
	filePath string
	now      func() time.Time
}

var (
	globalFailureLogger *FailureLogger
	failureLoggerOnce   sync.Once
)

// InitGlobalFailureLogger initialises the global failure logger from the environment
func InitGlobalFailureLogger(logger *logrus.Logger, logDir string) error {
	var initErr error
	failureLoggerOnce.Do(func() {
		if os.Getenv(FailureLogEnvVar) != "true" {
			globalFailureLogger = &FailureLogger{enabled: false, logger: logger}
			return
		}

		l, err := NewFailureLogger(logger, filepath.Join(logDir, "conversion-failures.log"))
		if err != nil {
			initErr = err
			return
		}
		globalFailureLogger = l

		// Perform log rotation in background to avoid blocking startup
		go func() {
			if rotateErr := l.rotateOldLogs(); rotateErr != nil {
				logger.WithError(rotateErr).Warn("Failed to rotate old conversion failure logs")
			}
		}()

		logger.Infof("Conversion failure logging enabled: %s", l.filePath)
	})

	return initErr
}

// NewFailureLogger opens (or creates) an enabled failure log at path
func NewFailureLogger(logger *logrus.Logger, path string) (*FailureLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversion failure log file: %w", err)
	}

	return &FailureLogger{
		enabled:  true,
		logFile:  logFile,
		logger:   logger,
		filePath: path,
		now:      time.Now,
	}, nil
}

// GetGlobalFailureLogger returns the global failure logger instance
func GetGlobalFailureLogger() *FailureLogger {
	if globalFailureLogger == nil {
		// Return a disabled logger if not initialised
		return &FailureLogger{enabled: false}
	}
	return globalFailureLogger
}

// LogFailure records a failed conversion, tagged with the request id in ctx.
// Successful results are ignored.
func (l *FailureLogger) LogFailure(ctx context.Context, source string, req converter.Request, result converter.Result) {
	if !l.enabled || !result.Failed() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// rotateOldLogs swaps the file under the same lock
	if l.logFile == nil {
		return
	}

	entry := FailureLogEntry{
		Timestamp: l.now().Format(time.RFC3339),
		RequestID: telemetry.RequestIDFromContext(ctx),
		Source:    source,
		Mode:      req.Mode,
		Category:  result.Category,
		Message:   result.Message,
		Input:     truncate(req.Text, maxLoggedInputLength),
		InputLen:  len(req.Text),
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		if l.logger != nil {
			l.logger.WithError(marshalErr).Error("Failed to marshal conversion failure log entry")
		}
		return
	}

	if _, writeErr := l.logFile.Write(append(jsonData, '\n')); writeErr != nil {
		if l.logger != nil {
			l.logger.WithError(writeErr).Error("Failed to write conversion failure log entry")
		}
		return
	}

	if syncErr := l.logFile.Sync(); syncErr != nil && l.logger != nil {
		l.logger.WithError(syncErr).Error("Failed to sync conversion failure log file")
	}
}

// Close closes the failure logger and its log file
func (l *FailureLogger) Close() error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// IsEnabled returns whether failure logging is enabled
func (l *FailureLogger) IsEnabled() bool {
	return l.enabled
}

// GetLogFilePath returns the path to the failure log file
func (l *FailureLogger) GetLogFilePath() string {
	return l.filePath
}

// rotateOldLogs removes log entries older than the retention period.
// Holds the mutex for the entire operation so LogFailure never writes to a
// closed file during rotation.
func (l *FailureLogger) rotateOldLogs() error {
	if !l.enabled || l.filePath == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		if err := l.logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file for rotation: %w", err)
		}
		l.logFile = nil
	}

	file, err := os.Open(l.filePath)
	if err != nil {
		return l.reopenLogFileLocked()
	}

	var validEntries []string
	cutoffTime := l.now().AddDate(0, 0, -DefaultLogRetentionDays)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry FailureLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// Keep malformed entries to avoid data loss
			validEntries = append(validEntries, line)
			continue
		}

		entryTime, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || entryTime.After(cutoffTime) {
			validEntries = append(validEntries, line)
		}
	}

	scanErr := scanner.Err()
	_ = file.Close()

	if scanErr != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("error reading log file during rotation: %w", scanErr)
	}

	content := ""
	if len(validEntries) > 0 {
		content = strings.Join(validEntries, "\n") + "\n"
	}

	// Atomic file replacement
	tmpPath := l.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0600); err != nil {
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to write temporary rotated log file: %w", err)
	}

	if err := os.Rename(tmpPath, l.filePath); err != nil {
		_ = os.Remove(tmpPath)
		_ = l.reopenLogFileLocked()
		return fmt.Errorf("failed to rename temporary log file during rotation: %w", err)
	}

	return l.reopenLogFileLocked()
}

// reopenLogFileLocked reopens the log file in append mode.
// Caller must hold l.mu.
func (l *FailureLogger) reopenLogFileLocked() error {
	logFile, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}

	l.logFile = logFile
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Avoid splitting a multi-byte character
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
