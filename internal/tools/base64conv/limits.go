package base64conv

import (
	"fmt"
	"sync/atomic"

	"github.com/sammcj/mcp-base64/internal/config"
)

var maxInputBytes atomic.Int64

func init() {
	maxInputBytes.Store(config.DefaultMaxInputBytes)
}

// SetMaxInputBytes updates the input size limit applied by the tools.
// Non-positive values restore the default.
func SetMaxInputBytes(n int) {
	if n <= 0 {
		n = config.DefaultMaxInputBytes
	}
	maxInputBytes.Store(int64(n))
}

// MaxInputBytes returns the current input size limit
func MaxInputBytes() int {
	return int(maxInputBytes.Load())
}

func checkInputSize(text string) error {
	if limit := MaxInputBytes(); len(text) > limit {
		return fmt.Errorf("text is %d bytes which exceeds the maximum of %d bytes", len(text), limit)
	}
	return nil
}

// parseText reads the text argument. A missing argument is an error, an
// empty string is not.
func parseText(args map[string]any) (string, error) {
	raw, ok := args["text"]
	if !ok {
		return "", fmt.Errorf("missing required parameter: text")
	}
	text, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("text must be a string")
	}
	if err := checkInputSize(text); err != nil {
		return "", err
	}
	return text, nil
}
