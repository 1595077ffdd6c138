package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sammcj/mcp-base64/internal/tools"
)

// ErrConversionFailed is returned when a one-shot conversion fails. The
// failure message has already been printed.
var ErrConversionFailed = errors.New("conversion failed")

// ReadInput returns the positional arguments joined by spaces, or all of
// stdin when there are none. A single trailing line ending is removed from
// stdin input so that piped text round trips.
func ReadInput(args []string, stdin io.Reader, maxBytes int) (string, error) {
	if len(args) > 0 {
		text := strings.Join(args, " ")
		if len(text) > maxBytes {
			return "", fmt.Errorf("input is %d bytes which exceeds the maximum of %d bytes", len(text), maxBytes)
		}
		return text, nil
	}

	data, err := io.ReadAll(io.LimitReader(stdin, int64(maxBytes)+1))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) > maxBytes {
		return "", fmt.Errorf("input exceeds the maximum of %d bytes", maxBytes)
	}

	text := string(data)
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return text, nil
}

// Convert runs a one-shot conversion, printing the output slot to stdout.
// Advisories go to stderr in yellow and failures to stderr in red.
func (r *Runner) Convert(ctx context.Context, mode converter.Mode, text string) error {
	req := converter.Request{Mode: mode, Text: text}
	result := telemetry.TraceConvert(ctx, "cli", req)

	if result.Failed() {
		tools.GetGlobalFailureLogger().LogFailure(ctx, "cli", req, result)
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(r.stderr, "%s %s\n", red("error:"), result.Display())
		return ErrConversionFailed
	}

	if r.output == OutputJSON {
		return writeJSON(r.stdout, result)
	}

	if result.Advisory != converter.NoAdvisory {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.stderr, "%s %s\n", yellow("warning:"), result.Advisory.Message())
	}
	fmt.Fprintln(r.stdout, result.Display())
	return nil
}
