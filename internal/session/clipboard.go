package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
)

// TerminalClipboard copies text using the OSC 52 terminal escape sequence,
// which most terminal emulators forward to the system clipboard
type TerminalClipboard struct {
	w io.Writer
}

// NewTerminalClipboard writes escape sequences to w, normally the terminal's stdout
func NewTerminalClipboard(w io.Writer) *TerminalClipboard {
	return &TerminalClipboard{w: w}
}

// WriteText implements Clipboard
func (c *TerminalClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := fmt.Fprintf(c.w, "\x1b]52;c;%s\x07", payload); err != nil {
		return fmt.Errorf("failed to write clipboard sequence: %w", err)
	}
	return nil
}
