package cli

import (
	"fmt"
	"strings"

	"github.com/sammcj/mcp-base64/internal/config"
)

// Theme prints the persisted theme preference, or sets it when value is
// "dark" or "light".
func (r *Runner) Theme(state *config.StateFile, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
	case "dark":
		if err := state.SetDarkMode(true); err != nil {
			return fmt.Errorf("failed to save theme: %w", err)
		}
	case "light":
		if err := state.SetDarkMode(false); err != nil {
			return fmt.Errorf("failed to save theme: %w", err)
		}
	default:
		return fmt.Errorf("invalid theme %q: must be 'dark' or 'light'", value)
	}
	if value != "" {
		r.logger.WithField("path", state.Path()).Debug("Theme preference saved")
	}

	fmt.Fprintln(r.stdout, themeName(state.IsDarkMode()))
	return nil
}

func themeName(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}
