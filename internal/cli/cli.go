// Package cli provides the terminal surfaces of mcp-base64: in-process tool
// invocation through the registry, one-shot encode and decode, the
// interactive session and the theme preference.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-base64/internal/registry"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Runner executes CLI commands against the tool registry.
type Runner struct {
	logger *logrus.Logger
	output OutputFormat
	stdout io.Writer
	stderr io.Writer
}

// NewRunner creates a Runner that writes to the process stdout and stderr.
func NewRunner(logger *logrus.Logger, output OutputFormat) *Runner {
	return &Runner{logger: logger, output: output, stdout: os.Stdout, stderr: os.Stderr}
}

// SetOutput redirects the Runner's output streams.
func (r *Runner) SetOutput(stdout, stderr io.Writer) {
	r.stdout = stdout
	r.stderr = stderr
}

// toolSummary is one line of `cli list`
type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListTools prints the enabled tools in name order
func (r *Runner) ListTools() error {
	names := registry.GetEnabledToolNames()
	summaries := make([]toolSummary, 0, len(names))
	for _, name := range names {
		tool, ok := registry.GetTool(name)
		if !ok {
			continue
		}
		summaries = append(summaries, toolSummary{Name: name, Description: firstLine(tool.Definition().Description)})
	}

	if r.output == OutputJSON {
		return writeJSON(r.stdout, summaries)
	}

	w := tabwriter.NewWriter(r.stdout, 0, 0, 2, ' ', 0)
	for _, summary := range summaries {
		fmt.Fprintf(w, "%s\t%s\n", summary.Name, summary.Description)
	}
	return w.Flush()
}

// HelpTool prints a tool's description and the flags `cli run` accepts for it
func (r *Runner) HelpTool(name string) error {
	tool, err := lookupTool(name)
	if err != nil {
		return err
	}
	def := tool.Definition()

	if r.output == OutputJSON {
		return writeJSON(r.stdout, def)
	}

	fmt.Fprintf(r.stdout, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.stdout, "%s\n\n", def.Description)
	}
	if len(def.InputSchema.Properties) == 0 {
		fmt.Fprintln(r.stdout, "No parameters.")
		return nil
	}

	fmt.Fprintln(r.stdout, "Parameters:")
	required := make(map[string]bool, len(def.InputSchema.Required))
	for _, name := range def.InputSchema.Required {
		required[name] = true
	}

	w := tabwriter.NewWriter(r.stdout, 0, 0, 2, ' ', 0)
	for _, param := range slices.Sorted(maps.Keys(def.InputSchema.Properties)) {
		schema, ok := def.InputSchema.Properties[param].(map[string]any)
		if !ok {
			continue
		}
		paramType, _ := schema["type"].(string)
		desc, _ := schema["description"].(string)

		line := firstLine(desc)
		if required[param] {
			line += " (required)"
		}
		line += formatEnum(schema)
		fmt.Fprintf(w, "  --%s\t%s\t%s\n", toFlagName(param), paramType, line)
	}
	return w.Flush()
}

// RunTool executes a tool by name. Arguments are flags, a JSON object, or
// both, with flags taking precedence.
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, err := lookupTool(name)
	if err != nil {
		return err
	}

	params, err := parseArgs(args, tool.Definition())
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	result, err := tool.Execute(ctx, r.logger, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

// parseArgs turns `cli run` arguments into tool parameters. Flags are
// --name=value or --name value, where name is the parameter name or its
// kebab-case form. A JSON object supplies anything the flags leave unset.
// Every parameter the tools declare is a string, so flag values are passed
// through as typed.
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	names := paramNames(def)
	params := make(map[string]any)
	fromJSON := make(map[string]any)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "{"):
			if err := json.Unmarshal([]byte(arg), &fromJSON); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
		case strings.HasPrefix(arg, "--"):
			flag, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			name, ok := names[flag]
			if !ok {
				return nil, fmt.Errorf("unknown parameter --%s for %s (run 'mcp-base64 cli help %s')", flag, def.Name, def.Name)
			}
			if !hasValue {
				i++
				if i >= len(args) {
					return nil, fmt.Errorf("flag --%s requires a value", flag)
				}
				value = args[i]
			}
			params[name] = value
		default:
			return nil, fmt.Errorf("unexpected argument: %s (use --name=value flags or pass a JSON object)", arg)
		}
	}

	for name, value := range fromJSON {
		if _, set := params[name]; !set {
			params[name] = value
		}
	}
	return params, nil
}

// paramNames maps accepted flag spellings to declared parameter names
func paramNames(def mcp.Tool) map[string]string {
	names := make(map[string]string, 2*len(def.InputSchema.Properties))
	for name := range def.InputSchema.Properties {
		names[name] = name
		names[toFlagName(name)] = name
	}
	return names
}

// errToolResult is returned when a tool ran but reported a failure
var errToolResult = errors.New("tool returned an error")

// renderResult prints a tool result: the whole result as JSON, or the text
// content line by line
func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		if err := writeJSON(r.stdout, result); err != nil {
			return err
		}
	} else {
		for _, content := range result.Content {
			if text, ok := content.(mcp.TextContent); ok {
				fmt.Fprintln(r.stdout, text.Text)
				continue
			}
			if err := writeJSON(r.stdout, content); err != nil {
				return err
			}
		}
	}

	if result.IsError {
		return errToolResult
	}
	return nil
}

// lookupTool finds a tool by its registered name, also accepting the
// kebab-case spelling people tend to type
func lookupTool(name string) (tools.Tool, error) {
	if tool, ok := registry.GetTool(name); ok {
		return tool, nil
	}
	if tool, ok := registry.GetTool(strings.ReplaceAll(name, "-", "_")); ok {
		return tool, nil
	}
	return nil, unknownToolError(name)
}

// unknownToolError reports an unknown tool name, suggesting close matches.
func unknownToolError(name string) error {
	msg := fmt.Sprintf("unknown tool: %s", name)
	if suggestions := suggestTools(name); len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	}
	return fmt.Errorf("%s (run 'mcp-base64 cli list' to see available tools)", msg)
}

// suggestTools returns up to three enabled tool names that fuzzy match name.
func suggestTools(name string) []string {
	names := registry.GetEnabledToolNames()
	matches := fuzzy.Find(strings.ReplaceAll(name, "-", "_"), names)

	suggestions := make([]string, 0, 3)
	for _, m := range matches {
		if len(suggestions) == 3 {
			break
		}
		suggestions = append(suggestions, color.New(color.FgCyan).Sprint(m.Str))
	}
	return suggestions
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// toFlagName converts snake_case or camelCase to a kebab-case flag name
func toFlagName(s string) string {
	var out strings.Builder
	for i, r := range s {
		switch {
		case r == '_':
			out.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 {
				out.WriteByte('-')
			}
			out.WriteRune(unicode.ToLower(r))
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// formatEnum renders enum values. Definitions built in-process carry
// []string while decoded JSON schemas carry []any.
func formatEnum(pMap map[string]any) string {
	var vals []string
	switch enum := pMap["enum"].(type) {
	case []string:
		vals = enum
	case []any:
		vals = make([]string, len(enum))
		for i, v := range enum {
			vals[i] = fmt.Sprint(v)
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, "|") + "]"
}
