package base64conv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/registry"
	"github.com/sirupsen/logrus"
)

// CheckTool reports whether text is canonical Base64 without decoding it
type CheckTool struct{}

// CheckResponse is the JSON body of a base64_check tool result
type CheckResponse struct {
	Valid         bool               `json:"valid"`
	Category      converter.Category `json:"category,omitempty"`
	Message       string             `json:"message,omitempty"`
	DecodedLength *int               `json:"decoded_length,omitempty"`
}

func init() {
	registry.Register(&CheckTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *CheckTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"base64_check",
		mcp.WithDescription("Check whether text is valid standard Base64. Returns the failure category and a readable message when it is not, or the decoded byte length when it is."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to check. Surrounding white space is ignored."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute classifies the text
func (t *CheckTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	text, err := parseText(args)
	if err != nil {
		return nil, err
	}

	logger.WithField("length", len(text)).Debug("Executing base64_check")

	response := Check(text)
	jsonBytes, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// Check validates text with the same rules the decoder applies. The empty
// string is valid and decodes to nothing.
func Check(text string) CheckResponse {
	result := converter.Decode(text)
	if result.Failed() {
		return CheckResponse{
			Valid:    false,
			Category: result.Category,
			Message:  result.Message,
		}
	}

	length := decodedLength(strings.TrimSpace(text))
	return CheckResponse{Valid: true, DecodedLength: &length}
}

// decodedLength computes the byte length of canonical Base64 input
func decodedLength(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/4*3 - strings.Count(s[len(s)-2:], "=")
}
