package base64conv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/registry"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sirupsen/logrus"
)

// ConvertTool encodes text to Base64 or decodes Base64 to text
type ConvertTool struct{}

// ConvertResponse is the JSON body of a base64 tool result
type ConvertResponse struct {
	Mode     converter.Mode     `json:"mode"`
	Outcome  converter.Outcome  `json:"outcome"`
	Output   string             `json:"output,omitempty"`
	Category converter.Category `json:"category,omitempty"`
	Message  string             `json:"message,omitempty"`
	Advisory string             `json:"advisory,omitempty"`
}

func init() {
	registry.Register(&ConvertTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ConvertTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"base64",
		mcp.WithDescription("Encode text to standard Base64 or decode Base64 back to text. Each character maps to a single byte, so only Latin-1 characters (U+0000 to U+00FF) can be encoded. Failures return a category and a readable message instead of an error."),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Conversion direction"),
			mcp.Enum(string(converter.ModeEncode), string(converter.ModeDecode)),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to encode, or Base64 to decode. Surrounding white space is ignored when decoding. May be empty."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute runs a single conversion
func (t *ConvertTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := t.parseRequest(args)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"mode":   req.Mode,
		"length": len(req.Text),
	}).Debug("Executing base64 conversion")

	result := telemetry.TraceConvert(ctx, "mcp", req)
	if result.Failed() {
		logger.WithFields(logrus.Fields{
			"mode":     req.Mode,
			"category": result.Category,
		}).Debug("Conversion failed")
		tools.GetGlobalFailureLogger().LogFailure(ctx, "mcp", req, result)
	}

	return t.newToolResult(req.Mode, result)
}

func (t *ConvertTool) parseRequest(args map[string]any) (converter.Request, error) {
	modeRaw, ok := args["mode"].(string)
	if !ok || modeRaw == "" {
		return converter.Request{}, fmt.Errorf("missing or invalid required parameter: mode")
	}
	mode, err := converter.ParseMode(modeRaw)
	if err != nil {
		return converter.Request{}, err
	}

	text, err := parseText(args)
	if err != nil {
		return converter.Request{}, err
	}

	return converter.Request{Mode: mode, Text: text}, nil
}

func (t *ConvertTool) newToolResult(mode converter.Mode, result converter.Result) (*mcp.CallToolResult, error) {
	response := ConvertResponse{
		Mode:     mode,
		Outcome:  result.Outcome,
		Output:   result.Value,
		Category: result.Category,
		Message:  result.Message,
		Advisory: result.Advisory.Message(),
	}

	jsonBytes, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	toolResult := mcp.NewToolResultText(string(jsonBytes))
	toolResult.IsError = result.Failed()
	return toolResult, nil
}

// ProvideExtendedInfo provides detailed usage information for the base64 tool
func (t *ConvertTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Encode plain text",
				Arguments: map[string]any{
					"mode": "encode",
					"text": "Hello World",
				},
				ExpectedResult: `{"mode":"encode","outcome":"success","output":"SGVsbG8gV29ybGQ="}`,
			},
			{
				Description: "Decode a Base64 string",
				Arguments: map[string]any{
					"mode": "decode",
					"text": "SGVsbG8gV29ybGQ=",
				},
				ExpectedResult: `{"mode":"decode","outcome":"success","output":"Hello World"}`,
			},
			{
				Description: "Decode input with missing padding",
				Arguments: map[string]any{
					"mode": "decode",
					"text": "SGVsbG8gV29ybGQ",
				},
				ExpectedResult: "Failure with category incorrect_padding",
			},
		},
		CommonPatterns: []string{
			"Decode a Kubernetes Secret value: base64 with mode=decode and the value from the data field",
			"Prepare cloud-init user data or a data URI payload: base64 with mode=encode",
			"Validate first with base64_check when you only need to know whether a string is Base64",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "incorrect_padding when decoding",
				Solution: "Standard Base64 length is a multiple of 4. Add the missing '=' characters, or check that the value was not truncated.",
			},
			{
				Problem:  "invalid_character when decoding",
				Solution: "Only A-Z, a-z, 0-9, '+', '/' and trailing '=' are allowed. URL-safe Base64 ('-' and '_') must be converted first, and line breaks inside the value must be removed.",
			},
			{
				Problem:  "unsupported_character when encoding",
				Solution: "Characters above U+00FF (for example emoji or CJK text) do not fit in a single byte and cannot be encoded by this tool.",
			},
			{
				Problem:  "Advisory says the input already looks like Base64",
				Solution: "The encode succeeded, but the input is itself valid Base64. Use mode=decode if you meant to decode it.",
			},
		},
		ParameterDetails: map[string]string{
			"mode": "'encode' turns text into Base64; 'decode' turns Base64 into text",
			"text": "Input text. Leading and trailing white space is ignored when decoding. An empty string succeeds with empty output.",
		},
		WhenToUse:    "Converting short text values to or from standard Base64, such as configuration secrets, HTTP basic auth values or test fixtures.",
		WhenNotToUse: "Protecting sensitive data (Base64 is not encryption), encoding binary files, or URL-safe Base64 variants.",
	}
}
