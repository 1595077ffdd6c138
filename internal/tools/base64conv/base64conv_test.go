package base64conv

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return textContent.Text
}

func TestConvertTool_Definition(t *testing.T) {
	def := (&ConvertTool{}).Definition()
	assert.Equal(t, "base64", def.Name)
	assert.Contains(t, def.InputSchema.Required, "mode")
	assert.Contains(t, def.InputSchema.Required, "text")
}

func TestConvertTool_Execute(t *testing.T) {
	tool := &ConvertTool{}

	tests := []struct {
		name     string
		args     map[string]any
		isError  bool
		expected ConvertResponse
	}{
		{
			name:     "encode",
			args:     map[string]any{"mode": "encode", "text": "Hello World"},
			expected: ConvertResponse{Mode: converter.ModeEncode, Outcome: converter.Success, Output: "SGVsbG8gV29ybGQ="},
		},
		{
			name:     "decode",
			args:     map[string]any{"mode": "decode", "text": "SGVsbG8gV29ybGQ="},
			expected: ConvertResponse{Mode: converter.ModeDecode, Outcome: converter.Success, Output: "Hello World"},
		},
		{
			name:     "decode empty string",
			args:     map[string]any{"mode": "decode", "text": ""},
			expected: ConvertResponse{Mode: converter.ModeDecode, Outcome: converter.Success},
		},
		{
			name: "encode already encoded",
			args: map[string]any{"mode": "Encode", "text": "SGVsbG8gV29ybGQ="},
			expected: ConvertResponse{
				Mode:     converter.ModeEncode,
				Outcome:  converter.Success,
				Output:   "U0dWc2JHOGdWMjl5YkdRPQ==",
				Advisory: converter.LooksAlreadyEncoded.Message(),
			},
		},
		{
			name:    "missing padding",
			args:    map[string]any{"mode": "decode", "text": "SGVsbG8gV29ybGQ"},
			isError: true,
			expected: ConvertResponse{
				Mode:     converter.ModeDecode,
				Outcome:  converter.Failure,
				Category: converter.IncorrectPadding,
				Message:  converter.IncorrectPadding.Message(),
			},
		},
		{
			name:    "unsupported character",
			args:    map[string]any{"mode": "encode", "text": "日"},
			isError: true,
			expected: ConvertResponse{
				Mode:     converter.ModeEncode,
				Outcome:  converter.Failure,
				Category: converter.UnsupportedCharacter,
				Message:  converter.Encode("日").Message,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(context.Background(), testLogger(), tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)

			var response ConvertResponse
			require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
			assert.Equal(t, tt.expected, response)
		})
	}
}

func TestConvertTool_ArgumentErrors(t *testing.T) {
	tool := &ConvertTool{}

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing mode", args: map[string]any{"text": "a"}, want: "mode"},
		{name: "unknown mode", args: map[string]any{"mode": "rot13", "text": "a"}, want: "invalid mode"},
		{name: "missing text", args: map[string]any{"mode": "encode"}, want: "text"},
		{name: "non-string text", args: map[string]any{"mode": "encode", "text": 42}, want: "text must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Execute(context.Background(), testLogger(), tt.args)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConvertTool_MaxInputBytes(t *testing.T) {
	SetMaxInputBytes(8)
	t.Cleanup(func() { SetMaxInputBytes(0) })

	_, err := (&ConvertTool{}).Execute(context.Background(), testLogger(), map[string]any{
		"mode": "encode",
		"text": strings.Repeat("a", 9),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the maximum")

	_, err = (&ConvertTool{}).Execute(context.Background(), testLogger(), map[string]any{
		"mode": "encode",
		"text": strings.Repeat("a", 8),
	})
	assert.NoError(t, err)
}

func TestConvertTool_ExtendedHelp(t *testing.T) {
	help := (&ConvertTool{}).ProvideExtendedInfo()
	require.NotNil(t, help)
	assert.NotEmpty(t, help.Examples)
	assert.NotEmpty(t, help.Troubleshooting)
	assert.Contains(t, help.ParameterDetails, "mode")
}

func TestCheck(t *testing.T) {
	length := func(n int) *int { return &n }

	tests := []struct {
		name     string
		text     string
		expected CheckResponse
	}{
		{name: "empty", text: "", expected: CheckResponse{Valid: true, DecodedLength: length(0)}},
		{name: "two padding", text: "YQ==", expected: CheckResponse{Valid: true, DecodedLength: length(1)}},
		{name: "one padding", text: "SGVsbG8gV29ybGQ=", expected: CheckResponse{Valid: true, DecodedLength: length(11)}},
		{name: "no padding", text: " YWJj\n", expected: CheckResponse{Valid: true, DecodedLength: length(3)}},
		{
			name:     "missing padding",
			text:     "SGVsbG8gV29ybGQ",
			expected: CheckResponse{Category: converter.IncorrectPadding, Message: converter.IncorrectPadding.Message()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Check(tt.text))
		})
	}

	invalid := Check("!!!!")
	assert.False(t, invalid.Valid)
	assert.Equal(t, converter.InvalidCharacter, invalid.Category)
	assert.Nil(t, invalid.DecodedLength)
}

func TestCheckTool_Execute(t *testing.T) {
	result, err := (&CheckTool{}).Execute(context.Background(), testLogger(), map[string]any{"text": "YQ=="})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var response CheckResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.True(t, response.Valid)
	require.NotNil(t, response.DecodedLength)
	assert.Equal(t, 1, *response.DecodedLength)

	_, err = (&CheckTool{}).Execute(context.Background(), testLogger(), map[string]any{})
	assert.Error(t, err)
}
