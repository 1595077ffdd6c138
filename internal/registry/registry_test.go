package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct{ name string }

func (s *stubTool) Definition() mcp.Tool {
	return mcp.NewTool(s.name, mcp.WithDescription("stub"))
}

func (s *stubTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.name), nil
}

type helpfulTool struct{ stubTool }

func (h *helpfulTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{WhenToUse: "always"}
}

func resetRegistry(t *testing.T) {
	t.Helper()
	mu.Lock()
	saved := toolRegistry
	toolRegistry = make(map[string]tools.Tool)
	mu.Unlock()

	t.Cleanup(func() {
		mu.Lock()
		toolRegistry = saved
		disabledTools = make(map[string]bool)
		mu.Unlock()
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	resetRegistry(t)
	t.Setenv("DISABLED_TOOLS", "")
	Init(logrus.New())

	Register(&stubTool{name: "zeta"})
	Register(&helpfulTool{stubTool{name: "alpha"}})

	tool, ok := GetTool("zeta")
	require.True(t, ok)
	assert.Equal(t, "zeta", tool.Definition().Name)

	_, ok = GetTool("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "zeta"}, GetEnabledToolNames())
	assert.Equal(t, []string{"alpha"}, GetToolNamesWithExtendedHelp())
	assert.Len(t, GetEnabledTools(), 2)
}

func TestRegistry_DisabledTools(t *testing.T) {
	resetRegistry(t)
	t.Setenv("DISABLED_TOOLS", " alpha , ,beta")

	Register(&stubTool{name: "alpha"})
	Register(&stubTool{name: "gamma"})
	Init(logrus.New())

	assert.True(t, IsDisabled("alpha"))
	assert.True(t, IsDisabled("beta"))
	assert.False(t, IsDisabled("gamma"))

	_, ok := GetTool("alpha")
	assert.False(t, ok, "tools registered before Init are still filtered")
	assert.Equal(t, []string{"gamma"}, GetEnabledToolNames())
}
