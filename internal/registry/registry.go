package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sirupsen/logrus"
)

var (
	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger

	mu sync.RWMutex
)

// Init initialises the registry and shared resources
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	parseDisabledTools()
}

// parseDisabledTools parses the comma separated DISABLED_TOOLS environment variable.
// Caller must hold mu.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	disabledEnv := os.Getenv("DISABLED_TOOLS")
	if disabledEnv == "" {
		return
	}

	for tool := range strings.SplitSeq(disabledEnv, ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}

	if logger != nil && len(disabledTools) > 0 {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

// Register adds a tool implementation to the registry. Disabled tools are
// recorded too so that a later Init can still filter them.
func Register(tool tools.Tool) {
	// Definition may query the registry, so resolve the name before locking
	toolName := tool.Definition().Name

	mu.Lock()
	defer mu.Unlock()

	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool registered")
	}
}

// IsDisabled reports whether a tool was disabled through DISABLED_TOOLS
func IsDisabled(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return disabledTools[name]
}

// GetTool retrieves a tool by name, returns false if disabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if disabledTools[name] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all registered tools, excluding disabled ones
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		filteredTools[name] = tool
	}
	return filteredTools
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
