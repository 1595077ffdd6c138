package toolhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-base64/internal/registry"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sirupsen/logrus"
)

// ToolHelpTool returns the extended usage information of other registered tools
type ToolHelpTool struct{}

// init registers the tool with the registry
func init() {
	registry.Register(&ToolHelpTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	// Get only tools that provide extended help
	toolsWithExtendedHelp := registry.GetToolNamesWithExtendedHelp()

	description := "Get detailed usage examples and troubleshooting for the Base64 tools when a conversion fails unexpectedly."
	if len(toolsWithExtendedHelp) == 0 {
		description = "No tools currently provide extended help information."
	}

	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(toolsWithExtendedHelp...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the get_tool_help tool
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	toolName, err := t.parseRequest(args)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	logger.WithField("tool_name", toolName).Debug("Executing get_tool_help")

	tool, exists := registry.GetTool(toolName)
	if !exists {
		availableTools := registry.GetToolNamesWithExtendedHelp()
		return nil, fmt.Errorf("tool '%s' not found, disabled, or does not provide extended help. Tools with extended help: %s", toolName, strings.Join(availableTools, ", "))
	}

	extendedProvider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		availableTools := registry.GetToolNamesWithExtendedHelp()
		return nil, fmt.Errorf("tool '%s' does not provide extended help. Tools with extended help: %s", toolName, strings.Join(availableTools, ", "))
	}

	response := &ToolHelpResponse{
		ToolName:        toolName,
		BasicInfo:       t.extractBasicInfo(tool),
		HasExtendedInfo: true,
	}

	extendedInfo := extendedProvider.ProvideExtendedInfo()
	if extendedInfo != nil {
		response.ExtendedInfo = t.convertExtendedInfo(extendedInfo)
	} else {
		response.HasExtendedInfo = false
		response.Message = fmt.Sprintf("Tool '%s' implements ExtendedHelpProvider but returned no extended information", toolName)
	}

	return t.newToolResult(response)
}

// parseRequest parses and validates the tool arguments
func (t *ToolHelpTool) parseRequest(args map[string]any) (string, error) {
	toolName, ok := args["tool_name"].(string)
	if !ok || toolName == "" {
		return "", fmt.Errorf("missing or invalid required parameter: tool_name")
	}

	return toolName, nil
}

// extractBasicInfo extracts basic information from a tool's definition
func (t *ToolHelpTool) extractBasicInfo(tool tools.Tool) map[string]any {
	definition := tool.Definition()

	basicInfo := map[string]any{
		"name":        definition.Name,
		"description": definition.Description,
	}

	if definition.InputSchema.Type != "" {
		basicInfo["input_schema"] = definition.InputSchema
	}

	return basicInfo
}

// convertExtendedInfo converts tools.ExtendedHelp to the response format
func (t *ToolHelpTool) convertExtendedInfo(info *tools.ExtendedHelp) *ExtendedHelpData {
	result := &ExtendedHelpData{
		CommonPatterns:   info.CommonPatterns,
		ParameterDetails: info.ParameterDetails,
		WhenToUse:        info.WhenToUse,
		WhenNotToUse:     info.WhenNotToUse,
	}

	if len(info.Troubleshooting) > 0 {
		result.Troubleshooting = make([]TroubleshootingData, len(info.Troubleshooting))
		for i, tip := range info.Troubleshooting {
			result.Troubleshooting[i] = TroubleshootingData{
				Problem:  tip.Problem,
				Solution: tip.Solution,
			}
		}
	}

	if len(info.Examples) > 0 {
		result.Examples = make([]ToolExampleData, len(info.Examples))
		for i, example := range info.Examples {
			result.Examples[i] = ToolExampleData{
				Description:    example.Description,
				Arguments:      example.Arguments,
				ExpectedResult: example.ExpectedResult,
			}
		}
	}

	return result
}

// newToolResult creates a new tool result from the response
func (t *ToolHelpTool) newToolResult(response *ToolHelpResponse) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}
