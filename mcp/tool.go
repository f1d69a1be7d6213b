package mcp

import (
	"context"

	"github.com/hupe1980/agentgate/tool"
)

// RemoteTool adapts a server-advertised tool definition to the tool.Tool
// interface so the agent graph can execute remote and local tools uniformly.
type RemoteTool struct {
	client *Client
	def    *ToolDef
}

// Compile-time interface check.
var _ tool.Tool = (*RemoteTool)(nil)

// NewRemoteTool wraps a tool definition advertised by the given client.
func NewRemoteTool(client *Client, def *ToolDef) *RemoteTool {
	return &RemoteTool{client: client, def: def}
}

// Name returns the server-advertised tool name.
func (t *RemoteTool) Name() string { return t.def.Name }

// Description returns the server-advertised description.
func (t *RemoteTool) Description() string { return t.def.Description }

// Parameters returns the server-advertised input schema. A missing schema is
// normalized to an empty object schema.
func (t *RemoteTool) Parameters() map[string]any {
	if t.def.InputSchema == nil {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return t.def.InputSchema
}

// ServerName returns the name of the MCP server backing this tool.
func (t *RemoteTool) ServerName() string { return t.client.Name() }

// Call forwards the invocation to the remote server. Server-side tool
// failures (isError results) surface as *tool.ToolError with code
// EXECUTION_ERROR; the textual content is preserved as the message.
func (t *RemoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	result, err := t.client.CallTool(ctx, t.def.Name, args)
	if err != nil {
		return nil, tool.NewToolError(t.def.Name, err.Error(), "EXECUTION_ERROR")
	}

	text := result.Text()
	if result.IsError {
		return nil, tool.NewToolError(t.def.Name, text, "EXECUTION_ERROR")
	}

	return text, nil
}
