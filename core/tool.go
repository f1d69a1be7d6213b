package core

// Tool sources as reported in change notifications. Tools backed by an MCP
// server use the server name as their source.
const (
	SourceBuiltIn = "built-in"
	SourceUnknown = "unknown"
)

// ToolInfo identifies one tool in a change notification. MCPServerName is
// the source label: a server name for remote tools, SourceBuiltIn for local
// tools, or SourceUnknown when the source can no longer be determined.
type ToolInfo struct {
	Name          string `json:"name"`
	MCPServerName string `json:"mcpServerName"`
}
