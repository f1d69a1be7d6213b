package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentgate/logging"
)

// protocolVersion is the MCP protocol revision this client speaks.
const protocolVersion = "2024-11-05"

// clientVersion identifies this client in the initialize handshake.
const clientVersion = "0.1.0"

// Client is an MCP client that connects to a single server.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    logging.Logger

	// Server info from the initialize handshake
	serverInfo ServerInfo
}

// ClientOptions configure an MCP client.
type ClientOptions struct {
	// Logger used for connection and call diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// Transport overrides the default HTTP transport. Used in tests.
	Transport Transport
}

// NewClient creates a new MCP client for the given server.
func NewClient(cfg *ServerConfig, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewHTTPTransport(cfg)
	}

	return &Client{
		config:    cfg,
		transport: transport,
		logger:    opts.Logger,
	}
}

// Connect establishes the connection and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": ClientInfo{
			Name:    "agentgate",
			Version: clientVersion,
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}

	c.serverInfo = initResult.ServerInfo
	c.logger.Info("Connected to MCP server",
		"server", c.config.Name,
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	// Send initialized notification
	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("Failed to send initialized notification", "server", c.config.Name, "error", err)
	}

	return nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.config.Name
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// Connected returns whether the client is connected.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// ListTools fetches the server's current tool definitions. No caching is
// done here; callers decide how fresh the listing must be.
func (c *Client) ListTools(ctx context.Context) ([]*ToolDef, error) {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var resp ListToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("parse tools/list result: %w", err)
	}

	return resp.Tools, nil
}

// CallTool calls a tool on the MCP server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	result, err := c.transport.Call(ctx, "tools/call", CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse tools/call result: %w", err)
	}

	return &callResult, nil
}
