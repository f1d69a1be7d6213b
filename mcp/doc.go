// Package mcp provides a Model Context Protocol (MCP) client for remote tool
// servers reachable over HTTP.
//
// The client speaks JSON-RPC 2.0 against a single endpoint: an initialize
// handshake on connect, tools/list to fetch current tool definitions, and
// tools/call to execute a tool. RemoteTool adapts server-advertised
// definitions to the tool.Tool interface so the rest of the system treats
// remote and built-in tools uniformly.
package mcp
