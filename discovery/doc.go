// Package discovery enumerates the tools available to the agent from all
// configured sources and tracks how the inventory changes over time.
//
// Sources are the explicit built-in registration list and zero or more remote
// MCP servers. Discovery validates the combined set (name format, remote
// server-name prefix, global uniqueness), degrades to built-ins only when the
// remote layer is unreachable, and diffs successive passes against a cached
// snapshot so the change publisher can announce additions and removals to
// downstream consumers.
package discovery
