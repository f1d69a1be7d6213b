// Package core provides the foundational domain types and interfaces used
// by AgentGate. It defines the core abstractions for:
//
//   - Messages and Parts (role-based conversation entries with text, tool
//     calls and tool results)
//   - Threads (durable conversation state: message log, tool whitelist and
//     pending human decisions)
//   - Chunks (the streamed wire units of agent output)
//   - Pluggable stores for thread state and queue transports for change
//     notifications
//
// The package intentionally keeps implementation concerns (persistence,
// graph execution, concrete providers) out of scope, exposing small
// interfaces to enable custom backends and extensions. All exported
// identifiers include concise documentation to aid discoverability and
// external consumption.
package core
