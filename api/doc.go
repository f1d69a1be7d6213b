// Package api exposes the AgentGate service over HTTP.
//
// The Handler registers five surfaces on an echo server: the agent run
// endpoint streaming newline-delimited chunk JSON, a websocket variant of
// the same stream, the bulk tool-whitelist update, the on-demand tool
// resync used by downstream services when queue processing falls behind,
// and the health + Prometheus endpoints.
//
// Request validation lives here: the orchestrator receives only well-formed
// input, and malformed requests never reach the graph.
package api
