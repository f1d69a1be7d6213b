// Package metrics provides Prometheus instrumentation for AgentGate.
//
// All metrics live under the agentgate_ namespace and are registered against
// an injected prometheus.Registerer, so applications control exposure and
// tests stay isolated. Every record helper is nil-safe; components hold an
// optional *Metrics and call helpers without guarding.
package metrics
