// Package graph implements the agent state machine and the cache that keeps
// a compiled graph aligned with the discovered tool set.
//
// A run moves through the states:
//
//	agent -> END                                           (no tool calls)
//	agent -> human_confirmation                            (suspends on non-whitelisted calls)
//	human_confirmation -> progress_report (approved) | reject_action (rejected)
//	progress_report -> context_injection -> tools -> agent
//
// Suspension is durable: the pending tool-call batch is persisted on the
// thread, and a later Resume carries the human decision. Rejection is all or
// nothing; every call of the batch gets a synthetic "cancelled by the user"
// result and none executes.
//
// The Cache recompiles the graph only when the tool-set fingerprint changes,
// publishing the change delta best-effort and always reusing the same thread
// store so history survives recompilation.
package graph
