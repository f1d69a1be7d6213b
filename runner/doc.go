// Package runner implements the orchestration layer between transports and
// the agent graph.
//
// The Runner owns everything a transport should not have to know: input
// validation, per-thread serialization, fetching the current compiled graph
// from the cache, reshaping graph events into wire chunks, the fallback
// chunk for silent passes, bulk whitelist updates across a member's
// conversations, and on-demand tool resync.
//
// # Streaming contract
//
// Run and Resume return a channel of core.Chunk that is closed when the
// turn completes, suspends on a pending decision, or fails. Each pass over
// the graph is streamed independently: an error ends its pass with an
// untyped "Error: ..." chunk, and a pass that produced no content yields a
// single fallback chunk. Resume streams the decision pass first and, when a
// follow-up message is present, a second full pass on the same channel.
//
// Runs, resumes and whitelist updates that target the same conversation are
// serialized; a resume can never interleave with the run that suspended it.
package runner
