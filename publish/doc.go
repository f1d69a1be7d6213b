// Package publish reliably announces tool inventory changes to downstream
// consumers via a durable queue.
//
// Each non-empty delta becomes an immutable ChangeMessage pushed onto a named
// list. Transient queue failures never surface to the caller: messages are
// held in a bounded in-memory retry buffer (oldest dropped on overflow) and
// flushed in strict FIFO order on the next successful publish or a manual
// retry.
package publish
