// Package queue provides core.Queue implementations for propagating tool
// change notifications to downstream consumers.
package queue

import (
	"context"
	"sync"

	"github.com/hupe1980/agentgate/core"
)

// InMemoryQueue is a process-local core.Queue backed by named slices. It never
// fails and is intended for development and testing; production deployments
// use the Redis-backed implementation in queue/redis.
type InMemoryQueue struct {
	mu    sync.Mutex
	lists map[string][][]byte
}

// Compile-time interface compliance check.
var _ core.Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates an empty in-memory queue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{lists: make(map[string][][]byte)}
}

// Push appends a copy of value to the named list.
func (q *InMemoryQueue) Push(_ context.Context, name string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	buf := make([]byte, len(value))
	copy(buf, value)
	q.lists[name] = append(q.lists[name], buf)

	return nil
}

// Len returns the number of values in the named list.
func (q *InMemoryQueue) Len(_ context.Context, name string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.lists[name])), nil
}

// Ping always succeeds.
func (q *InMemoryQueue) Ping(_ context.Context) error { return nil }

// Items returns a snapshot of the values in the named list, oldest first.
// Useful for assertions and local consumers.
func (q *InMemoryQueue) Items(name string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([][]byte, len(q.lists[name]))
	for i, v := range q.lists[name] {
		buf := make([]byte, len(v))
		copy(buf, v)
		items[i] = buf
	}

	return items
}
