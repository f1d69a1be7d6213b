package core

import "context"

// Queue is a minimal FIFO transport for change notifications. Push appends
// a raw payload to the named queue; implementations decide durability.
type Queue interface {
	// Push appends value to the tail of the named queue.
	Push(ctx context.Context, name string, value []byte) error

	// Len returns the number of entries in the named queue.
	Len(ctx context.Context, name string) (int64, error)

	// Ping verifies the backing transport is reachable.
	Ping(ctx context.Context) error
}
