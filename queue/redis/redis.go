// Package redis provides a durable core.Queue backed by Redis lists.
//
// Operations retry with bounded exponential backoff (base doubling per
// attempt, capped). The synchronous backoff sleep is acceptable because queue
// operations run during discovery and recompilation, off the per-request hot
// path.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
)

// Options configures the Redis queue client.
type Options struct {
	// Password authenticates against the Redis server. Empty disables auth.
	Password string

	// DB selects the logical Redis database.
	DB int

	// MaxAttempts bounds how often a failed operation is retried.
	MaxAttempts int

	// BaseDelay is the backoff delay before the first retry; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// Logger receives connection and retry events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Queue implements core.Queue on top of a Redis list per queue name.
type Queue struct {
	*core.LoggerAdapter
	client      *redis.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Compile-time interface compliance check.
var _ core.Queue = (*Queue)(nil)

// New creates a Redis queue client for the given address (host:port).
func New(addr string, optFns ...func(o *Options)) *Queue {
	opts := Options{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	return &Queue{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		client:        client,
		maxAttempts:   opts.MaxAttempts,
		baseDelay:     opts.BaseDelay,
		maxDelay:      opts.MaxDelay,
	}
}

// Push appends value to the named list (RPUSH).
func (q *Queue) Push(ctx context.Context, name string, value []byte) error {
	return q.withRetry(ctx, "rpush", func() error {
		return q.client.RPush(ctx, name, value).Err()
	})
}

// Len returns the length of the named list (LLEN).
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	var n int64

	err := q.withRetry(ctx, "llen", func() error {
		var opErr error
		n, opErr = q.client.LLen(ctx, name).Result()
		return opErr
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}

// Ping checks connectivity to the Redis server.
func (q *Queue) Ping(ctx context.Context) error {
	return q.withRetry(ctx, "ping", func() error {
		return q.client.Ping(ctx).Err()
	})
}

// Close releases the underlying connection pool.
func (q *Queue) Close() error {
	return q.client.Close()
}

// withRetry executes op up to maxAttempts times, sleeping with exponential
// backoff between attempts. Context cancellation aborts the wait.
func (q *Queue) withRetry(ctx context.Context, operation string, op func() error) error {
	var err error

	for attempt := 0; attempt < q.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := q.backoff(attempt - 1)
			q.LogInfo("queue.redis.retry", "operation", operation, "attempt", attempt+1, "delay", delay.String())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err = op(); err == nil {
			if attempt > 0 {
				q.LogInfo("queue.redis.recovered", "operation", operation, "attempt", attempt+1)
			}
			return nil
		}

		q.LogWarn("queue.redis.operation_failed", "operation", operation, "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("redis %s failed after %d attempts: %w", operation, q.maxAttempts, err)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.baseDelay * time.Duration(1<<attempt)
	if delay > q.maxDelay {
		delay = q.maxDelay
	}

	return delay
}
