package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/metrics"
)

// DefaultQueueKey is the queue list name change messages are pushed onto.
const DefaultQueueKey = "tools:updates"

// DefaultMaxBuffered bounds the in-memory retry buffer.
const DefaultMaxBuffered = 100

// ChangeMessage is the wire format for one tool inventory delta. Consumers
// read these off the queue to keep their own tool registries in sync.
type ChangeMessage struct {
	MessageID    string          `json:"messageId"`
	Timestamp    string          `json:"timestamp"`
	AddedTools   []core.ToolInfo `json:"addedTools"`
	RemovedTools []core.ToolInfo `json:"removedTools"`
	Source       string          `json:"source"`
}

// NewChangeMessage creates an immutable change record with a fresh id and an
// RFC 3339 UTC timestamp. Nil slices are normalized to empty so the JSON
// always carries arrays, never null.
func NewChangeMessage(added, removed []core.ToolInfo) *ChangeMessage {
	if added == nil {
		added = []core.ToolInfo{}
	}
	if removed == nil {
		removed = []core.ToolInfo{}
	}

	return &ChangeMessage{
		MessageID:    uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		AddedTools:   added,
		RemovedTools: removed,
		Source:       "agent",
	}
}

// Options configures a Publisher.
type Options struct {
	// QueueKey is the queue list change messages are pushed onto.
	QueueKey string

	// MaxBuffered bounds the retry buffer. When it is full the oldest message
	// is dropped to make room, with a logged warning.
	MaxBuffered int

	// Logger receives publish lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records publish outcomes, latency and buffer size. Optional.
	Metrics *metrics.Metrics
}

// Publisher announces tool inventory deltas to a durable queue.
//
// A publish is one synchronous push. On success any previously buffered
// messages are flushed in strict FIFO order, stopping at the first failure so
// the consumer never observes reordered deltas. On failure the message lands
// in a bounded in-memory buffer for a later flush; the caller is never
// blocked on a retry loop. RetryQueued gives operators a manual flush hook.
type Publisher struct {
	*core.LoggerAdapter
	metrics     *metrics.Metrics
	queue       core.Queue
	queueKey    string
	maxBuffered int

	mu        sync.Mutex
	buffer    []*ChangeMessage
	connected bool
}

// New creates a Publisher writing to the given queue.
func New(queue core.Queue, optFns ...func(o *Options)) *Publisher {
	opts := Options{
		QueueKey:    DefaultQueueKey,
		MaxBuffered: DefaultMaxBuffered,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Publisher{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		metrics:       opts.Metrics,
		queue:         queue,
		queueKey:      opts.QueueKey,
		maxBuffered:   opts.MaxBuffered,
		connected:     true,
	}
}

// PublishChanges announces added and removed tools. It returns true when the
// message reached the queue (or there was nothing to announce) and false when
// it was buffered for retry. Both lists empty is a successful no-op without
// any queue interaction.
func (p *Publisher) PublishChanges(ctx context.Context, added, removed []core.ToolInfo) bool {
	if len(added) == 0 && len(removed) == 0 {
		p.LogDebug("publisher.no_changes")
		return true
	}

	msg := NewChangeMessage(added, removed)

	p.LogInfo("publisher.publish",
		"messageId", msg.MessageID,
		"added", len(added),
		"removed", len(removed),
	)

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()

	if err := p.push(ctx, msg); err != nil {
		p.enqueue(msg)
		return false
	}

	p.metrics.RecordPublish("ok")
	p.metrics.RecordPublishLatency(time.Since(start).Seconds())

	p.flush(ctx)

	return true
}

// RetryQueued forces a flush attempt of the retry buffer and returns how many
// messages were published.
func (p *Publisher) RetryQueued(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) == 0 {
		p.LogDebug("publisher.buffer.empty")
		return 0
	}

	return p.flush(ctx)
}

// QueuedLen returns the number of messages waiting for retry.
func (p *Publisher) QueuedLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buffer)
}

// Connected reports the queue connection state as observed by the most recent
// push attempt.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

// push sends one message and tracks connection state transitions. Callers
// must hold p.mu.
func (p *Publisher) push(ctx context.Context, msg *ChangeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	if err := p.queue.Push(ctx, p.queueKey, payload); err != nil {
		if p.connected {
			p.connected = false
			p.LogWarn("publisher.queue.disconnected", "messageId", msg.MessageID, "error", err)
			p.metrics.RecordConnectionTransition(false)
		}
		return err
	}

	if !p.connected {
		p.connected = true
		p.LogInfo("publisher.queue.connected", "messageId", msg.MessageID)
		p.metrics.RecordConnectionTransition(true)
	}

	return nil
}

// enqueue buffers a message for retry, dropping the oldest entry when the
// buffer is full. Callers must hold p.mu.
func (p *Publisher) enqueue(msg *ChangeMessage) {
	if len(p.buffer) >= p.maxBuffered {
		dropped := p.buffer[0]
		p.buffer = p.buffer[1:]
		p.LogWarn("publisher.buffer.overflow",
			"droppedMessageId", dropped.MessageID,
			"maxBuffered", p.maxBuffered,
		)
		p.metrics.RecordPublish("dropped")
	}

	p.buffer = append(p.buffer, msg)

	p.LogInfo("publisher.buffer.queued", "messageId", msg.MessageID, "buffered", len(p.buffer))
	p.metrics.RecordPublish("buffered")
	p.metrics.SetPublishBufferSize(len(p.buffer))
}

// flush publishes buffered messages in FIFO order, stopping at the first
// failure so ordering is never violated. Callers must hold p.mu.
func (p *Publisher) flush(ctx context.Context) int {
	if len(p.buffer) == 0 {
		return 0
	}

	p.LogInfo("publisher.buffer.flush", "buffered", len(p.buffer))

	published := 0
	for len(p.buffer) > 0 {
		if err := p.push(ctx, p.buffer[0]); err != nil {
			break
		}
		p.buffer = p.buffer[1:]
		published++
	}

	p.metrics.SetPublishBufferSize(len(p.buffer))

	if len(p.buffer) > 0 {
		p.LogWarn("publisher.buffer.remaining", "published", published, "buffered", len(p.buffer))
	} else if published > 0 {
		p.LogInfo("publisher.buffer.drained", "published", published)
	}

	return published
}
