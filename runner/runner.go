package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/discovery"
	"github.com/hupe1980/agentgate/graph"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/metrics"
)

// DefaultResyncTimeout bounds an on-demand discovery pass triggered by a
// resync request.
const DefaultResyncTimeout = 10 * time.Second

// Chunk texts that are part of the streaming wire contract.
const (
	invalidMessageContent = "Error: Provided message must be a non-empty string."
	noResponseContent     = "No response generated by the assistant."
)

// RunInput describes a new conversational turn.
type RunInput struct {
	// Thread identifies the conversation.
	Thread core.ThreadKey
	// ChannelID names the delivery channel for context injection. Optional.
	ChannelID string
	// Message is the user's utterance. Must be non-blank.
	Message string
	// Whitelist names tools to pre-approve for this thread before the turn
	// starts. Optional.
	Whitelist []string
}

// ResumeInput carries a human decision for a suspended turn, optionally
// followed by a fresh user message that starts a second pass on the same
// stream.
type ResumeInput struct {
	// Thread identifies the suspended conversation.
	Thread core.ThreadKey
	// ChannelID names the delivery channel for context injection. Optional.
	ChannelID string
	// Decision is the verdict on the pending tool-call batch.
	Decision core.Decision
	// Message is an optional follow-up utterance processed after the
	// decision pass.
	Message string
}

// ConversationRef identifies one conversation of a member.
type ConversationRef struct {
	ServerID       string `json:"serverId"`
	ConversationID string `json:"conversationId"`
}

// ConversationFailure reports why a conversation could not be updated.
type ConversationFailure struct {
	ServerID       string `json:"serverId"`
	ConversationID string `json:"conversationId"`
	Error          string `json:"error"`
}

// WhitelistUpdate requests a whitelist change across all listed
// conversations of one member.
type WhitelistUpdate struct {
	MemberID      string            `json:"memberId"`
	Conversations []ConversationRef `json:"conversations"`
	AddedTools    []string          `json:"addedTools"`
	RemovedTools  []string          `json:"removedTools"`
}

// WhitelistUpdateResult summarizes a bulk whitelist update. Conversations
// without stored state count as failures; the batch itself never aborts.
type WhitelistUpdateResult struct {
	MemberID             string                `json:"memberId"`
	TotalConversations   int                   `json:"totalConversations"`
	SuccessfulUpdates    int                   `json:"successfulUpdates"`
	FailedUpdates        int                   `json:"failedUpdates"`
	AddedTools           []string              `json:"addedTools"`
	RemovedTools         []string              `json:"removedTools"`
	UpdatedConversations []ConversationRef     `json:"updatedConversations"`
	FailedConversations  []ConversationFailure `json:"failedConversations"`
}

// ResyncResult is the tool inventory produced by an on-demand discovery
// pass.
type ResyncResult struct {
	Tools        []core.ToolInfo
	DiscoveredAt time.Time
}

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ResyncTimeout bounds an on-demand discovery pass. Defaults to
	// DefaultResyncTimeout.
	ResyncTimeout time.Duration
	// ChunkBufferSize sets channel buffering for streamed chunks.
	ChunkBufferSize int
	// Logger receives orchestration events. Defaults to NoOpLogger.
	Logger logging.Logger
	// Metrics records run outcomes and latencies. Optional.
	Metrics *metrics.Metrics
}

// Runner is the orchestration layer between the transport and the agent
// graph. It validates input, serializes work per thread, reshapes graph
// events into wire chunks, and owns the bulk whitelist and resync
// operations. Public methods are safe for concurrent use.
type Runner struct {
	*core.LoggerAdapter
	metrics *metrics.Metrics

	cache     *graph.Cache
	store     core.ThreadStore
	discovery *discovery.Service

	resyncTimeout   time.Duration
	chunkBufferSize int

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// New constructs a Runner with optional overrides.
func New(cache *graph.Cache, store core.ThreadStore, disc *discovery.Service, optFns ...func(o *Options)) *Runner {
	opts := Options{
		ResyncTimeout:   DefaultResyncTimeout,
		ChunkBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		LoggerAdapter:   core.NewLoggerAdapter(opts.Logger),
		metrics:         opts.Metrics,
		cache:           cache,
		store:           store,
		discovery:       disc,
		resyncTimeout:   opts.ResyncTimeout,
		chunkBufferSize: opts.ChunkBufferSize,
		threads:         make(map[string]*sync.Mutex),
	}
}

// ResyncTimeout returns the configured bound for on-demand discovery.
func (r *Runner) ResyncTimeout() time.Duration {
	return r.resyncTimeout
}

// Run processes one user message and streams the agent's output as chunks.
// The returned channel is closed when the turn completes, suspends on a
// pending decision, or fails. A blank message yields a single validation
// error chunk without touching thread state.
func (r *Runner) Run(ctx context.Context, input RunInput) <-chan core.Chunk {
	chunks := make(chan core.Chunk, r.chunkBufferSize)

	go func() {
		defer close(chunks)

		start := time.Now()

		message := strings.TrimSpace(input.Message)
		if message == "" {
			r.LogWarn("runner.run.invalid_message", "thread_id", input.Thread.String())
			r.send(ctx, chunks, core.NewErrorChunk(invalidMessageContent))
			r.metrics.RecordRun("run", "error", time.Since(start).Seconds())

			return
		}

		unlock := r.lockThread(input.Thread)
		defer unlock()

		status := "ok"

		g, thread, err := r.prepare(ctx, input.Thread, input.ChannelID, false)
		if err != nil {
			r.send(ctx, chunks, errorChunk(err))
			r.metrics.RecordRun("run", "error", time.Since(start).Seconds())

			return
		}

		events, errs := g.Run(ctx, thread, message, input.Whitelist)
		if !r.stream(ctx, chunks, events, errs) {
			status = "error"
		}

		r.metrics.RecordRun("run", status, time.Since(start).Seconds())
	}()

	return chunks
}

// Resume applies a human decision to a suspended turn and streams the
// resulting chunks. When input.Message is non-blank a second full pass runs
// on the same stream after the decision pass; an error in the decision pass
// does not cancel the follow-up pass.
func (r *Runner) Resume(ctx context.Context, input ResumeInput) <-chan core.Chunk {
	chunks := make(chan core.Chunk, r.chunkBufferSize)

	go func() {
		defer close(chunks)

		start := time.Now()

		unlock := r.lockThread(input.Thread)
		defer unlock()

		status := "ok"

		g, thread, err := r.prepare(ctx, input.Thread, input.ChannelID, true)
		if err != nil {
			r.send(ctx, chunks, errorChunk(err))
			r.metrics.RecordRun("resume", "error", time.Since(start).Seconds())

			return
		}

		events, errs := g.Resume(ctx, thread, input.Decision)
		if !r.stream(ctx, chunks, events, errs) {
			status = "error"
		}

		if message := strings.TrimSpace(input.Message); message != "" {
			events, errs = g.Run(ctx, thread, message, nil)
			if !r.stream(ctx, chunks, events, errs) {
				status = "error"
			}
		}

		r.metrics.RecordRun("resume", status, time.Since(start).Seconds())
	}()

	return chunks
}

// UpdateWhitelists applies a whitelist change to every listed conversation
// of the member. Each conversation is updated independently; failures are
// collected instead of aborting the batch.
func (r *Runner) UpdateWhitelists(ctx context.Context, update WhitelistUpdate) WhitelistUpdateResult {
	result := WhitelistUpdateResult{
		MemberID:             update.MemberID,
		TotalConversations:   len(update.Conversations),
		AddedTools:           update.AddedTools,
		RemovedTools:         update.RemovedTools,
		UpdatedConversations: []ConversationRef{},
		FailedConversations:  []ConversationFailure{},
	}

	if result.AddedTools == nil {
		result.AddedTools = []string{}
	}

	if result.RemovedTools == nil {
		result.RemovedTools = []string{}
	}

	for _, ref := range update.Conversations {
		key := core.ThreadKey{
			MemberID:       update.MemberID,
			ServerID:       ref.ServerID,
			ConversationID: ref.ConversationID,
		}

		if err := r.updateWhitelist(key, update.AddedTools, update.RemovedTools); err != nil {
			result.FailedUpdates++
			result.FailedConversations = append(result.FailedConversations, ConversationFailure{
				ServerID:       ref.ServerID,
				ConversationID: ref.ConversationID,
				Error:          err.Error(),
			})

			r.LogWarn("runner.whitelist.update_failed", "thread_id", key.String(), "error", err)

			continue
		}

		result.SuccessfulUpdates++
		result.UpdatedConversations = append(result.UpdatedConversations, ref)
	}

	r.LogInfo("runner.whitelist.updated",
		"member_id", update.MemberID,
		"total", result.TotalConversations,
		"succeeded", result.SuccessfulUpdates,
		"failed", result.FailedUpdates,
	)

	return result
}

// Resync runs an on-demand discovery pass and returns the current tool
// inventory. It does not touch the change snapshot, so a later scheduled
// pass still reports any accumulated changes.
func (r *Runner) Resync(ctx context.Context, requestID string) (*ResyncResult, error) {
	start := time.Now()

	r.LogInfo("runner.resync.started", "request_id", requestID)

	ctx, cancel := context.WithTimeout(ctx, r.resyncTimeout)
	defer cancel()

	descriptors, err := r.discovery.Discover(ctx)
	if err != nil {
		r.metrics.RecordRun("resync", "error", time.Since(start).Seconds())
		r.LogError("runner.resync.failed", "request_id", requestID, "error", err)

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool discovery timed out after %s: %w", r.resyncTimeout, context.DeadlineExceeded)
		}

		return nil, err
	}

	tools := make([]core.ToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, d.Info())
	}

	r.metrics.RecordRun("resync", "ok", time.Since(start).Seconds())
	r.LogInfo("runner.resync.completed", "request_id", requestID, "tool_count", len(tools))

	return &ResyncResult{Tools: tools, DiscoveredAt: time.Now().UTC()}, nil
}

// prepare resolves the current graph and the thread for one pass. With
// mustExist set the thread is looked up instead of created, so resuming an
// unknown conversation fails with ErrNoState.
func (r *Runner) prepare(ctx context.Context, key core.ThreadKey, channelID string, mustExist bool) (*graph.Graph, *core.Thread, error) {
	g, err := r.cache.Graph(ctx)
	if err != nil {
		return nil, nil, err
	}

	var thread *core.Thread
	if mustExist {
		thread, err = r.store.Get(key)
	} else {
		thread, err = r.store.GetOrCreate(key)
	}

	if err != nil {
		return nil, nil, err
	}

	if channelID != "" {
		thread.SetChannelID(channelID)
	}

	return g, thread, nil
}

// stream forwards one graph pass to the chunk channel. It returns false when
// the pass ended with an error chunk. A pass that produced no content yields
// a single fallback chunk so callers never observe a silent stream.
func (r *Runner) stream(ctx context.Context, chunks chan<- core.Chunk, events <-chan graph.Event, errs <-chan error) bool {
	var content bool

	for ev := range events {
		var chunk core.Chunk

		switch ev.Kind {
		case graph.EventProgress:
			chunk = core.NewProgressChunk(ev.Content)
		case graph.EventInterrupt:
			chunk = core.NewInterruptChunk(ev.Content, ev.ToolName)
		default:
			chunk = core.NewUpdateChunk(ev.Content)
		}

		if chunk.Content != "" {
			content = true
		}

		if !r.send(ctx, chunks, chunk) {
			return false
		}
	}

	if err := <-errs; err != nil {
		r.LogError("runner.stream.failed", "error", err)
		r.send(ctx, chunks, errorChunk(err))

		return false
	}

	if !content {
		r.send(ctx, chunks, core.NewErrorChunk(noResponseContent))
	}

	return true
}

// send delivers a chunk unless the consumer's context is done.
func (r *Runner) send(ctx context.Context, chunks chan<- core.Chunk, chunk core.Chunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) updateWhitelist(key core.ThreadKey, added, removed []string) error {
	unlock := r.lockThread(key)
	defer unlock()

	thread, err := r.store.Get(key)
	if err != nil {
		return err
	}

	thread.AllowTools(added...)
	thread.DisallowTools(removed...)

	return r.store.Save(thread)
}

// lockThread serializes runs, resumes and whitelist updates that target the
// same conversation. Entries live for the process lifetime, like the
// conversation state itself.
func (r *Runner) lockThread(key core.ThreadKey) func() {
	r.mu.Lock()

	m, ok := r.threads[key.String()]
	if !ok {
		m = &sync.Mutex{}
		r.threads[key.String()] = m
	}

	r.mu.Unlock()

	m.Lock()

	return m.Unlock
}

func errorChunk(err error) core.Chunk {
	return core.NewErrorChunk("Error: " + err.Error())
}
