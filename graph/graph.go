package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/metrics"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/tool"
)

// Event kinds emitted during a graph run.
const (
	// EventMessage carries the assistant's text for one model turn.
	EventMessage = "message"
	// EventProgress carries a present-continuous narration of a tool call
	// that is about to execute.
	EventProgress = "progress"
	// EventInterrupt announces a tool call awaiting a human decision. The
	// run is suspended after the interrupt events of the turn are emitted.
	EventInterrupt = "interrupt"
)

// Event is one output of a graph run. ToolName is set on interrupt events
// only.
type Event struct {
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	ToolName string `json:"toolName,omitempty"`
}

// rejectedResultContent is the synthetic result appended for every call of a
// rejected batch. The wording tells the model the refusal is not a tool
// failure.
const rejectedResultContent = "Tool call was cancelled by the user. The tool remains available and may be proposed again when appropriate."

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxModelCalls bounds the agent/tools loop of a single run. Zero means
	// unlimited.
	MaxModelCalls int

	// EventBufferSize sets channel buffering for emitted events.
	EventBufferSize int

	// Logger receives graph lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records model, tool and decision outcomes. Optional.
	Metrics *metrics.Metrics
}

// Graph drives conversational turns through the agent state machine:
//
//	agent -> END                              (no tool calls)
//	agent -> human_confirmation               (calls outside the whitelist suspend the run)
//	agent -> progress_report -> context_injection -> tools -> agent
//
// A suspension persists a PendingDecision on the thread; Resume picks the
// batch up again. Whitelisted calls skip the confirmation state entirely.
//
// Model and tool errors are not handled inside the states. They surface on
// the error channel so the orchestrator can turn them into a single
// user-visible error chunk.
type Graph struct {
	*core.LoggerAdapter
	metrics *metrics.Metrics

	model model.Model
	tools map[string]tool.Tool
	defs  []model.ToolDefinition
	store core.ThreadStore

	maxModelCalls   int
	eventBufferSize int
}

// New compiles a graph over the given tool set. The thread store is shared
// with the caller: recompiling with a changed tool set but the same store
// keeps all conversation history alive.
func New(m model.Model, tools []tool.Tool, store core.ThreadStore, optFns ...func(o *Options)) *Graph {
	opts := Options{
		MaxModelCalls:   25,
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	byName := make(map[string]tool.Tool, len(tools))
	defs := make([]model.ToolDefinition, 0, len(tools))

	for _, t := range tools {
		byName[t.Name()] = t
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return &Graph{
		LoggerAdapter:   core.NewLoggerAdapter(opts.Logger),
		metrics:         opts.Metrics,
		model:           m,
		tools:           byName,
		defs:            defs,
		store:           store,
		maxModelCalls:   opts.MaxModelCalls,
		eventBufferSize: opts.EventBufferSize,
	}
}

// ToolNames returns the names of the tools the graph was compiled with, in
// compile order.
func (g *Graph) ToolNames() []string {
	names := make([]string, 0, len(g.defs))
	for _, def := range g.defs {
		names = append(names, def.Function.Name)
	}

	return names
}

// Run starts a new turn: the whitelist is merged into the thread, the user
// message is appended, and the state machine runs until END or a suspension.
// The event channel is closed when the run ends; the error channel carries at
// most one error.
//
// A thread that is still suspended when a fresh message arrives has its
// pending decision discarded: the new message supersedes the stalled
// confirmation.
func (g *Graph) Run(ctx context.Context, thread *core.Thread, userMessage string, whitelist []string) (<-chan Event, <-chan error) {
	events := make(chan Event, g.eventBufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		if p := thread.TakePending(); p != nil {
			g.LogWarn("graph.pending.discarded", "thread_id", thread.Key.String(), "pending_tools", p.PendingNames)
		}

		thread.AllowTools(whitelist...)
		thread.AppendMessages(core.NewUserMessage(userMessage))

		if err := g.store.Save(thread); err != nil {
			errs <- fmt.Errorf("save thread: %w", err)
			return
		}

		if err := g.loop(ctx, thread, core.NewModelLimiter(g.maxModelCalls), events); err != nil {
			errs <- err
		}
	}()

	return events, errs
}

// Resume continues a suspended turn with a human decision. The whitelist
// update is merged before the verdict is evaluated, so a rejection still
// records the update. A rejected batch gets synthetic results for every call
// and the turn ends; an approved batch executes and the loop continues.
func (g *Graph) Resume(ctx context.Context, thread *core.Thread, decision core.Decision) (<-chan Event, <-chan error) {
	events := make(chan Event, g.eventBufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		pending := thread.TakePending()
		if pending == nil {
			errs <- fmt.Errorf("thread %s has no pending decision to resume", thread.Key.String())
			return
		}

		thread.AllowTools(decision.WhitelistUpdate...)
		g.metrics.RecordDecision(decision.Approved)

		if !decision.Approved {
			g.LogInfo("graph.decision.rejected", "thread_id", thread.Key.String(), "tools", pending.PendingNames)
			g.rejectCalls(thread, pending.Calls)

			if err := g.store.Save(thread); err != nil {
				errs <- fmt.Errorf("save thread: %w", err)
			}

			return
		}

		g.LogInfo("graph.decision.approved", "thread_id", thread.Key.String(), "tools", pending.PendingNames)

		if err := g.store.Save(thread); err != nil {
			errs <- fmt.Errorf("save thread: %w", err)
			return
		}

		if err := g.executeCalls(ctx, thread, pending.Calls, events); err != nil {
			errs <- err
			return
		}

		if err := g.loop(ctx, thread, core.NewModelLimiter(g.maxModelCalls), events); err != nil {
			errs <- err
		}
	}()

	return events, errs
}

// loop runs agent turns until the model stops requesting tools or a
// confirmation suspends the run.
func (g *Graph) loop(ctx context.Context, thread *core.Thread, limiter *core.ModelLimiter, events chan<- Event) error {
	for {
		if err := limiter.Increment(); err != nil {
			return err
		}

		msg, err := g.agentTurn(ctx, thread, events)
		if err != nil {
			return err
		}

		calls := msg.ToolCalls()
		if len(calls) == 0 {
			return nil
		}

		if names := g.pendingNames(thread, calls); len(names) > 0 {
			return g.suspend(ctx, thread, calls, names, events)
		}

		if err := g.executeCalls(ctx, thread, calls, events); err != nil {
			return err
		}
	}
}

// agentTurn performs one model call over the full conversation log, appends
// the assistant message to the thread and emits its text.
func (g *Graph) agentTurn(ctx context.Context, thread *core.Thread, events chan<- Event) (core.Message, error) {
	resp, err := g.generate(ctx, model.Request{
		Instructions: mainSystemPrompt,
		Messages:     thread.History(),
		Tools:        g.defs,
	})
	if err != nil {
		return core.Message{}, err
	}

	msg := resp.Message
	thread.AppendMessages(msg)

	if err := g.store.Save(thread); err != nil {
		return core.Message{}, fmt.Errorf("save thread: %w", err)
	}

	if text := strings.TrimSpace(msg.Text()); text != "" {
		if err := g.emit(ctx, events, Event{Kind: EventMessage, Content: text}); err != nil {
			return core.Message{}, err
		}
	}

	return msg, nil
}

// pendingNames returns the names of the calls that are not whitelisted, in
// call order without duplicates. An empty result means the batch can execute
// without confirmation.
func (g *Graph) pendingNames(thread *core.Thread, calls []core.ToolCall) []string {
	var names []string

	seen := make(map[string]struct{}, len(calls))
	for _, call := range calls {
		if thread.IsAllowed(call.Name) {
			continue
		}

		if _, ok := seen[call.Name]; ok {
			continue
		}

		seen[call.Name] = struct{}{}
		names = append(names, call.Name)
	}

	return names
}

// suspend implements the confirmation state: one interrupt event per
// non-whitelisted call, then the whole batch is persisted as a
// PendingDecision and the run ends. Whitelisted calls of the same turn stay
// in the batch so an approval executes everything together.
func (g *Graph) suspend(ctx context.Context, thread *core.Thread, calls []core.ToolCall, names []string, events chan<- Event) error {
	for _, call := range calls {
		if thread.IsAllowed(call.Name) {
			continue
		}

		prompt, err := g.narrate(ctx, humanConfirmationPrompt, call)
		if err != nil {
			return err
		}

		g.metrics.RecordInterrupt(call.Name)

		if err := g.emit(ctx, events, Event{Kind: EventInterrupt, Content: prompt, ToolName: call.Name}); err != nil {
			return err
		}
	}

	cloned := make([]core.ToolCall, 0, len(calls))
	for _, call := range calls {
		cloned = append(cloned, call.Clone())
	}

	thread.SetPending(&core.PendingDecision{
		Calls:        cloned,
		PendingNames: names,
		CreatedAt:    time.Now(),
	})

	if err := g.store.Save(thread); err != nil {
		return fmt.Errorf("save thread: %w", err)
	}

	g.LogInfo("graph.run.suspended", "thread_id", thread.Key.String(), "pending_tools", names)

	return nil
}

// executeCalls runs an approved batch: narrate every call, inject runtime
// context, execute in order, then append the results as a tool message.
func (g *Graph) executeCalls(ctx context.Context, thread *core.Thread, calls []core.ToolCall, events chan<- Event) error {
	for _, call := range calls {
		narration, err := g.narrate(ctx, progressReportPrompt, call)
		if err != nil {
			return err
		}

		if err := g.emit(ctx, events, Event{Kind: EventProgress, Content: narration}); err != nil {
			return err
		}
	}

	results := make([]core.ToolResult, 0, len(calls))
	for _, call := range calls {
		result, err := g.executeTool(ctx, g.injectContext(thread, call))
		if err != nil {
			return err
		}

		results = append(results, result)
	}

	thread.AppendMessages(core.NewToolResultMessage(results...))

	if err := g.store.Save(thread); err != nil {
		return fmt.Errorf("save thread: %w", err)
	}

	return nil
}

// rejectCalls implements the reject_action state. Every call of the batch
// receives a synthetic result and none executes; rejection is all or nothing.
func (g *Graph) rejectCalls(thread *core.Thread, calls []core.ToolCall) {
	results := make([]core.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, core.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: rejectedResultContent,
		})
	}

	thread.AppendMessages(core.NewToolResultMessage(results...))
}

// injectContext overwrites identity-bearing arguments with the authoritative
// runtime values from the thread. Models and remote tool schemas cannot be
// trusted to carry member or channel identity; a spoofed value is silently
// replaced, never validated.
func (g *Graph) injectContext(thread *core.Thread, call core.ToolCall) core.ToolCall {
	injected := call.Clone()

	for name, old := range injected.Arguments {
		var value string

		switch name {
		case "member_id", "memberId":
			value = thread.Key.MemberID
		case "channel_id", "channelId":
			value = thread.Channel()
		default:
			continue
		}

		injected.Arguments[name] = value
		g.LogInfo("graph.context.injected", "tool", call.Name, "argument", name, "old", old, "new", value)
	}

	return injected
}

// executeTool runs a single call against the registered tool. An unknown
// name is a model hallucination and fails the turn.
func (g *Graph) executeTool(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	t, ok := g.tools[call.Name]
	if !ok {
		g.metrics.RecordToolExecution(call.Name, "unknown", 0)
		return core.ToolResult{}, fmt.Errorf("unknown tool %q", call.Name)
	}

	start := time.Now()
	out, err := t.Call(ctx, call.Arguments)
	dur := time.Since(start)

	if err != nil {
		g.metrics.RecordToolExecution(call.Name, "error", dur.Seconds())
		return core.ToolResult{}, fmt.Errorf("tool %s: %w", call.Name, err)
	}

	g.metrics.RecordToolExecution(call.Name, "ok", dur.Seconds())
	g.LogDebug("graph.tool.executed", "tool", call.Name, "duration_ms", dur.Milliseconds())

	return core.ToolResult{CallID: call.ID, Name: call.Name, Content: stringifyResult(out)}, nil
}

// narrate asks the model to phrase a single tool call using the given
// instructions. The conversation log is not involved; narration calls do not
// count against the loop limiter.
func (g *Graph) narrate(ctx context.Context, instructions string, call core.ToolCall) (string, error) {
	resp, err := g.generate(ctx, model.Request{
		Instructions: instructions,
		Messages: []core.Message{
			core.NewUserMessage(fmt.Sprintf(toolCallPromptFormat, call.Name, call.Arguments)),
		},
	})
	if err != nil {
		return "", err
	}

	return resp.Message.Text(), nil
}

// generate runs one model call to completion and returns the final response.
func (g *Graph) generate(ctx context.Context, req model.Request) (*model.Response, error) {
	info := g.model.Info()
	start := time.Now()

	respCh, errCh := g.model.Generate(ctx, req)

	var final *model.Response

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if !resp.Partial {
				r := resp
				final = &r
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				g.metrics.RecordLLMRequest(info.Provider, info.Name, "error", time.Since(start).Seconds())
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if final == nil {
		g.metrics.RecordLLMRequest(info.Provider, info.Name, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("model %s closed its stream without a final response", info.Name)
	}

	g.metrics.RecordLLMRequest(info.Provider, info.Name, "ok", time.Since(start).Seconds())

	return final, nil
}

// emit sends an event unless the caller has gone away. Abandoned consumers
// cancel their context, so a full buffer never wedges the run goroutine.
func (g *Graph) emit(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stringifyResult renders a tool's return value for the message log. Strings
// pass through; everything else is serialized as JSON.
func stringifyResult(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprintf("%v", s)
		}

		return string(b)
	}
}
