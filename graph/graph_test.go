package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/internal/testutil"
	"github.com/hupe1980/agentgate/session"
	"github.com/hupe1980/agentgate/tool"
)

// collect drains both channels of a run and returns the events plus the
// terminal error, if any.
func collect(t *testing.T, events <-chan Event, errs <-chan error) ([]Event, error) {
	t.Helper()

	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out, <-errs
}

func testThread() *core.Thread {
	return core.NewThread(core.ThreadKey{MemberID: "123", ServerID: "456", ConversationID: "789"})
}

func weatherCall(id string, extra map[string]any) core.ToolCall {
	args := map[string]any{"city": "Berlin"}
	for k, v := range extra {
		args[k] = v
	}
	return core.ToolCall{ID: id, Name: "get_weather", Arguments: args}
}

// weatherTool counts executions and captures the arguments of the last call.
func weatherTool(execs *int, lastArgs *map[string]any) tool.Tool {
	return tool.NewFunctionTool("get_weather", "Get the current weather for a city", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []any{"city"},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		*execs++
		*lastArgs = args
		return "sunny, 22°C", nil
	})
}

func emailCall(id string) core.ToolCall {
	return core.ToolCall{ID: id, Name: "send_email", Arguments: map[string]any{"to": "ops@example.com"}}
}

func emailTool(execs *int) tool.Tool {
	return tool.NewFunctionTool("send_email", "Send an email", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{"type": "string"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		*execs++
		return "sent", nil
	})
}

func TestRunPlainReply(t *testing.T) {
	m := testutil.NewScriptedModel().Reply("Hello! How can I help?")
	store := session.NewInMemoryStore()
	g := New(m, nil, store)
	thread := testThread()

	events, errs := g.Run(context.Background(), thread, "hi", nil)

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(got), got)
	}
	if got[0].Kind != EventMessage || got[0].Content != "Hello! How can I help?" {
		t.Errorf("unexpected event: %+v", got[0])
	}

	if len(thread.History()) != 2 {
		t.Errorf("expected user + assistant message, got %d", len(thread.History()))
	}

	persisted, err := store.Get(thread.Key)
	if err != nil {
		t.Fatalf("thread not persisted: %v", err)
	}
	if len(persisted.History()) != 2 {
		t.Errorf("expected persisted history of 2, got %d", len(persisted.History()))
	}
}

func TestRunWhitelistedToolRoundTrip(t *testing.T) {
	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", nil)).
		Reply("Checking the weather in Berlin...").
		Reply("It is sunny in Berlin at 22 degrees.")

	var execs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, session.NewInMemoryStore())
	thread := testThread()

	events, errs := g.Run(context.Background(), thread, "what is the weather in berlin", []string{"get_weather"})

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected progress + message events, got %+v", got)
	}
	if got[0].Kind != EventProgress || got[0].Content != "Checking the weather in Berlin..." {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Kind != EventMessage || got[1].Content != "It is sunny in Berlin at 22 degrees." {
		t.Errorf("unexpected second event: %+v", got[1])
	}

	if execs != 1 {
		t.Errorf("expected 1 tool execution, got %d", execs)
	}
	if thread.IsSuspended() {
		t.Error("whitelisted call must not suspend the run")
	}

	// user, assistant(call), tool result, assistant
	if len(thread.History()) != 4 {
		t.Errorf("expected 4 messages, got %d", len(thread.History()))
	}
}

func TestRunSuspendsOnNonWhitelistedCall(t *testing.T) {
	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", nil)).
		Reply("Should I look up the weather in Berlin?")

	var execs int
	var lastArgs map[string]any
	store := session.NewInMemoryStore()
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, store)
	thread := testThread()

	events, errs := g.Run(context.Background(), thread, "what is the weather in berlin", nil)

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one interrupt event, got %+v", got)
	}
	if got[0].Kind != EventInterrupt || got[0].ToolName != "get_weather" {
		t.Errorf("unexpected event: %+v", got[0])
	}
	if got[0].Content != "Should I look up the weather in Berlin?" {
		t.Errorf("unexpected interrupt content: %q", got[0].Content)
	}

	if execs != 0 {
		t.Errorf("no tool may execute before the decision, got %d executions", execs)
	}
	if !thread.IsSuspended() {
		t.Fatal("expected thread to be suspended")
	}

	pending := thread.PendingDecision()
	if len(pending.Calls) != 1 || pending.Calls[0].ID != "call-1" {
		t.Errorf("unexpected pending calls: %+v", pending.Calls)
	}
	if len(pending.PendingNames) != 1 || pending.PendingNames[0] != "get_weather" {
		t.Errorf("unexpected pending names: %v", pending.PendingNames)
	}

	// The suspension must be durable, not an in-process artifact.
	persisted, err := store.Get(thread.Key)
	if err != nil {
		t.Fatalf("thread not persisted: %v", err)
	}
	if !persisted.IsSuspended() {
		t.Error("expected persisted thread to carry the pending decision")
	}
}

func TestResumeApprovedExecutesBatch(t *testing.T) {
	thread := testutil.NewThreadBuilder("123", "456", "789").
		Messages(
			core.NewUserMessage("what is the weather in berlin"),
			core.NewAssistantMessage("", weatherCall("call-1", nil)),
		).
		Pending([]core.ToolCall{weatherCall("call-1", nil)}, "get_weather").
		Build()

	m := testutil.NewScriptedModel().
		Reply("Checking the weather in Berlin...").
		Reply("It is sunny in Berlin.")

	var execs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, session.NewInMemoryStore())

	events, errs := g.Resume(context.Background(), thread, core.Decision{Approved: true})

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Kind != EventProgress || got[1].Kind != EventMessage {
		t.Fatalf("expected progress + message events, got %+v", got)
	}

	if execs != 1 {
		t.Errorf("expected 1 tool execution, got %d", execs)
	}
	if thread.IsSuspended() {
		t.Error("expected pending decision to be cleared")
	}
}

func TestResumeRejectedSkipsExecution(t *testing.T) {
	thread := testutil.NewThreadBuilder("123", "456", "789").
		Messages(
			core.NewUserMessage("what is the weather in berlin"),
			core.NewAssistantMessage("", weatherCall("call-1", nil)),
		).
		Pending([]core.ToolCall{weatherCall("call-1", nil)}, "get_weather").
		Build()

	m := testutil.NewScriptedModel()

	var execs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, session.NewInMemoryStore())

	events, errs := g.Resume(context.Background(), thread, core.Decision{
		Approved:        false,
		WhitelistUpdate: []string{"get_weather"},
	})

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("rejection must not emit events, got %+v", got)
	}

	if execs != 0 {
		t.Errorf("rejected call must not execute, got %d executions", execs)
	}
	if m.CallCount() != 0 {
		t.Errorf("rejection must not call the model, got %d calls", m.CallCount())
	}

	// The whitelist update is recorded even though the batch was rejected.
	if !thread.IsAllowed("get_weather") {
		t.Error("expected whitelist update to be merged on rejection")
	}
	if thread.IsSuspended() {
		t.Error("expected pending decision to be cleared")
	}

	history := thread.History()
	last := history[len(history)-1]
	results := last.ToolResults()
	if len(results) != 1 {
		t.Fatalf("expected one synthetic result, got %+v", results)
	}
	if results[0].CallID != "call-1" || results[0].Content != rejectedResultContent {
		t.Errorf("unexpected synthetic result: %+v", results[0])
	}
}

func TestResumeWithoutPendingFails(t *testing.T) {
	g := New(testutil.NewScriptedModel(), nil, session.NewInMemoryStore())

	events, errs := g.Resume(context.Background(), testThread(), core.Decision{Approved: true})

	got, err := collect(t, events, errs)
	if err == nil || !strings.Contains(err.Error(), "no pending decision") {
		t.Fatalf("expected no-pending error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %+v", got)
	}
}

func TestRunDiscardsStalePendingDecision(t *testing.T) {
	thread := testutil.NewThreadBuilder("123", "456", "789").
		Pending([]core.ToolCall{weatherCall("call-1", nil)}, "get_weather").
		Build()

	m := testutil.NewScriptedModel().Reply("It is noon.")
	g := New(m, nil, session.NewInMemoryStore())

	events, errs := g.Run(context.Background(), thread, "never mind, what time is it", nil)

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Kind != EventMessage {
		t.Fatalf("expected one message event, got %+v", got)
	}
	if thread.IsSuspended() {
		t.Error("expected stale pending decision to be discarded")
	}
}

func TestContextInjectionOverwritesIdentityArguments(t *testing.T) {
	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", map[string]any{"member_id": "spoofed", "channelId": "also-spoofed"})).
		Reply("Checking the weather...").
		Reply("Done.")

	var execs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, session.NewInMemoryStore())

	thread := testThread()
	thread.SetChannelID("chan-42")

	events, errs := g.Run(context.Background(), thread, "weather please", []string{"get_weather"})

	if _, err := collect(t, events, errs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lastArgs["member_id"] != "123" {
		t.Errorf("expected member_id to be overwritten with %q, got %v", "123", lastArgs["member_id"])
	}
	if lastArgs["channelId"] != "chan-42" {
		t.Errorf("expected channelId to be overwritten with %q, got %v", "chan-42", lastArgs["channelId"])
	}
	if lastArgs["city"] != "Berlin" {
		t.Errorf("expected untouched argument to pass through, got %v", lastArgs["city"])
	}
}

func TestRunStopsAtModelCallLimit(t *testing.T) {
	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", nil)).
		Reply("Checking...").
		Reply("", weatherCall("call-2", nil)).
		Reply("Checking again...")

	var execs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&execs, &lastArgs)}, session.NewInMemoryStore(), func(o *Options) {
		o.MaxModelCalls = 2
	})

	events, errs := g.Run(context.Background(), testThread(), "loop forever", []string{"get_weather"})

	_, err := collect(t, events, errs)
	if err == nil || !strings.Contains(err.Error(), "exceeded max model calls") {
		t.Fatalf("expected model call limit error, got %v", err)
	}
	if execs != 2 {
		t.Errorf("expected 2 tool executions before the limit, got %d", execs)
	}
}

func TestModelErrorSurfacesOnErrorChannel(t *testing.T) {
	m := testutil.NewScriptedModel().Fail(errors.New("rate limited"))
	g := New(m, nil, session.NewInMemoryStore())

	events, errs := g.Run(context.Background(), testThread(), "hi", nil)

	got, err := collect(t, events, errs)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected model error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %+v", got)
	}
}

func TestToolErrorSurfacesOnErrorChannel(t *testing.T) {
	failing := tool.NewFunctionTool("get_weather", "Get the weather", map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("api down")
	})

	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", nil)).
		Reply("Checking...")

	g := New(m, []tool.Tool{failing}, session.NewInMemoryStore())

	events, errs := g.Run(context.Background(), testThread(), "weather please", []string{"get_weather"})

	got, err := collect(t, events, errs)
	if err == nil || !strings.Contains(err.Error(), "api down") {
		t.Fatalf("expected tool error, got %v", err)
	}
	if len(got) != 1 || got[0].Kind != EventProgress {
		t.Errorf("expected the progress event before the failure, got %+v", got)
	}
}

func TestSuspendBatchKeepsWhitelistedCalls(t *testing.T) {
	m := testutil.NewScriptedModel().
		Reply("", weatherCall("call-1", nil), emailCall("call-2")).
		Reply("Should I send an email to ops@example.com?")

	var weatherExecs, emailExecs int
	var lastArgs map[string]any
	g := New(m, []tool.Tool{weatherTool(&weatherExecs, &lastArgs), emailTool(&emailExecs)}, session.NewInMemoryStore())
	thread := testThread()

	events, errs := g.Run(context.Background(), thread, "weather then email ops", []string{"get_weather"})

	got, err := collect(t, events, errs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Kind != EventInterrupt || got[0].ToolName != "send_email" {
		t.Fatalf("expected a single interrupt for send_email, got %+v", got)
	}

	pending := thread.PendingDecision()
	if len(pending.Calls) != 2 {
		t.Fatalf("expected the whole batch to be pending, got %+v", pending.Calls)
	}
	if len(pending.PendingNames) != 1 || pending.PendingNames[0] != "send_email" {
		t.Errorf("unexpected pending names: %v", pending.PendingNames)
	}
	if weatherExecs != 0 || emailExecs != 0 {
		t.Errorf("no call of a suspended batch may execute, got weather=%d email=%d", weatherExecs, emailExecs)
	}

	// Rejecting the batch rejects the whitelisted call too.
	modelCallsBefore := m.CallCount()

	events, errs = g.Resume(context.Background(), thread, core.Decision{Approved: false})
	if _, err := collect(t, events, errs); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}

	if weatherExecs != 0 || emailExecs != 0 {
		t.Errorf("rejection is all-or-nothing, got weather=%d email=%d", weatherExecs, emailExecs)
	}
	if m.CallCount() != modelCallsBefore {
		t.Errorf("rejection must not call the model")
	}

	history := thread.History()
	results := history[len(history)-1].ToolResults()
	if len(results) != 2 {
		t.Fatalf("expected synthetic results for both calls, got %+v", results)
	}
	for _, res := range results {
		if res.Content != rejectedResultContent {
			t.Errorf("unexpected synthetic result: %+v", res)
		}
	}
}
