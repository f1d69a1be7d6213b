package core

import "testing"

func TestThreadKey_String(t *testing.T) {
	key := ThreadKey{MemberID: "m1", ServerID: "s2", ConversationID: "c3"}
	if got := key.String(); got != "m1s2c3" {
		t.Fatalf("expected concatenated key, got %q", got)
	}
}

func TestThread_WhitelistAndClone(t *testing.T) {
	th := NewThread(ThreadKey{MemberID: "m", ServerID: "s", ConversationID: "c"})

	th.AllowTools("search-web", "get_weather", "")
	if !th.IsAllowed("search-web") || !th.IsAllowed("get_weather") {
		t.Fatalf("whitelist not applied: %+v", th.Whitelist)
	}
	if th.IsAllowed("") {
		t.Error("empty name should never be whitelisted")
	}

	clone := th.Clone()
	if clone == th {
		t.Error("Clone should be a different pointer")
	}

	clone.AllowTools("extra")
	if th.IsAllowed("extra") {
		t.Error("original should not have clone's new entry")
	}

	th.DisallowTools("search-web")
	if th.IsAllowed("search-web") {
		t.Error("DisallowTools should remove the entry")
	}

	names := th.AllowedTools()
	if len(names) != 1 || names[0] != "get_weather" {
		t.Fatalf("expected sorted remaining names, got %v", names)
	}
}

func TestThread_MessagesCopiedOnRead(t *testing.T) {
	th := NewThread(ThreadKey{MemberID: "m", ServerID: "s", ConversationID: "c"})
	th.AppendMessages(NewUserMessage("hi"), NewAssistantMessage("hello"))

	all := th.History()
	if len(all) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(all))
	}
	orig := all[0].Role
	all[0].Role = "changed"
	if th.History()[0].Role != orig {
		t.Error("message slice should be copied on read")
	}
}

func TestThread_PendingLifecycle(t *testing.T) {
	th := NewThread(ThreadKey{MemberID: "m", ServerID: "s", ConversationID: "c"})
	if th.IsSuspended() {
		t.Fatal("new thread should not be suspended")
	}
	if th.TakePending() != nil {
		t.Fatal("TakePending on idle thread should return nil")
	}

	call := ToolCall{ID: "call-1", Name: "get_weather", Arguments: map[string]any{"city": "Berlin"}}
	th.SetPending(&PendingDecision{Calls: []ToolCall{call}, PendingNames: []string{"get_weather"}})

	if !th.IsSuspended() {
		t.Fatal("thread should be suspended after SetPending")
	}

	peek := th.PendingDecision()
	peek.Calls[0].Arguments["city"] = "Paris"
	if th.Pending.Calls[0].Arguments["city"] != "Berlin" {
		t.Error("PendingDecision should return a deep copy")
	}

	taken := th.TakePending()
	if taken == nil || len(taken.Calls) != 1 {
		t.Fatalf("TakePending should return the stored decision, got %+v", taken)
	}
	if th.IsSuspended() {
		t.Error("thread should be idle after TakePending")
	}
}

func TestThread_CloneDeepCopiesPending(t *testing.T) {
	th := NewThread(ThreadKey{MemberID: "m", ServerID: "s", ConversationID: "c"})
	th.SetPending(&PendingDecision{
		Calls:        []ToolCall{{ID: "c1", Name: "t", Arguments: map[string]any{"k": "v"}}},
		PendingNames: []string{"t"},
	})

	clone := th.Clone()
	clone.Pending.Calls[0].Arguments["k"] = "mutated"
	if th.Pending.Calls[0].Arguments["k"] != "v" {
		t.Error("clone should not alias pending call arguments")
	}
}
