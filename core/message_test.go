package core

import "testing"

func TestMessage_Constructors(t *testing.T) {
	user := NewUserMessage("hi")
	if user.Role != RoleUser || user.Text() != "hi" {
		t.Fatalf("unexpected user message: %+v", user)
	}
	if user.ID == "" {
		t.Error("message should get a generated ID")
	}

	call := ToolCall{ID: "c1", Name: "get_weather", Arguments: map[string]any{"city": "Berlin"}}
	assistant := NewAssistantMessage("checking", call)
	if !assistant.HasToolCalls() {
		t.Fatal("assistant message should carry the tool call")
	}
	calls := assistant.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "get_weather" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if assistant.Text() != "checking" {
		t.Errorf("expected text part, got %q", assistant.Text())
	}

	empty := NewAssistantMessage("", call)
	for _, part := range empty.Parts {
		if _, ok := part.(TextPart); ok {
			t.Error("empty text should not produce a TextPart")
		}
	}

	toolMsg := NewToolResultMessage(ToolResult{CallID: "c1", Name: "get_weather", Content: "sunny"})
	results := toolMsg.ToolResults()
	if toolMsg.Role != RoleTool || len(results) != 1 || results[0].Content != "sunny" {
		t.Fatalf("unexpected tool message: %+v", toolMsg)
	}
}

func TestMessage_CloneIsolatesArguments(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "t", Arguments: map[string]any{"k": "v"}}
	msg := NewAssistantMessage("", call)

	clone := msg.Clone()
	clone.ToolCalls()[0].Arguments["k"] = "mutated"
	if msg.ToolCalls()[0].Arguments["k"] != "v" {
		t.Error("clone should not alias argument maps")
	}
}

func TestToolCall_ArgumentsJSON(t *testing.T) {
	if got := (ToolCall{}).ArgumentsJSON(); got != "{}" {
		t.Errorf("nil arguments should serialize to empty object, got %q", got)
	}
	call := ToolCall{Arguments: map[string]any{"city": "Berlin"}}
	if got := call.ArgumentsJSON(); got != `{"city":"Berlin"}` {
		t.Errorf("unexpected serialization: %q", got)
	}
}
