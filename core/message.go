package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles as they appear in thread state and provider requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a thread's conversation log. Parts carry the
// polymorphic content: text, tool calls issued by the assistant, and tool
// results fed back for the next model pass.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Parts     []Part    `json:"parts"`
}

// NewID generates a unique identifier for messages, runs, and tool calls.
func NewID() string {
	return uuid.NewString()
}

// NewSystemMessage creates a system message with text content.
func NewSystemMessage(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleSystem,
		Timestamp: time.Now(),
		Parts:     []Part{TextPart{Text: text}},
	}
}

// NewUserMessage creates a user message with text content.
func NewUserMessage(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Timestamp: time.Now(),
		Parts:     []Part{TextPart{Text: text}},
	}
}

// NewAssistantMessage creates an assistant message from text and any tool
// calls the model issued in the same turn. Empty text yields no TextPart.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	msg := Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
	}
	if text != "" {
		msg.Parts = append(msg.Parts, TextPart{Text: text})
	}
	for _, call := range calls {
		msg.Parts = append(msg.Parts, ToolCallPart{Call: call})
	}
	return msg
}

// NewToolResultMessage creates a tool message carrying one result per
// executed (or rejected) call.
func NewToolResultMessage(results ...ToolResult) Message {
	msg := Message{
		ID:        NewID(),
		Role:      RoleTool,
		Timestamp: time.Now(),
	}
	for _, res := range results {
		msg.Parts = append(msg.Parts, ToolResultPart{Result: res})
	}
	return msg
}

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if tp, ok := part.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns all tool calls carried by the message, in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, part := range m.Parts {
		if cp, ok := part.(ToolCallPart); ok {
			calls = append(calls, cp.Call)
		}
	}
	return calls
}

// ToolResults returns all tool results carried by the message, in order.
func (m Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, part := range m.Parts {
		if rp, ok := part.(ToolResultPart); ok {
			results = append(results, rp.Result)
		}
	}
	return results
}

// HasToolCalls reports whether the message carries at least one tool call.
func (m Message) HasToolCalls() bool {
	for _, part := range m.Parts {
		if _, ok := part.(ToolCallPart); ok {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the message. Tool call argument maps are
// copied so callers can mutate them without aliasing thread state.
func (m Message) Clone() Message {
	out := m
	out.Parts = make([]Part, 0, len(m.Parts))
	for _, part := range m.Parts {
		if cp, ok := part.(ToolCallPart); ok {
			out.Parts = append(out.Parts, ToolCallPart{Call: cp.Call.Clone()})
			continue
		}
		out.Parts = append(out.Parts, part)
	}
	return out
}
