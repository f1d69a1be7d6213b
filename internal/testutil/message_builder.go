package testutil

import (
	"time"

	"github.com/hupe1980/agentgate/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().AssistantText("hello").ToolCall("c1", "get_weather", map[string]any{"city": "Berlin"}).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id          string
	role        string
	textParts   []string
	toolCalls   []core.ToolCall
	toolResults []core.ToolResult
	customParts []core.Part
	timestamp   *time.Time
}

// NewMessageBuilder creates a builder with default role "assistant".
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{role: core.RoleAssistant} }

// ID overrides the auto-generated message ID (chainable). Use mainly in tests where determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// Role sets the message role (chainable).
func (b *MessageBuilder) Role(r string) *MessageBuilder { b.role = r; return b }

// Timestamp overrides the auto-generated timestamp (chainable).
func (b *MessageBuilder) Timestamp(ts time.Time) *MessageBuilder { b.timestamp = &ts; return b }

// UserText appends a user role text part and sets role to user (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant role text part and sets role to assistant (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.textParts = append(b.textParts, t)
	return b
}

// SystemText appends a system role text part and sets role to system (chainable).
func (b *MessageBuilder) SystemText(t string) *MessageBuilder {
	b.role = core.RoleSystem
	b.textParts = append(b.textParts, t)
	return b
}

// ToolCall adds a tool call part with the provided id, name and decoded arguments (chainable).
func (b *MessageBuilder) ToolCall(id, name string, args map[string]any) *MessageBuilder {
	b.toolCalls = append(b.toolCalls, core.ToolCall{ID: id, Name: name, Arguments: args})
	return b
}

// ToolResult adds a tool result part representing tool execution output and sets role to tool (chainable).
func (b *MessageBuilder) ToolResult(callID, name, content string) *MessageBuilder {
	b.role = core.RoleTool
	b.toolResults = append(b.toolResults, core.ToolResult{CallID: callID, Name: name, Content: content})
	return b
}

// AddPart appends a custom content part (chainable).
func (b *MessageBuilder) AddPart(p core.Part) *MessageBuilder {
	b.customParts = append(b.customParts, p)
	return b
}

// Build constructs the core.Message value.
func (b *MessageBuilder) Build() core.Message {
	msg := core.Message{
		ID:        b.id,
		Role:      b.role,
		Timestamp: time.Now(),
	}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if b.timestamp != nil {
		msg.Timestamp = *b.timestamp
	}

	estimatedParts := len(b.textParts) + len(b.toolCalls) + len(b.toolResults) + len(b.customParts)
	parts := make([]core.Part, 0, estimatedParts)
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, call := range b.toolCalls {
		parts = append(parts, core.ToolCallPart{Call: call})
	}
	for _, res := range b.toolResults {
		parts = append(parts, core.ToolResultPart{Result: res})
	}
	parts = append(parts, b.customParts...)
	msg.Parts = parts

	return msg
}
