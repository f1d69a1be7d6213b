package core

import "encoding/json"

// Part represents a polymorphic segment of role-based message content.
// Concrete part types implement the unexported isPart marker enabling a
// closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"` // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ToolCall describes a tool invocation requested by the assistant. Arguments
// are decoded key/value pairs rather than a raw JSON string so graph nodes can
// inspect and rewrite them with compile-time-checked field access.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ArgumentsJSON serializes the arguments map for providers that expect a raw
// JSON payload. A nil map serializes to an empty object.
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Clone returns a copy with an independent arguments map.
func (c ToolCall) Clone() ToolCall {
	out := ToolCall{ID: c.ID, Name: c.Name}
	if c.Arguments != nil {
		out.Arguments = make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// ToolCallPart wraps a ToolCall as a content part.
type ToolCallPart struct {
	Call ToolCall `json:"call"`
}

// isPart implements the Part interface for ToolCallPart.
func (ToolCallPart) isPart() {}

// ToolResult describes the outcome of a tool call. Content carries the
// serialized result (or a synthetic status text, e.g. for rejected calls).
type ToolResult struct {
	CallID  string `json:"callId"`  // Matches the originating ToolCall ID
	Name    string `json:"name"`    // Tool name
	Content string `json:"content"` // Result payload or status text
}

// ToolResultPart wraps a ToolResult as a content part.
type ToolResultPart struct {
	Result ToolResult `json:"result"`
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}
