package core

import "strings"

// Chunk kinds as emitted on the streaming wire. A chunk with an empty Type
// carries an error or fallback notice.
const (
	ChunkTypeProgress  = "progress"
	ChunkTypeInterrupt = "interrupt"
	ChunkTypeUpdate    = "update"
)

// Chunk is one streamed unit of agent output. Content is human-readable
// text; ToolName is set only on interrupt chunks; Type tags progress,
// interrupt, and update chunks and is omitted on error and fallback chunks.
type Chunk struct {
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
	Type     string `json:"type,omitempty"`
}

// normalizeContent guarantees non-empty content ends with exactly one
// trailing newline. Empty content is passed through unchanged.
func normalizeContent(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimRight(s, "\n") + "\n"
}

// NewProgressChunk creates a chunk narrating a tool call that is about to
// execute.
func NewProgressChunk(content string) Chunk {
	return Chunk{Content: normalizeContent(content), Type: ChunkTypeProgress}
}

// NewInterruptChunk creates a chunk announcing a tool call that awaits a
// human decision.
func NewInterruptChunk(content, toolName string) Chunk {
	return Chunk{Content: normalizeContent(content), ToolName: toolName, Type: ChunkTypeInterrupt}
}

// NewUpdateChunk creates a chunk carrying the assistant's message text for
// one turn.
func NewUpdateChunk(content string) Chunk {
	return Chunk{Content: normalizeContent(content), Type: ChunkTypeUpdate}
}

// NewErrorChunk creates an untyped chunk carrying an error or fallback
// notice.
func NewErrorChunk(content string) Chunk {
	return Chunk{Content: normalizeContent(content)}
}
