package testutil

import (
	"time"

	"github.com/hupe1980/agentgate/core"
)

// ThreadBuilder helps construct threads with fluent chaining for tests.
// Example:
//
//	th := NewThreadBuilder("m1", "s1", "c1").Allow("get_weather").Messages(msg1, msg2).Build()
type ThreadBuilder struct {
	key      core.ThreadKey
	channel  string
	allowed  []string
	messages []core.Message
	pending  *core.PendingDecision
}

// NewThreadBuilder creates a new builder for a thread with the given key
// components. Use chainable methods (Channel, Allow, Message, Messages,
// Pending) then call Build.
func NewThreadBuilder(memberID, serverID, conversationID string) *ThreadBuilder {
	return &ThreadBuilder{
		key: core.ThreadKey{MemberID: memberID, ServerID: serverID, ConversationID: conversationID},
	}
}

// Channel sets the reply channel on the resulting thread (chainable).
func (b *ThreadBuilder) Channel(id string) *ThreadBuilder {
	b.channel = id
	return b
}

// Allow whitelists tool names on the resulting thread (chainable).
func (b *ThreadBuilder) Allow(names ...string) *ThreadBuilder {
	b.allowed = append(b.allowed, names...)
	return b
}

// Message appends a single message to the thread history (chainable).
func (b *ThreadBuilder) Message(msg core.Message) *ThreadBuilder {
	b.messages = append(b.messages, msg)
	return b
}

// Messages appends multiple messages to the thread history (chainable).
func (b *ThreadBuilder) Messages(msgs ...core.Message) *ThreadBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Pending marks the resulting thread as suspended on the given calls (chainable).
func (b *ThreadBuilder) Pending(calls []core.ToolCall, pendingNames ...string) *ThreadBuilder {
	b.pending = &core.PendingDecision{Calls: calls, PendingNames: pendingNames, CreatedAt: time.Now()}
	return b
}

// Build returns a *core.Thread with pre-populated state.
func (b *ThreadBuilder) Build() *core.Thread {
	th := core.NewThread(b.key)

	if b.channel != "" {
		th.SetChannelID(b.channel)
	}
	if len(b.allowed) > 0 {
		th.AllowTools(b.allowed...)
	}
	if len(b.messages) > 0 {
		th.AppendMessages(b.messages...)
	}
	if b.pending != nil {
		th.SetPending(b.pending)
	}

	return th
}
