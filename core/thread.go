package core

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoState indicates that no thread state exists for the requested key.
// The message text is part of the wire contract for change notifications
// that report a failed state lookup.
var ErrNoState = errors.New("No state found")

// ThreadKey identifies a conversation thread. The string form concatenates
// the three components without separators, matching the identifiers issued
// by upstream chat integrations.
type ThreadKey struct {
	MemberID       string `json:"memberId"`
	ServerID       string `json:"serverId"`
	ConversationID string `json:"conversationId"`
}

// String returns the canonical thread identifier.
func (k ThreadKey) String() string {
	return k.MemberID + k.ServerID + k.ConversationID
}

// PendingDecision is the serializable record of an assistant turn suspended
// on tool calls that require human approval. Calls holds every call from the
// suspended turn (whitelisted ones included) so a resume can execute the
// full batch; PendingNames lists only the names that triggered the
// suspension.
type PendingDecision struct {
	Calls        []ToolCall `json:"calls"`
	PendingNames []string   `json:"pendingNames"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Clone returns a deep copy of the pending decision.
func (p *PendingDecision) Clone() *PendingDecision {
	if p == nil {
		return nil
	}
	out := &PendingDecision{
		Calls:        make([]ToolCall, 0, len(p.Calls)),
		PendingNames: append([]string(nil), p.PendingNames...),
		CreatedAt:    p.CreatedAt,
	}
	for _, call := range p.Calls {
		out.Calls = append(out.Calls, call.Clone())
	}
	return out
}

// Decision is a human verdict on a pending tool-call batch. Approved applies
// to the batch as a whole; WhitelistUpdate names tools to persist as
// pre-approved for future turns regardless of the verdict.
type Decision struct {
	Approved        bool     `json:"approved"`
	WhitelistUpdate []string `json:"toolWhitelistUpdate,omitempty"`
}

// Thread holds the durable state of one conversation: the message log, the
// per-thread tool whitelist, and the pending decision when a turn is
// suspended. All mutations go through methods so concurrent readers see
// consistent state.
type Thread struct {
	Key       ThreadKey        `json:"key"`
	ChannelID string           `json:"channelId,omitempty"`
	Messages  []Message        `json:"messages"`
	Whitelist map[string]bool  `json:"toolWhitelist,omitempty"`
	Pending   *PendingDecision `json:"pendingDecision,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	mu sync.RWMutex
}

// NewThread creates an empty thread for the given key.
func NewThread(key ThreadKey) *Thread {
	now := time.Now()
	return &Thread{
		Key:       key,
		Messages:  []Message{},
		Whitelist: make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetChannelID records the reply channel for the thread.
func (t *Thread) SetChannelID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ChannelID = id
	t.UpdatedAt = time.Now()
}

// Channel returns the recorded reply channel.
func (t *Thread) Channel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ChannelID
}

// AppendMessages appends messages to the conversation log.
func (t *Thread) AppendMessages(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, msgs...)
	t.UpdatedAt = time.Now()
}

// History returns a copy of the conversation log.
func (t *Thread) History() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.Messages))
	copy(out, t.Messages)
	return out
}

// AllowTools adds tool names to the thread's whitelist. Unknown or duplicate
// names are harmless.
func (t *Thread) AllowTools(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Whitelist == nil {
		t.Whitelist = make(map[string]bool)
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		t.Whitelist[name] = true
	}
	t.UpdatedAt = time.Now()
}

// DisallowTools removes tool names from the thread's whitelist.
func (t *Thread) DisallowTools(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		delete(t.Whitelist, name)
	}
	t.UpdatedAt = time.Now()
}

// IsAllowed reports whether a tool name is whitelisted for this thread.
func (t *Thread) IsAllowed(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Whitelist[name]
}

// AllowedTools returns the whitelisted tool names in sorted order.
func (t *Thread) AllowedTools() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.Whitelist))
	for name := range t.Whitelist {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPending records a suspended turn awaiting a decision.
func (t *Thread) SetPending(p *PendingDecision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Pending = p
	t.UpdatedAt = time.Now()
}

// PendingDecision returns a copy of the pending decision, or nil when the
// thread is not suspended.
func (t *Thread) PendingDecision() *PendingDecision {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Pending.Clone()
}

// TakePending clears and returns the pending decision. It returns nil when
// the thread is not suspended.
func (t *Thread) TakePending() *PendingDecision {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.Pending
	t.Pending = nil
	if p != nil {
		t.UpdatedAt = time.Now()
	}
	return p
}

// IsSuspended reports whether the thread has a turn awaiting a decision.
func (t *Thread) IsSuspended() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Pending != nil
}

// Clone returns a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := &Thread{
		Key:       t.Key,
		ChannelID: t.ChannelID,
		Messages:  make([]Message, 0, len(t.Messages)),
		Whitelist: make(map[string]bool, len(t.Whitelist)),
		Pending:   t.Pending.Clone(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for _, msg := range t.Messages {
		out.Messages = append(out.Messages, msg.Clone())
	}
	for name, ok := range t.Whitelist {
		out.Whitelist[name] = ok
	}
	return out
}

// ThreadStore persists thread state across runs.
type ThreadStore interface {
	// Get retrieves a thread by key. It returns ErrNoState when the key is
	// unknown.
	Get(key ThreadKey) (*Thread, error)

	// GetOrCreate retrieves a thread by key, creating an empty one when the
	// key is unknown.
	GetOrCreate(key ThreadKey) (*Thread, error)

	// Save persists the thread.
	Save(thread *Thread) error
}
