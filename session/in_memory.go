package session

import (
	"sync"

	"github.com/hupe1980/agentgate/core"
)

// InMemoryStore is a volatile ThreadStore implementation storing threads in a
// process local map. It is safe for concurrent access and best suited for
// tests or single-process deployments; thread state does not survive a
// restart, so suspended decisions are lost when the process exits. Each
// returned thread is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

var _ core.ThreadStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Get returns a clone of the stored thread, or core.ErrNoState when the key
// is unknown.
func (s *InMemoryStore) Get(key core.ThreadKey) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[key.String()]
	if !ok {
		return nil, core.ErrNoState
	}

	return thread.Clone(), nil
}

// GetOrCreate returns a clone of the stored thread, creating an empty one
// when the key is unknown.
func (s *InMemoryStore) GetOrCreate(key core.ThreadKey) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, ok := s.threads[key.String()]; ok {
		return thread.Clone(), nil
	}

	thread := core.NewThread(key)
	s.threads[key.String()] = thread

	return thread.Clone(), nil
}

// Save stores a clone of the provided thread snapshot.
func (s *InMemoryStore) Save(thread *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[thread.Key.String()] = thread.Clone()

	return nil
}

// Len returns the number of stored threads.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.threads)
}
