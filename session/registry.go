package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/convogate/core"
)

// InMemoryRegistry is the volatile core.Registry implementation backing the
// orchestration core. It is safe for concurrent access. Individual map
// operations are atomic; whole read-mutate-write sequences against the same
// conversation are not serialized; the core assumes at most one in-flight
// turn per conversation from a well-behaved client.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryRegistry constructs an empty in-memory registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{sessions: make(map[string]*core.Session)}
}

// Create registers a session under its conversation id. Conversation ids
// are opaque and unique for the process lifetime; reusing one is an error.
func (r *InMemoryRegistry) Create(conversationID string, sess *core.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[conversationID]; exists {
		return fmt.Errorf("session %s already exists", conversationID)
	}
	r.sessions[conversationID] = sess
	return nil
}

// Get returns the live session for a conversation id, if present.
func (r *InMemoryRegistry) Get(conversationID string) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[conversationID]
	return sess, ok
}

// Remove deletes a session. Removing an absent key is a no-op so teardown
// stays idempotent at the registry level.
func (r *InMemoryRegistry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
}

// Len reports the number of active sessions.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SimpleConversationID synthesizes a local conversation id for direct-reply
// conversations that never touch the mission engine.
func SimpleConversationID() string {
	return "simple-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}
