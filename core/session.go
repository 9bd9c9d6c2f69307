package core

import (
	"sync"
	"time"
)

// Session is the in-memory runtime state tracked for an active conversation:
// identity and tenant fields fixed at creation, plus a mutable append-only
// message history and a mutable key/value context map. It is safe for
// concurrent access.
//
// Contract:
//   - History and Context accessors return defensive copies
//   - AppendMessage is append-only; messages are never mutated in place
//   - Sessions are volatile: a process restart loses all active sessions
type Session struct {
	ConversationID   string
	OwnerClientID    string
	UserID           string
	ApplicationClass string
	InstanceID       string
	IsSimple         bool
	Created          time.Time

	mu      sync.RWMutex
	history []Message
	context map[string]any
}

// NewSession creates an empty session bound to a conversation and its owning
// client.
func NewSession(conversationID, ownerClientID string) *Session {
	return &Session{
		ConversationID: conversationID,
		OwnerClientID:  ownerClientID,
		Created:        time.Now().UTC(),
		context:        map[string]any{},
	}
}

// AppendMessage appends a message to the conversation history.
func (s *Session) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, m)
}

// History returns a defensive copy of the full message history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// RecentHistory returns a copy of at most the n most recent messages. Older
// context is silently truncated; callers use this to bound prompt size.
func (s *Session) RecentHistory(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]Message, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// HistoryLen reports the number of messages in the history.
func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Context returns a copy of the conversation context map.
func (s *Session) Context() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.context))
	for k, v := range s.context {
		out[k] = v
	}
	return out
}

// ContextValue returns the value and existence flag for a context key.
func (s *Session) ContextValue(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.context[key]
	return v, ok
}

// SetContext sets a single context key.
func (s *Session) SetContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context[key] = value
}

// PatchContext merges the provided key/value pairs into the context map.
func (s *Session) PatchContext(patch map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range patch {
		s.context[k] = v
	}
}

// Registry holds the authoritative mapping of conversation identifier to
// session state for the process lifetime. Keys are opaque and globally
// unique; there is no TTL-based expiry, removal happens only via an explicit
// end-conversation call or an upstream end signal.
type Registry interface {
	// Create registers a session. It is an error to reuse a conversation id.
	Create(conversationID string, sess *Session) error

	// Get returns the session for a conversation id, if present.
	Get(conversationID string) (*Session, bool)

	// Remove deletes the session. Removing an absent key is a no-op.
	Remove(conversationID string)
}
