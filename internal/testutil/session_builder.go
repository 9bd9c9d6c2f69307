package testutil

import "github.com/hupe1980/convogate/core"

// SessionBuilder provides a fluent helper for constructing sessions in
// tests. Example:
//
//	sess := NewSessionBuilder("conv-1").Owner("client-1").Tenant("u1", "wealth", "app1").Build()
type SessionBuilder struct {
	conversationID string
	ownerClientID  string
	userID         string
	appClass       string
	instanceID     string
	simple         bool
	messages       []core.Message
	context        map[string]any
}

// NewSessionBuilder creates a builder for a session bound to a conversation.
func NewSessionBuilder(conversationID string) *SessionBuilder {
	return &SessionBuilder{conversationID: conversationID}
}

// Owner sets the owning client id (chainable).
func (b *SessionBuilder) Owner(clientID string) *SessionBuilder { b.ownerClientID = clientID; return b }

// Tenant sets the isolation fields (chainable).
func (b *SessionBuilder) Tenant(userID, applicationClass, instanceID string) *SessionBuilder {
	b.userID = userID
	b.appClass = applicationClass
	b.instanceID = instanceID
	return b
}

// Simple marks the session as a direct conversation (chainable).
func (b *SessionBuilder) Simple() *SessionBuilder { b.simple = true; return b }

// UserText appends a user text message (chainable).
func (b *SessionBuilder) UserText(t string) *SessionBuilder {
	b.messages = append(b.messages, core.NewTextMessage(core.SenderUser, t))
	return b
}

// AssistantText appends an assistant text message (chainable).
func (b *SessionBuilder) AssistantText(t string) *SessionBuilder {
	b.messages = append(b.messages, core.NewTextMessage(core.SenderAssistant, t))
	return b
}

// Context sets a context key (chainable).
func (b *SessionBuilder) Context(key string, value any) *SessionBuilder {
	if b.context == nil {
		b.context = map[string]any{}
	}
	b.context[key] = value
	return b
}

// Build materializes the session.
func (b *SessionBuilder) Build() *core.Session {
	sess := core.NewSession(b.conversationID, b.ownerClientID)
	sess.UserID = b.userID
	sess.ApplicationClass = b.appClass
	sess.InstanceID = b.instanceID
	sess.IsSimple = b.simple
	for _, m := range b.messages {
		sess.AppendMessage(m)
	}
	if b.context != nil {
		sess.PatchContext(b.context)
	}
	return sess
}
