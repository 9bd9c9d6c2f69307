package testutil

import (
	"time"

	"github.com/hupe1980/convogate/core"
)

// EventBuilder provides a fluent helper for constructing domain events in
// tests. Example:
//
//	ev := NewEventBuilder().Type("domain.character.create").Field("name", "Avery").Build()
//
// Chain only the parts you need; unset fields stay zero so normalization
// paths can be exercised.
type EventBuilder struct {
	ev core.DomainEvent
}

// NewEventBuilder creates a builder for an empty event.
func NewEventBuilder() *EventBuilder { return &EventBuilder{} }

// Type sets the dot-namespaced event type (chainable).
func (b *EventBuilder) Type(t string) *EventBuilder { b.ev.Type = t; return b }

// Collection sets an explicit collection override (chainable).
func (b *EventBuilder) Collection(c string) *EventBuilder { b.ev.Collection = c; return b }

// Operation sets an explicit operation override (chainable).
func (b *EventBuilder) Operation(op core.Operation) *EventBuilder { b.ev.Operation = op; return b }

// Entity sets the entity id (chainable).
func (b *EventBuilder) Entity(id string) *EventBuilder { b.ev.EntityID = id; return b }

// Source sets the event source (chainable).
func (b *EventBuilder) Source(s core.Source) *EventBuilder { b.ev.Source = s; return b }

// Conversation sets the conversation id (chainable).
func (b *EventBuilder) Conversation(id string) *EventBuilder { b.ev.ConversationID = id; return b }

// Client sets the client id (chainable).
func (b *EventBuilder) Client(id string) *EventBuilder { b.ev.ClientID = id; return b }

// At sets the event timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.ev.Timestamp = t; return b }

// Field sets a single payload field (chainable).
func (b *EventBuilder) Field(key string, value any) *EventBuilder {
	if b.ev.Payload == nil {
		b.ev.Payload = map[string]any{}
	}
	b.ev.Payload[key] = value
	return b
}

// Payload replaces the whole payload map (chainable).
func (b *EventBuilder) Payload(p map[string]any) *EventBuilder { b.ev.Payload = p; return b }

// Build returns the constructed event.
func (b *EventBuilder) Build() core.DomainEvent { return b.ev }
