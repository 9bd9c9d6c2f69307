package core

import "time"

// Source identifies where a domain event originated.
type Source string

// Recognized event sources.
const (
	SourceUI     Source = "ui"
	SourceUser   Source = "user"
	SourceBrain  Source = "brain"
	SourceSystem Source = "system"
)

// Operation is the reconciliation operation applied to the durable store.
type Operation string

// Recognized operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpUpsert Operation = "upsert"
)

// DomainEvent is a normalized, typed description of a fact the model or the
// user asserted, destined for durable storage. Events are constructed by the
// extractor or directly by a caller and always pass through Normalize before
// downstream use.
//
// Type uses dot-delimited namespacing ("domain.character.create"); the
// collection and operation it implies are derived once via ParseEventType
// rather than re-split at call sites. Collection and Operation here are
// explicit overrides that win over anything derived from Type.
type DomainEvent struct {
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload,omitempty"`
	Collection     string         `json:"collection,omitempty"`
	Operation      Operation      `json:"operation,omitempty"`
	EntityID       string         `json:"entity_id,omitempty"`
	SchemaVersion  string         `json:"schema_version,omitempty"`
	Source         Source         `json:"source,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	ClientID       string         `json:"client_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp,omitempty"`
}

// Normalize fills defaults and stamps ownership onto the event: Source
// defaults to "ui", a zero Timestamp is set to now, and non-empty
// conversationID/clientID arguments overwrite whatever the raw decoded event
// carried. Caller-supplied values shadow embedded ones; multiple call sites
// rely on this override-by-argument ordering.
func (e DomainEvent) Normalize(conversationID, clientID string) DomainEvent {
	if e.Source == "" {
		e.Source = SourceUI
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if conversationID != "" {
		e.ConversationID = conversationID
	}
	if clientID != "" {
		e.ClientID = clientID
	}
	return e
}

// DeltaType is the fixed wire type tag carried by every StateDelta.
const DeltaType = "state.delta"

// StateDelta is the outbound notification describing the effect a domain
// event had on durable storage. Exactly one delta is emitted per
// successfully reconciled event; Data is absent for deletes. This is the
// wire contract consumed by the client.
type StateDelta struct {
	Type           string       `json:"type"`
	ConversationID string       `json:"conversation_id"`
	Collection     string       `json:"collection"`
	Operation      Operation    `json:"operation"`
	EntityID       string       `json:"entity_id"`
	Data           EntityRecord `json:"data,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// EntityRecord is the schema-less durable-store document written by the
// reconciler: payload fields plus synthetic identity ("id"), ownership
// ("conversationId", "userId", "applicationClass", "instanceId") and
// timestamps ("createdAt", "updatedAt"). The payload shape is caller-defined
// and opaque to the core.
type EntityRecord map[string]any

// ID returns the record's synthetic identifier, "" if absent.
func (r EntityRecord) ID() string {
	s, _ := r["id"].(string)
	return s
}

// Clone returns a shallow copy safe for independent top-level mutation.
func (r EntityRecord) Clone() EntityRecord {
	cp := make(EntityRecord, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}
