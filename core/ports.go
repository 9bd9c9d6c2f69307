package core

import "context"

// ToolDescriptor declaratively exposes a callable capability to the mission
// engine at escalation time. The core passes descriptors through opaquely
// and never interprets InputSchema.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// MissionEventKind classifies turn updates emitted by a mission
// conversation handle.
type MissionEventKind string

// Recognized mission event kinds.
const (
	MissionMessage    MissionEventKind = "message"
	MissionToolCall   MissionEventKind = "tool_call"
	MissionToolOutput MissionEventKind = "tool_output"
	MissionEnd        MissionEventKind = "end"
)

// MissionEvent is a single asynchronous turn update produced by the mission
// engine for an escalated conversation.
type MissionEvent struct {
	Kind    MissionEventKind
	Message Message
}

// MissionConversation is the live handle to an escalated conversation owned
// by the mission engine.
type MissionConversation interface {
	// SendMessage forwards a user message into the mission.
	SendMessage(ctx context.Context, text string) error

	// End terminates the mission conversation.
	End(ctx context.Context) error

	// Subscribe returns a channel of turn updates plus a cancel function
	// releasing the subscription. The channel is closed after a MissionEnd
	// event or cancellation.
	Subscribe() (<-chan MissionEvent, func())
}

// MissionEngine is the multi-step planning engine the core escalates to.
// Its internal step execution is out of scope; only this narrow surface is
// consumed.
type MissionEngine interface {
	// StartMission opens a mission-backed conversation and returns its
	// conversation id, chosen by the engine.
	StartMission(ctx context.Context, prompt, ownerID string, tools []ToolDescriptor, clientID string, context map[string]any) (string, error)

	// MissionHistory returns the engine-side message history.
	MissionHistory(ctx context.Context, conversationID string) ([]Message, error)

	// Conversation returns the live handle for an active mission.
	Conversation(conversationID string) (MissionConversation, bool)
}

// UpsertRequest describes a durable-store write keyed by entity id.
type UpsertRequest struct {
	ID          string
	Collection  string
	StorageType string
	Data        EntityRecord
}

// EntityStore is the durable per-entity document store. Implementations
// report an absent collection or record on Query via ErrStorageNotFound;
// callers normalize that to an empty result set. All other errors propagate
// unmodified.
type EntityStore interface {
	Upsert(ctx context.Context, req UpsertRequest) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter map[string]any, storageType string) ([]EntityRecord, error)
}

// Visibility tags controlling bus message routing.
const (
	// VisibilityUser delivers to the specific end user, not broadcast.
	VisibilityUser = "user"
	// VisibilityBroadcast delivers to every connected client.
	VisibilityBroadcast = "broadcast"
)

// BusMessage is an outbound message submitted to the message bus, tagged
// with the owning client identifier for routing.
type BusMessage struct {
	Type        string `json:"type"`
	Recipient   string `json:"recipient"`
	Content     any    `json:"content"`
	RequiresAck bool   `json:"requires_ack"`
	Visibility  string `json:"visibility"`
}

// MessageBus delivers outbound messages to clients. Delivery is best effort;
// the core does not guarantee exactly-once semantics for UI push updates.
type MessageBus interface {
	Publish(ctx context.Context, msg BusMessage) error
}
