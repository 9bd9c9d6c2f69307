package core

import "time"

// Sender identifies the author of a conversation message.
type Sender string

// Recognized message senders.
const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderTool      Sender = "tool"
)

// Kind classifies the content carried by a message.
type Kind string

// Recognized message kinds.
const (
	KindText       Kind = "text"
	KindToolCall   Kind = "tool_call"
	KindToolOutput Kind = "tool_output"
)

// Message is a single conversation turn. Messages are immutable once
// appended to a session history; Content is plain text for KindText and an
// arbitrary structured value for tool kinds.
type Message struct {
	Sender    Sender    `json:"sender"`
	Kind      Kind      `json:"kind"`
	Content   any       `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTextMessage creates a text message authored by sender, stamped now.
func NewTextMessage(sender Sender, text string) Message {
	return Message{Sender: sender, Kind: KindText, Content: text, Timestamp: time.Now().UTC()}
}

// NewToolCallMessage creates a tool-call message carrying the structured
// call payload emitted by the mission engine.
func NewToolCallMessage(payload any) Message {
	return Message{Sender: SenderAssistant, Kind: KindToolCall, Content: payload, Timestamp: time.Now().UTC()}
}

// NewToolOutputMessage creates a tool-output message carrying a tool result.
func NewToolOutputMessage(payload any) Message {
	return Message{Sender: SenderTool, Kind: KindToolOutput, Content: payload, Timestamp: time.Now().UTC()}
}

// Text returns the content as plain text, or "" for structured content.
func (m Message) Text() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	return ""
}
