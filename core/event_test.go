package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	ev := DomainEvent{Type: "domain.character.create"}
	got := ev.Normalize("conv-1", "client-1")

	assert.Equal(t, SourceUI, got.Source)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "client-1", got.ClientID)
}

func TestNormalizeCallerWinsOverEmbedded(t *testing.T) {
	// Events decoded from raw text may already carry ownership fields; the
	// explicit arguments shadow them.
	ev := DomainEvent{
		Type:           "domain.character.create",
		Source:         SourceBrain,
		ConversationID: "embedded-conv",
		ClientID:       "embedded-client",
	}
	got := ev.Normalize("conv-2", "client-2")

	assert.Equal(t, SourceBrain, got.Source)
	assert.Equal(t, "conv-2", got.ConversationID)
	assert.Equal(t, "client-2", got.ClientID)
}

func TestNormalizeEmptyArgsKeepEmbedded(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := DomainEvent{Type: "x", ConversationID: "keep", ClientID: "keep-too", Timestamp: ts}
	got := ev.Normalize("", "")

	assert.Equal(t, "keep", got.ConversationID)
	assert.Equal(t, "keep-too", got.ClientID)
	assert.Equal(t, ts, got.Timestamp)
}

func TestEntityRecordClone(t *testing.T) {
	r := EntityRecord{"id": "e1", "name": "Avery"}
	cp := r.Clone()
	cp["name"] = "Brook"

	assert.Equal(t, "Avery", r["name"])
	assert.Equal(t, "e1", cp.ID())
}
