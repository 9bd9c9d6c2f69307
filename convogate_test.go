package convogate

import (
	"context"
	"testing"

	"github.com/hupe1980/convogate/bus"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/internal/testutil"
	"github.com/hupe1980/convogate/mission"
	"github.com/hupe1980/convogate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T) (*ConvoGate, *model.MockCompletion, *bus.InMemoryBus) {
	t.Helper()

	completion := model.NewMockCompletion()
	missions := mission.New(completion, func(o *mission.Options) {
		o.TurnFn = func(ctx context.Context, conv *mission.Conversation, input string) (string, error) {
			return "Mission acknowledged.", nil
		}
	})
	b := bus.NewInMemoryBus()

	gate := New(completion, missions, func(o *Options) {
		o.Bus = b
		o.Persona = "You are the concierge of a travel app."
	})
	return gate, completion, b
}

func TestConvoGateDirectFlow(t *testing.T) {
	gate, completion, b := newGate(t)
	completion.AddResponse("opening hours", "We're open 9 to 5.")
	ctx := context.Background()

	conv, err := gate.StartConversation(ctx, "What are your opening hours?", "client-1", map[string]any{"instanceId": "travel1"})
	require.NoError(t, err)
	require.False(t, conv.Escalated)
	assert.Equal(t, "We're open 9 to 5.", conv.Reply)

	ev := testutil.NewEventBuilder().
		Type("domain.booking.create").
		Field("destination", "Lisbon").
		Build()

	delta, record, err := gate.HandleEvent(ctx, conv.ConversationID, ev, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "booking", delta.Collection)
	assert.Equal(t, "Lisbon", record["destination"])

	records, err := gate.GetState(ctx, conv.ConversationID, "booking", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, gate.EndConversation(ctx, conv.ConversationID))
	_, err = gate.GetConversationHistory(ctx, conv.ConversationID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	assert.NotEmpty(t, b.Published())
}

func TestConvoGateContextAccessors(t *testing.T) {
	gate, completion, _ := newGate(t)
	completion.AddResponse("hello", "Hi!")
	ctx := context.Background()

	conv, err := gate.StartConversation(ctx, "hello", "client-1", map[string]any{"locale": "pt"})
	require.NoError(t, err)

	require.NoError(t, gate.UpdateContext(ctx, conv.ConversationID, map[string]any{"tier": "gold"}))
	got, err := gate.GetContext(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "pt", got["locale"])
	assert.Equal(t, "gold", got["tier"])
}
