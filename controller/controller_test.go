package controller

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/convogate/bus"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/mission"
	"github.com/hupe1980/convogate/model"
	"github.com/hupe1980/convogate/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingMissions wraps the in-process engine to observe StartMission calls.
type countingMissions struct {
	*mission.Engine
	starts int
}

func (m *countingMissions) StartMission(ctx context.Context, prompt, ownerID string, tools []core.ToolDescriptor, clientID string, missionContext map[string]any) (string, error) {
	m.starts++
	return m.Engine.StartMission(ctx, prompt, ownerID, tools, clientID, missionContext)
}

type fixture struct {
	controller *Controller
	completion *model.MockCompletion
	missions   *countingMissions
	bus        *bus.InMemoryBus
	store      *store.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	completion := model.NewMockCompletion()
	missions := &countingMissions{
		Engine: mission.New(completion, func(o *mission.Options) {
			o.TurnFn = func(ctx context.Context, conv *mission.Conversation, input string) (string, error) {
				return "Working on it.", nil
			}
		}),
	}
	b := bus.NewInMemoryBus()
	st := store.NewInMemoryStore()

	ctrl := New(completion, missions, func(o *Options) {
		o.Bus = b
		o.Store = st
	})
	return &fixture{controller: ctrl, completion: completion, missions: missions, bus: b, store: st}
}

func TestStartConversationDirect(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("2+2", "4")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "What's 2+2?", "client-1", nil)
	require.NoError(t, err)
	assert.False(t, conv.Escalated)
	assert.Equal(t, "4", conv.Reply)
	assert.True(t, strings.HasPrefix(conv.ConversationID, "simple-"))

	history, err := f.controller.GetConversationHistory(ctx, conv.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.SenderUser, history[0].Sender)
	assert.Equal(t, "What's 2+2?", history[0].Text())
	assert.Equal(t, core.SenderAssistant, history[1].Sender)
	assert.Equal(t, "4", history[1].Text())

	assert.Zero(t, f.missions.starts)
}

func TestStartConversationEscalatesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("plan my estate", `{"escalate": true, "reason": "multi-step planning required"}`)
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "Help me plan my estate", "client-1", map[string]any{"userId": "u1"})
	require.NoError(t, err)
	assert.True(t, conv.Escalated)
	assert.Equal(t, "multi-step planning required", conv.Reason)
	assert.Equal(t, 1, f.missions.starts)

	// The listener delivers the opening mission reply asynchronously.
	require.Eventually(t, func() bool {
		history, err := f.controller.GetConversationHistory(ctx, conv.ConversationID)
		return err == nil && len(history) >= 2
	}, time.Second, 10*time.Millisecond)

	history, err := f.controller.GetConversationHistory(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Working on it.", history[len(history)-1].Text())
}

func TestStartConversationTriageFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.completion.Fail(errors.New("backend down"))

	_, err := f.controller.StartConversation(context.Background(), "hello", "client-1", nil)
	assert.ErrorIs(t, err, core.ErrCompletionUnavailable)
}

func TestStartConversationDirectExtractsDataBlocks(t *testing.T) {
	f := newFixture(t)
	answer := `Noted. [DATA_BLOCK_START]{"type": "note", "id": "n1", "text": "call back"}[DATA_BLOCK_END]`
	f.completion.AddResponse("remind me", answer)
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "remind me to call back", "client-1", nil)
	require.NoError(t, err)

	records, err := f.controller.GetState(ctx, conv.ConversationID, "note", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "call back", records[0]["text"])

	var deltas, chats int
	for _, msg := range f.bus.Published() {
		switch msg.Type {
		case core.DeltaType:
			deltas++
		case "chat.message":
			chats++
		}
	}
	assert.Equal(t, 1, deltas)
	assert.Equal(t, 1, chats)
}

func TestSendMessageDirect(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("2+2", "4")
	f.completion.AddResponse("double that", "8")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "What's 2+2?", "client-1", nil)
	require.NoError(t, err)

	reply, err := f.controller.SendMessage(ctx, conv.ConversationID, "now double that", nil)
	require.NoError(t, err)
	assert.Equal(t, "8", reply)

	history, err := f.controller.GetConversationHistory(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSendMessageDirectDegradesToApology(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("2+2", "4")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "What's 2+2?", "client-1", nil)
	require.NoError(t, err)

	f.completion.Fail(errors.New("backend down"))

	reply, err := f.controller.SendMessage(ctx, conv.ConversationID, "and now?", nil)
	require.NoError(t, err)
	assert.Equal(t, apologyReply, reply)

	// The conversation stays usable after the backend heals.
	f.completion.Fail(nil)
	f.completion.AddResponse("triple", "12")
	reply, err = f.controller.SendMessage(ctx, conv.ConversationID, "triple it", nil)
	require.NoError(t, err)
	assert.Equal(t, "12", reply)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.SendMessage(context.Background(), "missing", "hi", nil)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func TestSendMessageEscalatedForwardsToMission(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("plan", `{"escalate": true, "reason": "complex"}`)
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "plan something big", "client-1", nil)
	require.NoError(t, err)

	reply, err := f.controller.SendMessage(ctx, conv.ConversationID, "add a deadline", nil)
	require.NoError(t, err)
	assert.Empty(t, reply)

	missionHistory, err := f.missions.MissionHistory(ctx, conv.ConversationID)
	require.NoError(t, err)
	// Opening turn plus the forwarded message, each with an assistant reply.
	assert.Len(t, missionHistory, 4)
}

func TestSendMessageRawEventReconcilesInsteadOfChatting(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("hello", "Hi!")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "hello", "client-1", nil)
	require.NoError(t, err)

	reply, err := f.controller.SendMessage(ctx, conv.ConversationID, `{"type": "domain.note.create", "payload": {"id": "n1", "text": "raw user event"}}`, nil)
	require.NoError(t, err)
	assert.Empty(t, reply)

	records, err := f.controller.GetState(ctx, conv.ConversationID, "note", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "raw user event", records[0]["text"])

	// The raw submission never becomes chat history.
	history, err := f.controller.GetConversationHistory(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	var deltas int
	for _, msg := range f.bus.Published() {
		if msg.Type == core.DeltaType {
			deltas++
		}
	}
	assert.Equal(t, 1, deltas)
}

func TestHandleEventReconcilesAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("hello", "Hi there!")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "hello", "client-1", map[string]any{"userId": "u1", "instanceId": "app1"})
	require.NoError(t, err)

	delta, record, err := f.controller.HandleEvent(ctx, conv.ConversationID, core.DomainEvent{
		Type:    "domain.preference.create",
		Payload: map[string]any{"theme": "dark"},
	}, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "preference", delta.Collection)
	assert.Equal(t, core.OpCreate, delta.Operation)
	require.NotNil(t, record)
	assert.Equal(t, "dark", record["theme"])
	assert.Equal(t, "u1", record["userId"])

	records, err := f.controller.GetState(ctx, conv.ConversationID, "preference", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetStateEmptyOnFreshConversation(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("hello", "Hi!")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "hello", "client-1", nil)
	require.NoError(t, err)

	records, err := f.controller.GetState(ctx, conv.ConversationID, "character", nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestEndConversation(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("hello", "Hi!")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "hello", "client-1", nil)
	require.NoError(t, err)

	require.NoError(t, f.controller.EndConversation(ctx, conv.ConversationID))

	_, err = f.controller.GetConversationHistory(ctx, conv.ConversationID)
	assert.ErrorIs(t, err, core.ErrConversationNotFound)

	err = f.controller.EndConversation(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}

func TestEndConversationEndsMission(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("plan", `{"escalate": true, "reason": "complex"}`)
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "plan something", "client-1", nil)
	require.NoError(t, err)

	require.NoError(t, f.controller.EndConversation(ctx, conv.ConversationID))

	handle, ok := f.missions.Conversation(conv.ConversationID)
	require.True(t, ok)
	assert.ErrorIs(t, handle.SendMessage(ctx, "still there?"), mission.ErrMissionEnded)
}

func TestUpdateAndGetContext(t *testing.T) {
	f := newFixture(t)
	f.completion.AddResponse("hello", "Hi!")
	ctx := context.Background()

	conv, err := f.controller.StartConversation(ctx, "hello", "client-1", map[string]any{"locale": "de"})
	require.NoError(t, err)

	require.NoError(t, f.controller.UpdateContext(ctx, conv.ConversationID, map[string]any{"tier": "gold"}))

	got, err := f.controller.GetContext(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "de", got["locale"])
	assert.Equal(t, "gold", got["tier"])
}
