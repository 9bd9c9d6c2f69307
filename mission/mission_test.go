package mission

import (
	"context"
	"testing"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartMissionRunsOpeningTurn(t *testing.T) {
	completion := model.NewMockCompletion()
	completion.SetFallback("On it.")

	e := New(completion)
	id, err := e.StartMission(context.Background(), "Plan a portfolio review", "user-1", nil, "client-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	history, err := e.MissionHistory(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.SenderUser, history[0].Sender)
	assert.Equal(t, core.SenderAssistant, history[1].Sender)
	assert.Equal(t, "On it.", history[1].Text())
}

func TestSubscribeReplaysOpeningReply(t *testing.T) {
	completion := model.NewMockCompletion()
	completion.SetFallback("Opening reply")

	e := New(completion)
	id, err := e.StartMission(context.Background(), "prompt", "user-1", nil, "client-1", nil)
	require.NoError(t, err)

	conv, ok := e.Conversation(id)
	require.True(t, ok)

	ch, cancel := conv.Subscribe()
	defer cancel()

	select {
	case ev := <-ch:
		assert.Equal(t, core.MissionMessage, ev.Kind)
		assert.Equal(t, "Opening reply", ev.Message.Text())
	default:
		t.Fatal("expected buffered opening reply")
	}
}

func TestSendMessageFansOutToSubscriber(t *testing.T) {
	completion := model.NewMockCompletion()
	completion.AddResponse("rebalance", "Rebalancing now.")
	completion.SetFallback("ok")

	e := New(completion)
	id, err := e.StartMission(context.Background(), "prompt", "user-1", nil, "client-1", nil)
	require.NoError(t, err)

	conv, ok := e.Conversation(id)
	require.True(t, ok)
	ch, cancel := conv.Subscribe()
	defer cancel()
	<-ch // drain opening reply

	require.NoError(t, conv.SendMessage(context.Background(), "please rebalance"))

	ev := <-ch
	assert.Equal(t, core.MissionMessage, ev.Kind)
	assert.Equal(t, "Rebalancing now.", ev.Message.Text())
}

func TestScriptedTurnEmitsToolActivity(t *testing.T) {
	turn := func(ctx context.Context, conv *Conversation, input string) (string, error) {
		if err := conv.EmitToolCall("lookup", map[string]any{"q": input}); err != nil {
			return "", err
		}
		conv.EmitToolOutput("42")
		return "The answer is 42.", nil
	}

	e := New(nil, func(o *Options) { o.TurnFn = turn })
	id, err := e.StartMission(context.Background(), "prompt", "user-1", nil, "client-1", nil)
	require.NoError(t, err)

	conv, ok := e.Conversation(id)
	require.True(t, ok)
	ch, cancel := conv.Subscribe()
	defer cancel()

	first, second, third := <-ch, <-ch, <-ch
	assert.Equal(t, core.MissionToolCall, first.Kind)
	assert.Equal(t, core.MissionToolOutput, second.Kind)
	assert.Equal(t, core.MissionMessage, third.Kind)
	assert.Equal(t, "The answer is 42.", third.Message.Text())

	history, err := e.MissionHistory(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSubscribeReplaysBacklogLargerThanDefaultBuffer(t *testing.T) {
	const outputs = 100

	turn := func(ctx context.Context, conv *Conversation, input string) (string, error) {
		for i := 0; i < outputs; i++ {
			conv.EmitToolOutput(i)
		}
		return "done", nil
	}

	e := New(nil, func(o *Options) { o.TurnFn = turn })
	id, err := e.StartMission(context.Background(), "prompt", "user-1", nil, "client-1", nil)
	require.NoError(t, err)

	conv, ok := e.Conversation(id)
	require.True(t, ok)
	ch, cancel := conv.Subscribe()
	defer cancel()

	// Every buffered event survives replay, in order.
	var got []core.MissionEvent
	for i := 0; i < outputs+1; i++ {
		select {
		case ev := <-ch:
			got = append(got, ev)
		default:
			t.Fatalf("expected %d buffered events, got %d", outputs+1, len(got))
		}
	}
	for i := 0; i < outputs; i++ {
		assert.Equal(t, core.MissionToolOutput, got[i].Kind)
	}
	assert.Equal(t, core.MissionMessage, got[outputs].Kind)
	assert.Equal(t, "done", got[outputs].Message.Text())
}

func TestEmitToolCallValidatesDeclaredSchema(t *testing.T) {
	tools := []core.ToolDescriptor{{
		Name: "lookup",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
			"required":   []string{"q"},
		},
	}}

	var gotErr error
	e := New(nil, func(o *Options) {
		o.TurnFn = func(ctx context.Context, conv *Conversation, input string) (string, error) {
			gotErr = conv.EmitToolCall("lookup", map[string]any{"wrong": 1})
			return "done", nil
		}
	})
	id, err := e.StartMission(context.Background(), "prompt", "user-1", tools, "client-1", nil)
	require.NoError(t, err)
	require.Error(t, gotErr)

	// The rejected call never reaches the transcript.
	history, err := e.MissionHistory(context.Background(), id)
	require.NoError(t, err)
	for _, msg := range history {
		assert.NotEqual(t, core.KindToolCall, msg.Kind)
	}
}

func TestEndClosesSubscribers(t *testing.T) {
	e := New(nil, func(o *Options) {
		o.TurnFn = func(ctx context.Context, conv *Conversation, input string) (string, error) {
			return "ack", nil
		}
	})
	id, err := e.StartMission(context.Background(), "prompt", "user-1", nil, "client-1", nil)
	require.NoError(t, err)

	conv, ok := e.Conversation(id)
	require.True(t, ok)
	ch, cancel := conv.Subscribe()
	defer cancel()
	<-ch // opening reply

	require.NoError(t, conv.End(context.Background()))

	ev, open := <-ch
	assert.True(t, open)
	assert.Equal(t, core.MissionEnd, ev.Kind)

	_, open = <-ch
	assert.False(t, open)

	assert.ErrorIs(t, conv.SendMessage(context.Background(), "hi"), ErrMissionEnded)
}

func TestMissionHistoryUnknownConversation(t *testing.T) {
	e := New(model.NewMockCompletion())
	_, err := e.MissionHistory(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrConversationNotFound)
}
