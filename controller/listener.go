package controller

import (
	"context"

	"github.com/hupe1980/convogate/core"
)

// reaction describes the side effects one mission event calls for. Keeping
// the decision separate from execution makes the listener logic testable
// without a live mission.
type reaction struct {
	// record appends the event's message to the session history.
	record bool

	// pushChat forwards the message to the owning client.
	pushChat bool

	// extractText holds assistant output to scan for embedded domain
	// events; empty means no extraction.
	extractText string

	// teardown ends the conversation and stops the listener.
	teardown bool
}

// reactTo maps a mission event to the side effects the listener must apply.
// Assistant messages are recorded, pushed and scanned for embedded events;
// tool activity is recorded only; an end event tears the session down.
func reactTo(ev core.MissionEvent) reaction {
	switch ev.Kind {
	case core.MissionMessage:
		r := reaction{record: true, pushChat: true}
		if ev.Message.Sender == core.SenderAssistant {
			r.extractText = ev.Message.Text()
		}
		return r
	case core.MissionToolCall, core.MissionToolOutput:
		return reaction{record: true}
	case core.MissionEnd:
		return reaction{teardown: true}
	default:
		return reaction{}
	}
}

// listen consumes mission events for an escalated conversation until the
// mission ends or the channel closes. It runs in its own goroutine; each
// event is applied against the live session, which may already be gone if
// the conversation was ended locally.
func (c *Controller) listen(conversationID string, events <-chan core.MissionEvent, cancel func()) {
	defer cancel()
	ctx := context.Background()

	for ev := range events {
		r := reactTo(ev)

		if r.teardown {
			c.registry.Remove(conversationID)
			c.logger.Info("mission ended, session removed", "conversation_id", conversationID)
			return
		}

		sess, ok := c.registry.Get(conversationID)
		if !ok {
			return
		}

		if r.record {
			sess.AppendMessage(ev.Message)
		}
		if r.pushChat {
			c.notifyChat(ctx, conversationID, ev.Message)
		}
		if r.extractText != "" {
			c.processAssistantText(ctx, sess, r.extractText)
		}
	}
}
