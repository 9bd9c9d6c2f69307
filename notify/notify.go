// Package notify pushes outbound messages (chat replies and state deltas)
// to the owning client through the message bus. Delivery is best effort: a
// missing session or client id drops the notification with a log line, since
// UI push updates carry no guaranteed-delivery requirement.
package notify

import (
	"context"
	"fmt"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/logging"
)

// ChatMessageType is the wire type tag for pushed chat messages.
const ChatMessageType = "chat.message"

// Options configures a Notifier.
type Options struct {
	Logger logging.Logger
}

// Notifier serializes outbound payloads and submits them to the message
// bus, tagged with the owning client identifier for routing.
type Notifier struct {
	registry core.Registry
	bus      core.MessageBus
	logger   logging.Logger
}

// New constructs a Notifier.
func New(registry core.Registry, bus core.MessageBus, optFns ...func(o *Options)) *Notifier {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Notifier{registry: registry, bus: bus, logger: opts.Logger}
}

// Notify publishes payload to the client owning conversationID. The message
// is tagged with visibility "user" so the bus delivers to the specific end
// user rather than broadcasting. An unknown conversation or a session
// without an owner drops the notification silently (logged, not raised).
func (n *Notifier) Notify(ctx context.Context, conversationID, msgType string, payload any) error {
	sess, ok := n.registry.Get(conversationID)
	if !ok {
		n.logger.Warn("dropping notification for unknown conversation", "conversation_id", conversationID, "type", msgType)
		return nil
	}
	if sess.OwnerClientID == "" {
		n.logger.Warn("dropping notification without owner client", "conversation_id", conversationID, "type", msgType)
		return nil
	}

	msg := core.BusMessage{
		Type:        msgType,
		Recipient:   sess.OwnerClientID,
		Content:     payload,
		RequiresAck: false,
		Visibility:  core.VisibilityUser,
	}
	if err := n.bus.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", msgType, sess.OwnerClientID, err)
	}
	return nil
}
