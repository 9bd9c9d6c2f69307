// Package controller drives the conversation lifecycle. Every conversation
// moves through the states Starting, then DirectActive or Escalated, then
// Ended: triage decides at start whether a lightweight direct chat suffices
// or the mission engine takes over, and the controller keeps session state,
// runs the extract/reconcile/notify pipeline on assistant output and exposes
// the public conversation operations.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/convogate/bus"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/extract"
	"github.com/hupe1980/convogate/internal/util"
	"github.com/hupe1980/convogate/logging"
	"github.com/hupe1980/convogate/model"
	"github.com/hupe1980/convogate/notify"
	"github.com/hupe1980/convogate/reconcile"
	"github.com/hupe1980/convogate/session"
	"github.com/hupe1980/convogate/store"
	"github.com/hupe1980/convogate/triage"
)

// DefaultPersona frames completion requests when no persona is configured.
const DefaultPersona = "You are a helpful, concise assistant embedded in an application."

// apologyReply is the degraded assistant answer used when the completion
// backend fails mid-conversation. The conversation stays usable.
const apologyReply = "I'm sorry, I ran into a problem answering that. Please try again."

// defaultHistoryWindow bounds how many recent messages flow into a direct
// completion prompt.
const defaultHistoryWindow = 10

// Options configures a Controller.
type Options struct {
	// Registry holds active sessions. Defaults to an in-memory registry.
	Registry core.Registry

	// Store persists reconciled entities. Defaults to an in-memory store.
	Store core.EntityStore

	// Bus delivers outbound client messages. Defaults to an in-memory bus.
	Bus core.MessageBus

	// Persona frames every completion request for this deployment.
	Persona string

	// Tools is the capability manifest handed to the mission engine on
	// escalation.
	Tools []core.ToolDescriptor

	// HistoryWindow caps the number of recent messages included in direct
	// completion prompts.
	HistoryWindow int

	// DefaultCollection receives events whose type resolves to no collection.
	DefaultCollection string

	// StorageType is passed through opaquely to the entity store.
	StorageType string

	Logger logging.Logger
}

// Conversation is the result of starting a conversation: the id to address
// it by, whether it was escalated and, for direct conversations, the opening
// assistant reply.
type Conversation struct {
	ConversationID string
	Escalated      bool
	Reply          string
	Reason         string
}

// Controller owns the conversation state machine and wires triage,
// extraction, reconciliation and notification together.
type Controller struct {
	completion model.Completion
	missions   core.MissionEngine
	registry   core.Registry
	store      core.EntityStore

	triage     *triage.Engine
	extractor  *extract.Extractor
	reconciler *reconcile.Reconciler
	notifier   *notify.Notifier

	persona       string
	tools         []core.ToolDescriptor
	historyWindow int
	storageType   string
	logger        logging.Logger
}

// New constructs a Controller over a completion backend and a mission
// engine. Collaborating services default to in-memory implementations.
func New(completion model.Completion, missions core.MissionEngine, optFns ...func(o *Options)) *Controller {
	opts := Options{
		Persona:           DefaultPersona,
		HistoryWindow:     defaultHistoryWindow,
		DefaultCollection: "events",
		StorageType:       "document",
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = session.NewInMemoryRegistry()
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewInMemoryBus()
	}

	return &Controller{
		completion: completion,
		missions:   missions,
		registry:   opts.Registry,
		store:      opts.Store,
		triage: triage.New(completion, func(o *triage.Options) {
			o.Logger = opts.Logger
		}),
		extractor: extract.New(func(o *extract.Options) {
			o.Logger = opts.Logger
		}),
		reconciler: reconcile.New(opts.Store, func(o *reconcile.Options) {
			o.DefaultCollection = opts.DefaultCollection
			o.StorageType = opts.StorageType
			o.Logger = opts.Logger
		}),
		notifier: notify.New(opts.Registry, opts.Bus, func(o *notify.Options) {
			o.Logger = opts.Logger
		}),
		persona:       opts.Persona,
		tools:         opts.Tools,
		historyWindow: opts.HistoryWindow,
		storageType:   opts.StorageType,
		logger:        opts.Logger,
	}
}

// StartConversation triages the opening prompt and opens either a direct
// conversation answered inline or a mission-backed escalated conversation.
// A triage backend failure is fatal here; no session is created.
func (c *Controller) StartConversation(ctx context.Context, prompt, clientID string, convContext map[string]any) (*Conversation, error) {
	result, err := c.triage.Triage(ctx, prompt, c.renderPersona(convContext))
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}

	if result.Escalate {
		return c.startEscalated(ctx, prompt, clientID, convContext, result.Reason)
	}
	return c.startDirect(ctx, prompt, clientID, convContext, result.Answer)
}

func (c *Controller) startDirect(ctx context.Context, prompt, clientID string, convContext map[string]any, answer string) (*Conversation, error) {
	conversationID := session.SimpleConversationID()
	sess := c.newSession(conversationID, clientID, convContext)
	sess.IsSimple = true

	if err := c.registry.Create(conversationID, sess); err != nil {
		return nil, fmt.Errorf("register session %s: %w", conversationID, err)
	}

	sess.AppendMessage(core.NewTextMessage(core.SenderUser, prompt))
	reply := core.NewTextMessage(core.SenderAssistant, answer)
	sess.AppendMessage(reply)

	c.processAssistantText(ctx, sess, answer)
	c.notifyChat(ctx, conversationID, reply)

	c.logger.Info("direct conversation started", "conversation_id", conversationID, "client_id", clientID)
	return &Conversation{ConversationID: conversationID, Reply: answer}, nil
}

func (c *Controller) startEscalated(ctx context.Context, prompt, clientID string, convContext map[string]any, reason string) (*Conversation, error) {
	ownerID := stringField(convContext, "userId")
	if ownerID == "" {
		ownerID = clientID
	}

	conversationID, err := c.missions.StartMission(ctx, prompt, ownerID, c.tools, clientID, convContext)
	if err != nil {
		return nil, fmt.Errorf("start mission: %w", err)
	}

	sess := c.newSession(conversationID, clientID, convContext)
	if err := c.registry.Create(conversationID, sess); err != nil {
		return nil, fmt.Errorf("register session %s: %w", conversationID, err)
	}
	sess.AppendMessage(core.NewTextMessage(core.SenderUser, prompt))

	handle, ok := c.missions.Conversation(conversationID)
	if !ok {
		c.registry.Remove(conversationID)
		return nil, fmt.Errorf("mission %s: %w", conversationID, core.ErrConversationNotFound)
	}
	events, cancel := handle.Subscribe()
	go c.listen(conversationID, events, cancel)

	c.logger.Info("conversation escalated", "conversation_id", conversationID, "client_id", clientID, "reason", reason)
	return &Conversation{ConversationID: conversationID, Escalated: true, Reason: reason}, nil
}

// SendMessage forwards a user message into an active conversation. A message
// whose body is a bare JSON event object is reconciled into conversation
// state instead of being answered. Direct conversations are answered inline;
// a completion failure degrades to an apology reply rather than an error.
// Escalated conversations forward to the mission handle and replies arrive
// asynchronously through the listener.
func (c *Controller) SendMessage(ctx context.Context, conversationID, text string, contextOverride map[string]any) (string, error) {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return "", fmt.Errorf("send to %q: %w", conversationID, core.ErrConversationNotFound)
	}
	if len(contextOverride) > 0 {
		sess.PatchContext(contextOverride)
	}

	// A raw structured message is an event submission, not chat. It never
	// reaches the completion backend or the message history.
	if ev, ok := c.extractor.FromMessage(text); ok {
		normalized := ev.Normalize(conversationID, sess.OwnerClientID)
		delta, err := c.reconciler.Apply(ctx, normalized, tenantOf(sess))
		if err != nil {
			return "", fmt.Errorf("event from %s: %w", conversationID, err)
		}
		if err := c.notifier.Notify(ctx, conversationID, core.DeltaType, delta); err != nil {
			c.logger.Warn("delta push failed", "conversation_id", conversationID, "error", err)
		}
		return "", nil
	}

	if !sess.IsSimple {
		handle, ok := c.missions.Conversation(conversationID)
		if !ok {
			return "", fmt.Errorf("mission %q: %w", conversationID, core.ErrConversationNotFound)
		}
		sess.AppendMessage(core.NewTextMessage(core.SenderUser, text))
		if err := handle.SendMessage(ctx, text); err != nil {
			return "", fmt.Errorf("forward to mission %s: %w", conversationID, err)
		}
		return "", nil
	}

	prompt := c.buildDirectPrompt(sess, text)
	sess.AppendMessage(core.NewTextMessage(core.SenderUser, text))

	answer, err := c.completion.Generate(ctx, prompt, false)
	if err != nil {
		c.logger.Warn("completion failed, degrading to apology", "conversation_id", conversationID, "error", err)
		answer = apologyReply
	}

	reply := core.NewTextMessage(core.SenderAssistant, answer)
	sess.AppendMessage(reply)
	if err == nil {
		c.processAssistantText(ctx, sess, answer)
	}
	c.notifyChat(ctx, conversationID, reply)

	return answer, nil
}

// GetConversationHistory returns a copy of the session message history.
func (c *Controller) GetConversationHistory(ctx context.Context, conversationID string) ([]core.Message, error) {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("history of %q: %w", conversationID, core.ErrConversationNotFound)
	}
	return sess.History(), nil
}

// GetContext returns a copy of the conversation context map.
func (c *Controller) GetContext(ctx context.Context, conversationID string) (map[string]any, error) {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("context of %q: %w", conversationID, core.ErrConversationNotFound)
	}
	return sess.Context(), nil
}

// UpdateContext merges the patch into the conversation context.
func (c *Controller) UpdateContext(ctx context.Context, conversationID string, patch map[string]any) error {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return fmt.Errorf("update context of %q: %w", conversationID, core.ErrConversationNotFound)
	}
	sess.PatchContext(patch)
	return nil
}

// HandleEvent reconciles a client-submitted domain event against the
// conversation's state and pushes the resulting delta to the owning client.
// The returned record is nil for deletes.
func (c *Controller) HandleEvent(ctx context.Context, conversationID string, ev core.DomainEvent, clientID string) (core.StateDelta, core.EntityRecord, error) {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return core.StateDelta{}, nil, fmt.Errorf("event for %q: %w", conversationID, core.ErrConversationNotFound)
	}

	normalized := ev.Normalize(conversationID, clientID)
	delta, err := c.reconciler.Apply(ctx, normalized, tenantOf(sess))
	if err != nil {
		return core.StateDelta{}, nil, err
	}

	if err := c.notifier.Notify(ctx, conversationID, core.DeltaType, delta); err != nil {
		c.logger.Warn("delta push failed", "conversation_id", conversationID, "error", err)
	}
	return delta, delta.Data, nil
}

// GetState queries the conversation's physical collection. An absent
// collection yields an empty result, not an error.
func (c *Controller) GetState(ctx context.Context, conversationID, collection string, filter map[string]any) ([]core.EntityRecord, error) {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("state of %q: %w", conversationID, core.ErrConversationNotFound)
	}

	physical := reconcile.PhysicalCollection(sess.InstanceID, collection)
	records, err := c.store.Query(ctx, physical, filter, c.storageType)
	if errors.Is(err, core.ErrStorageNotFound) {
		return []core.EntityRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", physical, err)
	}
	return records, nil
}

// EndConversation tears a conversation down. Ending an unknown conversation
// is an error so caller mistakes surface. Escalated conversations end their
// mission handle first.
func (c *Controller) EndConversation(ctx context.Context, conversationID string) error {
	sess, ok := c.registry.Get(conversationID)
	if !ok {
		return fmt.Errorf("end %q: %w", conversationID, core.ErrConversationNotFound)
	}

	if !sess.IsSimple {
		if handle, ok := c.missions.Conversation(conversationID); ok {
			if err := handle.End(ctx); err != nil {
				c.logger.Warn("mission end failed", "conversation_id", conversationID, "error", err)
			}
		}
	}

	c.registry.Remove(conversationID)
	c.logger.Info("conversation ended", "conversation_id", conversationID)
	return nil
}

func (c *Controller) newSession(conversationID, clientID string, convContext map[string]any) *core.Session {
	sess := core.NewSession(conversationID, clientID)
	sess.UserID = stringField(convContext, "userId")
	sess.ApplicationClass = stringField(convContext, "applicationClass")
	sess.InstanceID = stringField(convContext, "instanceId")
	if len(convContext) > 0 {
		sess.PatchContext(convContext)
	}
	return sess
}

// renderPersona expands template variables in the configured persona
// against conversation context. A malformed template falls back to the raw
// persona so conversations never fail on configuration.
func (c *Controller) renderPersona(convContext map[string]any) string {
	rendered, err := util.RenderPrompt(c.persona, convContext)
	if err != nil {
		c.logger.Warn("persona template failed, using raw persona", "error", err)
		return c.persona
	}
	return rendered
}

// buildDirectPrompt frames a direct completion request: persona, a bounded
// window of recent history, the conversation context and the new message.
func (c *Controller) buildDirectPrompt(sess *core.Session, text string) string {
	var sb strings.Builder
	sb.WriteString(c.renderPersona(sess.Context()))
	sb.WriteString("\n\nRecent conversation:\n")
	for _, msg := range sess.RecentHistory(c.historyWindow) {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Sender, msg.Text())
	}
	if convContext := sess.Context(); len(convContext) > 0 {
		sb.WriteString("\nContext:\n")
		for k, v := range convContext {
			fmt.Fprintf(&sb, "- %s: %v\n", k, v)
		}
	}
	fmt.Fprintf(&sb, "\nThe user says: %s\nRespond helpfully.", text)
	return sb.String()
}

// processAssistantText extracts embedded domain events from assistant output
// and runs each through reconciliation, pushing resulting deltas to the
// client. Failures affect only the individual event.
func (c *Controller) processAssistantText(ctx context.Context, sess *core.Session, text string) {
	for _, ev := range c.extractor.Extract(text) {
		normalized := ev.Normalize(sess.ConversationID, sess.OwnerClientID)
		delta, err := c.reconciler.Apply(ctx, normalized, tenantOf(sess))
		if err != nil {
			c.logger.Warn("event reconciliation failed", "conversation_id", sess.ConversationID, "type", ev.Type, "error", err)
			continue
		}
		if err := c.notifier.Notify(ctx, sess.ConversationID, core.DeltaType, delta); err != nil {
			c.logger.Warn("delta push failed", "conversation_id", sess.ConversationID, "error", err)
		}
	}
}

func (c *Controller) notifyChat(ctx context.Context, conversationID string, msg core.Message) {
	if err := c.notifier.Notify(ctx, conversationID, notify.ChatMessageType, msg); err != nil {
		c.logger.Warn("chat push failed", "conversation_id", conversationID, "error", err)
	}
}

func tenantOf(sess *core.Session) reconcile.Tenant {
	return reconcile.Tenant{
		UserID:           sess.UserID,
		ApplicationClass: sess.ApplicationClass,
		InstanceID:       sess.InstanceID,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
