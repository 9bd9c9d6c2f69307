// Package convogate provides a high-level façade over the conversation
// orchestration core: triage, session tracking, domain-event extraction,
// state reconciliation and client push delivery. Most applications interact
// with this package by:
//  1. Creating a ConvoGate via New() (optionally overriding default in-memory services)
//  2. Starting conversations with StartConversation and exchanging turns with SendMessage
//  3. Feeding client-side domain events through HandleEvent and reading state via GetState
//
// The façade delegates lifecycle handling to controller.Controller while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// entity store, a WebSocket bus and a structured logger.
package convogate

import (
	"context"

	"github.com/hupe1980/convogate/controller"
	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/logging"
	"github.com/hupe1980/convogate/model"
)

// Options configures the ConvoGate instance.
type Options struct {
	// Registry tracks active sessions (defaults to in-memory).
	Registry core.Registry

	// Store persists reconciled entity state (defaults to in-memory).
	Store core.EntityStore

	// Bus pushes chat replies and state deltas to clients (defaults to
	// in-memory).
	Bus core.MessageBus

	// Persona frames every completion request for this deployment.
	Persona string

	// Tools is the capability manifest offered to the mission engine when a
	// conversation escalates.
	Tools []core.ToolDescriptor

	// HistoryWindow caps the recent history included in direct prompts.
	HistoryWindow int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ConvoGate is the high-level façade aggregating the conversation controller
// and its collaborating services.
type ConvoGate struct {
	opts       Options
	controller *controller.Controller
}

// New creates a new ConvoGate over a completion backend and a mission
// engine. Any unset service is initialized with an in-memory implementation.
func New(completion model.Completion, missions core.MissionEngine, optFns ...func(o *Options)) *ConvoGate {
	opts := Options{
		Persona:       controller.DefaultPersona,
		HistoryWindow: 10,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	ctrl := controller.New(completion, missions, func(o *controller.Options) {
		o.Registry = opts.Registry
		o.Store = opts.Store
		o.Bus = opts.Bus
		o.Persona = opts.Persona
		o.Tools = opts.Tools
		if opts.HistoryWindow > 0 {
			o.HistoryWindow = opts.HistoryWindow
		}
		o.Logger = opts.Logger
	})

	return &ConvoGate{opts: opts, controller: ctrl}
}

// StartConversation triages the opening prompt and opens either a direct or
// an escalated conversation.
func (g *ConvoGate) StartConversation(ctx context.Context, prompt, clientID string, convContext map[string]any) (*controller.Conversation, error) {
	return g.controller.StartConversation(ctx, prompt, clientID, convContext)
}

// SendMessage forwards a user message into an active conversation.
func (g *ConvoGate) SendMessage(ctx context.Context, conversationID, text string, contextOverride map[string]any) (string, error) {
	return g.controller.SendMessage(ctx, conversationID, text, contextOverride)
}

// GetConversationHistory returns the conversation's message history.
func (g *ConvoGate) GetConversationHistory(ctx context.Context, conversationID string) ([]core.Message, error) {
	return g.controller.GetConversationHistory(ctx, conversationID)
}

// GetContext returns a copy of the conversation context map.
func (g *ConvoGate) GetContext(ctx context.Context, conversationID string) (map[string]any, error) {
	return g.controller.GetContext(ctx, conversationID)
}

// UpdateContext merges the patch into the conversation context.
func (g *ConvoGate) UpdateContext(ctx context.Context, conversationID string, patch map[string]any) error {
	return g.controller.UpdateContext(ctx, conversationID, patch)
}

// HandleEvent reconciles a client-submitted domain event and pushes the
// resulting state delta back to the owning client.
func (g *ConvoGate) HandleEvent(ctx context.Context, conversationID string, ev core.DomainEvent, clientID string) (core.StateDelta, core.EntityRecord, error) {
	return g.controller.HandleEvent(ctx, conversationID, ev, clientID)
}

// GetState queries the conversation's entity state for a collection.
func (g *ConvoGate) GetState(ctx context.Context, conversationID, collection string, filter map[string]any) ([]core.EntityRecord, error) {
	return g.controller.GetState(ctx, conversationID, collection, filter)
}

// EndConversation tears a conversation down, ending any backing mission.
func (g *ConvoGate) EndConversation(ctx context.Context, conversationID string) error {
	return g.controller.EndConversation(ctx, conversationID)
}
