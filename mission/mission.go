// Package mission provides an in-process mission engine. A mission is a
// long-running assistant-driven conversation started for an escalated
// request: the engine tracks its transcript, produces assistant turns
// through a completion backend and fans mission events out to subscribers.
package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/internal/util"
	"github.com/hupe1980/convogate/logging"
	"github.com/hupe1980/convogate/model"
)

// ErrMissionEnded is returned when a message is sent to a mission that has
// already been ended.
var ErrMissionEnded = errors.New("mission has ended")

// TurnFunc produces the assistant reply for one mission turn. The
// conversation is passed so scripted turns can emit tool activity before
// replying. Returning an error aborts the turn without an assistant message.
type TurnFunc func(ctx context.Context, conv *Conversation, input string) (string, error)

// Options configures an Engine.
type Options struct {
	// TurnFn overrides the default completion-backed turn. Useful for
	// scripted missions in tests and examples.
	TurnFn TurnFunc

	Logger logging.Logger
}

// Engine manages in-process missions keyed by conversation id.
type Engine struct {
	completion model.Completion
	turnFn     TurnFunc
	logger     logging.Logger

	mu       sync.RWMutex
	missions map[string]*Conversation
}

// New constructs an Engine over a completion backend.
func New(completion model.Completion, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		completion: completion,
		turnFn:     opts.TurnFn,
		logger:     opts.Logger,
		missions:   make(map[string]*Conversation),
	}
	if e.turnFn == nil {
		e.turnFn = e.completionTurn
	}
	return e
}

// StartMission creates a mission for the given prompt and runs the opening
// turn before returning. Events produced before the first subscriber attaches
// are buffered and replayed on subscription, so callers may subscribe after
// this returns without losing the opening reply.
func (e *Engine) StartMission(ctx context.Context, prompt, ownerID string, tools []core.ToolDescriptor, clientID string, missionContext map[string]any) (string, error) {
	conv := newConversation(prompt, ownerID, clientID, tools, missionContext, e.turnFn)

	e.mu.Lock()
	e.missions[conv.id] = conv
	e.mu.Unlock()

	e.logger.Info("mission started", "conversation_id", conv.id, "owner_id", ownerID, "tools", len(tools))

	if err := conv.runTurn(ctx, prompt); err != nil {
		return "", fmt.Errorf("opening turn: %w", err)
	}
	return conv.id, nil
}

// MissionHistory returns a copy of the mission transcript.
func (e *Engine) MissionHistory(ctx context.Context, conversationID string) ([]core.Message, error) {
	e.mu.RLock()
	conv, ok := e.missions[conversationID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mission %q: %w", conversationID, core.ErrConversationNotFound)
	}
	return conv.History(), nil
}

// Conversation returns the live mission conversation, if any.
func (e *Engine) Conversation(conversationID string) (core.MissionConversation, bool) {
	e.mu.RLock()
	conv, ok := e.missions[conversationID]
	e.mu.RUnlock()
	return conv, ok
}

func (e *Engine) completionTurn(ctx context.Context, conv *Conversation, input string) (string, error) {
	var sb strings.Builder
	sb.WriteString(conv.prompt)
	sb.WriteString("\n\nConversation so far:\n")
	for _, msg := range conv.History() {
		fmt.Fprintf(&sb, "%s: %s\n", msg.Sender, msg.Text())
	}
	fmt.Fprintf(&sb, "\nThe user says: %s\nRespond as the assistant.", input)
	return e.completion.Generate(ctx, sb.String(), true)
}

// Conversation is a single live mission. It implements
// core.MissionConversation.
type Conversation struct {
	id       string
	prompt   string
	ownerID  string
	clientID string
	tools    []core.ToolDescriptor
	context  map[string]any
	turnFn   TurnFunc

	mu          sync.Mutex
	history     []core.Message
	subscribers map[int]chan core.MissionEvent
	nextSubID   int
	pending     []core.MissionEvent
	ended       bool
}

func newConversation(prompt, ownerID, clientID string, tools []core.ToolDescriptor, missionContext map[string]any, turnFn TurnFunc) *Conversation {
	return &Conversation{
		id:          core.NewID(),
		prompt:      prompt,
		ownerID:     ownerID,
		clientID:    clientID,
		tools:       tools,
		context:     missionContext,
		turnFn:      turnFn,
		subscribers: make(map[int]chan core.MissionEvent),
	}
}

// ID returns the mission's conversation id.
func (c *Conversation) ID() string { return c.id }

// SendMessage records the user message and runs one assistant turn.
func (c *Conversation) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return ErrMissionEnded
	}
	c.mu.Unlock()

	return c.runTurn(ctx, text)
}

// End terminates the mission. Subscribers receive a final end event and
// their channels are closed. Ending twice is a no-op.
func (c *Conversation) End(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return nil
	}
	c.ended = true

	ev := core.MissionEvent{Kind: core.MissionEnd}
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
		close(ch)
	}
	c.subscribers = make(map[int]chan core.MissionEvent)
	return nil
}

// Subscribe attaches a listener to the mission event stream. Events emitted
// before the first subscriber attached are replayed immediately. The returned
// function detaches the listener.
func (c *Conversation) Subscribe() (<-chan core.MissionEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The buffer must hold the full pending backlog; replaying into a full
	// channel under c.mu would deadlock.
	size := 64
	if len(c.pending) > size {
		size = len(c.pending)
	}
	ch := make(chan core.MissionEvent, size)
	for _, ev := range c.pending {
		ch <- ev
	}
	c.pending = nil

	if c.ended {
		ch <- core.MissionEvent{Kind: core.MissionEnd}
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// History returns a copy of the mission transcript.
func (c *Conversation) History() []core.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Context returns the mission context handed over at escalation time.
func (c *Conversation) Context() map[string]any { return c.context }

// Tools returns the tool descriptors offered to the mission.
func (c *Conversation) Tools() []core.ToolDescriptor { return c.tools }

// EmitToolCall records a tool invocation and notifies subscribers. Intended
// for use from scripted turn functions. Arguments are validated against the
// declared input schema when the mission carries a descriptor for the tool.
func (c *Conversation) EmitToolCall(name string, args map[string]any) error {
	for _, tool := range c.tools {
		if tool.Name != name || tool.InputSchema == nil {
			continue
		}
		if err := util.ValidateArguments(args, tool.InputSchema); err != nil {
			return fmt.Errorf("tool %s: %w", name, err)
		}
	}

	msg := core.NewToolCallMessage(map[string]any{"name": name, "args": args})
	c.append(msg)
	c.emit(core.MissionEvent{Kind: core.MissionToolCall, Message: msg})
	return nil
}

// EmitToolOutput records a tool result and notifies subscribers.
func (c *Conversation) EmitToolOutput(content any) {
	msg := core.NewToolOutputMessage(content)
	c.append(msg)
	c.emit(core.MissionEvent{Kind: core.MissionToolOutput, Message: msg})
}

func (c *Conversation) runTurn(ctx context.Context, input string) error {
	c.append(core.NewTextMessage(core.SenderUser, input))

	reply, err := c.turnFn(ctx, c, input)
	if err != nil {
		return err
	}

	msg := core.NewTextMessage(core.SenderAssistant, reply)
	c.append(msg)
	c.emit(core.MissionEvent{Kind: core.MissionMessage, Message: msg})
	return nil
}

func (c *Conversation) append(msg core.Message) {
	c.mu.Lock()
	c.history = append(c.history, msg)
	c.mu.Unlock()
}

func (c *Conversation) emit(ev core.MissionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscribers) == 0 {
		c.pending = append(c.pending, ev)
		return
	}
	for _, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
