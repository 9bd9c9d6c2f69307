// Package triage implements the decision step determining whether a user's
// opening message can be answered directly or must be escalated into a
// long-running multi-step mission.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/convogate/logging"
	"github.com/hupe1980/convogate/model"
)

// Result is the outcome of triaging an opening user message. Exactly one of
// the two shapes applies: Escalate with a non-empty Reason, or a direct
// Answer carrying the raw completion text verbatim.
type Result struct {
	Escalate bool
	Reason   string
	Answer   string
}

// escalationMarker is the isolated JSON object the model is instructed to
// return when specialized tools or multi-step planning are required.
type escalationMarker struct {
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason"`
}

// Options configures an Engine.
type Options struct {
	// Model labels completion call log records. The backend interface does
	// not expose the model name, so callers that know it pass it here.
	Model string

	Logger logging.Logger
}

// Engine round-trips a specially framed prompt through the completion
// backend and parses the response for the escalation marker.
type Engine struct {
	completion model.Completion
	model      string
	logger     logging.Logger
}

// New constructs a triage engine over a completion backend.
func New(completion model.Completion, optFns ...func(o *Options)) *Engine {
	opts := Options{Model: "unknown", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{completion: completion, model: opts.Model, logger: opts.Logger}
}

// Triage decides direct answer vs escalation for an opening utterance.
//
// The parse is deliberately asymmetric: only a JSON object with
// escalate==true and a non-empty reason escalates. Any decode failure, or a
// successful decode without the marker, falls through to a direct answer
// using the raw text verbatim; false negatives are preferred over false
// positives that would block a valid conversational answer. Do not tighten
// this without confirming product intent; some callers rely on plain JSON
// answers being shown verbatim to the user.
//
// A completion backend failure is fatal here and surfaces to the caller
// unmodified; conversation start cannot degrade.
func (e *Engine) Triage(ctx context.Context, initialPrompt, persona string) (Result, error) {
	prompt := buildPrompt(initialPrompt, persona)

	start := time.Now()
	raw, err := e.completion.Generate(ctx, prompt, true)
	e.logCompletion(time.Since(start), err)
	if err != nil {
		return Result{}, fmt.Errorf("triage: %w", err)
	}

	var marker escalationMarker
	if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &marker); jsonErr == nil {
		if marker.Escalate && marker.Reason != "" {
			e.logger.Info("triage escalating", "reason", marker.Reason)
			return Result{Escalate: true, Reason: marker.Reason}, nil
		}
	}

	return Result{Answer: raw}, nil
}

// logCompletion records the timed triage round trip. A ConvoLogger gets the
// structured call record; any other Logger only hears about failures.
func (e *Engine) logCompletion(dur time.Duration, err error) {
	if cl, ok := e.logger.(*logging.ConvoLogger); ok {
		cl.WithComponent("triage").LogLLMCall(e.model, dur, err == nil, err)
		return
	}
	if err != nil {
		e.logger.Error("triage completion failed", "error", err, "duration", dur)
	}
}

func buildPrompt(initialPrompt, persona string) string {
	var sb strings.Builder
	if persona != "" {
		sb.WriteString(persona)
		sb.WriteString("\n\n")
	}
	sb.WriteString("The user says:\n")
	sb.WriteString(initialPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(`If and only if answering requires specialized tools or multi-step planning, respond with a single isolated JSON object {"escalate": true, "reason": "<why>"} and nothing else. Otherwise respond with a plain conversational answer.`)
	return sb.String()
}
