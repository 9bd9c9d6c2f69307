package model

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/convogate/core"
)

// Completion is the minimal interface to the LLM completion backend. The
// core always requests raw output (raw=true) and does its own JSON sniffing
// on the result; raw=false lets adapters apply provider-side formatting for
// callers outside the core.
type Completion interface {
	Generate(ctx context.Context, prompt string, raw bool) (string, error)
}

// Info contains metadata about a completion backend implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// MockCompletion is a lightweight in-memory Completion useful for tests and
// examples. Responses are matched by substring against the prompt so framed
// prompts (persona + history + utterance) still hit their canned answers.
type MockCompletion struct {
	mu        sync.RWMutex
	responses []mockResponse
	fallback  string
	err       error
}

type mockResponse struct {
	match    string
	response string
}

// NewMockCompletion constructs a MockCompletion with a generic fallback.
func NewMockCompletion() *MockCompletion {
	return &MockCompletion{fallback: "I'm not sure how to help with that."}
}

// AddResponse registers a canned completion returned whenever the prompt
// contains match. Earlier registrations win on overlap.
func (m *MockCompletion) AddResponse(match, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{match: match, response: response})
}

// SetFallback sets the response used when no registration matches.
func (m *MockCompletion) SetFallback(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// Fail makes every subsequent Generate call return err wrapped as a
// completion-unavailable failure. Pass nil to heal the backend.
func (m *MockCompletion) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate implements Completion.
func (m *MockCompletion) Generate(ctx context.Context, prompt string, raw bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", core.ErrCompletionUnavailable
	}
	for _, r := range m.responses {
		if strings.Contains(prompt, r.match) {
			return r.response, nil
		}
	}
	return m.fallback, nil
}

// Info implements metadata reporting for the mock.
func (m *MockCompletion) Info() Info { return Info{Name: "mock", Provider: "mock"} }
