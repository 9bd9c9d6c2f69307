package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/convogate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCompletionSubstringMatch(t *testing.T) {
	m := NewMockCompletion()
	m.AddResponse("weather", "Sunny, 24 degrees.")
	ctx := context.Background()

	// Framed prompts still hit their canned answer.
	out, err := m.Generate(ctx, "You are an assistant.\nThe user says:\nwhat's the weather like?", true)
	require.NoError(t, err)
	assert.Equal(t, "Sunny, 24 degrees.", out)

	out, err = m.Generate(ctx, "unrelated", true)
	require.NoError(t, err)
	assert.Equal(t, "I'm not sure how to help with that.", out)
}

func TestMockCompletionEarlierRegistrationWins(t *testing.T) {
	m := NewMockCompletion()
	m.AddResponse("plan", "first")
	m.AddResponse("plan a trip", "second")

	out, err := m.Generate(context.Background(), "plan a trip", true)
	require.NoError(t, err)
	assert.Equal(t, "first", out)
}

func TestMockCompletionFailAndHeal(t *testing.T) {
	m := NewMockCompletion()
	m.Fail(errors.New("down"))

	_, err := m.Generate(context.Background(), "anything", true)
	assert.ErrorIs(t, err, core.ErrCompletionUnavailable)

	m.Fail(nil)
	_, err = m.Generate(context.Background(), "anything", true)
	assert.NoError(t, err)
}

func TestMockCompletionRespectsContext(t *testing.T) {
	m := NewMockCompletion()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, "anything", true)
	assert.ErrorIs(t, err, context.Canceled)
}
