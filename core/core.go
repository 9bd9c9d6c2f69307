package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for entity records, conversations
// and correlation throughout the framework.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
