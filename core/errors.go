package core

import "errors"

// Sentinel errors forming the error taxonomy of the orchestration core.
// Callers discriminate with errors.Is; wrapping sites add context with %w.
var (
	// ErrCompletionUnavailable indicates the completion backend was
	// unreachable or errored. Fatal at conversation start (triage); during
	// direct-reply generation it is caught and converted into a user-visible
	// apology message instead.
	ErrCompletionUnavailable = errors.New("completion backend unavailable")

	// ErrConversationNotFound is returned by any operation referencing an
	// unknown conversation id. Always surfaced, never silently ignored.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMissingEntityID is returned for a delete-type domain event without a
	// resolvable entity identifier. Fatal for that single event only.
	ErrMissingEntityID = errors.New("domain event has no resolvable entity id")

	// ErrStorageNotFound is reported by entity stores when a collection or
	// record does not exist. Query paths normalize it to an empty result set
	// since "no data yet" is a normal state for a fresh conversation.
	ErrStorageNotFound = errors.New("storage: not found")
)
