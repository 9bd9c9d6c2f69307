// Package session provides the in-memory implementation of the conversation
// session registry. Sessions are volatile process-local state; a restart
// loses every active conversation by design.
package session
