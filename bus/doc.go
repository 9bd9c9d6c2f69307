// Package bus provides message bus implementations: an in-memory bus suited
// for tests and single-process deployments, and a WebSocket push hub in the
// ws subpackage.
package bus
