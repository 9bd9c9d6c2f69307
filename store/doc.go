// Package store provides entity store implementations: a volatile in-memory
// store suited for tests and ephemeral demo servers, and a SQLite-backed
// durable store in the sqlite subpackage.
package store
