// Package core contains the shared domain types and collaborator ports of
// convogate: conversation sessions and messages, domain events and their
// normalization, state deltas and entity records, plus the narrow interfaces
// through which the orchestration core talks to the mission engine, the
// durable entity store and the message bus.
//
// The package is dependency-light on purpose: concrete implementations live
// in their own packages (session, store, bus, mission, model) and are wired
// together by the controller and the root façade.
package core
