package core

import "strings"

// EventTypeKind discriminates the namespace of a parsed event type.
type EventTypeKind int

// Recognized event type namespaces.
const (
	EventTypeUnknown EventTypeKind = iota
	EventTypeDomain
	EventTypeState
)

// EventType is the parsed form of a dot-namespaced event type string such as
// "domain.character.create" or "state.portfolio.update". Deriving collection
// and operation happens in exactly one place (ParseEventType) so the rules
// are exhaustively testable instead of re-split ad hoc at call sites.
type EventType struct {
	Kind       EventTypeKind
	Collection string
	Operation  Operation
}

// ParseEventType parses a raw event type string.
//
// Rules:
//   - first segment "domain" with at least 3 segments -> Domain, collection
//     is the second segment
//   - first segment "state" with at least 2 segments -> State, collection is
//     the second segment
//   - anything else -> Unknown with empty collection
//
// The operation is the last segment when it names a known operation,
// otherwise upsert.
func ParseEventType(raw string) EventType {
	segs := strings.Split(raw, ".")
	et := EventType{Kind: EventTypeUnknown, Operation: operationFromSegment(segs[len(segs)-1])}
	switch {
	case segs[0] == "domain" && len(segs) >= 3:
		et.Kind = EventTypeDomain
		et.Collection = segs[1]
	case segs[0] == "state" && len(segs) >= 2:
		et.Kind = EventTypeState
		et.Collection = segs[1]
	}
	return et
}

func operationFromSegment(seg string) Operation {
	switch op := Operation(seg); op {
	case OpCreate, OpUpdate, OpDelete, OpUpsert:
		return op
	}
	return OpUpsert
}
