// Package extract scans free text produced by the completion backend (or by
// the user) for embedded structured-data fragments and normalizes them into
// domain events. Extraction is best effort: malformed fragments are logged
// and dropped, never raised.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/logging"
)

// Fragment delimiters. The model is prompted to wrap structured facts in
// these markers; everything between one start and the next end marker is
// decoded as JSON.
const (
	BlockStart = "[DATA_BLOCK_START]"
	BlockEnd   = "[DATA_BLOCK_END]"
)

// Options configures an Extractor.
type Options struct {
	Logger logging.Logger
}

// Extractor pulls domain events out of unstructured text.
type Extractor struct {
	logger logging.Logger
}

// New constructs an Extractor.
func New(optFns ...func(o *Options)) *Extractor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{logger: opts.Logger}
}

// Extract returns one domain event per well-formed marker-delimited fragment
// in text, in order of appearance. A fragment is well formed when its
// interior decodes as a JSON object carrying a non-empty string "type"
// field; the event type becomes "domain." + <declared type> + ".create" and
// the entity id is the declared "id", else the declared "name". Fragments
// that fail to decode reduce the count without raising; text with no valid
// fragments yields an empty list.
func (x *Extractor) Extract(text string) []core.DomainEvent {
	var events []core.DomainEvent

	rest := text
	for {
		start := strings.Index(rest, BlockStart)
		if start < 0 {
			break
		}
		rest = rest[start+len(BlockStart):]
		end := strings.Index(rest, BlockEnd)
		if end < 0 {
			break
		}
		fragment := rest[:end]
		rest = rest[end+len(BlockEnd):]

		ev, ok := x.decodeFragment(fragment)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	return events
}

func (x *Extractor) decodeFragment(fragment string) (core.DomainEvent, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(fragment)), &payload); err != nil {
		x.logger.Warn("dropping malformed data block", "error", err)
		return core.DomainEvent{}, false
	}

	declaredType, _ := payload["type"].(string)
	if declaredType == "" {
		x.logger.Warn("dropping data block without type field")
		return core.DomainEvent{}, false
	}

	return core.DomainEvent{
		Type:     "domain." + declaredType + ".create",
		Payload:  payload,
		EntityID: declaredID(payload),
		Source:   core.SourceBrain,
	}, true
}

// FromMessage inspects a single message's literal content for a bare JSON
// object carrying an explicit "type" and "payload". This second, independent
// path lets a user emit domain events directly by sending a raw structured
// message instead of natural language. The declared type is used as-is, not
// wrapped in the "domain.*.create" convention.
func (x *Extractor) FromMessage(content any) (core.DomainEvent, bool) {
	var obj map[string]any
	switch c := content.(type) {
	case map[string]any:
		obj = c
	case string:
		trimmed := strings.TrimSpace(c)
		if !strings.HasPrefix(trimmed, "{") {
			return core.DomainEvent{}, false
		}
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return core.DomainEvent{}, false
		}
	default:
		return core.DomainEvent{}, false
	}

	declaredType, _ := obj["type"].(string)
	payload, hasPayload := obj["payload"].(map[string]any)
	if declaredType == "" || !hasPayload {
		return core.DomainEvent{}, false
	}

	ev := core.DomainEvent{
		Type:     declaredType,
		Payload:  payload,
		EntityID: declaredID(payload),
		Source:   core.SourceUser,
	}
	if collection, ok := obj["collection"].(string); ok {
		ev.Collection = collection
	}
	if op, ok := obj["operation"].(string); ok {
		ev.Operation = core.Operation(op)
	}
	if id, ok := obj["entityId"].(string); ok {
		ev.EntityID = id
	}
	return ev, true
}

func declaredID(payload map[string]any) string {
	if id, ok := payload["id"].(string); ok && id != "" {
		return id
	}
	if name, ok := payload["name"].(string); ok && name != "" {
		return name
	}
	return ""
}
