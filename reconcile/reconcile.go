// Package reconcile applies normalized domain events to the durable entity
// store: it derives the target collection and operation, assigns a stable
// entity identifier, writes the change and produces the state delta pushed
// back to the client. Each application is an independent best-effort
// operation; there is no multi-entity transaction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/convogate/core"
	"github.com/hupe1980/convogate/logging"
)

// Tenant carries the session-derived isolation fields merged into every
// written record and used to namespace physical collections.
type Tenant struct {
	UserID           string
	ApplicationClass string
	InstanceID       string
}

// Options configures a Reconciler.
type Options struct {
	// DefaultCollection receives events whose type parses to neither the
	// domain nor the state namespace and that carry no explicit override.
	DefaultCollection string

	// StorageType is passed through opaquely to the entity store.
	StorageType string

	Logger logging.Logger
}

// Reconciler turns domain events into durable-store writes and state deltas.
type Reconciler struct {
	store             core.EntityStore
	defaultCollection string
	storageType       string
	logger            logging.Logger
}

// New constructs a Reconciler over an entity store.
func New(store core.EntityStore, optFns ...func(o *Options)) *Reconciler {
	opts := Options{
		DefaultCollection: "events",
		StorageType:       "document",
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reconciler{
		store:             store,
		defaultCollection: opts.DefaultCollection,
		storageType:       opts.StorageType,
		logger:            opts.Logger,
	}
}

// Apply reconciles a single normalized domain event against the durable
// store. It yields exactly one StateDelta on success or an error on failure;
// there is no partial application.
//
// Deletes require a resolvable entity identifier (event.EntityID, else
// payload "id", else payload "_id") and fail with core.ErrMissingEntityID
// otherwise. Writes generate a fresh unique id only when none is resolvable,
// preserve a payload-supplied createdAt (so historical events can be
// re-applied), and always advance updatedAt. Re-applying the same event is
// idempotent at the record level.
func (r *Reconciler) Apply(ctx context.Context, ev core.DomainEvent, tenant Tenant) (core.StateDelta, error) {
	collection := r.deriveCollection(ev)
	operation := deriveOperation(ev)
	physical := PhysicalCollection(tenant.InstanceID, collection)

	if operation == core.OpDelete {
		return r.applyDelete(ctx, ev, collection, physical)
	}
	return r.applyWrite(ctx, ev, tenant, collection, physical, operation)
}

func (r *Reconciler) applyDelete(ctx context.Context, ev core.DomainEvent, collection, physical string) (core.StateDelta, error) {
	id := resolveEntityID(ev)
	if id == "" {
		r.logOutcome(collection, core.OpDelete, "", core.ErrMissingEntityID)
		return core.StateDelta{}, fmt.Errorf("delete %q: %w", ev.Type, core.ErrMissingEntityID)
	}

	if err := r.store.Delete(ctx, physical, id); err != nil {
		r.logOutcome(collection, core.OpDelete, id, err)
		return core.StateDelta{}, fmt.Errorf("delete %s/%s: %w", physical, id, err)
	}

	r.logOutcome(collection, core.OpDelete, id, nil)
	return core.StateDelta{
		Type:           core.DeltaType,
		ConversationID: ev.ConversationID,
		Collection:     collection,
		Operation:      core.OpDelete,
		EntityID:       id,
		Timestamp:      time.Now().UTC(),
	}, nil
}

func (r *Reconciler) applyWrite(ctx context.Context, ev core.DomainEvent, tenant Tenant, collection, physical string, operation core.Operation) (core.StateDelta, error) {
	id := resolveEntityID(ev)
	if id == "" {
		id = core.NewID()
	}

	now := time.Now().UTC()
	record := make(core.EntityRecord, len(ev.Payload)+7)
	for k, v := range ev.Payload {
		record[k] = v
	}
	record["id"] = id
	record["conversationId"] = ev.ConversationID
	if tenant.UserID != "" {
		record["userId"] = tenant.UserID
	}
	if tenant.ApplicationClass != "" {
		record["applicationClass"] = tenant.ApplicationClass
	}
	if tenant.InstanceID != "" {
		record["instanceId"] = tenant.InstanceID
	}
	if _, ok := record["createdAt"]; !ok {
		// Re-applying an event must not reset creation time; fall back to the
		// already-stored record before stamping now.
		if existing, ok := r.lookupExisting(ctx, physical, id); ok {
			record["createdAt"] = existing["createdAt"]
		} else {
			record["createdAt"] = now
		}
	}
	record["updatedAt"] = now

	req := core.UpsertRequest{
		ID:          id,
		Collection:  physical,
		StorageType: r.storageType,
		Data:        record,
	}
	if err := r.store.Upsert(ctx, req); err != nil {
		r.logOutcome(collection, operation, id, err)
		return core.StateDelta{}, fmt.Errorf("upsert %s/%s: %w", physical, id, err)
	}

	r.logOutcome(collection, operation, id, nil)
	return core.StateDelta{
		Type:           core.DeltaType,
		ConversationID: ev.ConversationID,
		Collection:     collection,
		Operation:      operation,
		EntityID:       id,
		Data:           record,
		Timestamp:      now,
	}, nil
}

// logOutcome records the result of one event application. A ConvoLogger gets
// the structured reconciliation record; any other Logger gets plain entries.
func (r *Reconciler) logOutcome(collection string, operation core.Operation, entityID string, err error) {
	if cl, ok := r.logger.(*logging.ConvoLogger); ok {
		cl.LogReconciliation(collection, string(operation), entityID, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Warn("reconciliation failed", "collection", collection, "operation", string(operation), "entity_id", entityID, "error", err)
		return
	}
	r.logger.Debug("reconciliation completed", "collection", collection, "operation", string(operation), "entity_id", entityID)
}

func (r *Reconciler) lookupExisting(ctx context.Context, physical, id string) (core.EntityRecord, bool) {
	records, err := r.store.Query(ctx, physical, map[string]any{"id": id}, r.storageType)
	if err != nil || len(records) == 0 {
		return nil, false
	}
	if _, ok := records[0]["createdAt"]; !ok {
		return nil, false
	}
	return records[0], true
}

func (r *Reconciler) deriveCollection(ev core.DomainEvent) string {
	if ev.Collection != "" {
		return ev.Collection
	}
	if et := core.ParseEventType(ev.Type); et.Kind != core.EventTypeUnknown {
		return et.Collection
	}
	return r.defaultCollection
}

func deriveOperation(ev core.DomainEvent) core.Operation {
	if ev.Operation != "" {
		return ev.Operation
	}
	return core.ParseEventType(ev.Type).Operation
}

func resolveEntityID(ev core.DomainEvent) string {
	if ev.EntityID != "" {
		return ev.EntityID
	}
	if id, ok := ev.Payload["id"].(string); ok && id != "" {
		return id
	}
	if id, ok := ev.Payload["_id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// PhysicalCollection namespaces a logical collection per owning application
// instance to keep tenants isolated. An empty instance id leaves the
// collection unprefixed.
func PhysicalCollection(instanceID, collection string) string {
	if instanceID == "" {
		return collection
	}
	return instanceID + "_" + collection
}
