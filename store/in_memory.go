package store

import (
	"context"
	"sync"

	"github.com/hupe1980/convogate/core"
)

// InMemoryStore is a volatile core.EntityStore implementation keeping
// schema-less records in process-local nested maps. It is safe for
// concurrent access. Returned records are cloned to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]core.EntityRecord
}

// NewInMemoryStore constructs an empty in-memory entity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]core.EntityRecord)}
}

// Upsert stores a clone of the record under (collection, id), creating the
// collection on first write.
func (s *InMemoryStore) Upsert(ctx context.Context, req core.UpsertRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[req.Collection]
	if !ok {
		col = make(map[string]core.EntityRecord)
		s.collections[req.Collection] = col
	}
	col[req.ID] = req.Data.Clone()
	return nil
}

// Delete removes a record. Deleting an absent record or collection is a
// no-op, matching document-store semantics.
func (s *InMemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[collection]; ok {
		delete(col, id)
	}
	return nil
}

// Query returns clones of all records in collection matching the top-level
// equality filter. A collection that has never been written reports
// core.ErrStorageNotFound, mirroring a 404 from a remote document store;
// callers normalize that to an empty result.
func (s *InMemoryStore) Query(ctx context.Context, collection string, filter map[string]any, storageType string) ([]core.EntityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, core.ErrStorageNotFound
	}
	var out []core.EntityRecord
	for _, rec := range col {
		if matchesFilter(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Count reports the number of records in a collection. Test helper.
func (s *InMemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matchesFilter(rec core.EntityRecord, filter map[string]any) bool {
	for k, want := range filter {
		if got, ok := rec[k]; !ok || got != want {
			return false
		}
	}
	return true
}
