package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGateway keeps a collection in process memory. It enforces the same
// unique index as the real backends and reports violations with MongoDB's
// duplicate-key wording.
type MemoryGateway[T any, P Record[T]] struct {
	mu         sync.RWMutex
	collection string
	records    map[string]T
	now        func() time.Time
}

func NewMemoryGateway[T any, P Record[T]](collection string) *MemoryGateway[T, P] {
	return &MemoryGateway[T, P]{
		collection: collection,
		records:    make(map[string]T),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (g *MemoryGateway[T, P]) Insert(_ context.Context, entity T) (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkUnique("", P(&entity).uniqueKey()); err != nil {
		var zero T
		return zero, err
	}

	now := g.now()
	*P(&entity).document() = Document{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	g.records[P(&entity).document().ID] = entity
	return entity, nil
}

func (g *MemoryGateway[T, P]) FindByID(_ context.Context, id string) (*T, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entity, ok := g.records[id]
	if !ok {
		return nil, nil
	}
	return &entity, nil
}

func (g *MemoryGateway[T, P]) FindAll(_ context.Context) ([]T, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]T, 0, len(g.records))
	for _, entity := range g.records {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := P(&out[i]).document(), P(&out[j]).document()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (g *MemoryGateway[T, P]) UpdateByID(_ context.Context, id string, entity T) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.records[id]
	if !ok {
		return nil
	}

	merged, err := mergePatch(current, entity)
	if err != nil {
		return storeErr("update", g.collection, err)
	}
	if err := g.checkUnique(id, P(&merged).uniqueKey()); err != nil {
		return err
	}

	doc := *P(&current).document()
	doc.UpdatedAt = g.now()
	*P(&merged).document() = doc
	g.records[id] = merged
	return nil
}

func (g *MemoryGateway[T, P]) DeleteByID(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.records, id)
	return nil
}

func (g *MemoryGateway[T, P]) Ping(context.Context) error {
	return nil
}

// Len reports the number of stored records.
func (g *MemoryGateway[T, P]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

func (g *MemoryGateway[T, P]) checkUnique(selfID, key string) error {
	for id, existing := range g.records {
		if id != selfID && P(&existing).uniqueKey() == key {
			return &ConflictError{
				Collection: g.collection,
				Err: fmt.Errorf("E11000 duplicate key error collection: %s index: %s_1 dup key: { %s: %q }",
					g.collection, uniqueField, uniqueField, key),
			}
		}
	}
	return nil
}

// mergePatch applies the non-empty fields of patch on top of current.
func mergePatch[T any](current, patch T) (T, error) {
	var out T
	base, err := patchFields(current)
	if err != nil {
		return out, err
	}
	changes, err := patchFields(patch)
	if err != nil {
		return out, err
	}
	for k, v := range changes {
		base[k] = v
	}
	raw, err := json.Marshal(base)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
