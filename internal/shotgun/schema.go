package shotgun

import (
	"context"
	"encoding/json"
	"sync"
)

// EntityTypes fetches the set of entity types the registry schema defines.
func (c *Client) EntityTypes(ctx context.Context) (map[string]struct{}, error) {
	var payload struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/schema", &payload); err != nil {
		return nil, err
	}

	types := make(map[string]struct{}, len(payload.Data))
	for name := range payload.Data {
		types[name] = struct{}{}
	}
	return types, nil
}

type schemaFetcher interface {
	EntityTypes(ctx context.Context) (map[string]struct{}, error)
}

// SchemaCache holds the registry entity-type listing, fetched lazily on
// first use and kept until Invalidate. A schema change in the registry makes
// the cached listing stale, which is why the admin reset clears it.
type SchemaCache struct {
	fetcher schemaFetcher

	mu     sync.Mutex
	types  map[string]struct{}
	loaded bool
}

func NewSchemaCache(fetcher schemaFetcher) *SchemaCache {
	return &SchemaCache{fetcher: fetcher}
}

// HasEntityType reports whether the schema defines the given entity type,
// fetching the schema on first use.
func (s *SchemaCache) HasEntityType(ctx context.Context, entityType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		types, err := s.fetcher.EntityTypes(ctx)
		if err != nil {
			return false, err
		}
		s.types = types
		s.loaded = true
	}

	_, ok := s.types[entityType]
	return ok, nil
}

// Invalidate drops the cached listing so the next check refetches it.
func (s *SchemaCache) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = nil
	s.loaded = false
}
