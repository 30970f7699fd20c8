package catalog

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lookupCacheSize bounds the per-service lookup cache. Workflow
// inspection hammers the same node types over and over.
const lookupCacheSize = 1024

// Service serves node lookups over a loaded catalog.
type Service struct {
	catalog Catalog
	cache   *lru.Cache[string, Entry]
}

// NewService wraps a catalog for cached lookup.
func NewService(catalog Catalog) (*Service, error) {
	cache, err := lru.New[string, Entry](lookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating lookup cache: %w", err)
	}
	return &Service{catalog: catalog, cache: cache}, nil
}

// Lookup resolves a node id, serving repeat lookups from the cache.
func (s *Service) Lookup(id string) (Entry, bool) {
	if entry, ok := s.cache.Get(id); ok {
		return entry, true
	}
	entry, ok := s.catalog[id]
	if !ok {
		return nil, false
	}
	s.cache.Add(id, entry)
	return entry, true
}

// Len returns the number of catalog entries.
func (s *Service) Len() int {
	return len(s.catalog)
}
