package docstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"centavo.app/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used by tests
// and for running the service without Postgres.
type InMemory struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Document // collection -> id -> document
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[string]map[string]*Document)}
}

func (s *InMemory) Put(ctx context.Context, doc Document) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = ids.New()
	}
	doc.Fields = maps.Clone(doc.Fields)
	coll, ok := s.docs[doc.Collection]
	if !ok {
		coll = make(map[string]*Document)
		s.docs[doc.Collection] = coll
	}
	stored := doc
	coll[doc.ID] = &stored
	return copyOut(&stored), nil
}

func (s *InMemory) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyOut(doc), nil
}

func (s *InMemory) Query(ctx context.Context, collection, owner string, filters []Filter, order *Order) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []Document
	for _, doc := range s.docs[collection] {
		if owner != "" && doc.Owner != owner {
			continue
		}
		ok, err := MatchesFilters(*doc, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, copyOut(doc))
		}
	}
	SortDocuments(res, order)
	return res, nil
}

func (s *InMemory) Update(ctx context.Context, collection, id string, patch map[string]any, updatedAt time.Time) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	if doc.Fields == nil {
		doc.Fields = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		doc.Fields[k] = v
	}
	doc.UpdatedAt = updatedAt
	return copyOut(doc), nil
}

func (s *InMemory) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.docs[collection], id)
	return nil
}

func copyOut(doc *Document) Document {
	out := *doc
	out.Fields = maps.Clone(doc.Fields)
	return out
}
