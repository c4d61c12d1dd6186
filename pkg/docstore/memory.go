package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
	}
}

// Insert implements Store.Insert
func (s *MemoryStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Put implements Store.Put
func (s *MemoryStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateID(id); err != nil {
		return err
	}
	fields, err := normalizeFields(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	docs[id] = fields
	return nil
}

// Get implements Store.Get
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDocument(&Document{ID: id, Data: data}), nil
}

// Query implements Store.Query
func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*Document
	for id, data := range s.collections[q.Collection] {
		ok, err := matches(data, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, cloneDocument(&Document{ID: id, Data: data}))
		}
	}
	// map iteration order is random; ties keep id order
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return finish(docs, q), nil
}

// Update implements Store.Update
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := make(map[string]any, len(data)+len(patch))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.collections[collection][id] = merged
	return nil
}

// Delete implements Store.Delete
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Close implements Store.Close
func (s *MemoryStore) Close() error {
	return nil
}
