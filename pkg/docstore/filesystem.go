package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileStore implements Store using one JSON file per document on the local filesystem.
// Layout: <root>/<collection>/<id>.json
type FileStore struct {
	rootDir string
	mu      sync.RWMutex
}

// NewFileStore creates a new filesystem-based store
func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileStore{rootDir: rootDir}, nil
}

func (s *FileStore) documentPath(collection, id string) string {
	return filepath.Join(s.rootDir, collection, id+".json")
}

// Insert implements Store.Insert
func (s *FileStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Put implements Store.Put
func (s *FileStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := validateID(collection); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(collection, id, data)
}

func (s *FileStore) write(collection, id string, data map[string]any) error {
	collectionDir := filepath.Join(s.rootDir, collection)
	if err := os.MkdirAll(collectionDir, 0755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	// write-then-rename keeps a document whole if the process dies mid-write
	tmp := s.documentPath(collection, id) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write document file: %w", err)
	}
	if err := os.Rename(tmp, s.documentPath(collection, id)); err != nil {
		return fmt.Errorf("failed to commit document file: %w", err)
	}
	return nil
}

func (s *FileStore) read(collection, id string) (*Document, error) {
	payload, err := os.ReadFile(s.documentPath(collection, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data}, nil
}

// Get implements Store.Get
func (s *FileStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := validateID(id); err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(collection, id)
}

// Query implements Store.Query
func (s *FileStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.rootDir, q.Collection))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection directory: %w", err)
	}

	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		doc, err := s.read(q.Collection, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to get document %s: %w", entry.Name(), err)
		}
		ok, err := matches(doc.Data, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return finish(docs, q), nil
}

// Update implements Store.Update
func (s *FileStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateID(id); err != nil {
		return ErrNotFound
	}
	patch, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(collection, id)
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc.Data[k] = v
	}
	return s.write(collection, id, doc.Data)
}

// Delete implements Store.Delete
func (s *FileStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateID(id); err != nil {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.documentPath(collection, id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete document file: %w", err)
	}
	return nil
}

// Close implements Store.Close
func (s *FileStore) Close() error {
	return nil
}
