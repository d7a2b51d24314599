package memory

import (
	"context"
	"sync"

	"rtdb-bridge/internal/docstore/domain/repository"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// Store keeps documents in process memory. Values are cloned on the way in and
// out so callers never share state with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*jsonvalue.Map
}

var _ repository.DocumentStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{collections: make(map[string]*jsonvalue.Map)}
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	out := make([]repository.Document, 0, docs.Len())
	docs.Range(func(id string, v jsonvalue.Value) bool {
		out = append(out, repository.Document{ID: id, Data: v.Clone()})
		return true
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (jsonvalue.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.collections[collection].Get(id)
	if !ok {
		return jsonvalue.Value{}, errors.NewNotFoundError("document " + collection + "/" + id).
			WithCause(errors.ErrDocumentNotFound)
	}
	return v.Clone(), nil
}

func (s *Store) Put(ctx context.Context, collection, id string, doc jsonvalue.Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = jsonvalue.NewMap()
		s.collections[collection] = docs
	}
	_, exists := docs.Get(id)
	docs.Set(id, doc.Clone())
	return !exists, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if docs == nil || !docs.Delete(id) {
		return errors.NewNotFoundError("document " + collection + "/" + id).
			WithCause(errors.ErrDocumentNotFound)
	}
	if docs.Len() == 0 {
		delete(s.collections, collection)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }
