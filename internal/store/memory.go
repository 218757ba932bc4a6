package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemObjectStore is an in-memory ObjectStore with the same etag semantics
// as the Postgres implementation. Safe for concurrent use; intended for
// tests and local development.
type MemObjectStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

type memObject struct {
	data []byte
	etag string
}

// NewMemObjectStore creates an empty in-memory object store.
func NewMemObjectStore() *MemObjectStore {
	return &MemObjectStore{objects: make(map[string]memObject)}
}

func memKey(container, name string) string {
	return container + "\x00" + name
}

// Get returns a copy of the stored bytes and the current etag.
func (s *MemObjectStore) Get(ctx context.Context, container, name string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[memKey(container, name)]
	if !ok {
		return nil, "", ErrNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.etag, nil
}

// Put stores the bytes, honoring conditional writes.
func (s *MemObjectStore) Put(ctx context.Context, container, name string, data []byte, opts PutOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(container, name)
	if opts.IfMatch != "" {
		obj, ok := s.objects[key]
		if !ok || obj.etag != opts.IfMatch {
			return "", ErrEtagMismatch
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	etag := uuid.New().String()
	s.objects[key] = memObject{data: stored, etag: etag}
	return etag, nil
}

// MemDocumentStore is an in-memory DocumentStore for tests.
type MemDocumentStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
}

// NewMemDocumentStore creates an empty in-memory document store.
func NewMemDocumentStore() *MemDocumentStore {
	return &MemDocumentStore{collections: make(map[string]map[string]map[string]any)}
}

// Upsert replaces the document with the given id.
func (s *MemDocumentStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}
	copied := make(map[string]any, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	coll[id] = copied
	return nil
}

// IDs lists every document id in a collection, sorted for determinism.
func (s *MemDocumentStore) IDs(ctx context.Context, collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Doc returns the stored document for inspection in tests, or nil.
func (s *MemDocumentStore) Doc(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		return nil
	}
	return coll[id]
}
