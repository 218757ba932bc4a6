package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/FairportRobotics/scouting-sync/internal/store"
)

// ErrNotInitialized reports that a record type's snapshot has never been
// provisioned. Submissions fail with this rather than silently creating an
// empty snapshot; an operator provisions once via `scoutsync provision`.
var ErrNotInitialized = errors.New("snapshot not initialized")

// Store reads and writes named snapshot tables through an object store,
// carrying version tokens so writers can detect concurrent modification.
type Store struct {
	objects   store.ObjectStore
	container string
}

// NewStore creates a snapshot store over the given container.
func NewStore(objects store.ObjectStore, container string) *Store {
	return &Store{objects: objects, container: container}
}

// Read fetches and parses the named snapshot. The returned version token
// must be passed back to Write for a conditional write.
func (s *Store) Read(ctx context.Context, name string) (*Table, string, error) {
	data, etag, err := s.objects.Get(ctx, s.container, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("snapshot %q: %w", name, ErrNotInitialized)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot %q: %w", name, err)
	}

	t, err := Unmarshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode snapshot %q: %w", name, err)
	}
	return t, etag, nil
}

// Write replaces the named snapshot, conditional on the version read
// earlier. Returns store.ErrEtagMismatch when another writer won the race.
func (s *Store) Write(ctx context.Context, name string, t *Table, version string) (string, error) {
	data, err := Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode snapshot %q: %w", name, err)
	}

	etag, err := s.objects.Put(ctx, s.container, name, data, store.PutOptions{IfMatch: version})
	if err != nil {
		if errors.Is(err, store.ErrEtagMismatch) {
			return "", err
		}
		return "", fmt.Errorf("write snapshot %q: %w", name, err)
	}
	return etag, nil
}

// Provision creates an empty snapshot if one does not already exist.
// A snapshot that is already present is left untouched.
func (s *Store) Provision(ctx context.Context, name string) (created bool, err error) {
	_, _, err = s.objects.Get(ctx, s.container, name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("check snapshot %q: %w", name, err)
	}

	data, err := Marshal(New())
	if err != nil {
		return false, fmt.Errorf("encode empty snapshot: %w", err)
	}
	if _, err := s.objects.Put(ctx, s.container, name, data, store.PutOptions{}); err != nil {
		return false, fmt.Errorf("provision snapshot %q: %w", name, err)
	}
	return true, nil
}
