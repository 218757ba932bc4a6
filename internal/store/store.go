// Package store defines the adapter boundaries for durable storage: a
// versioned object store backing the snapshots and raw archive, and a
// document store backing the per-type mirror collections. Concrete
// implementations (Postgres, Mongo) and in-memory fakes live alongside.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no object exists under the
	// requested container and name.
	ErrNotFound = errors.New("object not found")

	// ErrEtagMismatch is returned by a conditional Put when the stored
	// object's version no longer matches PutOptions.IfMatch. Callers
	// re-read and retry.
	ErrEtagMismatch = errors.New("etag mismatch")
)

// PutOptions controls write behavior for ObjectStore.Put.
type PutOptions struct {
	// IfMatch, when non-empty, makes the write conditional: it succeeds
	// only if the stored object's etag equals this value. An empty
	// IfMatch is an unconditional overwrite (create or replace).
	IfMatch string
}

// ObjectStore is the abstract blob interface consumed by the snapshot
// store and the raw archive. Every stored object carries an opaque etag
// that changes on each successful write.
type ObjectStore interface {
	// Get returns the object's bytes and current etag.
	Get(ctx context.Context, container, name string) (data []byte, etag string, err error)

	// Put writes the object and returns its new etag.
	Put(ctx context.Context, container, name string, data []byte, opts PutOptions) (etag string, err error)
}

// DocumentStore is the abstract interface for the per-type mirror
// collections. Upsert replaces any prior document with the same id.
type DocumentStore interface {
	Upsert(ctx context.Context, collection, id string, doc map[string]any) error

	// IDs lists every document id in a collection. Used by the drift
	// reconciler; not on the submission hot path.
	IDs(ctx context.Context, collection string) ([]string, error)
}
