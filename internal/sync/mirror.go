package sync

import (
	"context"

	"github.com/FairportRobotics/scouting-sync/internal/record"
	"github.com/FairportRobotics/scouting-sync/internal/store"
)

// IDField is the identifier field added to every mirrored document. Its
// value is a copy of the record's key.
const IDField = "id"

// Mirror writes normalized records into the per-type document store
// collections. It runs only after the snapshot write commits, so a record
// that failed validation or merging is never mirrored.
type Mirror struct {
	docs store.DocumentStore
}

// NewMirror creates a mirror over the given document store.
func NewMirror(docs store.DocumentStore) *Mirror {
	return &Mirror{docs: docs}
}

// Write upserts the record into the type's collection, keyed by a copy of
// the record's key in the id field. A failure here maps to KindMirror so
// callers can tell it apart from a snapshot failure: the snapshot is
// already durable and resubmitting the same record converges.
func (m *Mirror) Write(ctx context.Context, cfg TypeConfig, rec record.Flat) error {
	doc := make(map[string]any, len(rec)+1)
	for field, value := range rec {
		doc[field] = value
	}
	doc[IDField] = rec.Key()

	if err := m.docs.Upsert(ctx, cfg.Collection, rec.Key(), doc); err != nil {
		return &StoreError{Kind: KindMirror, Op: "upsert " + cfg.Collection, Err: err}
	}
	return nil
}
