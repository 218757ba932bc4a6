package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/logging"
	"github.com/FairportRobotics/scouting-sync/internal/record"
	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
	"github.com/FairportRobotics/scouting-sync/internal/store"
)

// Engine performs the read-merge-write snapshot upsert together with the
// raw archive write. Snapshot writes are optimistic: conditional on the
// version read, retried with jittered backoff on conflict so concurrent
// submissions for the same type never lose updates.
type Engine struct {
	snapshots        *snapshot.Store
	archive          store.ObjectStore
	archiveContainer string

	maxAttempts int
	backoff     time.Duration
}

// EngineOptions tunes the optimistic-concurrency retry loop. Zero values
// fall back to defaults.
type EngineOptions struct {
	MaxAttempts int           // default 5
	Backoff     time.Duration // base backoff between attempts, default 50ms
}

// NewEngine creates an upsert engine over the given stores.
func NewEngine(snapshots *snapshot.Store, archive store.ObjectStore, archiveContainer string, opts EngineOptions) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	return &Engine{
		snapshots:        snapshots,
		archive:          archive,
		archiveContainer: archiveContainer,
		maxAttempts:      opts.MaxAttempts,
		backoff:          opts.Backoff,
	}
}

// Upsert archives the raw payload and merges the normalized record into
// the type's snapshot. Returns the keys present after the merge, scoped
// to the record's eventKey when it carries one.
//
// No writes happen when the record lacks a key. The raw archive write is
// an unconditional overwrite (idempotent by name); the snapshot write is
// conditional and retried.
func (e *Engine) Upsert(ctx context.Context, cfg TypeConfig, raw []byte, rec record.Flat) ([]string, error) {
	key := rec.Key()
	if key == "" {
		return nil, &ValidationError{
			Reason:  ReasonMissingKey,
			Message: fmt.Sprintf("record of type %q has no %q field", cfg.Key, record.KeyField),
		}
	}

	if _, err := e.archive.Put(ctx, e.archiveContainer, cfg.RawName(key), raw, store.PutOptions{}); err != nil {
		return nil, &StoreError{Kind: KindArchive, Op: "put " + cfg.RawName(key), Err: err}
	}

	row := toRow(rec)

	for attempt := 1; ; attempt++ {
		tbl, version, err := e.snapshots.Read(ctx, cfg.SnapshotName)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotInitialized) {
				return nil, err
			}
			return nil, &StoreError{Kind: KindSnapshot, Op: "read " + cfg.SnapshotName, Err: err}
		}

		tbl.Upsert(row)

		_, err = e.snapshots.Write(ctx, cfg.SnapshotName, tbl, version)
		if err == nil {
			return tbl.KeysScoped(record.EventField, rec.EventKey()), nil
		}
		if !errors.Is(err, store.ErrEtagMismatch) {
			return nil, &StoreError{Kind: KindSnapshot, Op: "write " + cfg.SnapshotName, Err: err}
		}
		if attempt >= e.maxAttempts {
			return nil, &StoreError{
				Kind: KindSnapshot,
				Op:   "write " + cfg.SnapshotName,
				Err:  fmt.Errorf("version conflict persisted after %d attempts", attempt),
			}
		}

		logging.FromContext(ctx).Debug("snapshot version conflict, retrying",
			"type", cfg.Key, "key", key, "attempt", attempt)
		if err := sleepBackoff(ctx, e.backoff, attempt); err != nil {
			return nil, &StoreError{Kind: KindSnapshot, Op: "write " + cfg.SnapshotName, Err: err}
		}
	}
}

// Reset truncates the type's snapshot, preserving its column headers.
// The raw archive and document mirror are deliberately left untouched;
// resubmission is the documented path to repopulate them coherently.
func (e *Engine) Reset(ctx context.Context, cfg TypeConfig) error {
	for attempt := 1; ; attempt++ {
		tbl, version, err := e.snapshots.Read(ctx, cfg.SnapshotName)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotInitialized) {
				return err
			}
			return &StoreError{Kind: KindSnapshot, Op: "read " + cfg.SnapshotName, Err: err}
		}

		tbl.Truncate()

		_, err = e.snapshots.Write(ctx, cfg.SnapshotName, tbl, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrEtagMismatch) {
			return &StoreError{Kind: KindSnapshot, Op: "write " + cfg.SnapshotName, Err: err}
		}
		if attempt >= e.maxAttempts {
			return &StoreError{
				Kind: KindSnapshot,
				Op:   "write " + cfg.SnapshotName,
				Err:  fmt.Errorf("version conflict persisted after %d attempts", attempt),
			}
		}
		if err := sleepBackoff(ctx, e.backoff, attempt); err != nil {
			return &StoreError{Kind: KindSnapshot, Op: "write " + cfg.SnapshotName, Err: err}
		}
	}
}

// Refresh returns every key currently in the type's snapshot without
// mutating anything.
func (e *Engine) Refresh(ctx context.Context, cfg TypeConfig) ([]string, error) {
	tbl, _, err := e.snapshots.Read(ctx, cfg.SnapshotName)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotInitialized) {
			return nil, err
		}
		return nil, &StoreError{Kind: KindSnapshot, Op: "read " + cfg.SnapshotName, Err: err}
	}
	return tbl.Keys(), nil
}

// toRow renders a flat record into snapshot cells.
func toRow(rec record.Flat) snapshot.Row {
	row := make(snapshot.Row, len(rec))
	for field, value := range rec {
		row[field] = record.CellString(value)
	}
	return row
}

// sleepBackoff waits the base duration scaled by attempt plus jitter,
// honoring cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	d := base*time.Duration(attempt) + time.Duration(rand.Int63n(int64(base)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
