// Package reconcile periodically compares each record type's snapshot
// keys against its document mirror and logs drift. The mirror runs after
// the snapshot write without a cross-store transaction, so a crash or a
// mirror outage leaves a window where the two disagree; this job makes
// that window observable. Detection only — resubmitting the affected
// record is the repair path.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
	"github.com/FairportRobotics/scouting-sync/internal/store"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// Drift is one record type's snapshot/mirror disagreement.
type Drift struct {
	Type          string
	MirrorMissing []string // keys in the snapshot but not the mirror
	MirrorOrphans []string // ids in the mirror but not the snapshot
}

// Empty reports whether the type's stores agree.
func (d Drift) Empty() bool {
	return len(d.MirrorMissing) == 0 && len(d.MirrorOrphans) == 0
}

// Reconciler runs scheduled drift checks over every registered type.
type Reconciler struct {
	snapshots *snapshot.Store
	docs      store.DocumentStore
	timeout   time.Duration
	sched     *cron.Cron
}

// New creates a reconciler. timeout bounds each full check cycle.
func New(snapshots *snapshot.Store, docs store.DocumentStore, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Reconciler{snapshots: snapshots, docs: docs, timeout: timeout}
}

// Start schedules drift checks with the given cron expression and runs
// one check immediately in the background.
func (r *Reconciler) Start(schedule string) error {
	r.sched = cron.New()
	if _, err := r.sched.AddFunc(schedule, r.runOnce); err != nil {
		return fmt.Errorf("bad reconcile schedule %q: %w", schedule, err)
	}
	r.sched.Start()
	go r.runOnce()

	slog.Info("reconciler started", "schedule", schedule)
	return nil
}

// Stop halts scheduling. A check already in flight finishes.
func (r *Reconciler) Stop() {
	if r.sched != nil {
		r.sched.Stop()
	}
}

func (r *Reconciler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	drifts, err := r.Check(ctx)
	if err != nil {
		slog.Error("reconcile check failed", "error", err)
		return
	}

	clean := true
	for _, d := range drifts {
		if d.Empty() {
			continue
		}
		clean = false
		slog.Warn("snapshot/mirror drift detected",
			"type", d.Type,
			"mirror_missing", d.MirrorMissing,
			"mirror_orphans", d.MirrorOrphans,
		)
	}
	if clean {
		slog.Debug("reconcile check clean",
			"types", len(drifts),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Check computes drift for every registered record type. Types whose
// snapshot has not been provisioned are skipped, not failed: provisioning
// is an operator step and the reconciler has nothing to compare yet.
func (r *Reconciler) Check(ctx context.Context) ([]Drift, error) {
	var drifts []Drift
	for _, cfg := range sync.All() {
		d, err := r.checkType(ctx, cfg)
		if err != nil {
			if errors.Is(err, snapshot.ErrNotInitialized) {
				continue
			}
			return nil, fmt.Errorf("check %s: %w", cfg.Key, err)
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}

func (r *Reconciler) checkType(ctx context.Context, cfg sync.TypeConfig) (Drift, error) {
	tbl, _, err := r.snapshots.Read(ctx, cfg.SnapshotName)
	if err != nil {
		return Drift{}, err
	}

	ids, err := r.docs.IDs(ctx, cfg.Collection)
	if err != nil {
		return Drift{}, fmt.Errorf("list mirror ids: %w", err)
	}

	inMirror := make(map[string]bool, len(ids))
	for _, id := range ids {
		inMirror[id] = true
	}
	inSnapshot := make(map[string]bool, len(tbl.Rows))

	d := Drift{Type: cfg.Key}
	for _, key := range tbl.Keys() {
		inSnapshot[key] = true
		if !inMirror[key] {
			d.MirrorMissing = append(d.MirrorMissing, key)
		}
	}
	for _, id := range ids {
		if !inSnapshot[id] {
			d.MirrorOrphans = append(d.MirrorOrphans, id)
		}
	}
	return d, nil
}
