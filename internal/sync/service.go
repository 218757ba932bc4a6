package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/logging"
	"github.com/FairportRobotics/scouting-sync/internal/record"
)

// Request is one endpoint invocation, already lifted out of the HTTP
// layer. Data is the JSON-encoded record; Reset and Refresh short-circuit
// normalization and mirroring.
type Request struct {
	Type    string
	Data    string
	Reset   bool
	Refresh bool
}

// Result is the successful outcome of a request.
type Result struct {
	Message string   `json:"message"`
	DataFor []string `json:"data_for,omitempty"`
}

// Service coordinates the pipeline per request: validate, dispatch to the
// record type's configuration, run the admin op or the upsert + mirror
// sequence, and assemble the response payload.
type Service struct {
	engine    *Engine
	mirror    *Mirror
	opTimeout time.Duration
}

// NewService creates the pipeline coordinator. opTimeout bounds each
// request's store work; zero disables the extra deadline.
func NewService(engine *Engine, mirror *Mirror, opTimeout time.Duration) *Service {
	return &Service{engine: engine, mirror: mirror, opTimeout: opTimeout}
}

// Handle runs one request through the pipeline.
//
// Validation failures return a *ValidationError and cause no writes.
// Store failures return a *StoreError identifying which destination
// failed; a KindMirror failure means the snapshot is already updated.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}

	if req.Type == "" {
		return nil, &ValidationError{Reason: ReasonMissingType, Message: "missing record type"}
	}
	cfg, ok := Lookup(req.Type)
	if !ok {
		return nil, &ValidationError{
			Reason:  ReasonUnknownType,
			Message: fmt.Sprintf("unknown record type %q", req.Type),
		}
	}

	switch {
	case req.Reset:
		return s.handleReset(ctx, cfg)
	case req.Refresh:
		return s.handleRefresh(ctx, cfg)
	}

	if req.Data == "" {
		return nil, &ValidationError{Reason: ReasonMissingData, Message: "missing record data"}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(req.Data), &raw); err != nil {
		return nil, &ValidationError{
			Reason:  ReasonMalformedJSON,
			Message: fmt.Sprintf("record does not parse as a JSON object: %v", err),
		}
	}

	rec, err := record.Flatten(raw)
	if err != nil {
		return nil, &ValidationError{
			Reason:  ReasonNestingTooDeep,
			Message: err.Error(),
		}
	}

	keys, err := s.engine.Upsert(ctx, cfg, []byte(req.Data), rec)
	if err != nil {
		return nil, err
	}

	if err := s.mirror.Write(ctx, cfg, rec); err != nil {
		// Snapshot already committed; caller sees a distinct mirror
		// failure and resubmits to converge.
		logging.FromContext(ctx).Warn("document mirror write failed after snapshot commit",
			"type", cfg.Key, "key", rec.Key(), "error", err)
		return nil, err
	}

	logging.FromContext(ctx).Info("record synced",
		"type", cfg.Key, "key", rec.Key(), "keys_in_scope", len(keys))

	return &Result{
		Message: fmt.Sprintf("Synced %s record %q", cfg.Key, rec.Key()),
		DataFor: keys,
	}, nil
}

func (s *Service) handleReset(ctx context.Context, cfg TypeConfig) (*Result, error) {
	if err := s.engine.Reset(ctx, cfg); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("snapshot reset", "type", cfg.Key)
	return &Result{Message: fmt.Sprintf("Reset %s snapshot", cfg.Key)}, nil
}

func (s *Service) handleRefresh(ctx context.Context, cfg TypeConfig) (*Result, error) {
	keys, err := s.engine.Refresh(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Result{
		Message: fmt.Sprintf("%s snapshot holds %d records", cfg.Key, len(keys)),
		DataFor: keys,
	}, nil
}
