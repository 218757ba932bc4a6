package sync

import (
	"errors"
	"fmt"

	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
)

// ValidationReason identifies which input check a submission failed.
type ValidationReason string

const (
	ReasonMissingType    ValidationReason = "missing_type"
	ReasonUnknownType    ValidationReason = "unknown_type"
	ReasonMissingData    ValidationReason = "missing_data"
	ReasonMalformedJSON  ValidationReason = "malformed_json"
	ReasonMissingKey     ValidationReason = "missing_key"
	ReasonNestingTooDeep ValidationReason = "nesting_too_deep"
)

// ValidationError rejects a submission before any write happens. It is
// always recoverable by the caller fixing the request.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreKind names which of the three destinations a store failure hit.
type StoreKind string

const (
	KindSnapshot StoreKind = "snapshot"
	KindArchive  StoreKind = "archive"
	KindMirror   StoreKind = "mirror"
)

// StoreError wraps a transient infrastructure failure from one of the
// pipeline's destinations. Mirror failures are reported distinctly from
// snapshot failures: when Kind is KindMirror the snapshot write already
// committed and a resubmit converges.
type StoreError struct {
	Kind StoreKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// AsValidation unwraps a ValidationError if err carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// IsNotInitialized reports whether err stems from an unprovisioned
// snapshot.
func IsNotInitialized(err error) bool {
	return errors.Is(err, snapshot.ErrNotInitialized)
}

// IsMirrorError reports whether err is a document-mirror failure, which
// callers must surface distinctly from snapshot failures.
func IsMirrorError(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindMirror
}
