package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FairportRobotics/scouting-sync/internal/logging"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// errorResponse is the JSON body for every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorResponse{Error: message, Code: code})
}

// writeSyncError maps pipeline errors onto HTTP status codes: validation
// failures 400, unprovisioned snapshot 503, store failures 502, deadline
// overruns 504. Mirror failures keep 502 but carry a distinct code since
// the snapshot write already committed.
func writeSyncError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := sync.AsValidation(err); ok {
		writeError(w, r, http.StatusBadRequest, string(ve.Reason), ve.Message)
		return
	}

	if sync.IsNotInitialized(err) {
		writeError(w, r, http.StatusServiceUnavailable, "snapshot_not_initialized", err.Error())
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logging.FromContext(r.Context()).Error("sync timed out", "error", err)
		writeError(w, r, http.StatusGatewayTimeout, "store_timeout", "backing store did not respond in time")
		return
	}

	code := "store_unavailable"
	if sync.IsMirrorError(err) {
		code = "mirror_unavailable"
	}
	logging.FromContext(r.Context()).Error("sync failed", "error", err)
	writeError(w, r, http.StatusBadGateway, code, err.Error())
}
