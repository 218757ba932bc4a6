package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/logging"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

// syncBody is the JSON request shape for POST /v1. Data accepts either a
// raw JSON object or a JSON string holding one; query parameters with the
// same names take precedence so scouting tablets can keep submitting via
// GET.
type syncBody struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Reset   bool            `json:"reset"`
	Refresh bool            `json:"refresh"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	req, err := parseSyncRequest(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, string(sync.ReasonMalformedJSON), err.Error())
		return
	}

	result, err := s.service.Handle(r.Context(), req)
	if err != nil {
		writeSyncError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func parseSyncRequest(r *http.Request) (sync.Request, error) {
	var req sync.Request

	if r.Body != nil && r.Method == http.MethodPost {
		var body syncBody
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return req, err
		}
		req.Type = body.Type
		req.Reset = body.Reset
		req.Refresh = body.Refresh
		req.Data = rawToString(body.Data)
	}

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		req.Type = v
	}
	if v := q.Get("data"); v != "" {
		req.Data = v
	}
	if q.Has("reset") {
		req.Reset = boolParam(q.Get("reset"))
	}
	if q.Has("refresh") {
		req.Refresh = boolParam(q.Get("refresh"))
	}
	return req, nil
}

// rawToString unwraps a JSON string payload so the service always sees
// the record's object encoding.
func rawToString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// boolParam treats a bare flag ("?reset") and unparseable values as true,
// matching how the field scouting clients submit admin toggles.
func boolParam(v string) bool {
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

type healthStatus struct {
	Status string            `json:"status"`
	Stores map[string]string `json:"stores,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthStatus{Status: "ok"}
	if len(s.checks) > 0 {
		resp.Stores = make(map[string]string, len(s.checks))
	}

	status := http.StatusOK
	for name, ping := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := ping(ctx)
		cancel()
		if err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "store", name, "error", err)
			resp.Stores[name] = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Stores[name] = "ok"
	}
	writeJSON(w, r, status, resp)
}
