package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/config"
	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
	"github.com/FairportRobotics/scouting-sync/internal/store"
	"github.com/FairportRobotics/scouting-sync/internal/sync"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.CORS.AllowOrigins = []string{"*"}
	cfg.Rate.Enabled = false
	return cfg
}

type webFixture struct {
	server  *Server
	objects *store.MemObjectStore
	docs    *store.MemDocumentStore
}

func newTestServer(t *testing.T, checks map[string]Pinger) *webFixture {
	t.Helper()

	sync.ClearRegistry()
	t.Cleanup(sync.ClearRegistry)
	sync.Register(sync.TypeConfig{
		Key:          "match",
		SnapshotName: "match.csv",
		RawPrefix:    "raw/match",
		Collection:   "match",
	})

	objects := store.NewMemObjectStore()
	docs := store.NewMemDocumentStore()

	snapshots := snapshot.NewStore(objects, "scouting")
	if _, err := snapshots.Provision(context.Background(), "match.csv"); err != nil {
		t.Fatalf("provisioning match snapshot: %v", err)
	}
	engine := sync.NewEngine(snapshots, objects, "scouting", sync.EngineOptions{})
	service := sync.NewService(engine, sync.NewMirror(docs), 5*time.Second)

	return &webFixture{
		server:  NewServer(service, testConfig(), checks),
		objects: objects,
		docs:    docs,
	}
}

func (f *webFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an error body: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestSyncViaJSONBody(t *testing.T) {
	f := newTestServer(t, nil)

	body := `{"type":"match","data":{"key":"2026nyro_qm1","eventKey":"2026nyro","auto":{"speaker":4}}}`
	rec := f.do(t, http.MethodPost, "/v1", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	var result sync.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(result.DataFor) != 1 || result.DataFor[0] != "2026nyro_qm1" {
		t.Errorf("DataFor = %v, want [2026nyro_qm1]", result.DataFor)
	}

	doc := f.docs.Doc("match", "2026nyro_qm1")
	if doc == nil {
		t.Fatal("record not mirrored to document store")
	}
	if doc["id"] != "2026nyro_qm1" {
		t.Errorf("mirror id = %v, want 2026nyro_qm1", doc["id"])
	}
}

func TestSyncViaQueryParams(t *testing.T) {
	f := newTestServer(t, nil)

	data := `{"key":"2026nyro_qm2","eventKey":"2026nyro"}`
	rec := f.do(t, http.MethodGet, "/v1?type=match&data="+url.QueryEscape(data), "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestSyncDataAsJSONString(t *testing.T) {
	f := newTestServer(t, nil)

	// data submitted as an escaped string, how the legacy clients send it.
	body := `{"type":"match","data":"{\"key\":\"2026nyro_qm3\"}"}`
	rec := f.do(t, http.MethodPost, "/v1", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestSyncValidationStatusCodes(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		body     string
		wantCode string
	}{
		{"missing type", "/v1", `{"data":{"key":"k"}}`, "missing_type"},
		{"unknown type", "/v1", `{"type":"banquet","data":{"key":"k"}}`, "unknown_type"},
		{"missing data", "/v1", `{"type":"match"}`, "missing_data"},
		{"malformed data", "/v1", `{"type":"match","data":"not json"}`, "malformed_json"},
		{"missing key", "/v1", `{"type":"match","data":{"eventKey":"2026nyro"}}`, "missing_key"},
		{"nested too deep", "/v1", `{"type":"match","data":{"key":"k","a":{"b":{"c":1}}}}`, "nesting_too_deep"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTestServer(t, nil)
			rec := f.do(t, http.MethodPost, tc.target, tc.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tc.wantCode {
				t.Errorf("error code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestSyncUnparseableBody(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/v1", `{{{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSyncSnapshotNotInitialized(t *testing.T) {
	sync.ClearRegistry()
	t.Cleanup(sync.ClearRegistry)
	sync.Register(sync.TypeConfig{
		Key:          "pit",
		SnapshotName: "pit.csv",
		RawPrefix:    "raw/pit",
		Collection:   "pit",
	})

	objects := store.NewMemObjectStore()
	snapshots := snapshot.NewStore(objects, "scouting")
	engine := sync.NewEngine(snapshots, objects, "scouting", sync.EngineOptions{})
	service := sync.NewService(engine, sync.NewMirror(store.NewMemDocumentStore()), time.Second)
	srv := NewServer(service, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1",
		strings.NewReader(`{"type":"pit","data":{"key":"frc578"}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (%s)", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "snapshot_not_initialized" {
		t.Errorf("error code = %q, want snapshot_not_initialized", resp.Code)
	}
}

func TestResetAndRefresh(t *testing.T) {
	f := newTestServer(t, nil)

	seed := `{"type":"match","data":{"key":"2026nyro_qm1","eventKey":"2026nyro"}}`
	if rec := f.do(t, http.MethodPost, "/v1", seed); rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1?type=match&refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d (%s)", rec.Code, rec.Body.String())
	}
	var result sync.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.DataFor) != 1 {
		t.Errorf("refresh DataFor = %v, want one key", result.DataFor)
	}

	if rec := f.do(t, http.MethodGet, "/v1?type=match&reset=true", ""); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d (%s)", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/v1?type=match&refresh=true", "")
	result = sync.Result{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if len(result.DataFor) != 0 {
		t.Errorf("DataFor after reset = %v, want empty", result.DataFor)
	}
}

// failingDocStore rejects every mirror operation.
type failingDocStore struct{ err error }

func (f *failingDocStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	return f.err
}

func (f *failingDocStore) IDs(ctx context.Context, collection string) ([]string, error) {
	return nil, f.err
}

// faultyObjectStore fails every Put with a fixed error.
type faultyObjectStore struct {
	*store.MemObjectStore
	putErr error
}

func (f *faultyObjectStore) Put(ctx context.Context, container, name string, data []byte, opts store.PutOptions) (string, error) {
	return "", f.putErr
}

// newServerWith builds a server over explicit stores with the match type
// registered, for exercising failure-path status codes.
func newServerWith(t *testing.T, objects store.ObjectStore, docs store.DocumentStore) *Server {
	t.Helper()

	sync.ClearRegistry()
	t.Cleanup(sync.ClearRegistry)
	sync.Register(sync.TypeConfig{
		Key:          "match",
		SnapshotName: "match.csv",
		RawPrefix:    "raw/match",
		Collection:   "match",
	})

	snapshots := snapshot.NewStore(objects, "scouting")
	engine := sync.NewEngine(snapshots, objects, "scouting", sync.EngineOptions{})
	service := sync.NewService(engine, sync.NewMirror(docs), 5*time.Second)
	return NewServer(service, testConfig(), nil)
}

func TestSyncMirrorFailureStatus(t *testing.T) {
	objects := store.NewMemObjectStore()
	snapshots := snapshot.NewStore(objects, "scouting")
	srv := newServerWith(t, objects, &failingDocStore{err: errors.New("connection refused")})
	if _, err := snapshots.Provision(context.Background(), "match.csv"); err != nil {
		t.Fatalf("provisioning match snapshot: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1",
		strings.NewReader(`{"type":"match","data":{"key":"2026nyro_qm1"}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "mirror_unavailable" {
		t.Errorf("error code = %q, want mirror_unavailable", resp.Code)
	}
}

func TestSyncStoreFailureStatus(t *testing.T) {
	objects := &faultyObjectStore{
		MemObjectStore: store.NewMemObjectStore(),
		putErr:         errors.New("connection reset"),
	}
	srv := newServerWith(t, objects, store.NewMemDocumentStore())

	req := httptest.NewRequest(http.MethodPost, "/v1",
		strings.NewReader(`{"type":"match","data":{"key":"2026nyro_qm1"}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "store_unavailable" {
		t.Errorf("error code = %q, want store_unavailable", resp.Code)
	}
}

func TestSyncStoreDeadlineStatus(t *testing.T) {
	objects := &faultyObjectStore{
		MemObjectStore: store.NewMemObjectStore(),
		putErr:         fmt.Errorf("put blob: %w", context.DeadlineExceeded),
	}
	srv := newServerWith(t, objects, store.NewMemDocumentStore())

	req := httptest.NewRequest(http.MethodPost, "/v1",
		strings.NewReader(`{"type":"match","data":{"key":"2026nyro_qm1"}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504 (%s)", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "store_timeout" {
		t.Errorf("error code = %q, want store_timeout", resp.Code)
	}
}

func TestLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	objects := store.NewMemObjectStore()
	srv := newServerWith(t, objects, &failingDocStore{err: errors.New("connection refused")})
	snapshots := snapshot.NewStore(objects, "scouting")
	if _, err := snapshots.Provision(context.Background(), "match.csv"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1",
		strings.NewReader(`{"type":"match","data":{"key":"2026nyro_qm1"}}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var requestID string
	var correlated int
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line is not JSON: %v (%s)", err, line)
		}
		id, _ := entry["request_id"].(string)
		if id == "" {
			continue
		}
		if requestID == "" {
			requestID = id
		} else if id != requestID {
			t.Errorf("request_id %q differs from %q within one request", id, requestID)
		}
		correlated++
	}
	// The failed mirror write and the access line must both carry the id.
	if correlated < 2 {
		t.Errorf("correlated log lines = %d, want at least 2 (%s)", correlated, buf.String())
	}
}

func TestHealthz(t *testing.T) {
	f := newTestServer(t, map[string]Pinger{
		"objectstore": func(context.Context) error { return nil },
		"mongo":       func(context.Context) error { return nil },
	})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestHealthzDegraded(t *testing.T) {
	f := newTestServer(t, map[string]Pinger{
		"objectstore": func(context.Context) error { return nil },
		"mongo":       func(context.Context) error { return errors.New("connection refused") },
	})

	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stores["mongo"] != "unreachable" {
		t.Errorf("mongo store = %q, want unreachable", resp.Stores["mongo"])
	}
}
