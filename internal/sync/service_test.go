package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FairportRobotics/scouting-sync/internal/snapshot"
	"github.com/FairportRobotics/scouting-sync/internal/store"
)

// failingDocStore always fails upserts, standing in for an unreachable
// document store.
type failingDocStore struct{}

func (failingDocStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	return errors.New("connection refused")
}

func (failingDocStore) IDs(ctx context.Context, collection string) ([]string, error) {
	return nil, errors.New("connection refused")
}

type serviceFixture struct {
	svc     *Service
	objects *store.MemObjectStore
	docs    *store.MemDocumentStore
}

func newTestService(t *testing.T, docs store.DocumentStore) serviceFixture {
	t.Helper()

	ClearRegistry()
	t.Cleanup(ClearRegistry)
	Register(matchType)
	Register(TypeConfig{Key: "pit", SnapshotName: "pit.csv", RawPrefix: "raw/pit", Collection: "pit"})

	objects := store.NewMemObjectStore()
	snaps := snapshot.NewStore(objects, testContainer)
	for _, cfg := range All() {
		if _, err := snaps.Provision(context.Background(), cfg.SnapshotName); err != nil {
			t.Fatalf("provision %s: %v", cfg.Key, err)
		}
	}

	memDocs, _ := docs.(*store.MemDocumentStore)
	engine := NewEngine(snaps, objects, testContainer, EngineOptions{Backoff: time.Millisecond})
	return serviceFixture{
		svc:     NewService(engine, NewMirror(docs), 5*time.Second),
		objects: objects,
		docs:    memDocs,
	}
}

func TestHandleSync(t *testing.T) {
	docs := store.NewMemDocumentStore()
	f := newTestService(t, docs)

	res, err := f.svc.Handle(context.Background(), Request{
		Type: "match",
		Data: `{"key": "2024nyro_qm1", "eventKey": "2024nyro", "auto": {"speaker": 3}}`,
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(res.DataFor) != 1 || res.DataFor[0] != "2024nyro_qm1" {
		t.Errorf("DataFor = %v", res.DataFor)
	}

	// Mirror got the flattened record with the key copied into id.
	doc := docs.Doc("match", "2024nyro_qm1")
	if doc == nil {
		t.Fatal("mirror document missing")
	}
	if doc["id"] != "2024nyro_qm1" {
		t.Errorf("doc id = %v", doc["id"])
	}
	if doc["auto_speaker"] != float64(3) {
		t.Errorf("doc auto_speaker = %v", doc["auto_speaker"])
	}
}

func TestHandleValidation(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		reason ValidationReason
	}{
		{"missing type", Request{Data: `{"key":"m1"}`}, ReasonMissingType},
		{"unknown type", Request{Type: "foo", Data: `{"key":"m1"}`}, ReasonUnknownType},
		{"missing data", Request{Type: "match"}, ReasonMissingData},
		{"malformed json", Request{Type: "match", Data: `{not json`}, ReasonMalformedJSON},
		{"json array not object", Request{Type: "match", Data: `[1,2]`}, ReasonMalformedJSON},
		{"too deep", Request{Type: "match", Data: `{"a":{"b":{"c":1}}}`}, ReasonNestingTooDeep},
		{"missing key", Request{Type: "match", Data: `{"score": 5}`}, ReasonMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := store.NewMemDocumentStore()
			f := newTestService(t, docs)

			_, err := f.svc.Handle(context.Background(), tt.req)
			ve, ok := AsValidation(err)
			if !ok {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Reason != tt.reason {
				t.Errorf("reason = %s, want %s", ve.Reason, tt.reason)
			}

			// No writes to any store.
			if ids, _ := docs.IDs(context.Background(), "match"); len(ids) != 0 {
				t.Errorf("mirror written on validation failure: %v", ids)
			}
			data, _, err := f.objects.Get(context.Background(), testContainer, "match.csv")
			if err != nil {
				t.Fatal(err)
			}
			tbl, _ := snapshot.Unmarshal(data)
			if len(tbl.Rows) != 0 {
				t.Errorf("snapshot written on validation failure: %v", tbl.Rows)
			}
		})
	}
}

func TestHandleMirrorFailureIsDistinct(t *testing.T) {
	f := newTestService(t, failingDocStore{})

	_, err := f.svc.Handle(context.Background(), Request{
		Type: "match",
		Data: `{"key": "m1"}`,
	})
	if !IsMirrorError(err) {
		t.Fatalf("error = %v, want mirror StoreError", err)
	}

	// The snapshot write already committed; resubmission converges.
	data, _, getErr := f.objects.Get(context.Background(), testContainer, "match.csv")
	if getErr != nil {
		t.Fatal(getErr)
	}
	tbl, _ := snapshot.Unmarshal(data)
	if len(tbl.Rows) != 1 {
		t.Fatalf("snapshot rows = %d, want 1 (durable before mirror)", len(tbl.Rows))
	}
}

func TestHandleReset(t *testing.T) {
	docs := store.NewMemDocumentStore()
	f := newTestService(t, docs)

	if _, err := f.svc.Handle(context.Background(), Request{Type: "match", Data: `{"key":"m1"}`}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Handle(context.Background(), Request{Type: "match", Reset: true})
	if err != nil {
		t.Fatalf("reset error = %v", err)
	}
	if res.DataFor != nil {
		t.Errorf("reset returned keys: %v", res.DataFor)
	}

	refresh, err := f.svc.Handle(context.Background(), Request{Type: "match", Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(refresh.DataFor) != 0 {
		t.Errorf("keys after reset = %v", refresh.DataFor)
	}

	// Reset ignores Data and does not touch the mirror.
	if ids, _ := docs.IDs(context.Background(), "match"); len(ids) != 1 {
		t.Errorf("reset modified the mirror: %v", ids)
	}
}

func TestHandleRefresh(t *testing.T) {
	docs := store.NewMemDocumentStore()
	f := newTestService(t, docs)

	for _, data := range []string{`{"key":"m1"}`, `{"key":"m2"}`} {
		if _, err := f.svc.Handle(context.Background(), Request{Type: "match", Data: data}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.svc.Handle(context.Background(), Request{Type: "match", Refresh: true})
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if len(res.DataFor) != 2 || res.DataFor[0] != "m1" || res.DataFor[1] != "m2" {
		t.Errorf("DataFor = %v, want [m1 m2]", res.DataFor)
	}
}

func TestHandleTypesAreIsolated(t *testing.T) {
	docs := store.NewMemDocumentStore()
	f := newTestService(t, docs)

	if _, err := f.svc.Handle(context.Background(), Request{Type: "match", Data: `{"key":"m1"}`}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Handle(context.Background(), Request{Type: "pit", Data: `{"key":"frc578"}`}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Handle(context.Background(), Request{Type: "pit", Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.DataFor) != 1 || res.DataFor[0] != "frc578" {
		t.Errorf("pit keys = %v, want [frc578]", res.DataFor)
	}
}
