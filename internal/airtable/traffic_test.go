package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestFindByMessageIDEscapesFormula(t *testing.T) {
	var gotFormula string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		json.NewEncoder(w).Encode(listResponse{Records: []Record{{
			ID: "rec1",
			Fields: map[string]any{
				"internetMessageId": "<id'1@mail>",
				"Route":             "update",
				"Status":            "processed",
			},
		}}})
	})
	traffic := NewTraffic(client, "Traffic")
	log, err := traffic.FindByMessageID(context.Background(), "<id'1@mail>")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if log == nil || log.Route != "update" {
		t.Fatalf("unexpected log: %+v", log)
	}
	if !strings.Contains(gotFormula, "''1") {
		t.Fatalf("quote not escaped in formula: %q", gotFormula)
	}
}

func TestFindPendingClarificationEmptyConversation(t *testing.T) {
	traffic := NewTraffic(nil, "Traffic")
	log, err := traffic.FindPendingClarification(context.Background(), "")
	if err != nil || log != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", log, err)
	}
}

func TestResolveOnlyWhenPending(t *testing.T) {
	patched := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Record{
				ID:     "rec1",
				Fields: map[string]any{"Status": StatusResolved},
			})
		case http.MethodPatch:
			patched = true
			json.NewEncoder(w).Encode(Record{ID: "rec1"})
		}
	})
	traffic := NewTraffic(client, "Traffic")
	ok, err := traffic.Resolve(context.Background(), "rec1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ok {
		t.Fatal("resolve should report false for a non-pending record")
	}
	if patched {
		t.Fatal("non-pending record must not be patched")
	}
}

func TestResolvePendingPatches(t *testing.T) {
	var patchedFields map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Record{
				ID:     "rec1",
				Fields: map[string]any{"Status": StatusPending},
			})
		case http.MethodPatch:
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			patchedFields = body.Fields
			json.NewEncoder(w).Encode(Record{ID: "rec1"})
		}
	})
	traffic := NewTraffic(client, "Traffic")
	ok, err := traffic.Resolve(context.Background(), "rec1", "SKY 042")
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if patchedFields["Status"] != StatusResolved || patchedFields["JobNumber"] != "SKY 042" {
		t.Fatalf("patched fields: %+v", patchedFields)
	}
}

func TestExpirePendingBefore(t *testing.T) {
	patches := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			formula, _ := url.QueryUnescape(r.URL.RawQuery)
			if !strings.Contains(formula, StatusPending) {
				t.Fatalf("formula should filter pending: %q", formula)
			}
			json.NewEncoder(w).Encode(listResponse{Records: []Record{
				{ID: "recA", Fields: map[string]any{}},
				{ID: "recB", Fields: map[string]any{}},
			}})
		case http.MethodPatch:
			patches++
			json.NewEncoder(w).Encode(Record{})
		}
	})
	traffic := NewTraffic(client, "Traffic")
	n, err := traffic.ExpirePendingBefore(context.Background(), time.Now().AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 2 || patches != 2 {
		t.Fatalf("expired %d, patches %d", n, patches)
	}
}
