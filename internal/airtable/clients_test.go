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

func skyRecord() Record {
	return Record{
		ID: "recSKY",
		Fields: map[string]any{
			"Client code":         "SKY",
			"Clients":             "Sky TV",
			"Teams ID":            "team-sky",
			"Next Job #":          float64(43),
			"Monthly Committed":   float64(10000),
			"Quarterly Committed": float64(30000),
			"Rollover Credit":     float64(5000),
			"Rollover use":        "JUL-SEP",
			"This month":          float64(4000),
			"This Quarter":        float64(21000),
			"JUL-SEP":             float64(21000),
		},
	}
}

func TestSearchExpandsDivisionCodes(t *testing.T) {
	var formula string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := url.QueryUnescape(r.URL.RawQuery)
		formula = raw
		json.NewEncoder(w).Encode(listResponse{})
	})
	clients := NewClients(client, "Clients")
	if _, err := clients.Search(context.Background(), "ONE", ""); err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, code := range []string{"'ONE'", "'ONB'", "'ONS'"} {
		if !strings.Contains(formula, code) {
			t.Fatalf("formula missing %s: %q", code, formula)
		}
	}
}

func TestSpendThisMonth(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Records: []Record{skyRecord()}})
	})
	clients := NewClients(client, "Clients")
	summary, err := clients.Spend(context.Background(), "SKY", "this_month", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if summary.Committed != 10000 || summary.Spent != 4000 {
		t.Fatalf("summary: %+v", summary)
	}
	if summary.PercentUsed != 40 {
		t.Fatalf("percent: %v", summary.PercentUsed)
	}
	if summary.RolloverCredit != 0 {
		t.Fatalf("rollover should not apply to monthly: %+v", summary)
	}
}

func TestSpendThisQuarterAppliesRollover(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Records: []Record{skyRecord()}})
	})
	clients := NewClients(client, "Clients")
	// August sits in JUL-SEP, which matches the record's "Rollover use".
	summary, err := clients.Spend(context.Background(), "SKY", "this_quarter", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if summary.Committed != 35000 {
		t.Fatalf("rollover not applied: %+v", summary)
	}
	if summary.Available != 14000 {
		t.Fatalf("available: %v", summary.Available)
	}
}

func TestSpendUnknownPeriod(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Records: []Record{skyRecord()}})
	})
	clients := NewClients(client, "Clients")
	if _, err := clients.Spend(context.Background(), "SKY", "fortnight", time.Now()); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestSpendUnknownClient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{})
	})
	clients := NewClients(client, "Clients")
	summary, err := clients.Spend(context.Background(), "ZZZ", "this_month", time.Now())
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if summary != nil {
		t.Fatalf("expected nil summary, got %+v", summary)
	}
}

func TestReserveJobNumber(t *testing.T) {
	var patched map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(listResponse{Records: []Record{skyRecord()}})
		case http.MethodPatch:
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			patched = body.Fields
			json.NewEncoder(w).Encode(Record{})
		}
	})
	clients := NewClients(client, "Clients")
	job, err := clients.ReserveJobNumber(context.Background(), "sky")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if job != "SKY 043" {
		t.Fatalf("job: %q", job)
	}
	if patched["Next Job #"] != float64(44) && patched["Next Job #"] != 44 {
		t.Fatalf("counter: %+v", patched)
	}
}
