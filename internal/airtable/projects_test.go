package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestNormalizeDueDate(t *testing.T) {
	cases := map[string]string{
		"5/3/2026":   "2026-03-05",
		"28/11/2025": "2025-11-28",
		"2026-03-05": "2026-03-05",
		"TBC":        "",
		"tbc":        "",
		"":           "",
		"whenever":   "",
	}
	for in, want := range cases {
		if got := normalizeDueDate(in); got != want {
			t.Fatalf("normalizeDueDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindByJobNumber(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Records: []Record{{
			ID: "recJob",
			Fields: map[string]any{
				"Job Number":       "LAB 055",
				"Project Name":     "Spring campaign",
				"Client":           []any{"Labtests"},
				"Stage":            "Design",
				"Status":           "In Progress",
				"With Client?":     true,
				"Teams Channel ID": "19:chan",
				"Update Due":       "5/3/2026",
			},
		}}})
	})
	projects := NewProjects(client, "Projects")
	project, err := projects.FindByJobNumber(context.Background(), "LAB 055")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if project.JobName != "Spring campaign" || project.ClientName != "Labtests" {
		t.Fatalf("unexpected project: %+v", project)
	}
	if !project.WithClient {
		t.Fatal("with client flag lost")
	}
	if project.UpdateDue != "2026-03-05" {
		t.Fatalf("due date: %q", project.UpdateDue)
	}
}

func TestListActiveForClientFormula(t *testing.T) {
	var formula string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := url.QueryUnescape(r.URL.RawQuery)
		formula = raw
		json.NewEncoder(w).Encode(listResponse{})
	})
	projects := NewProjects(client, "Projects")
	if _, err := projects.ListActiveForClient(context.Background(), "lab"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(formula, "FIND('LAB ', {Job Number})=1") {
		t.Fatalf("formula: %q", formula)
	}
	if !strings.Contains(formula, "{Status}!='Completed'") {
		t.Fatalf("formula: %q", formula)
	}
}

func TestAppendUpdateCapsHistory(t *testing.T) {
	var patched map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Record{
				ID: "recJob",
				Fields: map[string]any{
					"Update":         "newest old",
					"Update History": "h1\nh2\nh3\nh4\nh5",
				},
			})
		case http.MethodPatch:
			var body struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			patched = body.Fields
			json.NewEncoder(w).Encode(Record{})
		}
	})
	projects := NewProjects(client, "Projects")
	if err := projects.AppendUpdate(context.Background(), "recJob", "brand new"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if patched["Update"] != "brand new" {
		t.Fatalf("update field: %+v", patched)
	}
	history, _ := patched["Update History"].(string)
	lines := strings.Split(history, "\n")
	if len(lines) != 5 || lines[0] != "newest old" || lines[4] != "h4" {
		t.Fatalf("history: %q", history)
	}
}
