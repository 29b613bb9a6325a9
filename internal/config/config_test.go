package config

import (
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.AirtableTimeoutSec != 10 {
		t.Fatalf("unexpected airtable timeout: %d", cfg.AirtableTimeoutSec)
	}
	if cfg.MaxToolRounds != 5 {
		t.Fatalf("unexpected max tool rounds: %d", cfg.MaxToolRounds)
	}
	if cfg.SessionMaxTurns != 20 {
		t.Fatalf("unexpected session max turns: %d", cfg.SessionMaxTurns)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOT_TRAFFIC_HTTP_ADDR", ":9999")
	t.Setenv("DOT_TRAFFIC_PENDING_TTL_DAYS", "3")
	t.Setenv("DOT_TRAFFIC_SESSION_BACKEND", "sqlite")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("override not applied: %s", cfg.HTTPAddr)
	}
	if cfg.PendingTTLDays != 3 {
		t.Fatalf("override not applied: %d", cfg.PendingTTLDays)
	}
	if cfg.SessionBackend != "sqlite" {
		t.Fatalf("override not applied: %s", cfg.SessionBackend)
	}
}

func TestFromEnvInvalidIntFallsBack(t *testing.T) {
	t.Setenv("DOT_TRAFFIC_MAX_TOOL_ROUNDS", "zero")
	cfg := FromEnv()
	if cfg.MaxToolRounds != 5 {
		t.Fatalf("expected fallback, got %d", cfg.MaxToolRounds)
	}
}

func TestClientCodes(t *testing.T) {
	t.Setenv("DOT_TRAFFIC_CLIENT_CODES", "lab, sky ,,tow")
	codes := FromEnv().ClientCodes()
	want := []string{"LAB", "SKY", "TOW"}
	if len(codes) != len(want) {
		t.Fatalf("unexpected codes: %v", codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("unexpected codes: %v", codes)
		}
	}
}
