// Package httpapi exposes the traffic and hub endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/hub"
	"github.com/mghunch/dot-traffic/internal/inbound"
	rt "github.com/mghunch/dot-traffic/internal/router"
)

const maxRequestBytes = 2 << 20

// TrafficRouter is the message-routing seam.
type TrafficRouter interface {
	Handle(ctx context.Context, msg inbound.Message) (rt.Result, error)
}

// HubService answers hub chat turns.
type HubService interface {
	Chat(ctx context.Context, req hub.Request) (brain.RoutingDecision, string, error)
	Clear(ctx context.Context, sessionID string) error
}

type Dependencies struct {
	Router  TrafficRouter
	Hub     HubService
	Logger  *slog.Logger
	Version string
}

type api struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &api{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/traffic", a.handleTraffic)
	mux.HandleFunc("/traffic/clear", a.handleClear)
	mux.HandleFunc("/hub", a.handleHub)
	mux.HandleFunc("/hub/ws", a.handleHubWS)
	return mux
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "dot-traffic",
		"version": a.deps.Version,
		"features": []string{
			"gates", "dedup", "clarify", "tool-loop", "dispatch", "hub",
		},
	})
}

func (a *api) handleTraffic(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	msg, err := inbound.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload", "details": err.Error()})
		return
	}
	if !msg.HasContent() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no content"})
		return
	}

	result, err := a.deps.Router.Handle(req.Context(), msg)
	if err != nil {
		a.deps.Logger.Error("traffic handling failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "routing failed",
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleHub(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var chat hub.Request
	if err := json.NewDecoder(io.LimitReader(req.Body, maxRequestBytes)).Decode(&chat); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if chat.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no content"})
		return
	}

	decision, sessionID, err := a.deps.Hub.Chat(req.Context(), chat)
	if err != nil {
		a.deps.Logger.Error("hub chat failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "hub chat failed",
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, hubResponse{RoutingDecision: decision, SessionID: sessionID})
}

func (a *api) handleClear(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil || payload.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId required"})
		return
	}
	if err := a.deps.Hub.Clear(req.Context(), payload.SessionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// hubResponse flattens the decision and adds the session id.
type hubResponse struct {
	brain.RoutingDecision
	SessionID string `json:"sessionId"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write response", "error", err)
	}
}
