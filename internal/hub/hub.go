// Package hub answers chat turns from the studio Hub UI, keeping short
// per-session history.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/llm"
	"github.com/mghunch/dot-traffic/internal/session"
)

// historyWindow is how many remembered turns go to the model. The store
// keeps more, but old context stops helping.
const historyWindow = 10

// Request is one chat turn. History is the client's own transcript; it is
// used only when the server-side session has nothing, so a restarted service
// can pick a conversation back up. AccessLevel is logged, not enforced; the
// Hub sits behind its own auth.
type Request struct {
	Content     string             `json:"content"`
	SenderName  string             `json:"senderName"`
	SessionID   string             `json:"sessionId"`
	Jobs        []airtable.Project `json:"jobs"`
	History     []session.Turn     `json:"history"`
	AccessLevel string             `json:"accessLevel"`
}

// Engine is the decision-engine seam.
type Engine interface {
	DecideHub(ctx context.Context, system string, req brain.HubRequest) (brain.RoutingDecision, error)
}

// Prompts supplies the hub system prompt.
type Prompts interface {
	Hub() string
}

// Service glues sessions, prompts, and the engine together.
type Service struct {
	engine   Engine
	prompts  Prompts
	sessions session.Store
	logger   *slog.Logger
}

func NewService(engine Engine, prompts Prompts, sessions session.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:   engine,
		prompts:  prompts,
		sessions: sessions,
		logger:   logger.With("component", "hub"),
	}
}

// Chat answers one turn. A missing session id gets a fresh one, returned in
// the decision's RedirectParams so the client can keep it.
func (s *Service) Chat(ctx context.Context, req Request) (brain.RoutingDecision, string, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if req.AccessLevel != "" {
		s.logger.Info("hub turn", "session", sessionID, "accessLevel", req.AccessLevel)
	}

	turns, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		s.logger.Error("session load failed", "error", err)
		turns = nil
	}
	if len(turns) == 0 && len(req.History) > 0 {
		turns = req.History
	}
	history := make([]llm.Message, 0, historyWindow)
	for _, turn := range session.Tail(turns, historyWindow) {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	decision, err := s.engine.DecideHub(ctx, s.prompts.Hub(), brain.HubRequest{
		Content:    req.Content,
		SenderName: req.SenderName,
		Jobs:       req.Jobs,
		History:    history,
	})
	if err != nil {
		return brain.RoutingDecision{}, sessionID, fmt.Errorf("hub chat: %w", err)
	}

	reply := decision.Message
	if reply == "" {
		if raw, jsonErr := json.Marshal(decision); jsonErr == nil {
			reply = string(raw)
		}
	}
	if err := s.sessions.Append(ctx, sessionID,
		session.Turn{Role: "user", Content: req.Content},
		session.Turn{Role: "assistant", Content: reply},
	); err != nil {
		s.logger.Error("session append failed", "error", err)
	}
	return decision, sessionID, nil
}

// Clear forgets a session.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}
