// Package brain is the decision engine: it turns an inbound message into a
// validated RoutingDecision via a bounded tool-calling model loop.
package brain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// PossibleJob is one candidate surfaced in a clarify decision.
type PossibleJob struct {
	JobNumber  string `json:"jobNumber"`
	JobName    string `json:"jobName,omitempty"`
	ClientName string `json:"clientName,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Status     string `json:"status,omitempty"`
}

// RoutingDecision is the engine's verdict on one message.
type RoutingDecision struct {
	Type       string `json:"type"`
	Route      string `json:"route,omitempty"`
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Message    string `json:"message,omitempty"`
	JobNumber  string `json:"jobNumber,omitempty"`
	ClientCode string `json:"clientCode,omitempty"`

	ClarifyType  string        `json:"clarifyType,omitempty"`
	PossibleJobs []PossibleJob `json:"possibleJobs,omitempty"`
	SuggestedJob string        `json:"suggestedJob,omitempty"`

	OriginalIntent string         `json:"originalIntent,omitempty"`
	RedirectTo     string         `json:"redirectTo,omitempty"`
	RedirectParams map[string]any `json:"redirectParams,omitempty"`
	NextPrompt     string         `json:"nextPrompt,omitempty"`
}

// Decision types that are not plain routes.
const (
	TypeClarify  = "clarify"
	TypeConfirm  = "confirm"
	TypeAnswer   = "answer"
	TypeRedirect = "redirect"
	TypeError    = "error"
)

var validConfidence = map[string]bool{"high": true, "medium": true, "low": true}

// IsSpecialType reports whether t is a decision type rather than a route name.
func IsSpecialType(t string) bool {
	switch t {
	case TypeClarify, TypeConfirm, TypeAnswer, TypeRedirect, TypeError:
		return true
	}
	return false
}

// Validate rejects decisions the dispatcher cannot act on. A failed
// validation is treated the same as unparseable output.
func (d RoutingDecision) Validate() error {
	if strings.TrimSpace(d.Type) == "" {
		return fmt.Errorf("decision missing type")
	}
	if d.Confidence != "" && !validConfidence[d.Confidence] {
		return fmt.Errorf("invalid confidence %q", d.Confidence)
	}
	switch d.Type {
	case TypeClarify:
		if strings.TrimSpace(d.Message) == "" {
			return fmt.Errorf("clarify decision missing message")
		}
	case TypeConfirm:
		if strings.TrimSpace(d.SuggestedJob) == "" && strings.TrimSpace(d.JobNumber) == "" {
			return fmt.Errorf("confirm decision missing suggested job")
		}
	case TypeAnswer:
		if strings.TrimSpace(d.Message) == "" {
			return fmt.Errorf("answer decision missing message")
		}
	case TypeRedirect:
		if strings.TrimSpace(d.RedirectTo) == "" {
			return fmt.Errorf("redirect decision missing target")
		}
	case TypeError:
	default:
		// A plain route; the type name doubles as the route when route is
		// empty, so nothing further to require.
	}
	return nil
}

// EffectiveRoute is the route name to dispatch and log under.
func (d RoutingDecision) EffectiveRoute() string {
	if IsSpecialType(d.Type) {
		return d.Type
	}
	if d.Route != "" {
		return d.Route
	}
	return d.Type
}

// ErrorDecision is the safe fallback when the model's output cannot be used.
func ErrorDecision(reason string) RoutingDecision {
	return RoutingDecision{
		Type:       TypeError,
		Confidence: "low",
		Reasoning:  reason,
		Message:    "Sorry, I got in a muddle over that one.",
		NextPrompt: "Try asking another way?",
	}
}

// ParseDecision extracts and validates a RoutingDecision from raw model text.
// Markdown fences are stripped, the outermost JSON object is isolated, and a
// repair pass is attempted before giving up.
func ParseDecision(raw string) (RoutingDecision, error) {
	text := stripFences(raw)
	candidate := extractJSONObject(text)
	if candidate == "" {
		return RoutingDecision{}, fmt.Errorf("no JSON object in model output")
	}

	var decision RoutingDecision
	if err := json.Unmarshal([]byte(candidate), &decision); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return RoutingDecision{}, fmt.Errorf("parse decision: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &decision); err != nil {
			return RoutingDecision{}, fmt.Errorf("parse repaired decision: %w", err)
		}
	}
	if err := decision.Validate(); err != nil {
		return RoutingDecision{}, err
	}
	return decision, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the substring from the first "{" to the last "}".
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
