// Package llm defines the model-caller contract used by the decision engine.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

// Stop reasons reported by the model.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Message is one turn in a conversation. Content holds plain text; Blocks
// carries structured content (tool calls and results) when present.
type Message struct {
	Role    string
	Content string
	Blocks  []ContentBlock
}

// ContentBlock is one element of a structured message.
type ContentBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is one model call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDef
}

// Response is the model's reply. ToolCalls is non-empty when StopReason is
// tool_use.
type Response struct {
	Text       string
	StopReason string
	ToolCalls  []ToolCall
	Blocks     []ContentBlock
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Caller sends a conversation to a model and returns its reply.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}
