package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/llm"
)

// HubRequest is one chat turn from the Hub UI. The caller supplies the job
// list, so no tools are needed.
type HubRequest struct {
	Content    string
	SenderName string
	Jobs       []airtable.Project
	History    []llm.Message
}

// DecideHub answers a Hub chat turn with a single toolless model call. Bad
// model output degrades to a friendly answer-shaped decision rather than an
// error page.
func (e *Engine) DecideHub(ctx context.Context, system string, req HubRequest) (RoutingDecision, error) {
	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: hubContext(req)})

	resp, err := e.caller.Call(ctx, llm.Request{System: system, Messages: messages})
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("hub model call: %w", err)
	}
	decision, parseErr := ParseDecision(resp.Text)
	if parseErr != nil {
		e.logger.Error("unusable hub output", "error", parseErr)
		return ErrorDecision(parseErr.Error()), nil
	}
	return decision, nil
}

// hubContext summarizes the caller's jobs one per line, then attaches the
// full records as JSON for anything the summary drops.
func hubContext(req HubRequest) string {
	var b strings.Builder
	if req.SenderName != "" {
		fmt.Fprintf(&b, "User: %s\n", req.SenderName)
	}
	if len(req.Jobs) > 0 {
		b.WriteString("Jobs:\n")
		for _, job := range req.Jobs {
			fmt.Fprintf(&b, "- %s %s (%s, %s)\n", job.JobNumber, job.JobName, job.Stage, job.Status)
		}
		if raw, err := json.Marshal(req.Jobs); err == nil {
			fmt.Fprintf(&b, "\nFull job records:\n%s\n", raw)
		}
	}
	fmt.Fprintf(&b, "\n%s", req.Content)
	return b.String()
}
