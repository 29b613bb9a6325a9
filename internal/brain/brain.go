package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mghunch/dot-traffic/internal/inbound"
	"github.com/mghunch/dot-traffic/internal/llm"
)

const forcedFinalPrompt = "You've gathered enough information. Please provide your final JSON response now based on what you have."

// Engine runs the bounded tool loop and returns a validated decision.
type Engine struct {
	caller    llm.Caller
	registry  *Registry
	maxRounds int
	logger    *slog.Logger
}

func NewEngine(caller llm.Caller, registry *Registry, maxRounds int, logger *slog.Logger) *Engine {
	if maxRounds < 1 {
		maxRounds = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		caller:    caller,
		registry:  registry,
		maxRounds: maxRounds,
		logger:    logger.With("component", "brain"),
	}
}

// Decide sends the message through the tool loop. The model may call tools
// for up to maxRounds rounds; after that it is forced to answer without
// tools. Model transport errors surface as errors; bad model output does
// not, it degrades to an error-typed decision.
func (e *Engine) Decide(ctx context.Context, system string, history []llm.Message, userContent string) (RoutingDecision, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: userContent})

	tools := e.registry.Defs()
	for round := 0; round < e.maxRounds; round++ {
		resp, err := e.caller.Call(ctx, llm.Request{System: system, Messages: messages, Tools: tools})
		if err != nil {
			return RoutingDecision{}, fmt.Errorf("model call: %w", err)
		}
		if resp.StopReason != llm.StopToolUse || len(resp.ToolCalls) == 0 {
			return e.finish(resp.Text), nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Blocks: resp.Blocks})
		results := make([]llm.ContentBlock, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			e.logger.Info("tool call", "tool", call.Name, "round", round)
			results = append(results, llm.ContentBlock{
				Type:      "tool_result",
				ToolUseID: call.ID,
				Content:   e.registry.Execute(ctx, call.Name, call.Input),
			})
		}
		messages = append(messages, llm.Message{Role: "user", Blocks: results})
	}

	// Round budget spent. One last toolless call so the model must commit.
	messages = append(messages, llm.Message{Role: "user", Content: forcedFinalPrompt})
	resp, err := e.caller.Call(ctx, llm.Request{System: system, Messages: messages})
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("forced final call: %w", err)
	}
	return e.finish(resp.Text), nil
}

func (e *Engine) finish(text string) RoutingDecision {
	decision, err := ParseDecision(text)
	if err != nil {
		e.logger.Error("unusable model output", "error", err, "output", truncateText(text, 300))
		return ErrorDecision(err.Error())
	}
	return decision
}

// EmailContext renders an inbound email as the user turn for the model.
// jobHint is the regex-extracted job number, so the model does not have to
// rediscover it. pendingNote, when non-empty, tells the model a clarification
// was pending on this thread and what its job number was.
func EmailContext(msg inbound.Message, jobHint, pendingNote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s", msg.SenderEmail)
	if msg.SenderName != "" {
		fmt.Fprintf(&b, " (%s)", msg.SenderName)
	}
	b.WriteString("\n")
	if len(msg.AllRecipients) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.AllRecipients, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.ReceivedDateTime != "" {
		fmt.Fprintf(&b, "Received: %s\n", msg.ReceivedDateTime)
	}
	if msg.HasAttachments {
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(msg.AttachmentNames, ", "))
	}
	if jobHint == "" {
		jobHint = "None"
	}
	fmt.Fprintf(&b, "Job number found in text: %s\n", jobHint)
	if pendingNote != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", pendingNote)
	}
	fmt.Fprintf(&b, "\n%s", msg.Content)
	return b.String()
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
