// Package anthropic implements the llm.Caller contract against the Anthropic
// Messages API, including tool use.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mghunch/dot-traffic/internal/llm"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "anthropic"),
	}
}

func (c *Client) Call(ctx context.Context, req llm.Request) (llm.Response, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return llm.Response{}, fmt.Errorf("%w: missing ANTHROPIC_API_KEY", llm.ErrUnavailable)
	}

	payload := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": 4096,
		"messages":   encodeMessages(req.Messages),
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, err
	}
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("content-type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return llm.Response{}, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return llm.Response{}, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("anthropic request failed", "status", res.StatusCode, "body", string(respBody))
		return llm.Response{}, fmt.Errorf("%w: status %d", llm.ErrUnavailable, res.StatusCode)
	}

	var response messagesResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return llm.Response{}, fmt.Errorf("decode anthropic response: %w", err)
	}

	out := llm.Response{
		StopReason: response.StopReason,
		Blocks:     response.Content,
	}
	var texts []string
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	return out, nil
}

// encodeMessages converts internal messages to the wire shape. Plain-text
// turns send a string content; structured turns send their blocks verbatim.
func encodeMessages(messages []llm.Message) []map[string]any {
	encoded := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Blocks) > 0 {
			encoded = append(encoded, map[string]any{
				"role":    msg.Role,
				"content": msg.Blocks,
			})
			continue
		}
		encoded = append(encoded, map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}
	return encoded
}

type messagesResponse struct {
	Content    []llm.ContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
}
