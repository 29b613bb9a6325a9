package connect

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
)

// Mailer sends outbound email through the postman service.
type Mailer struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewMailer(url string, timeout time.Duration, logger *slog.Logger) *Mailer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "postman"),
	}
}

// Enabled reports whether a postman endpoint is configured. Without one, mail
// sends become logged no-ops so the rest of the flow still works locally.
func (m *Mailer) Enabled() bool { return m.url != "" }

// Send posts one email. The postman answers 200 or 202 on acceptance.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !m.Enabled() {
		m.logger.Info("postman not configured, dropping mail", "to", to, "subject", subject)
		return nil
	}
	body, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"body":    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("postman returned status %d", resp.StatusCode)
	}
	m.logger.Info("mail sent", "to", to, "subject", subject)
	return nil
}
