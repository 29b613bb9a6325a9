// Package imap polls a mailbox and feeds unread mail into the same routing
// flow the HTTP listener uses. It is optional: without credentials the
// connector idles.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/mghunch/dot-traffic/internal/inbound"
	"github.com/mghunch/dot-traffic/internal/router"
)

// Routes is the seam into the routing flow.
type Routes interface {
	Handle(ctx context.Context, msg inbound.Message) (router.Result, error)
}

// Mail is one fetched message, already reduced to text.
type Mail struct {
	UID             uint32
	MessageID       string
	From            string
	FromName        string
	Subject         string
	Date            time.Time
	Body            string
	AttachmentNames []string
}

type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Mailbox       string
	PollSeconds   int
	TLSSkipVerify bool
}

type Connector struct {
	cfg    Config
	routes Routes
	logger *slog.Logger

	// Overridable in tests.
	fetchUnread func(ctx context.Context) ([]Mail, error)
	markSeen    func(ctx context.Context, uids []uint32) error
}

func New(cfg Config, routes Routes, logger *slog.Logger) *Connector {
	if cfg.Port < 1 {
		cfg.Port = 993
	}
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.PollSeconds < 1 {
		cfg.PollSeconds = 60
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connector{
		cfg:    cfg,
		routes: routes,
		logger: logger.With("component", "imap"),
	}
	c.fetchUnread = c.fetchUnreadFromServer
	c.markSeen = c.markSeenOnServer
	return c
}

// Run polls until ctx is done. With no credentials it just waits, so the
// runtime can start it unconditionally.
func (c *Connector) Run(ctx context.Context) error {
	if c.cfg.Host == "" || c.cfg.Username == "" || c.cfg.Password == "" {
		c.logger.Info("connector disabled, imap credentials missing")
		<-ctx.Done()
		return nil
	}
	c.logger.Info("connector started", "mailbox", c.cfg.Mailbox, "host", c.cfg.Host, "poll_seconds", c.cfg.PollSeconds)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("imap poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("connector stopped")
			return nil
		case <-time.After(time.Duration(c.cfg.PollSeconds) * time.Second):
		}
	}
}

func (c *Connector) pollOnce(ctx context.Context) error {
	incoming, err := c.fetchUnread(ctx)
	if err != nil {
		return err
	}
	if len(incoming) == 0 {
		return nil
	}

	handled := make([]uint32, 0, len(incoming))
	for _, item := range incoming {
		msg := toInbound(item)
		result, err := c.routes.Handle(ctx, msg)
		if err != nil {
			// Leave the mail unread so the next poll retries it.
			c.logger.Error("imap message routing failed", "uid", item.UID, "error", err)
			continue
		}
		c.logger.Info("imap message routed", "uid", item.UID, "route", result.Route)
		if item.UID > 0 {
			handled = append(handled, item.UID)
		}
	}

	if len(handled) > 0 {
		if err := c.markSeen(ctx, handled); err != nil {
			c.logger.Error("imap mark seen failed", "error", err)
		}
	}
	return nil
}

func toInbound(item Mail) inbound.Message {
	return inbound.Message{
		Content:           item.Body,
		Subject:           item.Subject,
		SenderEmail:       strings.ToLower(strings.TrimSpace(item.From)),
		SenderName:        item.FromName,
		InternetMessageID: item.MessageID,
		// Mail without threading headers falls back to the message id, so a
		// clarify reply in the same thread still finds its pending record.
		ConversationID:   item.MessageID,
		ReceivedDateTime: formatDate(item.Date),
		HasAttachments:   len(item.AttachmentNames) > 0,
		AttachmentNames:  item.AttachmentNames,
		Source:           "imap",
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (c *Connector) openClient(ctx context.Context) (*client.Client, error) {
	address := c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port)
	tlsConfig := &tls.Config{
		ServerName:         c.cfg.Host,
		InsecureSkipVerify: c.cfg.TLSSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	conn, err := client.DialTLS(address, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	select {
	case <-ctx.Done():
		conn.Logout()
		return nil, ctx.Err()
	default:
	}
	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return conn, nil
}

func (c *Connector) fetchUnreadFromServer(ctx context.Context) ([]Mail, error) {
	conn, err := c.openClient(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if _, err := conn.Select(c.cfg.Mailbox, false); err != nil {
		return nil, fmt.Errorf("imap select mailbox: %w", err)
	}
	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search unread: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	set := new(goimap.SeqSet)
	set.AddNum(uids...)
	section := &goimap.BodySectionName{}
	items := []goimap.FetchItem{goimap.FetchUid, goimap.FetchEnvelope, section.FetchItem()}

	fetched := make(chan *goimap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(set, items, fetched)
	}()

	results := make([]Mail, 0, len(uids))
	for msg := range fetched {
		item := Mail{UID: msg.Uid}
		if body := msg.GetBody(section); body != nil {
			text, names, err := extractBody(body)
			if err != nil {
				c.logger.Error("imap body decode failed", "uid", msg.Uid, "error", err)
			}
			item.Body = text
			item.AttachmentNames = names
		}
		if msg.Envelope != nil {
			item.Subject = strings.TrimSpace(msg.Envelope.Subject)
			item.Date = msg.Envelope.Date
			item.MessageID = strings.TrimSpace(msg.Envelope.MessageId)
			item.From, item.FromName = senderAddress(msg.Envelope.From)
		}
		results = append(results, item)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch unread: %w", err)
	}
	return results, nil
}

func (c *Connector) markSeenOnServer(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	conn, err := c.openClient(ctx)
	if err != nil {
		return err
	}
	defer conn.Logout()

	if _, err := conn.Select(c.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("imap select mailbox: %w", err)
	}
	set := new(goimap.SeqSet)
	set.AddNum(uids...)
	item := goimap.FormatFlagsOp(goimap.AddFlags, true)
	if err := conn.UidStore(set, item, []interface{}{goimap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("imap mark seen: %w", err)
	}
	return nil
}

func senderAddress(from []*goimap.Address) (email, name string) {
	for _, addr := range from {
		if addr == nil {
			continue
		}
		return addr.MailboxName + "@" + addr.HostName, strings.TrimSpace(addr.PersonalName)
	}
	return "", ""
}
