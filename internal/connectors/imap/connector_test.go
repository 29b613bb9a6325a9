package imap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mghunch/dot-traffic/internal/inbound"
	"github.com/mghunch/dot-traffic/internal/router"
)

type fakeRoutes struct {
	messages []inbound.Message
	err      error
}

func (f *fakeRoutes) Handle(_ context.Context, msg inbound.Message) (router.Result, error) {
	f.messages = append(f.messages, msg)
	return router.Result{Route: "update"}, f.err
}

func testConnector(routes Routes) *Connector {
	return New(Config{Host: "mail.example.com", Username: "dot", Password: "secret"}, routes, nil)
}

func TestPollOnceRoutesAndMarksSeen(t *testing.T) {
	routes := &fakeRoutes{}
	c := testConnector(routes)
	var seen []uint32
	c.fetchUnread = func(context.Context) ([]Mail, error) {
		return []Mail{{
			UID:       7,
			MessageID: "<m7@mail>",
			From:      "Murray@Hunch.co.nz",
			FromName:  "Murray",
			Subject:   "LAB 055 update",
			Body:      "all approved",
			Date:      time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		}}, nil
	}
	c.markSeen = func(_ context.Context, uids []uint32) error {
		seen = uids
		return nil
	}

	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(routes.messages) != 1 {
		t.Fatalf("messages: %+v", routes.messages)
	}
	msg := routes.messages[0]
	if msg.SenderEmail != "murray@hunch.co.nz" || msg.Source != "imap" {
		t.Fatalf("message: %+v", msg)
	}
	if msg.ConversationID != "<m7@mail>" {
		t.Fatalf("conversation fallback: %+v", msg)
	}
	if len(seen) != 1 || seen[0] != 7 {
		t.Fatalf("seen: %v", seen)
	}
}

func TestPollOnceLeavesFailedMailUnread(t *testing.T) {
	routes := &fakeRoutes{err: errors.New("store down")}
	c := testConnector(routes)
	marked := false
	c.fetchUnread = func(context.Context) ([]Mail, error) {
		return []Mail{{UID: 9, Body: "hello"}}, nil
	}
	c.markSeen = func(context.Context, []uint32) error {
		marked = true
		return nil
	}

	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if marked {
		t.Fatal("failed mail must stay unread for retry")
	}
}

func TestRunDisabledWithoutCredentials(t *testing.T) {
	c := New(Config{}, &fakeRoutes{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestExtractBodyPlain(t *testing.T) {
	raw := "From: a@b.co\r\nContent-Type: text/plain\r\n\r\nhello there\r\n"
	text, names, err := extractBody(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "hello there" || len(names) != 0 {
		t.Fatalf("got %q %v", text, names)
	}
}

func TestExtractBodyMultipartWithAttachment(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@b.co",
		`Content-Type: multipart/mixed; boundary="XX"`,
		"",
		"--XX",
		"Content-Type: text/plain",
		"",
		"the body text",
		"--XX",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="scope_LAB_055.pdf"`,
		"",
		"%PDF-fake",
		"--XX--",
		"",
	}, "\r\n")
	text, names, err := extractBody(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "the body text" {
		t.Fatalf("text: %q", text)
	}
	if len(names) != 1 || names[0] != "scope_LAB_055.pdf" {
		t.Fatalf("names: %v", names)
	}
}

func TestExtractBodyHTMLFallback(t *testing.T) {
	raw := "From: a@b.co\r\nContent-Type: text/html\r\n\r\n<p>hello <b>there</b></p>\r\n"
	text, _, err := extractBody(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("text: %q", text)
	}
}
