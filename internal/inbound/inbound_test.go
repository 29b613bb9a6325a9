package inbound

import "testing"

func TestParseAliases(t *testing.T) {
	data := []byte(`{
		"body": "please update LAB 055",
		"subject": "Re: LAB 055",
		"from": "Murray@Hunch.co.nz",
		"to": "dot@hunch.co.nz, studio@hunch.co.nz",
		"internetMessageId": "<abc@mail>",
		"conversationId": "conv-1"
	}`)
	msg, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Content != "please update LAB 055" {
		t.Fatalf("content: %q", msg.Content)
	}
	if msg.Subject != "Re: LAB 055" {
		t.Fatalf("subject: %q", msg.Subject)
	}
	if msg.SenderEmail != "murray@hunch.co.nz" {
		t.Fatalf("sender: %q", msg.SenderEmail)
	}
	if len(msg.AllRecipients) != 2 || msg.AllRecipients[1] != "studio@hunch.co.nz" {
		t.Fatalf("recipients: %v", msg.AllRecipients)
	}
	if msg.Source != "email" {
		t.Fatalf("source: %q", msg.Source)
	}
}

func TestParseCanonicalNamesWin(t *testing.T) {
	data := []byte(`{
		"content": "canonical",
		"body": "alias",
		"senderEmail": "a@b.co",
		"from": "other@b.co",
		"allRecipients": ["x@b.co"],
		"to": "y@b.co"
	}`)
	msg, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Content != "canonical" {
		t.Fatalf("content: %q", msg.Content)
	}
	if msg.SenderEmail != "a@b.co" {
		t.Fatalf("sender: %q", msg.SenderEmail)
	}
	if len(msg.AllRecipients) != 1 || msg.AllRecipients[0] != "x@b.co" {
		t.Fatalf("recipients: %v", msg.AllRecipients)
	}
}

func TestParseBadJSON(t *testing.T) {
	if _, err := Parse([]byte("{nope")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHasContent(t *testing.T) {
	msg := Message{Subject: "Re: something"}
	if !msg.HasContent() {
		t.Fatal("subject alone should count as content")
	}
	if (Message{Content: "  "}).HasContent() {
		t.Fatal("whitespace only should not count")
	}
}

func TestSenderDomain(t *testing.T) {
	msg := Message{SenderEmail: "murray@hunch.co.nz"}
	if got := msg.SenderDomain(); got != "hunch.co.nz" {
		t.Fatalf("got %q", got)
	}
	if got := (Message{SenderEmail: "no-at-sign"}).SenderDomain(); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestFirstName(t *testing.T) {
	cases := []struct {
		msg  Message
		want string
	}{
		{Message{SenderName: "Murray Streets"}, "Murray"},
		{Message{SenderEmail: "anna.jones@hunch.co.nz"}, "Anna"},
		{Message{}, "there"},
	}
	for _, tc := range cases {
		if got := tc.msg.FirstName(); got != tc.want {
			t.Fatalf("FirstName(%+v) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}
