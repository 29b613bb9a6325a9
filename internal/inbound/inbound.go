// Package inbound defines the canonical message shape every entry point
// normalizes into before routing.
package inbound

import (
	"encoding/json"
	"strings"
)

// Message is the single internal representation of an inbound email or chat
// message. Alias resolution happens once, in Parse; downstream code only ever
// sees these field names.
type Message struct {
	Content           string   `json:"emailContent"`
	Subject           string   `json:"subjectLine"`
	SenderEmail       string   `json:"senderEmail"`
	SenderName        string   `json:"senderName"`
	AllRecipients     []string `json:"allRecipients"`
	InternetMessageID string   `json:"internetMessageId"`
	ConversationID    string   `json:"conversationId"`
	ReceivedDateTime  string   `json:"receivedDateTime"`
	HasAttachments    bool     `json:"hasAttachments"`
	AttachmentNames   []string `json:"attachmentNames"`
	Source            string   `json:"source"`
}

// rawMessage carries every accepted alias. Listener payloads and hub payloads
// use different names for the same fields.
type rawMessage struct {
	Content      string `json:"content"`
	Body         string `json:"body"`
	EmailContent string `json:"emailContent"`

	Subject     string `json:"subject"`
	SubjectLine string `json:"subjectLine"`

	SenderEmail string `json:"senderEmail"`
	From        string `json:"from"`

	SenderName string `json:"senderName"`

	To            json.RawMessage `json:"to"`
	AllRecipients json.RawMessage `json:"allRecipients"`

	InternetMessageID string `json:"internetMessageId"`
	ConversationID    string `json:"conversationId"`
	ReceivedDateTime  string `json:"receivedDateTime"`

	HasAttachments  bool     `json:"hasAttachments"`
	AttachmentNames []string `json:"attachmentNames"`

	Source string `json:"source"`
}

// Parse decodes an inbound JSON document, resolving field aliases in priority
// order: content|body|emailContent, subject|subjectLine, senderEmail|from,
// allRecipients|to. The first non-empty alias wins.
func Parse(data []byte) (Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, err
	}
	msg := Message{
		Content:           firstNonEmpty(raw.Content, raw.Body, raw.EmailContent),
		Subject:           firstNonEmpty(raw.Subject, raw.SubjectLine),
		SenderEmail:       strings.TrimSpace(strings.ToLower(firstNonEmpty(raw.SenderEmail, raw.From))),
		SenderName:        strings.TrimSpace(raw.SenderName),
		InternetMessageID: strings.TrimSpace(raw.InternetMessageID),
		ConversationID:    strings.TrimSpace(raw.ConversationID),
		ReceivedDateTime:  strings.TrimSpace(raw.ReceivedDateTime),
		HasAttachments:    raw.HasAttachments,
		AttachmentNames:   raw.AttachmentNames,
		Source:            strings.TrimSpace(raw.Source),
	}
	if msg.Source == "" {
		msg.Source = "email"
	}
	msg.AllRecipients = parseRecipients(raw.AllRecipients)
	if len(msg.AllRecipients) == 0 {
		msg.AllRecipients = parseRecipients(raw.To)
	}
	return msg, nil
}

// parseRecipients accepts either a JSON array of addresses or a single
// string, comma or semicolon separated.
func parseRecipients(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanAddresses(list)
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return cleanAddresses(strings.FieldsFunc(single, func(r rune) bool {
			return r == ',' || r == ';'
		}))
	}
	return nil
}

func cleanAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// HasContent reports whether the message carries anything routable.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Content) != "" || strings.TrimSpace(m.Subject) != ""
}

// SenderDomain returns the part after "@" in the sender address, lower-cased.
func (m Message) SenderDomain() string {
	at := strings.LastIndex(m.SenderEmail, "@")
	if at < 0 {
		return ""
	}
	return m.SenderEmail[at+1:]
}

// FirstName pulls a salutation-friendly name from the sender name or the
// local part of the address.
func (m Message) FirstName() string {
	name := strings.TrimSpace(m.SenderName)
	if name == "" {
		local, _, found := strings.Cut(m.SenderEmail, "@")
		if !found {
			return "there"
		}
		name = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	first := fields[0]
	return strings.ToUpper(first[:1]) + first[1:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
