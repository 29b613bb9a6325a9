package imap

import (
	"bytes"
	"encoding/base64"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
)

const maxPartBytes = 2 << 20

// extractBody reduces a raw RFC 822 message to plain text and the names of
// its attachments. Attachment contents are not kept; the routing flow only
// needs to know they exist.
func extractBody(reader io.Reader) (string, []string, error) {
	raw, err := io.ReadAll(io.LimitReader(reader, maxPartBytes))
	if err != nil {
		return "", nil, err
	}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(string(raw)), nil, nil
	}

	mediaType, params, _ := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	body, err := io.ReadAll(io.LimitReader(parsed.Body, maxPartBytes))
	if err != nil {
		return "", nil, err
	}
	if strings.HasPrefix(strings.ToLower(mediaType), "multipart/") {
		text, names := walkParts(body, params["boundary"])
		return text, names, nil
	}

	decoded := decodeTransfer(body, parsed.Header.Get("Content-Transfer-Encoding"))
	if strings.EqualFold(mediaType, "text/html") {
		return stripHTML(string(decoded)), nil, nil
	}
	return strings.TrimSpace(string(decoded)), nil, nil
}

func walkParts(raw []byte, boundary string) (string, []string) {
	if strings.TrimSpace(boundary) == "" {
		return strings.TrimSpace(string(raw)), nil
	}
	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	var plain, htmlText []string
	var attachmentNames []string
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		data, readErr := io.ReadAll(io.LimitReader(part, maxPartBytes))
		if readErr != nil {
			continue
		}
		data = decodeTransfer(data, part.Header.Get("Content-Transfer-Encoding"))

		disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if strings.HasPrefix(strings.ToLower(disposition), "attachment") {
			if name := strings.TrimSpace(part.FileName()); name != "" {
				attachmentNames = append(attachmentNames, name)
			}
			continue
		}

		mediaType, params, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case "text/plain":
			if text := strings.TrimSpace(string(data)); text != "" {
				plain = append(plain, text)
			}
		case "text/html":
			if text := strings.TrimSpace(string(data)); text != "" {
				htmlText = append(htmlText, text)
			}
		default:
			if strings.HasPrefix(strings.ToLower(mediaType), "multipart/") {
				nestedText, nestedNames := walkParts(data, params["boundary"])
				if nestedText != "" {
					plain = append(plain, nestedText)
				}
				attachmentNames = append(attachmentNames, nestedNames...)
			}
		}
	}
	if len(plain) > 0 {
		return strings.Join(plain, "\n\n"), attachmentNames
	}
	if len(htmlText) > 0 {
		return stripHTML(strings.Join(htmlText, "\n\n")), attachmentNames
	}
	return "", attachmentNames
}

func decodeTransfer(data []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		decoded, err := io.ReadAll(io.LimitReader(
			base64.NewDecoder(base64.StdEncoding, bytes.NewReader(data)), maxPartBytes))
		if err == nil {
			return decoded
		}
	case "quoted-printable":
		decoded, err := io.ReadAll(io.LimitReader(
			quotedprintable.NewReader(bytes.NewReader(data)), maxPartBytes))
		if err == nil {
			return decoded
		}
	}
	return data
}

var htmlTagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

func stripHTML(input string) string {
	text := htmlTagPattern.ReplaceAllString(input, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
