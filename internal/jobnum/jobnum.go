// Package jobnum extracts job numbers ("LAB 055") from free text.
package jobnum

import (
	"regexp"
	"strings"
)

// Job numbers are a 3-letter client code, a separator, and a 3-digit sequence.
// The underscore variant appears in filenames ("ONE_125_brief.pdf").
var pattern = regexp.MustCompile(`\b([A-Z]{3})[ _](\d{3})\b`)

// Extractor validates extracted codes against the client-code allow-list.
type Extractor struct {
	codes map[string]struct{}
}

func NewExtractor(clientCodes []string) *Extractor {
	codes := make(map[string]struct{}, len(clientCodes))
	for _, code := range clientCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			codes[code] = struct{}{}
		}
	}
	return &Extractor{codes: codes}
}

// Extract returns the first allow-listed job number in text, normalized to
// "CCC NNN", or "" when none is present. Codes outside the allow-list never
// match, even if the digit pattern does.
func (e *Extractor) Extract(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	upper := strings.ToUpper(text)
	for _, match := range pattern.FindAllStringSubmatch(upper, -1) {
		code := match[1]
		if _, ok := e.codes[code]; ok {
			return code + " " + match[2]
		}
	}
	return ""
}

// ExtractAny scans subject, body, then attachment names and returns the first hit.
func (e *Extractor) ExtractAny(subject, body string, attachmentNames []string) string {
	if job := e.Extract(subject); job != "" {
		return job
	}
	if job := e.Extract(body); job != "" {
		return job
	}
	for _, name := range attachmentNames {
		if job := e.Extract(name); job != "" {
			return job
		}
	}
	return ""
}

// ValidCode reports whether code is on the allow-list.
func (e *Extractor) ValidCode(code string) bool {
	_, ok := e.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// ClientCode returns the code portion of a job number ("LAB 055" -> "LAB").
func ClientCode(jobNumber string) string {
	fields := strings.Fields(strings.TrimSpace(jobNumber))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// Normalize canonicalizes separator and case ("lab_055" -> "LAB 055").
func Normalize(jobNumber string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(jobNumber), "_", " "))
}
