package router

import (
	"strings"

	"github.com/mghunch/dot-traffic/internal/jobnum"
)

// ReplyKind classifies a reply to a pending clarification.
type ReplyKind int

const (
	// ReplyUnhandled means the deterministic checks matched nothing and the
	// reply goes to the engine like any other message.
	ReplyUnhandled ReplyKind = iota
	// ReplyTriage means the sender asked for a rundown instead of answering.
	ReplyTriage
	// ReplyJobNumber means the reply names a job outright.
	ReplyJobNumber
	// ReplyAffirmative means the sender confirmed the suggested job.
	ReplyAffirmative
)

// affirmativeTokens are exact matches after trimming and upper-casing.
// Anything starting with "YES" also counts.
var affirmativeTokens = map[string]bool{
	"YES": true, "YES.": true, "YES!": true,
	"YEP": true, "YUP": true, "YEAH": true,
	"CONFIRM": true, "CONFIRMED": true, "CORRECT": true,
	"THAT'S RIGHT": true, "THATS RIGHT": true,
	"THAT'S THE ONE": true, "THATS THE ONE": true,
	"THAT'S IT": true, "THATS IT": true,
	"BINGO": true, "SPOT ON": true, "PERFECT": true,
}

var triageTokens = map[string]bool{
	"TRIAGE": true, "TRIAGE.": true, "NEW JOB": true, "NEW": true,
}

// ClassifyReply resolves a reply to a pending clarification without the
// model. Precedence: triage request, then an explicit job number (subject
// before body), then an affirmation. Everything else is unhandled.
func ClassifyReply(extractor *jobnum.Extractor, subject, body string) (ReplyKind, string) {
	trimmed := strings.ToUpper(strings.TrimSpace(body))

	if triageTokens[trimmed] {
		return ReplyTriage, ""
	}
	if job := extractor.ExtractAny(subject, body, nil); job != "" {
		return ReplyJobNumber, job
	}
	if affirmativeTokens[trimmed] || strings.HasPrefix(trimmed, "YES") {
		return ReplyAffirmative, ""
	}
	return ReplyUnhandled, ""
}
