package airtable

import (
	"context"
	"fmt"
	"time"
)

// TrafficLog is one row in the Traffic table.
type TrafficLog struct {
	RecordID          string
	InternetMessageID string
	ConversationID    string
	Route             string
	Status            string
	JobNumber         string
	ClientCode        string
	SenderEmail       string
	Subject           string
	CreatedAt         string
}

// Traffic log statuses.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusResolved  = "resolved"
	StatusExpired   = "expired"
	StatusSelf      = "self"
	StatusIgnored   = "ignored"
)

func trafficFromRecord(rec *Record) *TrafficLog {
	if rec == nil {
		return nil
	}
	return &TrafficLog{
		RecordID:          rec.ID,
		InternetMessageID: stringField(rec, "internetMessageId"),
		ConversationID:    stringField(rec, "conversationId"),
		Route:             stringField(rec, "Route"),
		Status:            stringField(rec, "Status"),
		JobNumber:         stringField(rec, "JobNumber"),
		ClientCode:        stringField(rec, "clientCode"),
		SenderEmail:       stringField(rec, "SenderEmail"),
		Subject:           stringField(rec, "Subject"),
		CreatedAt:         stringField(rec, "CreatedAt"),
	}
}

// Traffic wraps Traffic-table operations.
type Traffic struct {
	client *Client
	table  string
}

func NewTraffic(client *Client, table string) *Traffic {
	return &Traffic{client: client, table: table}
}

// FindByMessageID returns the log for an internet message id, or nil when the
// message has not been seen. Errors mean the store could not be asked.
func (t *Traffic) FindByMessageID(ctx context.Context, messageID string) (*TrafficLog, error) {
	if messageID == "" {
		return nil, nil
	}
	formula := fmt.Sprintf("{internetMessageId}='%s'", escapeFormulaValue(messageID))
	rec, err := t.client.findFirst(ctx, t.table, formula)
	if err != nil {
		return nil, fmt.Errorf("find by message id: %w", err)
	}
	return trafficFromRecord(rec), nil
}

// FindPendingClarification returns the open clarify/confirm log for a
// conversation thread, or nil when the thread has no pending question.
func (t *Traffic) FindPendingClarification(ctx context.Context, conversationID string) (*TrafficLog, error) {
	if conversationID == "" {
		return nil, nil
	}
	formula := fmt.Sprintf(
		"AND({conversationId}='%s', {Status}='%s', OR({Route}='clarify', {Route}='confirm'))",
		escapeFormulaValue(conversationID), StatusPending,
	)
	rec, err := t.client.findFirst(ctx, t.table, formula)
	if err != nil {
		return nil, fmt.Errorf("find pending clarification: %w", err)
	}
	return trafficFromRecord(rec), nil
}

// Insert writes a new traffic log and returns its record id.
func (t *Traffic) Insert(ctx context.Context, log TrafficLog) (string, error) {
	fields := map[string]any{
		"internetMessageId": log.InternetMessageID,
		"conversationId":    log.ConversationID,
		"Route":             log.Route,
		"Status":            log.Status,
		"SenderEmail":       log.SenderEmail,
		"Subject":           log.Subject,
		"CreatedAt":         time.Now().UTC().Format(time.RFC3339),
	}
	if log.JobNumber != "" {
		fields["JobNumber"] = log.JobNumber
	}
	if log.ClientCode != "" {
		fields["clientCode"] = log.ClientCode
	}
	created, err := t.client.create(ctx, t.table, fields)
	if err != nil {
		return "", fmt.Errorf("insert traffic log: %w", err)
	}
	return created.ID, nil
}

// Resolve flips a pending log to resolved, but only if it is still pending.
// The re-read guards against two replies to the same clarification racing:
// the loser sees a non-pending status and backs off. When the reply supplied
// a job number, it is stamped onto the record in the same patch.
func (t *Traffic) Resolve(ctx context.Context, recordID, jobNumber string) (bool, error) {
	rec, err := t.client.get(ctx, t.table, recordID)
	if err != nil {
		return false, fmt.Errorf("resolve traffic log: %w", err)
	}
	if stringField(rec, "Status") != StatusPending {
		return false, nil
	}
	fields := map[string]any{"Status": StatusResolved}
	if jobNumber != "" {
		fields["JobNumber"] = jobNumber
	}
	if err := t.client.patch(ctx, t.table, recordID, fields); err != nil {
		return false, fmt.Errorf("resolve traffic log: %w", err)
	}
	return true, nil
}

// ExpirePendingBefore marks pending clarifications created before the cutoff
// as expired and returns how many were flipped.
func (t *Traffic) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	formula := fmt.Sprintf(
		"AND({Status}='%s', {CreatedAt}<'%s')",
		StatusPending, cutoff.UTC().Format(time.RFC3339),
	)
	records, err := t.client.list(ctx, t.table, formula, 0)
	if err != nil {
		return 0, fmt.Errorf("list expired pending: %w", err)
	}
	expired := 0
	for i := range records {
		if err := t.client.patch(ctx, t.table, records[i].ID, map[string]any{"Status": StatusExpired}); err != nil {
			return expired, fmt.Errorf("expire traffic log: %w", err)
		}
		expired++
	}
	return expired, nil
}
