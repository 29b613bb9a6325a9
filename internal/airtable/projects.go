package airtable

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Project is one row in the Projects table.
type Project struct {
	RecordID       string `json:"recordId"`
	JobNumber      string `json:"jobNumber"`
	JobName        string `json:"jobName"`
	ClientName     string `json:"clientName"`
	Stage          string `json:"stage"`
	Status         string `json:"status"`
	Round          string `json:"round"`
	WithClient     bool   `json:"withClient"`
	TeamsChannelID string `json:"teamsChannelId"`
	ChannelURL     string `json:"channelUrl"`
	Description    string `json:"description"`
	Update         string `json:"update"`
	UpdateDue      string `json:"updateDue"`
	Live           bool   `json:"live"`
}

const updateHistoryMax = 5

func projectFromRecord(rec *Record) *Project {
	if rec == nil {
		return nil
	}
	return &Project{
		RecordID:       rec.ID,
		JobNumber:      stringField(rec, "Job Number"),
		JobName:        stringField(rec, "Project Name"),
		ClientName:     stringField(rec, "Client"),
		Stage:          stringField(rec, "Stage"),
		Status:         stringField(rec, "Status"),
		Round:          stringField(rec, "Round"),
		WithClient:     boolField(rec, "With Client?"),
		TeamsChannelID: stringField(rec, "Teams Channel ID"),
		ChannelURL:     stringField(rec, "Channel Url"),
		Description:    stringField(rec, "Description"),
		Update:         stringField(rec, "Update"),
		UpdateDue:      normalizeDueDate(stringField(rec, "Update Due")),
		Live:           boolField(rec, "Live"),
	}
}

// normalizeDueDate converts the table's D/M/YYYY due dates to ISO. "TBC" and
// anything unparseable come back empty.
func normalizeDueDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "TBC") {
		return ""
	}
	for _, layout := range []string{"2/1/2006", "02/01/2006", "2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return ""
}

// Projects wraps Projects-table operations.
type Projects struct {
	client *Client
	table  string
}

func NewProjects(client *Client, table string) *Projects {
	return &Projects{client: client, table: table}
}

// FindByJobNumber returns the project for a job number, or nil when no such
// job exists.
func (p *Projects) FindByJobNumber(ctx context.Context, jobNumber string) (*Project, error) {
	if jobNumber == "" {
		return nil, nil
	}
	formula := fmt.Sprintf("{Job Number}='%s'", escapeFormulaValue(jobNumber))
	rec, err := p.client.findFirst(ctx, p.table, formula)
	if err != nil {
		return nil, fmt.Errorf("find project %s: %w", jobNumber, err)
	}
	return projectFromRecord(rec), nil
}

// ListActiveForClient returns non-completed jobs whose job number starts with
// the client code.
func (p *Projects) ListActiveForClient(ctx context.Context, clientCode string) ([]Project, error) {
	formula := fmt.Sprintf(
		"AND(FIND('%s ', {Job Number})=1, {Status}!='Completed')",
		escapeFormulaValue(strings.ToUpper(clientCode)),
	)
	return p.listProjects(ctx, formula)
}

// ListAllActive returns every non-completed job in the table.
func (p *Projects) ListAllActive(ctx context.Context) ([]Project, error) {
	return p.listProjects(ctx, "{Status}!='Completed'")
}

func (p *Projects) listProjects(ctx context.Context, formula string) ([]Project, error) {
	records, err := p.client.list(ctx, p.table, formula, 0)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]Project, 0, len(records))
	for i := range records {
		projects = append(projects, *projectFromRecord(&records[i]))
	}
	return projects, nil
}

// PatchFields updates arbitrary writable fields on a project record.
func (p *Projects) PatchFields(ctx context.Context, recordID string, fields map[string]any) error {
	if err := p.client.patch(ctx, p.table, recordID, fields); err != nil {
		return fmt.Errorf("patch project %s: %w", recordID, err)
	}
	return nil
}

// AppendUpdate sets the current update text and rolls the previous value into
// Update History, keeping the newest entries up to the cap.
func (p *Projects) AppendUpdate(ctx context.Context, recordID, update string) error {
	rec, err := p.client.get(ctx, p.table, recordID)
	if err != nil {
		return fmt.Errorf("read project %s: %w", recordID, err)
	}
	history := stringField(rec, "Update History")
	previous := stringField(rec, "Update")
	if previous != "" {
		entries := []string{previous}
		if history != "" {
			entries = append(entries, strings.Split(history, "\n")...)
		}
		if len(entries) > updateHistoryMax {
			entries = entries[:updateHistoryMax]
		}
		history = strings.Join(entries, "\n")
	}
	return p.PatchFields(ctx, recordID, map[string]any{
		"Update":         update,
		"Update History": history,
	})
}
