package airtable

import (
	"context"
	"fmt"
)

// Meeting is one row in the Meetings table.
type Meeting struct {
	RecordID  string `json:"recordId"`
	Title     string `json:"title"`
	JobNumber string `json:"jobNumber"`
	StartsAt  string `json:"startsAt"`
	Attendees string `json:"attendees"`
	Notes     string `json:"notes"`
}

func meetingFromRecord(rec *Record) Meeting {
	return Meeting{
		RecordID:  rec.ID,
		Title:     stringField(rec, "Title"),
		JobNumber: stringField(rec, "Job Number"),
		StartsAt:  stringField(rec, "Starts At"),
		Attendees: stringField(rec, "Attendees"),
		Notes:     stringField(rec, "Notes"),
	}
}

// Meetings wraps Meetings-table operations.
type Meetings struct {
	client *Client
	table  string
}

func NewMeetings(client *Client, table string) *Meetings {
	return &Meetings{client: client, table: table}
}

// List returns meetings, newest first per the table's own ordering. A
// non-empty job number narrows the list to that job.
func (m *Meetings) List(ctx context.Context, jobNumber string) ([]Meeting, error) {
	formula := ""
	if jobNumber != "" {
		formula = fmt.Sprintf("{Job Number}='%s'", escapeFormulaValue(jobNumber))
	}
	records, err := m.client.list(ctx, m.table, formula, 0)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	meetings := make([]Meeting, 0, len(records))
	for i := range records {
		meetings = append(meetings, meetingFromRecord(&records[i]))
	}
	return meetings, nil
}
