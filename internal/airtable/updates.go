package airtable

import (
	"context"
	"fmt"
	"time"
)

// Updates wraps the Updates table, which keeps a per-project feed of update
// texts linked to the Projects table.
type Updates struct {
	client *Client
	table  string
}

func NewUpdates(client *Client, table string) *Updates {
	return &Updates{client: client, table: table}
}

// Insert writes one update entry linked to a project record.
func (u *Updates) Insert(ctx context.Context, projectRecordID, update, author string) (string, error) {
	fields := map[string]any{
		"Project":   []string{projectRecordID},
		"Update":    update,
		"CreatedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if author != "" {
		fields["Author"] = author
	}
	created, err := u.client.create(ctx, u.table, fields)
	if err != nil {
		return "", fmt.Errorf("insert update: %w", err)
	}
	return created.ID, nil
}

// UpdateRecorder writes an update both onto the project record and into the
// Updates feed.
type UpdateRecorder struct {
	Projects *Projects
	Updates  *Updates
}

func (r UpdateRecorder) Record(ctx context.Context, projectRecordID, update, author string) error {
	if err := r.Projects.AppendUpdate(ctx, projectRecordID, update); err != nil {
		return err
	}
	_, err := r.Updates.Insert(ctx, projectRecordID, update, author)
	return err
}
