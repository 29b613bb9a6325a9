package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/jobnum"
	"github.com/mghunch/dot-traffic/internal/llm"
)

// Tool is one lookup the model can call while deciding a route.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry holds the tools offered to the model.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Defs returns tool definitions in a deterministic order.
func (r *Registry) Defs() []llm.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Execute runs a named tool. Failures come back as a JSON error document so
// the model sees them as data instead of the loop aborting.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) string {
	tool, ok := r.tools[name]
	if !ok {
		return toolError(fmt.Sprintf("unknown tool %q", name))
	}
	result, err := tool.Execute(ctx, input)
	if err != nil {
		return toolError(err.Error())
	}
	return result
}

func toolError(message string) string {
	out, _ := json.Marshal(map[string]string{"error": message})
	return string(out)
}

func toolJSON(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(out), nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Lookups is the record-store surface the tools need. The concrete
// implementations live in internal/airtable.
type Lookups struct {
	Projects interface {
		FindByJobNumber(ctx context.Context, jobNumber string) (*airtable.Project, error)
		ListActiveForClient(ctx context.Context, clientCode string) ([]airtable.Project, error)
		ListAllActive(ctx context.Context) ([]airtable.Project, error)
	}
	Clients interface {
		Search(ctx context.Context, clientCode, searchTerm string) ([]airtable.ClientInfo, error)
		FindByCode(ctx context.Context, clientCode string) (*airtable.ClientInfo, error)
		Spend(ctx context.Context, clientCode, period string, now time.Time) (*airtable.SpendSummary, error)
		ReserveJobNumber(ctx context.Context, clientCode string) (string, error)
	}
	Meetings interface {
		List(ctx context.Context, jobNumber string) ([]airtable.Meeting, error)
	}
}

// StandardRegistry builds the full tool set over the record store. The
// meetings tool is offered only when a meetings table is wired.
func StandardRegistry(lookups Lookups) *Registry {
	tools := []Tool{
		searchPeopleTool{lookups},
		clientDetailTool{lookups},
		spendSummaryTool{lookups},
		reserveJobTool{lookups},
		activeJobsTool{lookups},
		allActiveJobsTool{lookups},
		jobByNumberTool{lookups},
	}
	if lookups.Meetings != nil {
		tools = append(tools, meetingsTool{lookups})
	}
	return NewRegistry(tools...)
}

type searchPeopleTool struct{ lookups Lookups }

func (searchPeopleTool) Name() string { return "search_people" }
func (searchPeopleTool) Description() string {
	return "Search clients by code or name fragment. Either argument may be omitted."
}
func (searchPeopleTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"client_code": map[string]any{"type": "string", "description": "Three-letter client code"},
		"search_term": map[string]any{"type": "string", "description": "Name fragment to match"},
	})
}
func (t searchPeopleTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		ClientCode string `json:"client_code"`
		SearchTerm string `json:"search_term"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	results, err := t.lookups.Clients.Search(ctx, args.ClientCode, args.SearchTerm)
	if err != nil {
		return "", err
	}
	return toolJSON(map[string]any{"results": results, "count": len(results)})
}

type clientDetailTool struct{ lookups Lookups }

func (clientDetailTool) Name() string { return "get_client_detail" }
func (clientDetailTool) Description() string {
	return "Fetch one client's record by three-letter code, including the Teams team id."
}
func (clientDetailTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"client_code": map[string]any{"type": "string"},
	}, "client_code")
}
func (t clientDetailTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		ClientCode string `json:"client_code"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	info, err := t.lookups.Clients.FindByCode(ctx, args.ClientCode)
	if err != nil {
		return "", err
	}
	if info == nil {
		return toolJSON(map[string]any{"found": false, "clientCode": args.ClientCode})
	}
	return toolJSON(info)
}

type spendSummaryTool struct{ lookups Lookups }

func (spendSummaryTool) Name() string { return "get_spend_summary" }
func (spendSummaryTool) Description() string {
	return "Committed versus spent for a client. Periods: this_month, this_quarter, last_quarter, or a quarter like JUL-SEP."
}
func (spendSummaryTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"client_code": map[string]any{"type": "string"},
		"period":      map[string]any{"type": "string"},
	}, "client_code")
}
func (t spendSummaryTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		ClientCode string `json:"client_code"`
		Period     string `json:"period"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	summary, err := t.lookups.Clients.Spend(ctx, args.ClientCode, args.Period, time.Now())
	if err != nil {
		return "", err
	}
	if summary == nil {
		return toolJSON(map[string]any{"found": false, "clientCode": args.ClientCode})
	}
	return toolJSON(summary)
}

type reserveJobTool struct{ lookups Lookups }

func (reserveJobTool) Name() string { return "reserve_job_number" }
func (reserveJobTool) Description() string {
	return "Reserve the next job number for a client and advance the counter. Only call when opening a new job."
}
func (reserveJobTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"client_code": map[string]any{"type": "string"},
	}, "client_code")
}
func (t reserveJobTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		ClientCode string `json:"client_code"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	job, err := t.lookups.Clients.ReserveJobNumber(ctx, args.ClientCode)
	if err != nil {
		return "", err
	}
	return toolJSON(map[string]any{"jobNumber": job})
}

type activeJobsTool struct{ lookups Lookups }

func (activeJobsTool) Name() string { return "get_active_jobs" }
func (activeJobsTool) Description() string {
	return "List a client's jobs that are not completed."
}
func (activeJobsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"client_code": map[string]any{"type": "string"},
	}, "client_code")
}
func (t activeJobsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		ClientCode string `json:"client_code"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	jobs, err := t.lookups.Projects.ListActiveForClient(ctx, args.ClientCode)
	if err != nil {
		return "", err
	}
	return toolJSON(map[string]any{"jobs": jobs, "count": len(jobs)})
}

type allActiveJobsTool struct{ lookups Lookups }

func (allActiveJobsTool) Name() string { return "get_all_active_jobs" }
func (allActiveJobsTool) Description() string {
	return "List every job that is not completed, across all clients."
}
func (allActiveJobsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{})
}
func (t allActiveJobsTool) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	jobs, err := t.lookups.Projects.ListAllActive(ctx)
	if err != nil {
		return "", err
	}
	return toolJSON(map[string]any{"jobs": jobs, "count": len(jobs)})
}

type meetingsTool struct{ lookups Lookups }

func (meetingsTool) Name() string { return "get_meetings" }
func (meetingsTool) Description() string {
	return "List logged meetings, optionally narrowed to one job number."
}
func (meetingsTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"job_number": map[string]any{"type": "string"},
	})
}
func (t meetingsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		JobNumber string `json:"job_number"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	job := args.JobNumber
	if job != "" {
		job = jobnum.Normalize(job)
	}
	meetings, err := t.lookups.Meetings.List(ctx, job)
	if err != nil {
		return "", err
	}
	return toolJSON(map[string]any{"meetings": meetings, "count": len(meetings)})
}

type jobByNumberTool struct{ lookups Lookups }

func (jobByNumberTool) Name() string { return "get_job_by_number" }
func (jobByNumberTool) Description() string {
	return "Fetch one job by its number, like 'LAB 055'."
}
func (jobByNumberTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"job_number": map[string]any{"type": "string"},
	}, "job_number")
}
func (t jobByNumberTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		JobNumber string `json:"job_number"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	project, err := t.lookups.Projects.FindByJobNumber(ctx, jobnum.Normalize(args.JobNumber))
	if err != nil {
		return "", err
	}
	if project == nil {
		return toolJSON(map[string]any{"found": false, "jobNumber": args.JobNumber})
	}
	return toolJSON(project)
}
