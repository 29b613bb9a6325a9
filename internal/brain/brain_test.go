package brain

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/inbound"
	"github.com/mghunch/dot-traffic/internal/llm"
)

// scriptedCaller replays canned responses in order.
type scriptedCaller struct {
	responses []llm.Response
	requests  []llm.Request
}

func (s *scriptedCaller) Call(_ context.Context, req llm.Request) (llm.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return llm.Response{Text: `{"type":"error","confidence":"low"}`}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

type echoTool struct{ calls *int }

func (echoTool) Name() string                { return "get_job_by_number" }
func (echoTool) Description() string         { return "test" }
func (echoTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (t echoTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	*t.calls += 1
	return `{"jobNumber":"LAB 055","status":"In Progress"}`, nil
}

func toolUseResponse(id string) llm.Response {
	return llm.Response{
		StopReason: llm.StopToolUse,
		ToolCalls:  []llm.ToolCall{{ID: id, Name: "get_job_by_number", Input: json.RawMessage(`{}`)}},
		Blocks: []llm.ContentBlock{
			{Type: "tool_use", ID: id, Name: "get_job_by_number", Input: json.RawMessage(`{}`)},
		},
	}
}

func TestDecideRunsToolThenParses(t *testing.T) {
	calls := 0
	caller := &scriptedCaller{responses: []llm.Response{
		toolUseResponse("tu_1"),
		{Text: `{"type":"update","confidence":"high","jobNumber":"LAB 055"}`},
	}}
	engine := NewEngine(caller, NewRegistry(echoTool{&calls}), 5, nil)

	decision, err := engine.Decide(context.Background(), "system", nil, "update LAB 055")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if calls != 1 {
		t.Fatalf("tool calls: %d", calls)
	}
	if decision.Type != "update" || decision.JobNumber != "LAB 055" {
		t.Fatalf("decision: %+v", decision)
	}
}

func TestDecideForcesFinalAfterBudget(t *testing.T) {
	calls := 0
	caller := &scriptedCaller{responses: []llm.Response{
		toolUseResponse("tu_1"),
		toolUseResponse("tu_2"),
		{Text: `{"type":"triage","confidence":"medium"}`},
	}}
	engine := NewEngine(caller, NewRegistry(echoTool{&calls}), 2, nil)

	decision, err := engine.Decide(context.Background(), "system", nil, "what's on?")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Type != "triage" {
		t.Fatalf("decision: %+v", decision)
	}
	// The final call must carry no tools and end with the forcing prompt.
	last := caller.requests[len(caller.requests)-1]
	if len(last.Tools) != 0 {
		t.Fatal("forced final call should offer no tools")
	}
	lastMsg := last.Messages[len(last.Messages)-1]
	if lastMsg.Content != forcedFinalPrompt {
		t.Fatalf("final prompt: %q", lastMsg.Content)
	}
}

func TestDecideBadOutputDegradesToErrorDecision(t *testing.T) {
	caller := &scriptedCaller{responses: []llm.Response{{Text: "I cannot answer in JSON, sorry."}}}
	engine := NewEngine(caller, NewRegistry(), 5, nil)

	decision, err := engine.Decide(context.Background(), "system", nil, "hello")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Type != TypeError || decision.Confidence != "low" {
		t.Fatalf("decision: %+v", decision)
	}
	if decision.Message == "" {
		t.Fatal("error decision needs a friendly message")
	}
}

func TestEmailContext(t *testing.T) {
	msg := inbound.Message{
		SenderEmail:    "murray@hunch.co.nz",
		SenderName:     "Murray",
		Subject:        "Re: LAB 055",
		Content:        "All approved, go ahead.",
		AllRecipients:  []string{"dot@hunch.co.nz"},
		HasAttachments: true,
		AttachmentNames: []string{
			"scope_LAB_055.pdf",
		},
	}
	doc := EmailContext(msg, "LAB 055", "a clarification was pending on this thread for LAB 055")
	for _, want := range []string{
		"murray@hunch.co.nz", "Re: LAB 055", "All approved", "scope_LAB_055.pdf",
		"Job number found in text: LAB 055", "pending on this thread",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("context missing %q:\n%s", want, doc)
		}
	}
}

func TestEmailContextWithoutJobHint(t *testing.T) {
	doc := EmailContext(inbound.Message{SenderEmail: "murray@hunch.co.nz", Content: "hi"}, "", "")
	if !strings.Contains(doc, "Job number found in text: None") {
		t.Fatalf("context missing empty hint line:\n%s", doc)
	}
}

type fakeMeetings struct {
	gotJob string
}

func (f *fakeMeetings) List(_ context.Context, jobNumber string) ([]airtable.Meeting, error) {
	f.gotJob = jobNumber
	return []airtable.Meeting{{Title: "Kickoff", JobNumber: jobNumber}}, nil
}

func TestStandardRegistryMeetingsTool(t *testing.T) {
	without := StandardRegistry(Lookups{})
	for _, def := range without.Defs() {
		if def.Name == "get_meetings" {
			t.Fatal("meetings tool offered without a meetings table")
		}
	}

	meetings := &fakeMeetings{}
	with := StandardRegistry(Lookups{Meetings: meetings})
	out := with.Execute(context.Background(), "get_meetings", json.RawMessage(`{"job_number":"lab_055"}`))
	if meetings.gotJob != "LAB 055" {
		t.Fatalf("job not normalized: %q", meetings.gotJob)
	}
	if !strings.Contains(out, "Kickoff") {
		t.Fatalf("tool output: %s", out)
	}
}
