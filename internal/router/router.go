// Package router runs the end-to-end flow for one inbound message: gates,
// pending-clarification handling, the decision engine, logging, payload
// building, and dispatch.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/connect"
	"github.com/mghunch/dot-traffic/internal/inbound"
	"github.com/mghunch/dot-traffic/internal/jobnum"
	"github.com/mghunch/dot-traffic/internal/llm"
)

// TrafficLogs is the Traffic-table surface the router needs.
type TrafficLogs interface {
	FindByMessageID(ctx context.Context, messageID string) (*airtable.TrafficLog, error)
	FindPendingClarification(ctx context.Context, conversationID string) (*airtable.TrafficLog, error)
	Insert(ctx context.Context, log airtable.TrafficLog) (string, error)
	Resolve(ctx context.Context, recordID, jobNumber string) (bool, error)
}

// ProjectLookup resolves job numbers to project records.
type ProjectLookup interface {
	FindByJobNumber(ctx context.Context, jobNumber string) (*airtable.Project, error)
}

// ClientLookup resolves client codes, mainly for the Teams team id.
type ClientLookup interface {
	FindByCode(ctx context.Context, clientCode string) (*airtable.ClientInfo, error)
}

// UpdateRecorder persists job updates to the record store.
type UpdateRecorder interface {
	Record(ctx context.Context, projectRecordID, update, author string) error
}

// Engine is the decision engine seam.
type Engine interface {
	Decide(ctx context.Context, system string, history []llm.Message, userContent string) (brain.RoutingDecision, error)
}

// Dispatcher delivers payloads to workers.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload connect.Payload) (connect.DispatchResult, error)
}

// Notifier sends the outbound emails that close a routing loop.
type Notifier interface {
	SendDecision(ctx context.Context, msg inbound.Message, decision brain.RoutingDecision) error
	SendConfirmation(ctx context.Context, msg inbound.Message, route connect.Route, jobNumber string) error
	SendNotBuilt(ctx context.Context, msg inbound.Message, route connect.Route) error
	SendFailure(ctx context.Context, msg inbound.Message, routeName string, cause error) error
}

// Prompts supplies the current system prompt text.
type Prompts interface {
	Traffic() string
}

// Result is the router's answer for one message, returned to the HTTP caller.
type Result struct {
	Type       string `json:"type"`
	Route      string `json:"route"`
	Status     string `json:"status,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`

	JobNumber  string `json:"jobNumber,omitempty"`
	ClientCode string `json:"clientCode,omitempty"`
	ClientName string `json:"clientName,omitempty"`

	ClarifyType  string              `json:"clarifyType,omitempty"`
	RedirectTo   string              `json:"redirectTo,omitempty"`
	PossibleJobs []brain.PossibleJob `json:"jobs,omitempty"`
	Confirmation bool                `json:"confirmation,omitempty"`

	OriginalRoute    string `json:"originalRoute,omitempty"`
	OriginalRecordID string `json:"originalRecordId,omitempty"`

	Dispatch *connect.DispatchResult `json:"worker,omitempty"`
	Payload  *connect.Payload        `json:"payload,omitempty"`
}

// Router wires the flow together.
type Router struct {
	traffic    TrafficLogs
	projects   ProjectLookup
	clients    ClientLookup
	engine     Engine
	registry   *connect.Registry
	dispatcher Dispatcher
	notifier   Notifier
	prompts    Prompts
	extractor  *jobnum.Extractor
	updates    UpdateRecorder

	selfSender    string
	allowedDomain string
	logger        *slog.Logger

	convMu    sync.Mutex
	convLocks map[string]*sync.Mutex
}

// Config carries the router's collaborators.
type Config struct {
	Traffic    TrafficLogs
	Projects   ProjectLookup
	Clients    ClientLookup
	Engine     Engine
	Registry   *connect.Registry
	Dispatcher Dispatcher
	Notifier   Notifier
	Prompts    Prompts
	Extractor  *jobnum.Extractor
	Updates    UpdateRecorder

	SelfSender    string
	AllowedDomain string
	Logger        *slog.Logger
}

func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		traffic:       cfg.Traffic,
		projects:      cfg.Projects,
		clients:       cfg.Clients,
		engine:        cfg.Engine,
		registry:      cfg.Registry,
		dispatcher:    cfg.Dispatcher,
		notifier:      cfg.Notifier,
		prompts:       cfg.Prompts,
		extractor:     cfg.Extractor,
		updates:       cfg.Updates,
		selfSender:    strings.ToLower(strings.TrimSpace(cfg.SelfSender)),
		allowedDomain: strings.ToLower(strings.TrimSpace(cfg.AllowedDomain)),
		logger:        logger.With("component", "router"),
		convLocks:     make(map[string]*sync.Mutex),
	}
}

// lockConversation serializes pending-clarification handling per thread, so
// two concurrent replies cannot both observe the same open clarification.
func (r *Router) lockConversation(conversationID string) func() {
	if conversationID == "" {
		return func() {}
	}
	r.convMu.Lock()
	mu, ok := r.convLocks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		r.convLocks[conversationID] = mu
	}
	r.convMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Handle runs one message through the whole flow. It returns an error only
// when the message could not be decided at all; delivery failures are
// reported in the Result and by email.
func (r *Router) Handle(ctx context.Context, msg inbound.Message) (Result, error) {
	// Own outbound mail loops straight back from the listener.
	if msg.SenderEmail == r.selfSender {
		r.logger.Info("ignoring own mail", "sender", msg.SenderEmail)
		return Result{Type: "ignored", Route: "ignored", Status: airtable.StatusSelf}, nil
	}

	// Outside senders get logged and dropped.
	if r.allowedDomain != "" && msg.SenderDomain() != r.allowedDomain {
		r.logger.Info("external sender", "sender", msg.SenderEmail)
		if _, err := r.traffic.Insert(ctx, airtable.TrafficLog{
			InternetMessageID: msg.InternetMessageID,
			ConversationID:    msg.ConversationID,
			Route:             "external",
			Status:            airtable.StatusIgnored,
			SenderEmail:       msg.SenderEmail,
			Subject:           msg.Subject,
		}); err != nil {
			r.logger.Error("external log failed", "error", err)
		}
		return Result{Type: "ignored", Route: "external", Status: airtable.StatusIgnored}, nil
	}

	// Replays of an already-handled message are acknowledged, not re-run.
	existing, err := r.traffic.FindByMessageID(ctx, msg.InternetMessageID)
	if err != nil {
		return Result{}, fmt.Errorf("dedup check: %w", err)
	}
	if existing != nil {
		r.logger.Info("duplicate message", "messageId", msg.InternetMessageID, "originalRoute", existing.Route)
		return Result{
			Type:             "duplicate",
			Route:            "duplicate",
			OriginalRoute:    existing.Route,
			OriginalRecordID: existing.RecordID,
		}, nil
	}

	unlock := r.lockConversation(msg.ConversationID)
	pending, err := r.traffic.FindPendingClarification(ctx, msg.ConversationID)
	if err != nil {
		unlock()
		return Result{}, fmt.Errorf("pending check: %w", err)
	}
	var pendingNote string
	if pending != nil {
		outcome, err := r.resolvePending(ctx, msg, pending)
		if err != nil {
			unlock()
			return Result{}, err
		}
		if outcome.result != nil {
			unlock()
			return *outcome.result, nil
		}
		if outcome.decision != nil {
			unlock()
			return r.act(ctx, msg, *outcome.decision)
		}
		pendingNote = outcome.note
	}
	unlock()

	jobHint := r.extractor.ExtractAny(msg.Subject, msg.Content, msg.AttachmentNames)
	decision, err := r.engine.Decide(ctx, r.prompts.Traffic(), nil, brain.EmailContext(msg, jobHint, pendingNote))
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}

	return r.act(ctx, msg, decision)
}

// pendingOutcome is what the deterministic reply checks made of an open
// clarification. At most one of decision and result is set; neither set with
// an empty note means a lost resolution race, treated as a fresh message.
type pendingOutcome struct {
	decision *brain.RoutingDecision
	result   *Result
	note     string
}

// resolvePending settles an open clarification without the model where the
// reply is unambiguous. A triage request resolves the entry and routes to
// triage; a job number resolves it and routes an update, but only when the
// job exists, otherwise the sender is asked again and the entry stays open;
// an affirmation resolves it against the suggested job when that job exists.
// Anything else leaves the entry open and goes to the engine with a note.
func (r *Router) resolvePending(ctx context.Context, msg inbound.Message, pending *airtable.TrafficLog) (pendingOutcome, error) {
	kind, job := ClassifyReply(r.extractor, msg.Subject, msg.Content)
	switch kind {
	case ReplyTriage:
		ok, err := r.traffic.Resolve(ctx, pending.RecordID, "")
		if err != nil {
			return pendingOutcome{}, fmt.Errorf("resolve pending: %w", err)
		}
		if !ok {
			r.logger.Info("pending already resolved elsewhere", "record", pending.RecordID)
			return pendingOutcome{}, nil
		}
		return pendingOutcome{decision: &brain.RoutingDecision{
			Type:       "action",
			Route:      "triage",
			Confidence: "high",
			Reasoning:  "sender asked for a triage rundown in a clarify reply",
		}}, nil
	case ReplyJobNumber:
		project, err := r.projects.FindByJobNumber(ctx, job)
		if err != nil {
			return pendingOutcome{}, fmt.Errorf("pending job lookup: %w", err)
		}
		if project == nil {
			// Ask again. The original entry stays open for another reply,
			// so no second pending row is logged.
			clarify := brain.RoutingDecision{
				Type:        brain.TypeClarify,
				Confidence:  "low",
				ClarifyType: "job_not_found",
				JobNumber:   job,
				Message:     fmt.Sprintf("I couldn't find %s anywhere.", job),
			}
			if mailErr := r.notifier.SendDecision(ctx, msg, clarify); mailErr != nil {
				r.logger.Error("clarify mail failed", "error", mailErr)
			}
			return pendingOutcome{result: &Result{
				Type:        brain.TypeClarify,
				Route:       "clarify",
				Status:      airtable.StatusPending,
				Confidence:  "low",
				Reason:      fmt.Sprintf("job %s not found", job),
				JobNumber:   job,
				ClarifyType: "job_not_found",
			}}, nil
		}
		ok, err := r.traffic.Resolve(ctx, pending.RecordID, job)
		if err != nil {
			return pendingOutcome{}, fmt.Errorf("resolve pending: %w", err)
		}
		if !ok {
			return pendingOutcome{}, nil
		}
		return pendingOutcome{decision: &brain.RoutingDecision{
			Type:       "action",
			Route:      "update",
			Confidence: "high",
			JobNumber:  job,
			Reasoning:  "sender named the job in a clarify reply",
		}}, nil
	case ReplyAffirmative:
		if pending.JobNumber == "" {
			return pendingOutcome{note: pendingNoteFor(pending)}, nil
		}
		project, err := r.projects.FindByJobNumber(ctx, pending.JobNumber)
		if err != nil {
			return pendingOutcome{}, fmt.Errorf("pending job lookup: %w", err)
		}
		if project == nil {
			return pendingOutcome{note: pendingNoteFor(pending)}, nil
		}
		ok, err := r.traffic.Resolve(ctx, pending.RecordID, "")
		if err != nil {
			return pendingOutcome{}, fmt.Errorf("resolve pending: %w", err)
		}
		if !ok {
			return pendingOutcome{}, nil
		}
		return pendingOutcome{decision: &brain.RoutingDecision{
			Type:       "action",
			Route:      "update",
			Confidence: "high",
			JobNumber:  pending.JobNumber,
			Reasoning:  "sender confirmed the suggested job",
		}}, nil
	default:
		return pendingOutcome{note: pendingNoteFor(pending)}, nil
	}
}

func pendingNoteFor(pending *airtable.TrafficLog) string {
	if pending.JobNumber != "" {
		return fmt.Sprintf("a %s question is still pending on this thread (job %s); decide whether this message answers it", pending.Route, pending.JobNumber)
	}
	return fmt.Sprintf("a %s question is still pending on this thread; decide whether this message answers it", pending.Route)
}

// act logs the decision, enriches it, and carries out its side effects.
func (r *Router) act(ctx context.Context, msg inbound.Message, decision brain.RoutingDecision) (Result, error) {
	project, teamID := r.enrich(ctx, &decision)

	// A named job that doesn't exist beats whatever route was chosen.
	if decision.JobNumber != "" && project == nil && !brain.IsSpecialType(decision.Type) {
		decision = brain.RoutingDecision{
			Type:        brain.TypeClarify,
			Confidence:  "high",
			ClarifyType: "job_not_found",
			JobNumber:   decision.JobNumber,
			Message:     fmt.Sprintf("I couldn't find %s anywhere.", decision.JobNumber),
		}
	}

	route := decision.EffectiveRoute()
	status := airtable.StatusProcessed
	if decision.Type == brain.TypeClarify || decision.Type == brain.TypeConfirm {
		status = airtable.StatusPending
	}
	recordID, err := r.traffic.Insert(ctx, airtable.TrafficLog{
		InternetMessageID: msg.InternetMessageID,
		ConversationID:    msg.ConversationID,
		Route:             route,
		Status:            status,
		JobNumber:         decision.JobNumber,
		ClientCode:        decision.ClientCode,
		SenderEmail:       msg.SenderEmail,
		Subject:           msg.Subject,
	})
	if err != nil {
		r.logger.Error("traffic log failed", "error", err)
	}
	r.logger.Info("decision", "route", route, "type", decision.Type,
		"confidence", decision.Confidence, "job", decision.JobNumber, "record", recordID)

	result := Result{
		Type:         decision.Type,
		Route:        route,
		Status:       status,
		Confidence:   decision.Confidence,
		Reason:       decision.Reasoning,
		Message:      decision.Message,
		JobNumber:    decision.JobNumber,
		ClientCode:   decision.ClientCode,
		ClarifyType:  decision.ClarifyType,
		RedirectTo:   decision.RedirectTo,
		PossibleJobs: decision.PossibleJobs,
	}
	if project != nil {
		result.ClientName = project.ClientName
	}

	fromHub := msg.Source == "hub"

	switch decision.Type {
	case brain.TypeClarify, brain.TypeConfirm:
		// Hub turns render the question client-side; email gets a reply.
		if fromHub {
			result.Status = "pending_user_input"
			return result, nil
		}
		if err := r.notifier.SendDecision(ctx, msg, decision); err != nil {
			r.logger.Error("decision mail failed", "error", err)
		}
		return result, nil
	case brain.TypeAnswer, brain.TypeRedirect, brain.TypeError:
		if fromHub {
			return result, nil
		}
		if err := r.notifier.SendDecision(ctx, msg, decision); err != nil {
			r.logger.Error("decision mail failed", "error", err)
		}
		return result, nil
	default:
		if fromHub {
			// No worker calls on behalf of a hub turn; the UI drives the
			// next step itself.
			if _, known := r.registry.Get(route); known {
				result.Status = "user_action_required"
			} else {
				result.Status = "unknown_type"
			}
			return result, nil
		}
		// Updates also land on the record itself, so the job history is
		// complete even while the downstream worker is offline.
		if route == "update" && project != nil && r.updates != nil {
			text := decision.Message
			if text == "" {
				text = msg.Content
			}
			if err := r.updates.Record(ctx, project.RecordID, text, msg.SenderName); err != nil {
				r.logger.Error("update record failed", "job", decision.JobNumber, "error", err)
			}
		}
		payload := connect.BuildPayload(msg, decision, project, teamID)
		return r.deliver(ctx, msg, result, payload)
	}
}

// enrich fills job and client context when the decision names a job number.
func (r *Router) enrich(ctx context.Context, decision *brain.RoutingDecision) (*airtable.Project, string) {
	if decision.JobNumber == "" {
		return nil, ""
	}
	decision.JobNumber = jobnum.Normalize(decision.JobNumber)
	project, err := r.projects.FindByJobNumber(ctx, decision.JobNumber)
	if err != nil {
		r.logger.Error("project lookup failed", "job", decision.JobNumber, "error", err)
		return nil, ""
	}
	if project == nil {
		return nil, ""
	}
	if decision.ClientCode == "" {
		decision.ClientCode = jobnum.ClientCode(decision.JobNumber)
	}
	teamID := ""
	if info, err := r.clients.FindByCode(ctx, decision.ClientCode); err != nil {
		r.logger.Error("client lookup failed", "client", decision.ClientCode, "error", err)
	} else if info != nil {
		teamID = info.TeamsID
	}
	return project, teamID
}

// deliver sends the payload to its worker and mails the sender the outcome.
func (r *Router) deliver(ctx context.Context, msg inbound.Message, result Result, payload connect.Payload) (Result, error) {
	result.Payload = &payload
	dispatch, err := r.dispatcher.Dispatch(ctx, payload)
	result.Dispatch = &dispatch
	route, _ := r.registry.Get(payload.Route)

	switch {
	case err != nil:
		r.logger.Error("dispatch failed", "route", payload.Route, "error", err)
		if mailErr := r.notifier.SendFailure(ctx, msg, payload.Route, err); mailErr != nil {
			r.logger.Error("failure mail failed", "error", mailErr)
		}
		result.Status = "failed"
		return result, nil
	case dispatch.NotBuilt:
		if mailErr := r.notifier.SendNotBuilt(ctx, msg, route); mailErr != nil {
			r.logger.Error("not-built mail failed", "error", mailErr)
		}
	default:
		result.Confirmation = connect.WantsConfirmation(payload.Route)
		if mailErr := r.notifier.SendConfirmation(ctx, msg, route, payload.JobNumber); mailErr != nil {
			r.logger.Error("confirmation mail failed", "error", mailErr)
		}
	}
	return result, nil
}
