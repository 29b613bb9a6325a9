package connect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/inbound"
)

// Notifier sends the human-facing emails that close each routing loop.
type Notifier struct {
	mailer    *Mailer
	templates *Templates
	logger    *slog.Logger
}

func NewNotifier(mailer *Mailer, templates *Templates, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		mailer:    mailer,
		templates: templates,
		logger:    logger.With("component", "notify"),
	}
}

// SendDecision handles the decision types that answer the sender directly:
// clarify, confirm, answer, redirect, and error.
func (n *Notifier) SendDecision(ctx context.Context, msg inbound.Message, decision brain.RoutingDecision) error {
	firstName := msg.FirstName()
	var body string
	subject := ConfirmationSubject(msg.Subject)

	switch decision.Type {
	case brain.TypeClarify:
		if decision.ClarifyType == "job_not_found" {
			body = n.templates.JobNotFound(firstName, decision.JobNumber)
		} else {
			body = n.templates.Clarify(firstName, decision.Message, decision.PossibleJobs)
		}
	case brain.TypeConfirm:
		suggested := decision.SuggestedJob
		if suggested == "" {
			suggested = decision.JobNumber
		}
		body = n.templates.Confirm(firstName, decision.Message, suggested)
	case brain.TypeAnswer:
		body = n.templates.Answer(firstName, decision.Message, decision.NextPrompt)
	case brain.TypeRedirect:
		body = n.templates.Redirect(firstName, decision.Message, decision.RedirectTo, decision.ClientCode, "")
	case brain.TypeError:
		body = n.templates.NoIdea(firstName)
		subject = FailureSubject(msg.Subject)
	default:
		return fmt.Errorf("decision type %q is not a mail-back type", decision.Type)
	}
	return n.mailer.Send(ctx, msg.SenderEmail, subject, body)
}

// SendConfirmation reports a successful dispatch, unless the route opts out.
func (n *Notifier) SendConfirmation(ctx context.Context, msg inbound.Message, route Route, jobNumber string) error {
	if !WantsConfirmation(route.Name) {
		return nil
	}
	body := n.templates.Confirmation(msg.FirstName(), route, jobNumber)
	return n.mailer.Send(ctx, msg.SenderEmail, ConfirmationSubject(msg.Subject), body)
}

// SendNotBuilt tells the sender their request landed on an unfinished route.
func (n *Notifier) SendNotBuilt(ctx context.Context, msg inbound.Message, route Route) error {
	body := n.templates.NotBuilt(msg.FirstName(), route)
	return n.mailer.Send(ctx, msg.SenderEmail, ConfirmationSubject(msg.Subject), body)
}

// SendFailure reports a dispatch failure with a sanitized error line.
func (n *Notifier) SendFailure(ctx context.Context, msg inbound.Message, routeName string, cause error) error {
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	body := n.templates.Failure(msg.FirstName(), routeName, errText)
	if err := n.mailer.Send(ctx, msg.SenderEmail, FailureSubject(msg.Subject), body); err != nil {
		n.logger.Error("failure mail could not be sent", "error", err)
		return err
	}
	return nil
}
