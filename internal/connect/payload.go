package connect

import (
	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/inbound"
)

// Payload is the one shape every downstream worker receives, regardless of
// route. Workers pick the fields they care about and ignore the rest.
type Payload struct {
	Type       string `json:"type"`
	Route      string `json:"route"`
	Confidence string `json:"confidence,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
	Intent     string `json:"intent,omitempty"`
	Message    string `json:"message,omitempty"`

	JobNumber       string `json:"jobNumber,omitempty"`
	ClientCode      string `json:"clientCode,omitempty"`
	ClientName      string `json:"clientName,omitempty"`
	JobName         string `json:"jobName,omitempty"`
	ProjectRecordID string `json:"projectRecordId,omitempty"`
	TeamsChannelID  string `json:"teamsChannelId,omitempty"`
	TeamID          string `json:"teamId,omitempty"`
	CurrentStage    string `json:"currentStage,omitempty"`
	CurrentStatus   string `json:"currentStatus,omitempty"`
	WithClient      bool   `json:"withClient,omitempty"`

	SenderName        string   `json:"senderName,omitempty"`
	SenderEmail       string   `json:"senderEmail,omitempty"`
	AllRecipients     []string `json:"allRecipients,omitempty"`
	SubjectLine       string   `json:"subjectLine,omitempty"`
	EmailContent      string   `json:"emailContent,omitempty"`
	HasAttachments    bool     `json:"hasAttachments,omitempty"`
	AttachmentNames   []string `json:"attachmentNames,omitempty"`
	InternetMessageID string   `json:"internetMessageId,omitempty"`
	ConversationID    string   `json:"conversationId,omitempty"`
	ReceivedDateTime  string   `json:"receivedDateTime,omitempty"`
	Source            string   `json:"source,omitempty"`

	ClarifyType  string              `json:"clarifyType,omitempty"`
	PossibleJobs []brain.PossibleJob `json:"possibleJobs,omitempty"`
	SuggestedJob string              `json:"suggestedJob,omitempty"`

	OriginalIntent string         `json:"originalIntent,omitempty"`
	RedirectTo     string         `json:"redirectTo,omitempty"`
	RedirectParams map[string]any `json:"redirectParams,omitempty"`
	NextPrompt     string         `json:"nextPrompt,omitempty"`
}

// BuildPayload flattens message, decision, and optional project enrichment
// into the universal shape.
func BuildPayload(msg inbound.Message, decision brain.RoutingDecision, project *airtable.Project, teamID string) Payload {
	p := Payload{
		Type:       decision.Type,
		Route:      decision.EffectiveRoute(),
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
		Intent:     decision.Intent,
		Message:    decision.Message,

		JobNumber:  decision.JobNumber,
		ClientCode: decision.ClientCode,

		SenderName:        msg.SenderName,
		SenderEmail:       msg.SenderEmail,
		AllRecipients:     msg.AllRecipients,
		SubjectLine:       msg.Subject,
		EmailContent:      msg.Content,
		HasAttachments:    msg.HasAttachments,
		AttachmentNames:   msg.AttachmentNames,
		InternetMessageID: msg.InternetMessageID,
		ConversationID:    msg.ConversationID,
		ReceivedDateTime:  msg.ReceivedDateTime,
		Source:            msg.Source,

		ClarifyType:  decision.ClarifyType,
		PossibleJobs: decision.PossibleJobs,
		SuggestedJob: decision.SuggestedJob,

		OriginalIntent: decision.OriginalIntent,
		RedirectTo:     decision.RedirectTo,
		RedirectParams: decision.RedirectParams,
		NextPrompt:     decision.NextPrompt,
	}
	if project != nil {
		if p.JobNumber == "" {
			p.JobNumber = project.JobNumber
		}
		p.JobName = project.JobName
		p.ClientName = project.ClientName
		p.ProjectRecordID = project.RecordID
		p.TeamsChannelID = project.TeamsChannelID
		p.CurrentStage = project.Stage
		p.CurrentStatus = project.Status
		p.WithClient = project.WithClient
	}
	p.TeamID = teamID
	return p
}
