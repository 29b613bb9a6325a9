package connect

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/mghunch/dot-traffic/internal/brain"
)

const maxJobCards = 5

// Templates renders outbound email bodies. Everything goes through
// html/template so record values and model output can't inject markup.
type Templates struct {
	hubURL  string
	logoURL string
	wrapper *template.Template
}

type wrapperData struct {
	Body    template.HTML
	LogoURL string
}

type boxData struct {
	Color    template.CSS
	Title    string
	Subtitle string
}

type cardData struct {
	JobNumber string
	JobName   string
	Meta      string
	Link      string
}

var wrapperTmpl = template.Must(template.New("wrapper").Parse(`<div style="font-family:Helvetica,Arial,sans-serif;max-width:560px;margin:0 auto;color:#1f2937">
{{.Body}}
<div style="margin-top:32px;padding-top:16px;border-top:1px solid #e5e7eb">
<img src="{{.LogoURL}}" alt="Dot" width="36" height="36" style="display:block;margin-bottom:8px">
<p style="font-size:12px;color:#6b7280">Dot is a robot, but there&#39;s humans in the loop.</p>
</div>
</div>`))

var boxTmpl = template.Must(template.New("box").Parse(`<div style="border-left:4px solid {{.Color}};background:#f9fafb;padding:12px 16px;margin:16px 0">
<p style="margin:0;font-weight:bold">{{.Title}}</p>
{{if .Subtitle}}<p style="margin:4px 0 0;color:#6b7280">{{.Subtitle}}</p>{{end}}
</div>`))

var cardTmpl = template.Must(template.New("card").Parse(`<a href="{{.Link}}" style="display:block;text-decoration:none;color:inherit;border:1px solid #e5e7eb;border-left:4px solid #ED1C24;border-radius:4px;padding:10px 14px;margin:8px 0">
<span style="font-weight:bold">{{.JobNumber}}</span> {{.JobName}}
{{if .Meta}}<br><span style="font-size:12px;color:#6b7280">{{.Meta}}</span>{{end}}
</a>`))

var paragraphTmpl = template.Must(template.New("p").Parse(`<p>{{.}}</p>`))

var linkTmpl = template.Must(template.New("link").Parse(`<p><a href="{{.Link}}" style="color:#ED1C24;text-decoration:none;font-weight:500">{{.Text}}</a></p>`))

type linkData struct {
	Link string
	Text string
}

func NewTemplates(hubURL, logoURL string) *Templates {
	return &Templates{
		hubURL:  strings.TrimRight(hubURL, "/"),
		logoURL: logoURL,
		wrapper: wrapperTmpl,
	}
}

func (t *Templates) wrap(body string) string {
	var b strings.Builder
	t.wrapper.Execute(&b, wrapperData{Body: template.HTML(body), LogoURL: t.logoURL})
	return b.String()
}

func (t *Templates) paragraph(text string) string {
	var b strings.Builder
	paragraphTmpl.Execute(&b, text)
	return b.String()
}

func (t *Templates) box(color, title, subtitle string) string {
	var b strings.Builder
	boxTmpl.Execute(&b, boxData{Color: template.CSS(color), Title: title, Subtitle: subtitle})
	return b.String()
}

// jobCards renders candidate jobs as clickable cards, newest first, capped.
func (t *Templates) jobCards(jobs []brain.PossibleJob) string {
	if len(jobs) > maxJobCards {
		jobs = jobs[:maxJobCards]
	}
	var b strings.Builder
	for _, job := range jobs {
		link := fmt.Sprintf("%s/?job=%s&action=edit", t.hubURL, strings.ReplaceAll(job.JobNumber, " ", ""))
		meta := strings.TrimSpace(strings.Trim(job.Stage+" / "+job.Status, " /"))
		cardTmpl.Execute(&b, cardData{
			JobNumber: job.JobNumber,
			JobName:   job.JobName,
			Meta:      meta,
			Link:      link,
		})
	}
	return b.String()
}

// Clarify asks the sender which job they meant.
func (t *Templates) Clarify(firstName, message string, jobs []brain.PossibleJob) string {
	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph(message) +
		t.jobCards(jobs)
	return t.wrap(body)
}

// Confirm asks the sender to confirm a single suggested job.
func (t *Templates) Confirm(firstName, message, suggestedJob string) string {
	if message == "" {
		message = "Just checking, is this the one you mean? Reply YES and I'll crack on."
	}
	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph(message) +
		t.jobCards([]brain.PossibleJob{{JobNumber: suggestedJob}})
	return t.wrap(body)
}

// NoIdea is sent when nothing could be made of the message.
func (t *Templates) NoIdea(firstName string) string {
	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph("I couldn't quite work out what you were after there. Could you try again with a job number, or a bit more detail?")
	return t.wrap(body)
}

// JobNotFound is sent when a mentioned job number has no record.
func (t *Templates) JobNotFound(firstName, jobNumber string) string {
	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph("I went looking for "+jobNumber+" but couldn't find it anywhere. Double-check the number?")
	return t.wrap(body)
}

// Confirmation reports a successful dispatch.
func (t *Templates) Confirmation(firstName string, route Route, jobNumber string) string {
	title := route.Friendly
	if title == "" {
		title = "Done"
	}
	subtitle := route.Subtitle
	if jobNumber != "" {
		subtitle = strings.TrimSpace(jobNumber + ". " + subtitle)
	}
	body := t.paragraph("Hey "+firstName+",") +
		t.box("#22c55e", title, subtitle)
	return t.wrap(body)
}

// Failure reports a failed dispatch. The error text is flattened to one
// line and truncated so internals don't spill into the email.
func (t *Templates) Failure(firstName, routeName, errText string) string {
	body := t.paragraph("Hey "+firstName+",") +
		t.box("#ef4444", "That didn't work", "I tried to send this down the "+routeName+" route and hit a snag.") +
		t.paragraph("The robots said: "+SanitizeError(errText)) +
		t.paragraph("A human will take a look. No need to resend.")
	return t.wrap(body)
}

// NotBuilt tells the sender the route exists but isn't live yet.
func (t *Templates) NotBuilt(firstName string, route Route) string {
	name := route.Friendly
	if name == "" {
		name = route.Name
	}
	body := t.paragraph("Hey "+firstName+",") +
		t.box("#22c55e", "Got it", "I know what you're after, but that part of me isn't wired up yet.") +
		t.paragraph("I've noted it as: "+name+". A human will pick it up in the meantime.")
	return t.wrap(body)
}

// Redirect points the sender at the WIP or Tracker view instead of a worker.
func (t *Templates) Redirect(firstName, message, redirectTo, clientCode, clientName string) string {
	view := strings.ToLower(strings.TrimSpace(redirectTo))
	if view != "tracker" {
		view = "wip"
	}

	link := t.hubURL + "/?view=" + view
	if clientCode != "" {
		link = t.hubURL + "/?client=" + clientCode + "&view=" + view
	}

	display := clientName
	if display == "" {
		display = clientCode
	}
	var linkText string
	if view == "tracker" {
		if message == "" {
			message = "Gosh, that's getting into more detail than I'm good at. You should find everything you need in the Tracker."
		}
		linkText = "Open Tracker"
		if display != "" {
			linkText = "Open Tracker for " + display
		}
	} else {
		if message == "" {
			message = "That's getting into the detail more than I'm good at. You should find everything you need in the WIP."
		}
		linkText = "Open WIP"
		if display != "" {
			linkText = "Open " + display + " WIP"
		}
	}

	var linkHTML strings.Builder
	linkTmpl.Execute(&linkHTML, linkData{Link: link, Text: linkText})

	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph(message) +
		linkHTML.String()
	return t.wrap(body)
}

// Answer carries a direct reply from the engine.
func (t *Templates) Answer(firstName, message, nextPrompt string) string {
	body := t.paragraph("Hey "+firstName+",") +
		t.paragraph(message)
	if nextPrompt != "" {
		body += t.paragraph(nextPrompt)
	}
	return t.wrap(body)
}

// ConfirmationSubject threads the reply onto the original mail.
func ConfirmationSubject(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		return "Re: your message"
	}
	if strings.HasPrefix(strings.ToLower(original), "re:") {
		return original
	}
	return "Re: " + original
}

// FailureSubject marks a failed run.
func FailureSubject(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		original = "your message"
	}
	return "Did not compute: " + original
}

// SanitizeError flattens an error message to a single truncated line.
func SanitizeError(errText string) string {
	errText = strings.Join(strings.Fields(errText), " ")
	if len(errText) > 200 {
		errText = errText[:200] + "..."
	}
	if errText == "" {
		errText = "no detail available"
	}
	return errText
}
