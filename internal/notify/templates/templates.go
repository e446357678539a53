// Package templates renders notification copy per event kind and channel.
// Rendering is pure: the same inputs always yield the same content.
package templates

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	apperrors "coaching-notifier/internal/common/errors"
	"coaching-notifier/internal/eventbus"
	"coaching-notifier/internal/models"
	"coaching-notifier/internal/schedule"

	"golang.org/x/text/message"
)

// DateLayout is how session dates appear in copy.
const DateLayout = "Monday, January 2 at 3:04 PM MST"

// Data is everything a template may reference.
type Data struct {
	RecipientName string
	CoachName     string
	SessionDate   time.Time
	Timezone      string
	ResourceTitle string
	ResourceURL   string
	AppURL        string
}

// Content is rendered copy. Fields a channel does not use are left empty:
// email fills Subject, Body and HTML; in-app and SMS fill Title and Body.
type Content struct {
	Title   string
	Subject string
	Body    string
	HTML    string
}

// printer is set once the English catalog is registered.
var printer *message.Printer

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
<p>{{.Greeting}}</p>
<p>{{.Body}}</p>
{{- if .LinkURL}}
<p><a href="{{.LinkURL}}">{{.LinkText}}</a></p>
{{- end}}
<p style="color: #777; font-size: 12px;">{{.Footer}}</p>
</body>
</html>
`))

type emailView struct {
	Greeting string
	Body     string
	LinkURL  string
	LinkText string
	Footer   string
}

// Render returns the content for kind on channel.
func Render(kind eventbus.Kind, channel models.Channel, d Data) (Content, error) {
	var (
		title, subject, body string
		linkURL, linkText    string
	)

	coach := d.CoachName
	switch kind {
	case eventbus.KindSessionReminder:
		when := FormatSessionDate(d.SessionDate, d.Timezone)
		title = printer.Sprintf("session_reminder.title", coach)
		subject = printer.Sprintf("session_reminder.subject", coach)
		body = printer.Sprintf("session_reminder.body", coach, when)
		linkURL, linkText = d.AppURL, printer.Sprintf("cta.open_app")
	case eventbus.KindSessionSummaryPosted:
		title = printer.Sprintf("session_summary_posted.title")
		subject = printer.Sprintf("session_summary_posted.subject", coach)
		if d.SessionDate.IsZero() {
			body = printer.Sprintf("session_summary_posted.body.undated", coach)
		} else {
			body = printer.Sprintf("session_summary_posted.body", coach, FormatSessionDate(d.SessionDate, d.Timezone))
		}
		linkURL, linkText = d.AppURL, printer.Sprintf("cta.open_app")
	case eventbus.KindResourceShared:
		title = printer.Sprintf("resource_shared.title", d.ResourceTitle)
		subject = printer.Sprintf("resource_shared.subject", coach)
		body = printer.Sprintf("resource_shared.body", coach, d.ResourceTitle)
		linkURL, linkText = d.ResourceURL, d.ResourceTitle
		if linkURL == "" {
			linkURL, linkText = d.AppURL, printer.Sprintf("cta.open_app")
		}
	default:
		return Content{}, apperrors.NewTemplateNotFoundError(string(kind))
	}

	switch channel {
	case models.ChannelEmail:
		html, err := renderHTML(emailView{
			Greeting: greeting(d.RecipientName),
			Body:     body,
			LinkURL:  linkURL,
			LinkText: linkText,
			Footer:   printer.Sprintf("footer"),
		})
		if err != nil {
			return Content{}, err
		}
		return Content{Subject: subject, Body: textEmail(d.RecipientName, body, linkURL), HTML: html}, nil
	case models.ChannelInApp:
		return Content{Title: title, Body: body}, nil
	case models.ChannelSMS:
		return Content{Title: title, Body: title + ": " + body}, nil
	}
	return Content{}, apperrors.NewTemplateNotFoundError(string(kind) + "/" + string(channel))
}

// FormatSessionDate renders t in the named zone. An unusable zone falls back
// to UTC.
func FormatSessionDate(t time.Time, timezone string) string {
	loc, err := schedule.LoadZone(timezone)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return printer.Sprintf("greeting.anonymous")
	}
	return printer.Sprintf("greeting", name)
}

func textEmail(name, body, link string) string {
	var b strings.Builder
	b.WriteString(greeting(name))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	if link != "" {
		b.WriteString("\n")
		b.WriteString(link)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(printer.Sprintf("footer"))
	b.WriteString("\n")
	return b.String()
}

func renderHTML(v emailView) (string, error) {
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
