package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// templateData feeds the per-kind message templates.
type templateData struct {
	IssueID   string
	Title     string
	Priority  string
	Kind      string
	CreatedAt string
}

var subjects = map[domain.EscalationKind]string{
	domain.EscalationResponseWarning:   "[SLA warning] first response due soon for issue {{.IssueID}}",
	domain.EscalationResponseBreach:    "[SLA breach] response deadline missed for issue {{.IssueID}}",
	domain.EscalationResolutionWarning: "[SLA warning] resolution due soon for issue {{.IssueID}}",
	domain.EscalationResolutionBreach:  "[SLA breach] resolution deadline missed for issue {{.IssueID}}",
}

const bodyTemplate = `Issue {{.IssueID}} ({{.Priority}}) "{{.Title}}" raised {{.Kind}}.
Created at {{.CreatedAt}}. Please review the issue and take action.
`

// Render builds the notification message for a job against its issue.
func Render(job *domain.EscalationJob, issue *domain.Issue) (Message, error) {
	subjectTmpl, ok := subjects[job.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for escalation kind %q", job.Kind)
	}

	data := templateData{
		IssueID:   issue.ID,
		Title:     issue.Title,
		Priority:  string(issue.Priority),
		Kind:      string(job.Kind),
		CreatedAt: issue.CreatedAt.UTC().Format(time.RFC3339),
	}

	subject, err := render("subject", subjectTmpl, data)
	if err != nil {
		return Message{}, err
	}
	body, err := render("body", bodyTemplate, data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Kind:    job.Kind,
		IssueID: issue.ID,
		OrgID:   issue.OrgID,
		Subject: subject,
		Body:    body,
	}, nil
}

func render(name, text string, data templateData) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}
