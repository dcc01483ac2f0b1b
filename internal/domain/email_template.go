package domain

import (
	"fmt"
	"strings"
	"time"
)

// BuiltInEmailTemplate is one of the email templates every tenant can send.
// Subject and body are pongo2 templates; the body is markdown.
type BuiltInEmailTemplate struct {
	key     string
	subject string
	body    string
}

var (
	EmailTicketAssigned = BuiltInEmailTemplate{
		key:     "ticket_assigned",
		subject: "[{{ ticket.Number }}] assigned to you",
		body:    "Hi {{ recipient.Name }},\n\nTicket **{{ ticket.Number }}** ({{ ticket.Subject }}) is now assigned to you.\n\nPriority: {{ ticket.Priority }}",
	}
	EmailSLAWarning = BuiltInEmailTemplate{
		key:     "sla_warning",
		subject: "[{{ ticket.Number }}] SLA at risk",
		body:    "Ticket **{{ ticket.Number }}** ({{ ticket.Subject }}) will breach its SLA {{ due_in }}.",
	}
	EmailSLABreached = BuiltInEmailTemplate{
		key:     "sla_breached",
		subject: "[{{ ticket.Number }}] SLA breached",
		body:    "Ticket **{{ ticket.Number }}** ({{ ticket.Subject }}) breached its SLA target of {{ due_at }}.",
	}
	EmailAppointmentBooked = BuiltInEmailTemplate{
		key:     "appointment_booked",
		subject: "New appointment: {{ appointment.Title }}",
		body:    "Hi {{ recipient.Name }},\n\n**{{ appointment.Title }}** is booked from {{ starts_at }} to {{ ends_at }}.",
	}
	EmailExportReady = BuiltInEmailTemplate{
		key:     "export_ready",
		subject: "Your {{ job.EntityType }} export is ready",
		body:    "Your export of {{ job.ProcessedRows }} {{ job.EntityType }} is ready to download until {{ expires_at }}.",
	}
	EmailImportFinished = BuiltInEmailTemplate{
		key:     "import_finished",
		subject: "Your {{ job.EntityType }} import finished",
		body:    "Import of *{{ job.FileName }}* finished: {{ job.SucceededRows }} rows imported, {{ job.FailedRows }} rejected.",
	}
	EmailPasswordReset = BuiltInEmailTemplate{
		key:     "password_reset",
		subject: "Reset your password",
		body:    "Hi {{ recipient.Name }},\n\nUse [this link]({{ reset_url }}) to reset your password. It expires at {{ expires_at }}.",
	}
	EmailUserInvited = BuiltInEmailTemplate{
		key:     "user_invited",
		subject: "You have been invited to {{ tenant.Name }}",
		body:    "Hi {{ recipient.Name }},\n\nAn account has been created for you at **{{ tenant.Name }}**. Sign in with {{ recipient.Email }}.",
	}
)

// BuiltInEmailTemplates returns every built-in template.
func BuiltInEmailTemplates() []BuiltInEmailTemplate {
	return []BuiltInEmailTemplate{
		EmailTicketAssigned, EmailSLAWarning, EmailSLABreached, EmailAppointmentBooked,
		EmailExportReady, EmailImportFinished, EmailPasswordReset, EmailUserInvited,
	}
}

// ParseBuiltInEmailTemplate resolves a template by key.
func ParseBuiltInEmailTemplate(key string) (BuiltInEmailTemplate, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, tpl := range BuiltInEmailTemplates() {
		if tpl.key == key {
			return tpl, nil
		}
	}
	return BuiltInEmailTemplate{}, fmt.Errorf("unknown email template %q", key)
}

func (t BuiltInEmailTemplate) String() string { return t.key }

// Key returns the template identifier.
func (t BuiltInEmailTemplate) Key() string { return t.key }

// DefaultSubject returns the built-in subject template.
func (t BuiltInEmailTemplate) DefaultSubject() string { return t.subject }

// DefaultBody returns the built-in markdown body template.
func (t BuiltInEmailTemplate) DefaultBody() string { return t.body }

// EmailTemplateOverride is a tenant customization of a built-in template.
type EmailTemplateOverride struct {
	TenantID  string
	Key       string
	Subject   string
	Body      string
	UpdatedAt time.Time
	UpdatedBy *string
}
