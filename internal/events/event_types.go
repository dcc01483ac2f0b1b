package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketTeamChanged     EventType = "ticket_team_changed"
	EventSLAWarning            EventType = "sla_warning"
	EventSLABreached           EventType = "sla_breached"
	EventAppointmentBooked     EventType = "appointment_booked"
	EventAppointmentCancelled  EventType = "appointment_cancelled"
	EventExportReady           EventType = "export_ready"
	EventImportFinished        EventType = "import_finished"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TenantID  string       `json:"tenant_id"`
	SubjectID string       `json:"subject_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   any          `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number   string                `json:"number"`
	Subject  string                `json:"subject"`
	TeamID   *string               `json:"team_id,omitempty"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID   *string `json:"assignee_id,omitempty"`
	TeamID       *string `json:"team_id,omitempty"`
	AutoAssigned bool    `json:"auto_assigned"`
}

// TicketTeamChangedPayload payload.
type TicketTeamChangedPayload struct {
	OldTeamID *string `json:"old_team_id,omitempty"`
	NewTeamID *string `json:"new_team_id,omitempty"`
}

// SLAPayload describes an SLA warning or breach.
type SLAPayload struct {
	RuleID string    `json:"rule_id"`
	Target string    `json:"target"`
	DueAt  time.Time `json:"due_at"`
}

// AppointmentPayload describes a booked or cancelled appointment.
type AppointmentPayload struct {
	StaffUserID string    `json:"staff_user_id"`
	ContactID   string    `json:"contact_id"`
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// JobFinishedPayload describes a finished import or export.
type JobFinishedPayload struct {
	RequestedBy string            `json:"requested_by"`
	EntityType  domain.EntityType `json:"entity_type"`
	Status      domain.JobStatus  `json:"status"`
}
