package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string                `json:"subject" validate:"required,max=300"`
	Description string                `json:"description" validate:"max=20000"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Channel     domain.TicketChannel  `json:"channel" validate:"omitempty,oneof=EMAIL PHONE WEB CHAT API"`
	ContactID   *string               `json:"contact_id" validate:"omitempty,uuid"`
	TeamID      *string               `json:"team_id" validate:"omitempty,uuid"`
	AssigneeID  *string               `json:"assignee_id" validate:"omitempty,uuid"`
	Tags        []string              `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// UpdateTicketRequest payload; omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Subject     *string               `json:"subject" validate:"omitempty,min=1,max=300"`
	Description *string               `json:"description" validate:"omitempty,max=20000"`
	Channel     *domain.TicketChannel `json:"channel" validate:"omitempty,oneof=EMAIL PHONE WEB CHAT API"`
	ContactID   *string               `json:"contact_id" validate:"omitempty,uuid"`
	Tags        []string              `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status" validate:"required,oneof=OPEN IN_PROGRESS PENDING RESOLVED CLOSED"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT"`
}

// AssignRequest sets or clears (null) the assignee.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id" validate:"omitempty,uuid"`
}

// ChangeTeamRequest sets or clears (null) the team.
type ChangeTeamRequest struct {
	TeamID *string `json:"team_id" validate:"omitempty,uuid"`
}

// TicketResponse representation.
type TicketResponse struct {
	ID               string                `json:"id"`
	Number           string                `json:"number"`
	Subject          string                `json:"subject"`
	Description      string                `json:"description"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	Channel          domain.TicketChannel  `json:"channel"`
	ContactID        *string               `json:"contact_id"`
	TeamID           *string               `json:"team_id"`
	AssigneeID       *string               `json:"assignee_id"`
	Tags             []string              `json:"tags"`
	FirstRespondedAt *time.Time            `json:"first_responded_at"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
	ClosedAt         *time.Time            `json:"closed_at"`
	SLA              TicketSLAResponse     `json:"sla"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// TicketSLAResponse is the SLA bookkeeping of a ticket.
type TicketSLAResponse struct {
	RuleID             *string    `json:"rule_id"`
	FirstResponseDueAt *time.Time `json:"first_response_due_at"`
	ResolutionDueAt    *time.Time `json:"resolution_due_at"`
	BusinessHoursOnly  bool       `json:"business_hours_only"`
	WarnedAt           *time.Time `json:"warned_at"`
	BreachedAt         *time.Time `json:"breached_at"`
}

// TicketSLAStatusResponse is the evaluated SLA of a ticket.
type TicketSLAStatusResponse struct {
	TicketID         string            `json:"ticket_id"`
	Status           domain.SLAStatus  `json:"status"`
	Target           string            `json:"target,omitempty"`
	DueAt            *time.Time        `json:"due_at"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	PercentUsed      float64           `json:"percent_used"`
	SLA              TicketSLAResponse `json:"sla"`
}

// TicketHistoryResponse representation.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.ActorType        `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}
