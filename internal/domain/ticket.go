package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// IsValid reports whether the status is known.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether the ticket no longer accrues SLA time.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// IsValid reports whether the priority is known.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketChannel records where a ticket originated.
type TicketChannel string

const (
	ChannelEmail TicketChannel = "EMAIL"
	ChannelPhone TicketChannel = "PHONE"
	ChannelWeb   TicketChannel = "WEB"
	ChannelChat  TicketChannel = "CHAT"
	ChannelAPI   TicketChannel = "API"
)

// IsValid reports whether the channel is known.
func (c TicketChannel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPhone, ChannelWeb, ChannelChat, ChannelAPI:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	TenantID         string
	Number           string
	Subject          string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	Channel          TicketChannel
	ContactID        *string
	TeamID           *string
	AssigneeID       *string
	Tags             []string
	FirstRespondedAt *time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	SLA              TicketSLA
	Audit
	SoftDelete
}

// TicketSLA is the SLA bookkeeping stored on a ticket.
type TicketSLA struct {
	RuleID              *string
	FirstResponseDueAt  *time.Time
	ResolutionDueAt     *time.Time
	StartedAt           *time.Time
	BusinessHoursOnly   bool
	WarnedAt            *time.Time
	BreachedAt          *time.Time
	FirstResponseBreach bool
}

// HasTag reports whether the ticket carries tag.
func (t Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:    {TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed},
	TicketStatusClosed:     {TicketStatusOpen},
}

// CanTransitionTo reports whether a ticket in status s may move to next.
// A closed ticket can only be reopened.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsReopen reports whether moving from s to next reopens a finished ticket.
func (s TicketStatus) IsReopen(next TicketStatus) bool {
	return s.IsTerminal() && !next.IsTerminal()
}
