package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeCreated   TicketChangeType = "CREATED"
	ChangeTypeStatus    TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee  TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority  TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeTeam      TicketChangeType = "TEAM_CHANGE"
	ChangeTypeDetails   TicketChangeType = "DETAILS_CHANGE"
	ChangeTypeSLA       TicketChangeType = "SLA_CHANGE"
	ChangeTypeResponded TicketChangeType = "FIRST_RESPONSE"
	ChangeTypeDeleted   TicketChangeType = "DELETED"
)

// IsValid reports whether the change type is known.
func (c TicketChangeType) IsValid() bool {
	switch c {
	case ChangeTypeCreated, ChangeTypeStatus, ChangeTypeAssignee, ChangeTypePriority, ChangeTypeTeam,
		ChangeTypeDetails, ChangeTypeSLA, ChangeTypeResponded, ChangeTypeDeleted:
		return true
	}
	return false
}

// ActorType indicates who performed a change.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeAPIKey ActorType = "API_KEY"
	ActorTypeSystem ActorType = "SYSTEM"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TenantID      string
	TicketID      string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
