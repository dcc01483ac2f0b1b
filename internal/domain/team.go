package domain

import "time"

// AssignmentStrategy determines how new tickets routed to a team get an assignee.
type AssignmentStrategy string

const (
	AssignmentManual     AssignmentStrategy = "manual"
	AssignmentRoundRobin AssignmentStrategy = "round_robin"
)

// IsValid reports whether the strategy is supported.
func (s AssignmentStrategy) IsValid() bool {
	return s == AssignmentManual || s == AssignmentRoundRobin
}

// Team is a group of users that share a ticket queue.
type Team struct {
	ID                 string
	TenantID           string
	Name               string
	Description        string
	AssignmentStrategy AssignmentStrategy
	IsActive           bool
	Audit
	SoftDelete
}

// TeamMembership links a user to a team and tracks round-robin rotation.
type TeamMembership struct {
	TeamID         string
	UserID         string
	UserName       string
	UserActive     bool
	IsAssignable   bool
	IsActive       bool
	LastAssignedAt *time.Time
	JoinedAt       time.Time
}

// Eligible reports whether the member can receive automatic assignments.
func (m TeamMembership) Eligible() bool {
	return m.IsAssignable && m.IsActive && m.UserActive
}

// NextRoundRobin picks the eligible member assigned least recently. A member
// never assigned sorts first; ties keep the order of members, which callers
// supply in join order.
func NextRoundRobin(members []TeamMembership) (TeamMembership, bool) {
	best := -1
	for i, m := range members {
		if !m.Eligible() {
			continue
		}
		if best < 0 || assignedBefore(m.LastAssignedAt, members[best].LastAssignedAt) {
			best = i
		}
	}
	if best < 0 {
		return TeamMembership{}, false
	}
	return members[best], true
}

func assignedBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	}
	return a.Before(*b)
}
