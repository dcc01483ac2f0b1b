package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTeamRequest payload.
type CreateTeamRequest struct {
	Name               string                    `json:"name" validate:"required,max=200"`
	Description        string                    `json:"description" validate:"max=1000"`
	AssignmentStrategy domain.AssignmentStrategy `json:"assignment_strategy" validate:"omitempty,oneof=manual round_robin"`
	IsActive           *bool                     `json:"is_active"`
}

// UpdateTeamRequest payload.
type UpdateTeamRequest struct {
	Name               *string                    `json:"name" validate:"omitempty,min=1,max=200"`
	Description        *string                    `json:"description" validate:"omitempty,max=1000"`
	AssignmentStrategy *domain.AssignmentStrategy `json:"assignment_strategy" validate:"omitempty,oneof=manual round_robin"`
	IsActive           *bool                      `json:"is_active"`
}

// TeamResponse representation.
type TeamResponse struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Description        string                    `json:"description"`
	AssignmentStrategy domain.AssignmentStrategy `json:"assignment_strategy"`
	IsActive           bool                      `json:"is_active"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// AddMemberRequest payload.
type AddMemberRequest struct {
	UserID       string `json:"user_id" validate:"required,uuid"`
	IsAssignable *bool  `json:"is_assignable"`
	IsActive     *bool  `json:"is_active"`
}

// UpdateMemberRequest payload.
type UpdateMemberRequest struct {
	IsAssignable *bool `json:"is_assignable"`
	IsActive     *bool `json:"is_active"`
}

// TeamMemberResponse representation.
type TeamMemberResponse struct {
	UserID         string     `json:"user_id"`
	UserName       string     `json:"user_name"`
	UserActive     bool       `json:"user_active"`
	IsAssignable   bool       `json:"is_assignable"`
	IsActive       bool       `json:"is_active"`
	LastAssignedAt *time.Time `json:"last_assigned_at"`
	JoinedAt       time.Time  `json:"joined_at"`
}
