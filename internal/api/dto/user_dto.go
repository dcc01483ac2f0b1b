package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateUserRequest payload.
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	TimeZone string   `json:"time_zone" validate:"omitempty,timezone"`
	RoleIDs  []string `json:"role_ids" validate:"omitempty,dive,uuid"`
	IsActive *bool    `json:"is_active"`
}

// UpdateUserRequest payload; omitted fields are left unchanged.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	TimeZone *string `json:"time_zone" validate:"omitempty,timezone"`
	IsActive *bool   `json:"is_active"`
}

// SetRolesRequest replaces a user's roles.
type SetRolesRequest struct {
	RoleIDs []string `json:"role_ids" validate:"dive,uuid"`
}

// UserResponse representation.
type UserResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	TimeZone    string     `json:"time_zone"`
	RoleIDs     []string   `json:"role_ids"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RoleRequest payload for creating roles.
type RoleRequest struct {
	Name        string              `json:"name" validate:"required,max=100"`
	Description string              `json:"description" validate:"max=500"`
	Permissions []domain.Permission `json:"permissions" validate:"required"`
}

// UpdateRoleRequest payload; a missing permissions list leaves them unchanged.
type UpdateRoleRequest struct {
	Name        *string             `json:"name" validate:"omitempty,max=100"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	Permissions []domain.Permission `json:"permissions"`
}

// RoleResponse representation.
type RoleResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Permissions []domain.Permission `json:"permissions"`
	IsBuiltIn   bool                `json:"is_built_in"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CreateAPIKeyRequest payload. UserID defaults to the caller.
type CreateAPIKeyRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	UserID    *string    `json:"user_id" validate:"omitempty,uuid"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// APIKeyResponse never includes the secret.
type APIKeyResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreatedAPIKeyResponse carries the raw key once.
type CreatedAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}
