package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SLARuleRequest payload for create and update. Conditions is a document of
// the form {"match":"all","conditions":[{"field","operator","value"}]}.
type SLARuleRequest struct {
	Name                 string          `json:"name" validate:"required,max=200"`
	Description          string          `json:"description" validate:"max=1000"`
	SortOrder            int             `json:"sort_order" validate:"gte=0"`
	IsActive             *bool           `json:"is_active"`
	Conditions           json.RawMessage `json:"conditions"`
	FirstResponseMinutes int             `json:"first_response_minutes" validate:"gte=0"`
	ResolutionMinutes    int             `json:"resolution_minutes" validate:"gte=0"`
	BusinessHoursOnly    bool            `json:"business_hours_only"`
}

// SLARuleResponse representation.
type SLARuleResponse struct {
	ID                   string              `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	SortOrder            int                 `json:"sort_order"`
	IsActive             bool                `json:"is_active"`
	Conditions           domain.ConditionSet `json:"conditions"`
	FirstResponseMinutes int                 `json:"first_response_minutes"`
	ResolutionMinutes    int                 `json:"resolution_minutes"`
	BusinessHoursOnly    bool                `json:"business_hours_only"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}
