package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationResponse representation.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Link      string                  `json:"link,omitempty"`
	ReadAt    *time.Time              `json:"read_at"`
	CreatedAt time.Time               `json:"created_at"`
}

// EmailTemplateRequest overrides a built-in template.
type EmailTemplateRequest struct {
	Subject string `json:"subject" validate:"required,max=500"`
	Body    string `json:"body" validate:"required,max=20000"`
}

// EmailTemplatePreviewRequest renders a draft; empty fields use the effective template.
type EmailTemplatePreviewRequest struct {
	Subject string `json:"subject" validate:"max=500"`
	Body    string `json:"body" validate:"max=20000"`
}

// EmailTemplateResponse representation.
type EmailTemplateResponse struct {
	Key        string     `json:"key"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Overridden bool       `json:"overridden"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// EmailPreviewResponse is a rendered message.
type EmailPreviewResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}
