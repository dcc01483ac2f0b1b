package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateExportRequest payload.
type CreateExportRequest struct {
	EntityType domain.EntityType `json:"entity_type" validate:"required,oneof=tickets contacts users"`
	Format     domain.FileFormat `json:"format" validate:"omitempty,oneof=csv xlsx"`
	Filters    map[string]string `json:"filters"`
}

// ImportForm is the non-file part of an import upload.
type ImportForm struct {
	EntityType domain.EntityType `form:"entity_type" validate:"required,oneof=tickets contacts"`
}

// ExportJobResponse representation.
type ExportJobResponse struct {
	ID            string            `json:"id"`
	EntityType    domain.EntityType `json:"entity_type"`
	Format        domain.FileFormat `json:"format"`
	Filters       map[string]string `json:"filters,omitempty"`
	Status        domain.JobStatus  `json:"status"`
	TotalRows     int               `json:"total_rows"`
	ProcessedRows int               `json:"processed_rows"`
	Error         *string           `json:"error"`
	RequestedBy   string            `json:"requested_by"`
	StartedAt     *time.Time        `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at"`
	ExpiresAt     *time.Time        `json:"expires_at"`
	DownloadURL   string            `json:"download_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ImportJobResponse representation.
type ImportJobResponse struct {
	ID            string            `json:"id"`
	EntityType    domain.EntityType `json:"entity_type"`
	Format        domain.FileFormat `json:"format"`
	FileName      string            `json:"file_name"`
	Status        domain.JobStatus  `json:"status"`
	TotalRows     int               `json:"total_rows"`
	ProcessedRows int               `json:"processed_rows"`
	SucceededRows int               `json:"succeeded_rows"`
	FailedRows    int               `json:"failed_rows"`
	Errors        []domain.RowError `json:"errors"`
	Error         *string           `json:"error"`
	RequestedBy   string            `json:"requested_by"`
	StartedAt     *time.Time        `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at"`
	CreatedAt     time.Time         `json:"created_at"`
}
