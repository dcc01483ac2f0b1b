package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/api/validation"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// JobsHandler exposes import and export jobs.
type JobsHandler struct {
	service *service.JobService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(jobService *service.JobService) *JobsHandler {
	return &JobsHandler{service: jobService}
}

// CreateExport POST /exports.
func (h *JobsHandler) CreateExport(c *fiber.Ctx) error {
	var req dto.CreateExportRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	job, err := h.service.CreateExport(c.UserContext(), actor(c), service.CreateExportInput{
		EntityType: req.EntityType,
		Format:     req.Format,
		Filters:    req.Filters,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": exportResponse(job)})
}

// ListExports GET /exports.
func (h *JobsHandler) ListExports(c *fiber.Ctx) error {
	filter, err := parseJobQuery(c)
	if err != nil {
		return err
	}
	result, err := h.service.ListExports(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, exportResponse))
}

// GetExport GET /exports/:id.
func (h *JobsHandler) GetExport(c *fiber.Ctx) error {
	job, err := h.service.GetExport(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": exportResponse(job)})
}

// DownloadExport GET /exports/:id/download streams the export file.
func (h *JobsHandler) DownloadExport(c *fiber.Ctx) error {
	body, job, err := h.service.DownloadExport(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, job.Format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", service.ExportFileName(job)))
	// fasthttp closes body once the stream is written
	return c.SendStream(body)
}

// CreateImport POST /imports (multipart: entity_type, file).
func (h *JobsHandler) CreateImport(c *fiber.Ctx) error {
	var form dto.ImportForm
	if err := c.BodyParser(&form); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validation.Struct(&form); err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewFieldErrors(map[string]string{"file": "is required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable upload", nil)
	}
	defer file.Close()

	job, err := h.service.CreateImport(c.UserContext(), actor(c), service.CreateImportInput{
		EntityType: form.EntityType,
		FileName:   header.Filename,
		Content:    file,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": importResponse(job)})
}

// ListImports GET /imports.
func (h *JobsHandler) ListImports(c *fiber.Ctx) error {
	filter, err := parseJobQuery(c)
	if err != nil {
		return err
	}
	result, err := h.service.ListImports(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, importResponse))
}

// GetImport GET /imports/:id.
func (h *JobsHandler) GetImport(c *fiber.Ctx) error {
	job, err := h.service.GetImport(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": importResponse(job)})
}

func parseJobQuery(c *fiber.Ctx) (service.JobListFilter, error) {
	q := newQuery(c)
	filter := service.JobListFilter{Page: q.page()}
	if raw := q.optionalString("status"); raw != nil {
		status := domain.JobStatus(strings.ToUpper(*raw))
		switch status {
		case domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusExpired:
			filter.Status = &status
		default:
			q.fields["status"] = "must be one of PENDING RUNNING COMPLETED FAILED EXPIRED"
		}
	}
	if raw := q.optionalString("entity_type"); raw != nil {
		entity := domain.EntityType(strings.ToLower(*raw))
		switch entity {
		case domain.EntityTickets, domain.EntityContacts, domain.EntityUsers:
			filter.EntityType = &entity
		default:
			q.fields["entity_type"] = "must be one of tickets contacts users"
		}
	}
	return filter, q.err()
}

func exportResponse(job *domain.ExportJob) dto.ExportJobResponse {
	resp := dto.ExportJobResponse{
		ID:            job.ID,
		EntityType:    job.EntityType,
		Format:        job.Format,
		Filters:       job.Filters,
		Status:        job.Status,
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		Error:         job.Error,
		RequestedBy:   job.RequestedBy,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		ExpiresAt:     job.ExpiresAt,
		CreatedAt:     job.CreatedAt,
	}
	if job.Status == domain.JobStatusCompleted {
		resp.DownloadURL = "/api/v1/exports/" + job.ID + "/download"
	}
	return resp
}

func importResponse(job *domain.ImportJob) dto.ImportJobResponse {
	errs := job.Errors
	if errs == nil {
		errs = []domain.RowError{}
	}
	return dto.ImportJobResponse{
		ID:            job.ID,
		EntityType:    job.EntityType,
		Format:        job.Format,
		FileName:      job.FileName,
		Status:        job.Status,
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		SucceededRows: job.SucceededRows,
		FailedRows:    job.FailedRows,
		Errors:        errs,
		Error:         job.Error,
		RequestedBy:   job.RequestedBy,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		CreatedAt:     job.CreatedAt,
	}
}
