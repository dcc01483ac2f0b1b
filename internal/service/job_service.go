package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	"github.com/spec-kit/helpdesk-service/internal/tabular"
	"github.com/spec-kit/helpdesk-service/internal/worker"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	exportPageSize     = domain.MaxPageSize
	cleanupBatchSize   = 100
	tagSeparators      = ",;"
	exportTimeLayout   = time.RFC3339
	defaultProgressRow = 100
	defaultStaleAfter  = 10 * time.Minute
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// JobService runs import and export jobs on the worker pool.
type JobService struct {
	exports     repository.ExportJobRepository
	imports     repository.ImportJobRepository
	contactRepo repository.ContactRepository
	contacts    *ContactService
	tickets     *TicketService
	users       *UserService
	storage     storage.Storage
	queue       TaskQueue
	dispatcher  events.Dispatcher
	cfg         config.JobsConfig
	logger      *zap.Logger
	now         func() time.Time
}

// JobDependencies bundles collaborators.
type JobDependencies struct {
	ExportRepo     repository.ExportJobRepository
	ImportRepo     repository.ImportJobRepository
	ContactRepo    repository.ContactRepository
	ContactService *ContactService
	TicketService  *TicketService
	UserService    *UserService
	Storage        storage.Storage
	Queue          TaskQueue
	Dispatcher     events.Dispatcher
	Config         config.JobsConfig
	Logger         *zap.Logger
}

// CreateExportInput requests an export.
type CreateExportInput struct {
	EntityType domain.EntityType
	Format     domain.FileFormat
	Filters    map[string]string
}

// CreateImportInput carries an uploaded file.
type CreateImportInput struct {
	EntityType domain.EntityType
	Format     domain.FileFormat
	FileName   string
	Content    io.Reader
}

// JobListFilter narrows job listings.
type JobListFilter struct {
	Status     *domain.JobStatus
	EntityType *domain.EntityType
	Page       domain.Page
}

// NewJobService constructs the service.
func NewJobService(deps JobDependencies) *JobService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressRow
	}
	if cfg.StaleAfterSeconds <= 0 {
		cfg.StaleAfterSeconds = int(defaultStaleAfter / time.Second)
	}
	return &JobService{
		exports:     deps.ExportRepo,
		imports:     deps.ImportRepo,
		contactRepo: deps.ContactRepo,
		contacts:    deps.ContactService,
		tickets:     deps.TicketService,
		users:       deps.UserService,
		storage:     deps.Storage,
		queue:       deps.Queue,
		dispatcher:  deps.Dispatcher,
		cfg:         cfg,
		logger:      logger.Named("jobs"),
		now:         time.Now,
	}
}

// CreateExport records a pending export and queues it.
func (s *JobService) CreateExport(ctx context.Context, actor domain.Actor, input CreateExportInput) (*domain.ExportJob, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	switch input.EntityType {
	case domain.EntityTickets, domain.EntityContacts, domain.EntityUsers:
	default:
		fields["entity_type"] = "must be tickets, contacts or users"
	}
	format := input.Format
	if format == "" {
		format = domain.FormatCSV
	}
	if !format.IsValid() {
		fields["format"] = "must be csv or xlsx"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	job := &domain.ExportJob{
		TenantID:    actor.TenantID,
		EntityType:  input.EntityType,
		Format:      format,
		Filters:     input.Filters,
		Status:      domain.JobStatusPending,
		RequestedBy: userID,
	}
	if err := s.exports.Create(ctx, job); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.enqueueExport(job); err != nil {
		s.failExport(context.WithoutCancel(ctx), job, err)
		return nil, apperrors.NewServiceUnavailable("job queue is full, retry later")
	}
	return job, nil
}

// GetExport loads one export job.
func (s *JobService) GetExport(ctx context.Context, actor domain.Actor, id string) (*domain.ExportJob, error) {
	job, err := s.exports.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "export", id)
	}
	return job, nil
}

// ListExports pages through export jobs, newest first.
func (s *JobService) ListExports(ctx context.Context, actor domain.Actor, filter JobListFilter) (domain.PagedResult[domain.ExportJob], error) {
	items, total, err := s.exports.List(ctx, actor.TenantID, repository.JobFilter(filter))
	if err != nil {
		return domain.PagedResult[domain.ExportJob]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// DownloadExport opens the file of a completed, unexpired export. The caller closes the reader.
func (s *JobService) DownloadExport(ctx context.Context, actor domain.Actor, id string) (io.ReadCloser, *domain.ExportJob, error) {
	job, err := s.GetExport(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if job.Status != domain.JobStatusCompleted || job.FileKey == nil {
		return nil, nil, apperrors.NewConflict("export is not ready", map[string]any{"status": job.Status})
	}
	if job.ExpiresAt != nil && !s.now().Before(*job.ExpiresAt) {
		return nil, nil, apperrors.NewConflict("export has expired", map[string]any{"expires_at": *job.ExpiresAt})
	}
	rc, err := s.storage.Get(ctx, *job.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("export file", map[string]any{"id": id})
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	return rc, job, nil
}

// ExportFileName is the download name of an export.
func ExportFileName(job *domain.ExportJob) string {
	return fmt.Sprintf("%s-%s.%s", job.EntityType, job.CreatedAt.UTC().Format("20060102-150405"), job.Format)
}

// CreateImport stores the upload and queues its processing.
func (s *JobService) CreateImport(ctx context.Context, actor domain.Actor, input CreateImportInput) (*domain.ImportJob, error) {
	userID, err := requireUser(actor)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	switch input.EntityType {
	case domain.EntityContacts, domain.EntityTickets:
	default:
		fields["entity_type"] = "must be contacts or tickets"
	}
	format := input.Format
	if format == "" {
		format = domain.FileFormat(strings.TrimPrefix(strings.ToLower(path.Ext(input.FileName)), "."))
	}
	if !format.IsValid() {
		fields["file"] = "must be a .csv or .xlsx file"
	}
	if input.Content == nil {
		fields["file"] = "is required"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}

	fileName := sanitizeFileName(input.FileName, format)
	key := storage.Key("tenants", actor.TenantID, "imports", uuid.NewString(), fileName)
	if err := s.storage.Put(ctx, key, input.Content, format.ContentType()); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("store upload: %w", err))
	}

	job := &domain.ImportJob{
		TenantID:    actor.TenantID,
		EntityType:  input.EntityType,
		Format:      format,
		FileKey:     key,
		FileName:    fileName,
		Status:      domain.JobStatusPending,
		RequestedBy: userID,
	}
	if err := s.imports.Create(ctx, job); err != nil {
		_ = s.storage.Delete(context.WithoutCancel(ctx), key)
		return nil, apperrors.MapError(err)
	}
	if err := s.enqueueImport(job); err != nil {
		s.failImport(context.WithoutCancel(ctx), job, err)
		return nil, apperrors.NewServiceUnavailable("job queue is full, retry later")
	}
	return job, nil
}

// GetImport loads one import job.
func (s *JobService) GetImport(ctx context.Context, actor domain.Actor, id string) (*domain.ImportJob, error) {
	job, err := s.imports.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "import", id)
	}
	return job, nil
}

// ListImports pages through import jobs, newest first.
func (s *JobService) ListImports(ctx context.Context, actor domain.Actor, filter JobListFilter) (domain.PagedResult[domain.ImportJob], error) {
	items, total, err := s.imports.List(ctx, actor.TenantID, repository.JobFilter(filter))
	if err != nil {
		return domain.PagedResult[domain.ImportJob]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// ResumePending re-queues unfinished jobs that no worker has touched within the
// stale window. Every run claims its job first, so a job queued twice, here or
// on another instance, is processed once.
func (s *JobService) ResumePending(ctx context.Context) error {
	staleBefore := s.staleBefore()
	exports, err := s.exports.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished exports: %w", err)
	}
	resumedExports := 0
	for i := range exports {
		job := exports[i]
		if !job.UpdatedAt.Before(staleBefore) {
			continue
		}
		if err := s.enqueueExport(&job); err != nil {
			s.logger.Warn("resume export failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		resumedExports++
	}
	imports, err := s.imports.ListUnfinished(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished imports: %w", err)
	}
	resumedImports := 0
	for i := range imports {
		job := imports[i]
		if !job.UpdatedAt.Before(staleBefore) {
			continue
		}
		if err := s.enqueueImport(&job); err != nil {
			s.logger.Warn("resume import failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		resumedImports++
	}
	if resumedExports+resumedImports > 0 {
		s.logger.Info("resumed unfinished jobs", zap.Int("exports", resumedExports), zap.Int("imports", resumedImports))
	}
	return nil
}

func (s *JobService) staleBefore() time.Time {
	return s.now().UTC().Add(-s.cfg.StaleAfter())
}

// CleanupExports expires completed exports past their retention and deletes their files.
func (s *JobService) CleanupExports(ctx context.Context) (int, error) {
	expired := 0
	for {
		jobs, err := s.exports.ListExpired(ctx, s.now().UTC(), cleanupBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list expired exports: %w", err)
		}
		for i := range jobs {
			job := &jobs[i]
			if job.FileKey != nil {
				if err := s.storage.Delete(ctx, *job.FileKey); err != nil {
					return expired, fmt.Errorf("delete export file %s: %w", job.ID, err)
				}
			}
			job.Status = domain.JobStatusExpired
			job.FileKey = nil
			if err := s.exports.Save(ctx, job); err != nil {
				return expired, fmt.Errorf("expire export %s: %w", job.ID, err)
			}
			expired++
		}
		if len(jobs) < cleanupBatchSize {
			return expired, nil
		}
	}
}

func (s *JobService) enqueueExport(job *domain.ExportJob) error {
	tenantID, id := job.TenantID, job.ID
	return s.queue.Enqueue(worker.Task{
		Name: "export." + string(job.EntityType),
		Run: func(ctx context.Context) error {
			return s.runExport(ctx, tenantID, id)
		},
	})
}

func (s *JobService) enqueueImport(job *domain.ImportJob) error {
	tenantID, id := job.TenantID, job.ID
	return s.queue.Enqueue(worker.Task{
		Name: "import." + string(job.EntityType),
		Run: func(ctx context.Context) error {
			return s.runImport(ctx, tenantID, id)
		},
	})
}

func (s *JobService) runExport(ctx context.Context, tenantID, id string) error {
	claimed, err := s.exports.Claim(ctx, tenantID, id, s.now().UTC(), s.staleBefore())
	if err != nil {
		return fmt.Errorf("claim export %s: %w", id, err)
	}
	if !claimed {
		s.logger.Debug("export not claimable", zap.String("job_id", id))
		return nil
	}
	job, err := s.exports.GetByID(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("load export %s: %w", id, err)
	}
	// A file is built in one pass, so a resumed export starts over.
	job.ProcessedRows = 0
	if err := s.exports.Save(ctx, job); err != nil {
		return fmt.Errorf("start export %s: %w", id, err)
	}

	var buf bytes.Buffer
	if err := s.writeExport(ctx, job, &buf); err != nil {
		s.failExport(ctx, job, err)
		return err
	}
	key := storage.Key("tenants", job.TenantID, "exports", job.ID+"."+string(job.Format))
	if err := s.storage.Put(ctx, key, &buf, job.Format.ContentType()); err != nil {
		err = fmt.Errorf("store export: %w", err)
		s.failExport(ctx, job, err)
		return err
	}

	completed := s.now().UTC()
	expires := completed.Add(s.cfg.ExportRetention())
	job.Status = domain.JobStatusCompleted
	job.FileKey = &key
	job.CompletedAt = &completed
	job.ExpiresAt = &expires
	if err := s.exports.Save(ctx, job); err != nil {
		return fmt.Errorf("complete export %s: %w", id, err)
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventExportReady,
		TenantID:  job.TenantID,
		SubjectID: job.ID,
		Actor:     domain.SystemActor(job.TenantID),
		Payload:   events.JobFinishedPayload{RequestedBy: job.RequestedBy, EntityType: job.EntityType, Status: job.Status},
	})
	return nil
}

// writeExport pages through the entity and streams every row into out.
func (s *JobService) writeExport(ctx context.Context, job *domain.ExportJob, out io.Writer) error {
	w, err := tabular.NewWriter(job.Format, out)
	if err != nil {
		return err
	}
	source, err := s.exportSource(job)
	if err != nil {
		return err
	}
	if err := w.Write(source.header); err != nil {
		return err
	}
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, total, err := source.page(ctx, domain.Page{Number: page, Size: exportPageSize})
		if err != nil {
			return err
		}
		job.TotalRows = total
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return err
			}
			job.ProcessedRows++
			if job.ProcessedRows%s.cfg.ProgressEvery == 0 {
				if err := s.exports.Save(ctx, job); err != nil {
					return fmt.Errorf("save progress: %w", err)
				}
			}
		}
		if len(rows) < exportPageSize || job.ProcessedRows >= total {
			break
		}
	}
	return w.Close()
}

type exportSource struct {
	header []string
	page   func(ctx context.Context, page domain.Page) ([][]string, int, error)
}

func (s *JobService) exportSource(job *domain.ExportJob) (exportSource, error) {
	actor := domain.SystemActor(job.TenantID)
	f := job.Filters
	switch job.EntityType {
	case domain.EntityTickets:
		filter := TicketListFilter{
			TeamID:     optionalFilter(f, "team_id"),
			AssigneeID: optionalFilter(f, "assignee_id"),
			ContactID:  optionalFilter(f, "contact_id"),
			Tag:        f["tag"],
			Search:     f["search"],
		}
		if v := f["status"]; v != "" {
			filter.Statuses = []domain.TicketStatus{domain.TicketStatus(strings.ToUpper(v))}
		}
		if v := f["priority"]; v != "" {
			filter.Priorities = []domain.TicketPriority{domain.TicketPriority(strings.ToUpper(v))}
		}
		return exportSource{
			header: []string{"number", "subject", "status", "priority", "channel", "contact_id", "team_id",
				"assignee_id", "tags", "created_at", "first_responded_at", "resolved_at", "resolution_due_at", "sla_breached"},
			page: func(ctx context.Context, page domain.Page) ([][]string, int, error) {
				filter.Page = page
				res, err := s.tickets.ListTickets(ctx, actor, filter)
				if err != nil {
					return nil, 0, err
				}
				rows := make([][]string, 0, len(res.Items))
				for _, t := range res.Items {
					rows = append(rows, []string{
						t.Number, t.Subject, string(t.Status), string(t.Priority), string(t.Channel),
						deref(t.ContactID), deref(t.TeamID), deref(t.AssigneeID), strings.Join(t.Tags, ";"),
						formatTime(&t.CreatedAt), formatTime(t.FirstRespondedAt), formatTime(t.ResolvedAt),
						formatTime(t.SLA.ResolutionDueAt), strconv.FormatBool(t.SLA.BreachedAt != nil),
					})
				}
				return rows, res.Total, nil
			},
		}, nil
	case domain.EntityContacts:
		filter := ContactListFilter{Search: f["search"], Company: f["company"]}
		return exportSource{
			header: []string{"first_name", "last_name", "email", "phone", "company", "notes", "created_at"},
			page: func(ctx context.Context, page domain.Page) ([][]string, int, error) {
				filter.Page = page
				res, err := s.contacts.ListContacts(ctx, actor, filter)
				if err != nil {
					return nil, 0, err
				}
				rows := make([][]string, 0, len(res.Items))
				for _, c := range res.Items {
					rows = append(rows, []string{c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Notes, formatTime(&c.CreatedAt)})
				}
				return rows, res.Total, nil
			},
		}, nil
	case domain.EntityUsers:
		filter := UserListFilter{Search: f["search"]}
		if v, err := strconv.ParseBool(f["active"]); err == nil {
			filter.Active = &v
		}
		return exportSource{
			header: []string{"name", "email", "active", "time_zone", "last_login_at", "created_at"},
			page: func(ctx context.Context, page domain.Page) ([][]string, int, error) {
				filter.Page = page
				res, err := s.users.ListUsers(ctx, actor, filter)
				if err != nil {
					return nil, 0, err
				}
				rows := make([][]string, 0, len(res.Items))
				for _, u := range res.Items {
					rows = append(rows, []string{u.Name, u.Email, strconv.FormatBool(u.IsActive), u.TimeZone,
						formatTime(u.LastLoginAt), formatTime(&u.CreatedAt)})
				}
				return rows, res.Total, nil
			},
		}, nil
	}
	return exportSource{}, fmt.Errorf("unsupported export entity %q", job.EntityType)
}

func (s *JobService) runImport(ctx context.Context, tenantID, id string) error {
	claimed, err := s.imports.Claim(ctx, tenantID, id, s.now().UTC(), s.staleBefore())
	if err != nil {
		return fmt.Errorf("claim import %s: %w", id, err)
	}
	if !claimed {
		s.logger.Debug("import not claimable", zap.String("job_id", id))
		return nil
	}
	job, err := s.imports.GetByID(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("load import %s: %w", id, err)
	}
	if job.ProcessedRows > 0 {
		s.logger.Info("resuming import", zap.String("job_id", id), zap.Int("processed_rows", job.ProcessedRows))
	}

	if err := s.processImport(ctx, job); err != nil {
		s.failImport(ctx, job, err)
		return err
	}

	completed := s.now().UTC()
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &completed
	if err := s.imports.Save(ctx, job); err != nil {
		return fmt.Errorf("complete import %s: %w", id, err)
	}
	s.publishImportFinished(ctx, job)
	return nil
}

func (s *JobService) processImport(ctx context.Context, job *domain.ImportJob) error {
	rc, err := s.storage.Get(ctx, job.FileKey)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	table, err := tabular.Read(job.Format, rc)
	if err != nil {
		return fmt.Errorf("parse upload: %w", err)
	}
	importRow, err := s.rowImporter(job, table)
	if err != nil {
		return err
	}

	job.TotalRows = len(table.Rows)
	for i, row := range table.Rows {
		if i < job.ProcessedRows {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := importRow(ctx, row); err != nil {
			job.FailedRows++
			if len(job.Errors) < domain.MaxRecordedRowErrors {
				// Row 1 is the header.
				job.Errors = append(job.Errors, domain.RowError{Row: i + 2, Message: rowErrorMessage(err)})
			}
		} else {
			job.SucceededRows++
		}
		job.ProcessedRows++
		if job.ProcessedRows%s.cfg.ProgressEvery == 0 {
			if err := s.imports.Save(ctx, job); err != nil {
				return fmt.Errorf("save progress: %w", err)
			}
		}
	}
	return nil
}

type rowImporter func(ctx context.Context, row []string) error

func (s *JobService) rowImporter(job *domain.ImportJob, table tabular.Table) (rowImporter, error) {
	actor := domain.Actor{TenantID: job.TenantID, Type: domain.ActorTypeUser, ID: &job.RequestedBy}
	col := func(row []string, name string) string {
		if i := table.Column(name); i >= 0 {
			return row[i]
		}
		return ""
	}

	switch job.EntityType {
	case domain.EntityContacts:
		if table.Column("first_name") < 0 && table.Column("last_name") < 0 {
			return nil, errors.New("missing column first_name or last_name")
		}
		return func(ctx context.Context, row []string) error {
			_, err := s.contacts.CreateContact(ctx, actor, ContactInput{
				FirstName: col(row, "first_name"),
				LastName:  col(row, "last_name"),
				Email:     col(row, "email"),
				Phone:     col(row, "phone"),
				Company:   col(row, "company"),
				Notes:     col(row, "notes"),
			})
			return err
		}, nil
	case domain.EntityTickets:
		if table.Column("subject") < 0 {
			return nil, errors.New("missing column subject")
		}
		return func(ctx context.Context, row []string) error {
			input := TicketCreateInput{
				Subject:     col(row, "subject"),
				Description: col(row, "description"),
				Priority:    domain.TicketPriority(strings.ToUpper(col(row, "priority"))),
				Channel:     domain.TicketChannel(strings.ToUpper(col(row, "channel"))),
				TeamID:      optionalValue(col(row, "team_id")),
				Tags:        splitTags(col(row, "tags")),
			}
			if email := col(row, "contact_email"); email != "" {
				contact, err := s.contactRepo.GetByEmail(ctx, job.TenantID, strings.ToLower(email))
				if err != nil {
					if apperrors.IsNotFound(err) {
						return apperrors.NewFieldErrors(map[string]string{"contact_email": "unknown contact"})
					}
					return err
				}
				input.ContactID = &contact.ID
			}
			_, err := s.tickets.CreateTicket(ctx, actor, input)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unsupported import entity %q", job.EntityType)
}

func (s *JobService) failExport(ctx context.Context, job *domain.ExportJob, cause error) {
	msg := cause.Error()
	completed := s.now().UTC()
	job.Status = domain.JobStatusFailed
	job.Error = &msg
	job.CompletedAt = &completed
	if err := s.exports.Save(ctx, job); err != nil {
		s.logger.Error("mark export failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *JobService) failImport(ctx context.Context, job *domain.ImportJob, cause error) {
	msg := cause.Error()
	completed := s.now().UTC()
	job.Status = domain.JobStatusFailed
	job.Error = &msg
	job.CompletedAt = &completed
	if err := s.imports.Save(ctx, job); err != nil {
		s.logger.Error("mark import failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	s.publishImportFinished(ctx, job)
}

func (s *JobService) publishImportFinished(ctx context.Context, job *domain.ImportJob) {
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      events.EventImportFinished,
		TenantID:  job.TenantID,
		SubjectID: job.ID,
		Actor:     domain.SystemActor(job.TenantID),
		Payload:   events.JobFinishedPayload{RequestedBy: job.RequestedBy, EntityType: job.EntityType, Status: job.Status},
	})
}

// rowErrorMessage flattens field errors into "field: message" pairs.
func rowErrorMessage(err error) string {
	de := apperrors.ToDomainError(err)
	if fields, ok := de.Details["fields"].(map[string]string); ok && len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for key, msg := range fields {
			parts = append(parts, key+": "+msg)
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return de.Message
}

func sanitizeFileName(name string, format domain.FileFormat) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "upload"
	}
	return base + "." + string(format)
}

func splitTags(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool { return strings.ContainsRune(tagSeparators, r) })
}

func optionalFilter(filters map[string]string, key string) *string {
	return optionalValue(filters[key])
}

func optionalValue(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}
