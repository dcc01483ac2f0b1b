package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// JobFilter narrows import and export job listings.
type JobFilter struct {
	Status     *domain.JobStatus
	EntityType *domain.EntityType
	Page       domain.Page
}

// ExportJobRepository persists export jobs.
type ExportJobRepository interface {
	Create(ctx context.Context, job *domain.ExportJob) error
	Save(ctx context.Context, job *domain.ExportJob) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.ExportJob, error)
	List(ctx context.Context, tenantID string, filter JobFilter) ([]domain.ExportJob, int, error)
	// ListUnfinished returns PENDING and RUNNING jobs of every tenant, oldest first.
	ListUnfinished(ctx context.Context) ([]domain.ExportJob, error)
	// Claim moves a PENDING job, or a RUNNING one not updated since staleBefore,
	// to RUNNING. It reports false when another worker holds the job.
	Claim(ctx context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error)
	// ListExpired returns completed jobs whose download window closed before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.ExportJob, error)
}

// ImportJobRepository persists import jobs.
type ImportJobRepository interface {
	Create(ctx context.Context, job *domain.ImportJob) error
	Save(ctx context.Context, job *domain.ImportJob) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.ImportJob, error)
	List(ctx context.Context, tenantID string, filter JobFilter) ([]domain.ImportJob, int, error)
	ListUnfinished(ctx context.Context) ([]domain.ImportJob, error)
	Claim(ctx context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error)
}

type exportJobRepository struct {
	pool *pgxpool.Pool
}

// NewExportJobRepository builds the repository.
func NewExportJobRepository(pool *pgxpool.Pool) ExportJobRepository {
	return &exportJobRepository{pool: pool}
}

const exportJobColumns = `id, tenant_id, entity_type, format, filters, status, total_rows, processed_rows,
        file_key, error, requested_by, started_at, completed_at, expires_at, created_at, updated_at`

func (r *exportJobRepository) Create(ctx context.Context, job *domain.ExportJob) error {
	filters, err := json.Marshal(filtersOrEmpty(job.Filters))
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO export_jobs (tenant_id, entity_type, format, filters, status, requested_by)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		job.TenantID,
		job.EntityType,
		job.Format,
		filters,
		job.Status,
		job.RequestedBy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *exportJobRepository) Save(ctx context.Context, job *domain.ExportJob) error {
	const query = `
        UPDATE export_jobs SET status=$1, total_rows=$2, processed_rows=$3, file_key=$4, error=$5,
            started_at=$6, completed_at=$7, expires_at=$8, updated_at=NOW()
        WHERE tenant_id=$9 AND id=$10
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		job.Status,
		job.TotalRows,
		job.ProcessedRows,
		job.FileKey,
		job.Error,
		job.StartedAt,
		job.CompletedAt,
		job.ExpiresAt,
		job.TenantID,
		job.ID,
	).Scan(&job.UpdatedAt)
}

func (r *exportJobRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE tenant_id=$1 AND id=$2`
	var job domain.ExportJob
	if err := scanExportJob(r.pool.QueryRow(ctx, query, tenantID, id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *exportJobRepository) List(ctx context.Context, tenantID string, filter JobFilter) ([]domain.ExportJob, int, error) {
	w := jobScope(tenantID, filter)
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM export_jobs WHERE %s ORDER BY created_at DESC, id ASC %s`,
		exportJobColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.ExportJob
		total  int
	)
	for rows.Next() {
		var job domain.ExportJob
		if err := scanExportJob(rows, &job, &total); err != nil {
			return nil, 0, err
		}
		result = append(result, job)
	}
	return result, total, rows.Err()
}

func (r *exportJobRepository) ListUnfinished(ctx context.Context) ([]domain.ExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE status IN ('PENDING','RUNNING') ORDER BY created_at ASC`
	return r.query(ctx, query)
}

func (r *exportJobRepository) Claim(ctx context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error) {
	return claimJob(ctx, r.pool, "export_jobs", tenantID, id, now, staleBefore)
}

func (r *exportJobRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.ExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs
        WHERE status='COMPLETED' AND expires_at IS NOT NULL AND expires_at < $1
        ORDER BY expires_at ASC LIMIT $2`
	return r.query(ctx, query, now, limit)
}

func (r *exportJobRepository) query(ctx context.Context, query string, args ...any) ([]domain.ExportJob, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ExportJob
	for rows.Next() {
		var job domain.ExportJob
		if err := scanExportJob(rows, &job); err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func scanExportJob(row pgx.Row, job *domain.ExportJob, extra ...any) error {
	var filters []byte
	dest := []any{
		&job.ID,
		&job.TenantID,
		&job.EntityType,
		&job.Format,
		&filters,
		&job.Status,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.FileKey,
		&job.Error,
		&job.RequestedBy,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if len(filters) > 0 {
		return json.Unmarshal(filters, &job.Filters)
	}
	return nil
}

type importJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository builds the repository.
func NewImportJobRepository(pool *pgxpool.Pool) ImportJobRepository {
	return &importJobRepository{pool: pool}
}

const importJobColumns = `id, tenant_id, entity_type, format, file_key, file_name, status, total_rows, processed_rows,
        succeeded_rows, failed_rows, errors, error, requested_by, started_at, completed_at, created_at, updated_at`

func (r *importJobRepository) Create(ctx context.Context, job *domain.ImportJob) error {
	const query = `
        INSERT INTO import_jobs (tenant_id, entity_type, format, file_key, file_name, status, requested_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		job.TenantID,
		job.EntityType,
		job.Format,
		job.FileKey,
		job.FileName,
		job.Status,
		job.RequestedBy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *importJobRepository) Save(ctx context.Context, job *domain.ImportJob) error {
	rowErrors := job.Errors
	if rowErrors == nil {
		rowErrors = []domain.RowError{}
	}
	errorsJSON, err := json.Marshal(rowErrors)
	if err != nil {
		return err
	}
	const query = `
        UPDATE import_jobs SET status=$1, total_rows=$2, processed_rows=$3, succeeded_rows=$4, failed_rows=$5,
            errors=$6, error=$7, started_at=$8, completed_at=$9, updated_at=NOW()
        WHERE tenant_id=$10 AND id=$11
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		job.Status,
		job.TotalRows,
		job.ProcessedRows,
		job.SucceededRows,
		job.FailedRows,
		errorsJSON,
		job.Error,
		job.StartedAt,
		job.CompletedAt,
		job.TenantID,
		job.ID,
	).Scan(&job.UpdatedAt)
}

func (r *importJobRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE tenant_id=$1 AND id=$2`
	var job domain.ImportJob
	if err := scanImportJob(r.pool.QueryRow(ctx, query, tenantID, id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *importJobRepository) List(ctx context.Context, tenantID string, filter JobFilter) ([]domain.ImportJob, int, error) {
	w := jobScope(tenantID, filter)
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM import_jobs WHERE %s ORDER BY created_at DESC, id ASC %s`,
		importJobColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.ImportJob
		total  int
	)
	for rows.Next() {
		var job domain.ImportJob
		if err := scanImportJob(rows, &job, &total); err != nil {
			return nil, 0, err
		}
		result = append(result, job)
	}
	return result, total, rows.Err()
}

func (r *importJobRepository) ListUnfinished(ctx context.Context) ([]domain.ImportJob, error) {
	query := `SELECT ` + importJobColumns + ` FROM import_jobs WHERE status IN ('PENDING','RUNNING') ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ImportJob
	for rows.Next() {
		var job domain.ImportJob
		if err := scanImportJob(rows, &job); err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

func (r *importJobRepository) Claim(ctx context.Context, tenantID, id string, now, staleBefore time.Time) (bool, error) {
	return claimJob(ctx, r.pool, "import_jobs", tenantID, id, now, staleBefore)
}

// claimJob is a conditional update so concurrent instances cannot both start a job.
func claimJob(ctx context.Context, pool *pgxpool.Pool, table, tenantID, id string, now, staleBefore time.Time) (bool, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET status='RUNNING', started_at=COALESCE(started_at, $3), updated_at=NOW()
        WHERE tenant_id=$1 AND id=$2
          AND (status='PENDING' OR (status='RUNNING' AND updated_at < $4))`, table)
	tag, err := pool.Exec(ctx, query, tenantID, id, now, staleBefore)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanImportJob(row pgx.Row, job *domain.ImportJob, extra ...any) error {
	var rowErrors []byte
	dest := []any{
		&job.ID,
		&job.TenantID,
		&job.EntityType,
		&job.Format,
		&job.FileKey,
		&job.FileName,
		&job.Status,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SucceededRows,
		&job.FailedRows,
		&rowErrors,
		&job.Error,
		&job.RequestedBy,
		&job.StartedAt,
		&job.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if len(rowErrors) > 0 {
		return json.Unmarshal(rowErrors, &job.Errors)
	}
	return nil
}

func jobScope(tenantID string, filter JobFilter) *whereBuilder {
	w := tenantScope("tenant_id", tenantID)
	if filter.Status != nil {
		w.add("status=%s", *filter.Status)
	}
	if filter.EntityType != nil {
		w.add("entity_type=%s", *filter.EntityType)
	}
	return w
}

func filtersOrEmpty(filters map[string]string) map[string]string {
	if filters == nil {
		return map[string]string{}
	}
	return filters
}
