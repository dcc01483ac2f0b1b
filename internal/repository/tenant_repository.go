package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TenantRepository manages tenants and their business hours.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	Update(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]domain.Tenant, error)
	GetBusinessHours(ctx context.Context, tenantID string) (*domain.BusinessHours, error)
	SaveBusinessHours(ctx context.Context, hours *domain.BusinessHours) error
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository builds the repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

const tenantColumns = `id, name, slug, time_zone, is_active, created_at, created_by, updated_at, updated_by`

func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        INSERT INTO tenants (name, slug, time_zone, is_active, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		tenant.Name,
		tenant.Slug,
		tenant.TimeZone,
		tenant.IsActive,
		tenant.CreatedBy,
	).Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
}

func (r *tenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        UPDATE tenants SET name=$1, time_zone=$2, is_active=$3, updated_by=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		tenant.Name,
		tenant.TimeZone,
		tenant.IsActive,
		tenant.UpdatedBy,
		tenant.ID,
	).Scan(&tenant.UpdatedAt)
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.fetchSingle(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id=$1`, id)
}

func (r *tenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.fetchSingle(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug=LOWER($1)`, slug)
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE is_active=TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tenant)
	}
	return result, rows.Err()
}

func (r *tenantRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, query, arg))
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&t.TimeZone,
		&t.IsActive,
		&t.CreatedAt,
		&t.CreatedBy,
		&t.UpdatedAt,
		&t.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetBusinessHours returns the stored schedule, or the default schedule when none was saved.
func (r *tenantRepository) GetBusinessHours(ctx context.Context, tenantID string) (*domain.BusinessHours, error) {
	const query = `SELECT time_zone, days, holidays FROM business_hours WHERE tenant_id=$1`
	var (
		tz       string
		days     []byte
		holidays []byte
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&tz, &days, &holidays)
	if errors.Is(err, pgx.ErrNoRows) {
		bh := domain.DefaultBusinessHours(tenantID)
		return &bh, nil
	}
	if err != nil {
		return nil, err
	}
	bh := domain.BusinessHours{TenantID: tenantID, TimeZone: tz}
	if err := json.Unmarshal(days, &bh.Days); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(holidays, &bh.Holidays); err != nil {
		return nil, err
	}
	return &bh, nil
}

func (r *tenantRepository) SaveBusinessHours(ctx context.Context, hours *domain.BusinessHours) error {
	days, err := json.Marshal(hours.Days)
	if err != nil {
		return err
	}
	holidays := hours.Holidays
	if holidays == nil {
		holidays = []domain.Holiday{}
	}
	holidayJSON, err := json.Marshal(holidays)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO business_hours (tenant_id, time_zone, days, holidays)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tenant_id) DO UPDATE
        SET time_zone=EXCLUDED.time_zone, days=EXCLUDED.days, holidays=EXCLUDED.holidays, updated_at=NOW()`
	_, err = r.pool.Exec(ctx, query, hours.TenantID, hours.TimeZone, days, holidayJSON)
	return err
}
