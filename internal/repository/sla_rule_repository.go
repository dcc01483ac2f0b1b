package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// SLARuleRepository persists SLA rules.
type SLARuleRepository interface {
	Create(ctx context.Context, rule *domain.SLARule) error
	Update(ctx context.Context, rule *domain.SLARule) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SLARule, error)
	List(ctx context.Context, tenantID string) ([]domain.SLARule, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.SLARule, error)
	SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error
}

type slaRuleRepository struct {
	pool *pgxpool.Pool
}

// NewSLARuleRepository builds the repository.
func NewSLARuleRepository(pool *pgxpool.Pool) SLARuleRepository {
	return &slaRuleRepository{pool: pool}
}

const slaRuleColumns = `id, tenant_id, name, description, sort_order, is_active, conditions,
        first_response_minutes, resolution_minutes, business_hours_only,
        created_at, created_by, updated_at, updated_by, deleted_at, deleted_by`

func (r *slaRuleRepository) Create(ctx context.Context, rule *domain.SLARule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO sla_rules (tenant_id, name, description, sort_order, is_active, conditions,
            first_response_minutes, resolution_minutes, business_hours_only, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.TenantID,
		rule.Name,
		rule.Description,
		rule.SortOrder,
		rule.IsActive,
		conditions,
		rule.FirstResponseMinutes,
		rule.ResolutionMinutes,
		rule.BusinessHoursOnly,
		rule.CreatedBy,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *slaRuleRepository) Update(ctx context.Context, rule *domain.SLARule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return err
	}
	const query = `
        UPDATE sla_rules SET name=$1, description=$2, sort_order=$3, is_active=$4, conditions=$5,
            first_response_minutes=$6, resolution_minutes=$7, business_hours_only=$8, updated_by=$9, updated_at=NOW()
        WHERE tenant_id=$10 AND id=$11 AND deleted_at IS NULL
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		rule.SortOrder,
		rule.IsActive,
		conditions,
		rule.FirstResponseMinutes,
		rule.ResolutionMinutes,
		rule.BusinessHoursOnly,
		rule.UpdatedBy,
		rule.TenantID,
		rule.ID,
	).Scan(&rule.UpdatedAt)
}

func (r *slaRuleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SLARule, error) {
	query := `SELECT ` + slaRuleColumns + ` FROM sla_rules WHERE tenant_id=$1 AND id=$2 AND deleted_at IS NULL`
	return scanSLARule(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *slaRuleRepository) List(ctx context.Context, tenantID string) ([]domain.SLARule, error) {
	return r.query(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules
        WHERE tenant_id=$1 AND deleted_at IS NULL ORDER BY sort_order ASC, created_at ASC`, tenantID)
}

func (r *slaRuleRepository) ListActive(ctx context.Context, tenantID string) ([]domain.SLARule, error) {
	return r.query(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules
        WHERE tenant_id=$1 AND deleted_at IS NULL AND is_active=TRUE ORDER BY sort_order ASC, created_at ASC`, tenantID)
}

func (r *slaRuleRepository) SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE sla_rules SET deleted_at=NOW(), deleted_by=$1, is_active=FALSE
        WHERE tenant_id=$2 AND id=$3 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, actorID, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRuleRepository) query(ctx context.Context, query string, args ...any) ([]domain.SLARule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARule
	for rows.Next() {
		rule, err := scanSLARule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func scanSLARule(row pgx.Row) (*domain.SLARule, error) {
	var (
		rule       domain.SLARule
		conditions []byte
	)
	if err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Name,
		&rule.Description,
		&rule.SortOrder,
		&rule.IsActive,
		&conditions,
		&rule.FirstResponseMinutes,
		&rule.ResolutionMinutes,
		&rule.BusinessHoursOnly,
		&rule.CreatedAt,
		&rule.CreatedBy,
		&rule.UpdatedAt,
		&rule.UpdatedBy,
		&rule.DeletedAt,
		&rule.DeletedBy,
	); err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, err
		}
	}
	return &rule, nil
}
