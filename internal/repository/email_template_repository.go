package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EmailTemplateRepository stores tenant overrides of built-in email templates.
type EmailTemplateRepository interface {
	Get(ctx context.Context, tenantID, key string) (*domain.EmailTemplateOverride, error)
	List(ctx context.Context, tenantID string) ([]domain.EmailTemplateOverride, error)
	Upsert(ctx context.Context, tpl *domain.EmailTemplateOverride) error
	Delete(ctx context.Context, tenantID, key string) error
}

type emailTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewEmailTemplateRepository builds the repository.
func NewEmailTemplateRepository(pool *pgxpool.Pool) EmailTemplateRepository {
	return &emailTemplateRepository{pool: pool}
}

func (r *emailTemplateRepository) Get(ctx context.Context, tenantID, key string) (*domain.EmailTemplateOverride, error) {
	const query = `
        SELECT tenant_id, key, subject, body, updated_at, updated_by
        FROM email_templates WHERE tenant_id=$1 AND key=$2`
	var tpl domain.EmailTemplateOverride
	if err := r.pool.QueryRow(ctx, query, tenantID, key).Scan(
		&tpl.TenantID,
		&tpl.Key,
		&tpl.Subject,
		&tpl.Body,
		&tpl.UpdatedAt,
		&tpl.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *emailTemplateRepository) List(ctx context.Context, tenantID string) ([]domain.EmailTemplateOverride, error) {
	const query = `
        SELECT tenant_id, key, subject, body, updated_at, updated_by
        FROM email_templates WHERE tenant_id=$1 ORDER BY key`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EmailTemplateOverride
	for rows.Next() {
		var tpl domain.EmailTemplateOverride
		if err := rows.Scan(&tpl.TenantID, &tpl.Key, &tpl.Subject, &tpl.Body, &tpl.UpdatedAt, &tpl.UpdatedBy); err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

func (r *emailTemplateRepository) Upsert(ctx context.Context, tpl *domain.EmailTemplateOverride) error {
	const query = `
        INSERT INTO email_templates (tenant_id, key, subject, body, updated_by)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id, key) DO UPDATE
        SET subject=EXCLUDED.subject, body=EXCLUDED.body, updated_by=EXCLUDED.updated_by, updated_at=NOW()
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, tpl.TenantID, tpl.Key, tpl.Subject, tpl.Body, tpl.UpdatedBy).Scan(&tpl.UpdatedAt)
}

func (r *emailTemplateRepository) Delete(ctx context.Context, tenantID, key string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM email_templates WHERE tenant_id=$1 AND key=$2`, tenantID, key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
