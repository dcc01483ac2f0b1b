package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// APIKeyRepository persists hashed API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
	List(ctx context.Context, tenantID string, userID *string) ([]domain.APIKey, error)
	Revoke(ctx context.Context, tenantID, id string, actorID *string) error
	TouchLastUsed(ctx context.Context, id string) error
}

type apiKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository builds the repository.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepository{pool: pool}
}

const apiKeyColumns = `id, tenant_id, user_id, name, prefix, key_hash, last_used_at, expires_at, revoked_at,
        created_at, created_by, updated_at, updated_by`

func (r *apiKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	const query = `
        INSERT INTO api_keys (tenant_id, user_id, name, prefix, key_hash, expires_at, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		key.TenantID,
		key.UserID,
		key.Name,
		key.Prefix,
		key.KeyHash,
		key.ExpiresAt,
		key.CreatedBy,
	).Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)
}

// GetByPrefix looks a key up across tenants; the prefix is globally unique.
func (r *apiKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	return scanAPIKey(r.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix=$1`, prefix))
}

func (r *apiKeyRepository) List(ctx context.Context, tenantID string, userID *string) ([]domain.APIKey, error) {
	w := tenantScope("tenant_id", tenantID)
	if userID != nil {
		w.add("user_id=%s", *userID)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE `+w.where()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *key)
	}
	return result, rows.Err()
}

func (r *apiKeyRepository) Revoke(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE api_keys SET revoked_at=NOW(), updated_by=$1, updated_at=NOW()
        WHERE tenant_id=$2 AND id=$3 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, actorID, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at=NOW() WHERE id=$1`, id)
	return err
}

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var k domain.APIKey
	if err := row.Scan(
		&k.ID,
		&k.TenantID,
		&k.UserID,
		&k.Name,
		&k.Prefix,
		&k.KeyHash,
		&k.LastUsedAt,
		&k.ExpiresAt,
		&k.RevokedAt,
		&k.CreatedAt,
		&k.CreatedBy,
		&k.UpdatedAt,
		&k.UpdatedBy,
	); err != nil {
		return nil, err
	}
	return &k, nil
}
