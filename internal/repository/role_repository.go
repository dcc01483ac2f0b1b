package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RoleRepository manages tenant roles.
type RoleRepository interface {
	Create(ctx context.Context, role *domain.Role) error
	Update(ctx context.Context, role *domain.Role) error
	Delete(ctx context.Context, tenantID, id string) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Role, error)
	GetByName(ctx context.Context, tenantID, name string) (*domain.Role, error)
	List(ctx context.Context, tenantID string) ([]domain.Role, error)
	ListAll(ctx context.Context) ([]domain.Role, error)
	CountAssignments(ctx context.Context, tenantID, id string) (int, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository builds the repository.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

const roleColumns = `id, tenant_id, name, description, permissions, is_built_in, created_at, created_by, updated_at, updated_by`

func (r *roleRepository) Create(ctx context.Context, role *domain.Role) error {
	const query = `
        INSERT INTO roles (tenant_id, name, description, permissions, is_built_in, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		role.TenantID,
		role.Name,
		role.Description,
		permissionStrings(role.Permissions),
		role.IsBuiltIn,
		role.CreatedBy,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
}

func (r *roleRepository) Update(ctx context.Context, role *domain.Role) error {
	const query = `
        UPDATE roles SET name=$1, description=$2, permissions=$3, updated_by=$4, updated_at=NOW()
        WHERE tenant_id=$5 AND id=$6
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		role.Name,
		role.Description,
		permissionStrings(role.Permissions),
		role.UpdatedBy,
		role.TenantID,
		role.ID,
	).Scan(&role.UpdatedAt)
}

func (r *roleRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *roleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *roleRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id=$1 AND LOWER(name)=LOWER($2)`, tenantID, name))
}

func (r *roleRepository) List(ctx context.Context, tenantID string) ([]domain.Role, error) {
	return r.query(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id=$1 ORDER BY is_built_in DESC, name ASC`, tenantID)
}

func (r *roleRepository) ListAll(ctx context.Context) ([]domain.Role, error) {
	return r.query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY tenant_id, name`)
}

func (r *roleRepository) CountAssignments(ctx context.Context, tenantID, id string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM user_roles ur JOIN users u ON u.id=ur.user_id
        WHERE ur.tenant_id=$1 AND ur.role_id=$2 AND u.deleted_at IS NULL`
	var count int
	err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(&count)
	return count, err
}

func (r *roleRepository) query(ctx context.Context, query string, args ...any) ([]domain.Role, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *role)
	}
	return result, rows.Err()
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role  domain.Role
		perms []string
	)
	if err := row.Scan(
		&role.ID,
		&role.TenantID,
		&role.Name,
		&role.Description,
		&perms,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.CreatedBy,
		&role.UpdatedAt,
		&role.UpdatedBy,
	); err != nil {
		return nil, err
	}
	role.Permissions = make([]domain.Permission, len(perms))
	for i, p := range perms {
		role.Permissions[i] = domain.Permission(p)
	}
	return &role, nil
}

func permissionStrings(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
