package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserFilter defines query params for user listing.
type UserFilter struct {
	Search string
	RoleID *string
	Active *bool
	Page   domain.Page
}

// RoleAssignment links a user to a role inside a tenant.
type RoleAssignment struct {
	TenantID string
	UserID   string
	RoleID   string
}

// UserRepository handles persistence for helpdesk users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.User, error)
	List(ctx context.Context, tenantID string, filter UserFilter) ([]domain.User, int, error)
	SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error
	SetRoles(ctx context.Context, tenantID, userID string, roleIDs []string) error
	UpdatePassword(ctx context.Context, tenantID, id, passwordHash string) error
	TouchLogin(ctx context.Context, tenantID, id string) error
	ListRoleAssignments(ctx context.Context) ([]RoleAssignment, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates the repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `u.id, u.tenant_id, u.name, u.email, u.password_hash, u.is_active, u.time_zone,
        COALESCE((SELECT array_agg(ur.role_id::text ORDER BY ur.role_id) FROM user_roles ur WHERE ur.user_id=u.id), '{}') AS role_ids,
        u.last_login_at, u.created_at, u.created_by, u.updated_at, u.updated_by, u.deleted_at, u.deleted_by`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            INSERT INTO users (tenant_id, name, email, password_hash, is_active, time_zone, created_by, updated_by)
            VALUES ($1,$2,LOWER($3),$4,$5,$6,$7,$7)
            RETURNING id, email, created_at, updated_at`
		if err := tx.QueryRow(ctx, query,
			user.TenantID,
			user.Name,
			user.Email,
			user.PasswordHash,
			user.IsActive,
			user.TimeZone,
			user.CreatedBy,
		).Scan(&user.ID, &user.Email, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}
		return replaceRoles(ctx, tx, user.TenantID, user.ID, user.RoleIDs)
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=LOWER($2), is_active=$3, time_zone=$4, updated_by=$5, updated_at=NOW()
        WHERE tenant_id=$6 AND id=$7 AND deleted_at IS NULL
        RETURNING email, updated_at`
	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.IsActive,
		user.TimeZone,
		user.UpdatedBy,
		user.TenantID,
		user.ID,
	).Scan(&user.Email, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.tenant_id=$1 AND u.id=$2 AND u.deleted_at IS NULL`
	return scanUser(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.tenant_id=$1 AND u.email=LOWER($2) AND u.deleted_at IS NULL`
	return scanUser(r.pool.QueryRow(ctx, query, tenantID, email))
}

func (r *userRepository) List(ctx context.Context, tenantID string, filter UserFilter) ([]domain.User, int, error) {
	w := tenantScope("u.tenant_id", tenantID)
	w.raw("u.deleted_at IS NULL")
	if filter.Active != nil {
		w.add("u.is_active=%s", *filter.Active)
	}
	if filter.RoleID != nil {
		w.add("EXISTS (SELECT 1 FROM user_roles ur WHERE ur.user_id=u.id AND ur.role_id=%s)", *filter.RoleID)
	}
	w.search(filter.Search, "u.name", "u.email")

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM users u WHERE %s ORDER BY u.name ASC, u.id ASC %s`,
		userColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.User
		total  int
	)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(append(userDest(&u), &total)...); err != nil {
			return nil, 0, err
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

func (r *userRepository) SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE users SET deleted_at=NOW(), deleted_by=$1, is_active=FALSE
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

func (r *userRepository) SetRoles(ctx context.Context, tenantID, userID string, roleIDs []string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceRoles(ctx, tx, tenantID, userID, roleIDs)
	})
}

func replaceRoles(ctx context.Context, tx pgx.Tx, tenantID, userID string, roleIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO user_roles (tenant_id, user_id, role_id)
        SELECT $1, $2, r.id FROM roles r WHERE r.tenant_id=$1 AND r.id = ANY($3::uuid[])`
	_, err := tx.Exec(ctx, query, tenantID, userID, roleIDs)
	return err
}

func (r *userRepository) UpdatePassword(ctx context.Context, tenantID, id, passwordHash string) error {
	const query = `
        UPDATE users SET password_hash=$1, updated_at=NOW()
        WHERE tenant_id=$2 AND id=$3 AND deleted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, passwordHash, tenantID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) TouchLogin(ctx context.Context, tenantID, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (r *userRepository) ListRoleAssignments(ctx context.Context) ([]RoleAssignment, error) {
	const query = `
        SELECT ur.tenant_id, ur.user_id, ur.role_id
        FROM user_roles ur JOIN users u ON u.id=ur.user_id
        WHERE u.deleted_at IS NULL AND u.is_active=TRUE`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		if err := rows.Scan(&a.TenantID, &a.UserID, &a.RoleID); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func userDest(u *domain.User) []any {
	return []any{
		&u.ID,
		&u.TenantID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsActive,
		&u.TimeZone,
		&u.RoleIDs,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.CreatedBy,
		&u.UpdatedAt,
		&u.UpdatedBy,
		&u.DeletedAt,
		&u.DeletedBy,
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(userDest(&u)...); err != nil {
		return nil, err
	}
	return &u, nil
}
