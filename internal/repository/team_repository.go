package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ErrNoAssignableMember is returned when round-robin finds no eligible member.
var ErrNoAssignableMember = errors.New("no assignable team member")

// TeamFilter narrows team listings.
type TeamFilter struct {
	Search string
	Active *bool
	Page   domain.Page
}

// TeamRepository manages persistence for teams and memberships.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	Update(ctx context.Context, team *domain.Team) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Team, error)
	List(ctx context.Context, tenantID string, filter TeamFilter) ([]domain.Team, int, error)
	SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error

	AddMember(ctx context.Context, tenantID string, member *domain.TeamMembership) error
	UpdateMember(ctx context.Context, tenantID string, member *domain.TeamMembership) error
	RemoveMember(ctx context.Context, tenantID, teamID, userID string) error
	GetMember(ctx context.Context, tenantID, teamID, userID string) (*domain.TeamMembership, error)
	ListMembers(ctx context.Context, tenantID, teamID string) ([]domain.TeamMembership, error)

	// AssignRoundRobin locks the team's memberships, picks the next member and stamps LastAssignedAt.
	AssignRoundRobin(ctx context.Context, tenantID, teamID string, now time.Time) (*domain.TeamMembership, error)
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository constructs repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

const teamColumns = `id, tenant_id, name, description, assignment_strategy, is_active,
        created_at, created_by, updated_at, updated_by, deleted_at, deleted_by`

func (r *teamRepository) Create(ctx context.Context, team *domain.Team) error {
	const query = `
        INSERT INTO teams (tenant_id, name, description, assignment_strategy, is_active, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		team.TenantID,
		team.Name,
		team.Description,
		team.AssignmentStrategy,
		team.IsActive,
		team.CreatedBy,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
}

func (r *teamRepository) Update(ctx context.Context, team *domain.Team) error {
	const query = `
        UPDATE teams SET name=$1, description=$2, assignment_strategy=$3, is_active=$4, updated_by=$5, updated_at=NOW()
        WHERE tenant_id=$6 AND id=$7 AND deleted_at IS NULL
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		team.Name,
		team.Description,
		team.AssignmentStrategy,
		team.IsActive,
		team.UpdatedBy,
		team.TenantID,
		team.ID,
	).Scan(&team.UpdatedAt)
}

func (r *teamRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE tenant_id=$1 AND id=$2 AND deleted_at IS NULL`
	var team domain.Team
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(teamDest(&team)...); err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *teamRepository) List(ctx context.Context, tenantID string, filter TeamFilter) ([]domain.Team, int, error) {
	w := tenantScope("tenant_id", tenantID)
	w.raw("deleted_at IS NULL")
	if filter.Active != nil {
		w.add("is_active=%s", *filter.Active)
	}
	w.search(filter.Search, "name", "description")

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM teams WHERE %s ORDER BY name ASC, id ASC %s`,
		teamColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Team
		total  int
	)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(append(teamDest(&team), &total)...); err != nil {
			return nil, 0, err
		}
		result = append(result, team)
	}
	return result, total, rows.Err()
}

func (r *teamRepository) SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE teams SET deleted_at=NOW(), deleted_by=$1, is_active=FALSE
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

func (r *teamRepository) AddMember(ctx context.Context, tenantID string, member *domain.TeamMembership) error {
	const query = `
        INSERT INTO team_members (tenant_id, team_id, user_id, is_assignable, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING joined_at`
	return r.pool.QueryRow(ctx, query,
		tenantID,
		member.TeamID,
		member.UserID,
		member.IsAssignable,
		member.IsActive,
	).Scan(&member.JoinedAt)
}

func (r *teamRepository) UpdateMember(ctx context.Context, tenantID string, member *domain.TeamMembership) error {
	const query = `
        UPDATE team_members SET is_assignable=$1, is_active=$2
        WHERE tenant_id=$3 AND team_id=$4 AND user_id=$5`
	cmd, err := r.pool.Exec(ctx, query, member.IsAssignable, member.IsActive, tenantID, member.TeamID, member.UserID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *teamRepository) RemoveMember(ctx context.Context, tenantID, teamID, userID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM team_members WHERE tenant_id=$1 AND team_id=$2 AND user_id=$3`, tenantID, teamID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const memberSelect = `
        SELECT tm.team_id, tm.user_id, u.name, (u.is_active AND u.deleted_at IS NULL),
               tm.is_assignable, tm.is_active, tm.last_assigned_at, tm.joined_at
        FROM team_members tm JOIN users u ON u.id=tm.user_id`

func (r *teamRepository) GetMember(ctx context.Context, tenantID, teamID, userID string) (*domain.TeamMembership, error) {
	query := memberSelect + ` WHERE tm.tenant_id=$1 AND tm.team_id=$2 AND tm.user_id=$3`
	var m domain.TeamMembership
	if err := r.pool.QueryRow(ctx, query, tenantID, teamID, userID).Scan(memberDest(&m)...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *teamRepository) ListMembers(ctx context.Context, tenantID, teamID string) ([]domain.TeamMembership, error) {
	query := memberSelect + ` WHERE tm.tenant_id=$1 AND tm.team_id=$2 ORDER BY tm.joined_at ASC, tm.user_id ASC`
	return queryMembers(ctx, r.pool, query, tenantID, teamID)
}

func (r *teamRepository) AssignRoundRobin(ctx context.Context, tenantID, teamID string, now time.Time) (*domain.TeamMembership, error) {
	var chosen domain.TeamMembership
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := memberSelect + `
            WHERE tm.tenant_id=$1 AND tm.team_id=$2
            ORDER BY tm.joined_at ASC, tm.user_id ASC
            FOR UPDATE OF tm`
		members, err := queryMembers(ctx, tx, query, tenantID, teamID)
		if err != nil {
			return err
		}
		next, ok := domain.NextRoundRobin(members)
		if !ok {
			return ErrNoAssignableMember
		}
		if _, err := tx.Exec(ctx,
			`UPDATE team_members SET last_assigned_at=$1 WHERE team_id=$2 AND user_id=$3`,
			now, next.TeamID, next.UserID,
		); err != nil {
			return err
		}
		next.LastAssignedAt = &now
		chosen = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &chosen, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryMembers(ctx context.Context, q queryer, query string, args ...any) ([]domain.TeamMembership, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMembership
	for rows.Next() {
		var m domain.TeamMembership
		if err := rows.Scan(memberDest(&m)...); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func teamDest(t *domain.Team) []any {
	return []any{
		&t.ID,
		&t.TenantID,
		&t.Name,
		&t.Description,
		&t.AssignmentStrategy,
		&t.IsActive,
		&t.CreatedAt,
		&t.CreatedBy,
		&t.UpdatedAt,
		&t.UpdatedBy,
		&t.DeletedAt,
		&t.DeletedBy,
	}
}

func memberDest(m *domain.TeamMembership) []any {
	return []any{
		&m.TeamID,
		&m.UserID,
		&m.UserName,
		&m.UserActive,
		&m.IsAssignable,
		&m.IsActive,
		&m.LastAssignedAt,
		&m.JoinedAt,
	}
}
