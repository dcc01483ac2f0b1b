package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	TeamID      *string
	AssigneeID  *string
	ContactID   *string
	Tag         string
	Search      string
	SLAStatus   *domain.SLAStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        domain.Page
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, tenantID, number string) (*domain.Ticket, error)
	List(ctx context.Context, tenantID string, filter TicketFilter) ([]domain.Ticket, int, error)
	SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error
	// ListSLAOpen returns non-terminal tickets of every tenant that have SLA targets and are not yet breached.
	ListSLAOpen(ctx context.Context, afterID string, limit int) ([]domain.Ticket, error)
	// MarkSLA persists only the SLA warning and breach markers.
	MarkSLA(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.tenant_id, t.number, t.subject, t.description, t.status, t.priority, t.channel,
        t.contact_id, t.team_id, t.assignee_id, t.tags, t.first_responded_at, t.resolved_at, t.closed_at,
        t.sla_rule_id, t.sla_started_at, t.sla_first_response_due_at, t.sla_resolution_due_at,
        t.sla_business_hours_only, t.sla_warned_at, t.sla_breached_at, t.sla_first_response_breached,
        t.created_at, t.created_by, t.updated_at, t.updated_by, t.deleted_at, t.deleted_by`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, number, subject, description, status, priority, channel,
            contact_id, team_id, assignee_id, tags, first_responded_at,
            sla_rule_id, sla_started_at, sla_first_response_due_at, sla_resolution_due_at, sla_business_hours_only,
            created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$18)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.Number,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Channel,
		ticket.ContactID,
		ticket.TeamID,
		ticket.AssigneeID,
		tagsOrEmpty(ticket.Tags),
		ticket.FirstRespondedAt,
		ticket.SLA.RuleID,
		ticket.SLA.StartedAt,
		ticket.SLA.FirstResponseDueAt,
		ticket.SLA.ResolutionDueAt,
		ticket.SLA.BusinessHoursOnly,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, status=$3, priority=$4, channel=$5,
            contact_id=$6, team_id=$7, assignee_id=$8, tags=$9,
            first_responded_at=$10, resolved_at=$11, closed_at=$12,
            sla_rule_id=$13, sla_started_at=$14, sla_first_response_due_at=$15, sla_resolution_due_at=$16,
            sla_business_hours_only=$17, sla_warned_at=$18, sla_breached_at=$19, sla_first_response_breached=$20,
            updated_by=$21, updated_at=NOW()
        WHERE tenant_id=$22 AND id=$23 AND deleted_at IS NULL
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Channel,
		ticket.ContactID,
		ticket.TeamID,
		ticket.AssigneeID,
		tagsOrEmpty(ticket.Tags),
		ticket.FirstRespondedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.SLA.RuleID,
		ticket.SLA.StartedAt,
		ticket.SLA.FirstResponseDueAt,
		ticket.SLA.ResolutionDueAt,
		ticket.SLA.BusinessHoursOnly,
		ticket.SLA.WarnedAt,
		ticket.SLA.BreachedAt,
		ticket.SLA.FirstResponseBreach,
		ticket.UpdatedBy,
		ticket.TenantID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.tenant_id=$1 AND t.id=$2 AND t.deleted_at IS NULL`
	return scanTicket(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *ticketRepository) GetByNumber(ctx context.Context, tenantID, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.tenant_id=$1 AND t.number=UPPER($2) AND t.deleted_at IS NULL`
	return scanTicket(r.pool.QueryRow(ctx, query, tenantID, number))
}

func (r *ticketRepository) List(ctx context.Context, tenantID string, filter TicketFilter) ([]domain.Ticket, int, error) {
	w := tenantScope("t.tenant_id", tenantID)
	w.raw("t.deleted_at IS NULL")
	in(w, "t.status", filter.Statuses)
	in(w, "t.priority", filter.Priorities)
	if filter.TeamID != nil {
		w.add("t.team_id=%s", *filter.TeamID)
	}
	if filter.AssigneeID != nil {
		w.add("t.assignee_id=%s", *filter.AssigneeID)
	}
	if filter.ContactID != nil {
		w.add("t.contact_id=%s", *filter.ContactID)
	}
	if filter.Tag != "" {
		w.add("%s = ANY(t.tags)", filter.Tag)
	}
	if filter.CreatedFrom != nil {
		w.add("t.created_at >= %s", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		w.add("t.created_at <= %s", *filter.CreatedTo)
	}
	if filter.SLAStatus != nil {
		if clause := slaStatusClause(*filter.SLAStatus); clause != "" {
			w.raw(clause)
		}
	}
	w.search(filter.Search, "t.subject", "t.description", "t.number")

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM tickets t WHERE %s ORDER BY t.updated_at DESC, t.id ASC %s`,
		ticketColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Ticket
		total  int
	)
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(append(ticketDest(&t), &total)...); err != nil {
			return nil, 0, err
		}
		result = append(result, t)
	}
	return result, total, rows.Err()
}

// slaStatusClause approximates evaluated SLA status from the stored markers.
func slaStatusClause(status domain.SLAStatus) string {
	const terminal = `t.status IN ('RESOLVED','CLOSED')`
	switch status {
	case domain.SLAStatusNone:
		return "t.sla_rule_id IS NULL"
	case domain.SLAStatusBreached:
		return "t.sla_breached_at IS NOT NULL"
	case domain.SLAStatusAtRisk:
		return "t.sla_warned_at IS NOT NULL AND t.sla_breached_at IS NULL AND NOT " + terminal
	case domain.SLAStatusOnTrack:
		return "t.sla_rule_id IS NOT NULL AND t.sla_warned_at IS NULL AND t.sla_breached_at IS NULL AND NOT " + terminal
	case domain.SLAStatusMet:
		return "t.sla_rule_id IS NOT NULL AND t.sla_breached_at IS NULL AND " + terminal
	}
	return ""
}

func (r *ticketRepository) SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE tickets SET deleted_at=NOW(), deleted_by=$1
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

func (r *ticketRepository) ListSLAOpen(ctx context.Context, afterID string, limit int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t
        WHERE t.deleted_at IS NULL AND t.sla_rule_id IS NOT NULL AND t.sla_breached_at IS NULL
          AND t.status NOT IN ('RESOLVED','CLOSED') AND t.id::text > $1
        ORDER BY t.id::text ASC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(ticketDest(&t)...); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MarkSLA(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET sla_warned_at=$1, sla_breached_at=$2, sla_first_response_breached=$3
        WHERE tenant_id=$4 AND id=$5`
	_, err := r.pool.Exec(ctx, query,
		ticket.SLA.WarnedAt,
		ticket.SLA.BreachedAt,
		ticket.SLA.FirstResponseBreach,
		ticket.TenantID,
		ticket.ID,
	)
	return err
}

func ticketDest(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.TenantID,
		&t.Number,
		&t.Subject,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.Channel,
		&t.ContactID,
		&t.TeamID,
		&t.AssigneeID,
		&t.Tags,
		&t.FirstRespondedAt,
		&t.ResolvedAt,
		&t.ClosedAt,
		&t.SLA.RuleID,
		&t.SLA.StartedAt,
		&t.SLA.FirstResponseDueAt,
		&t.SLA.ResolutionDueAt,
		&t.SLA.BusinessHoursOnly,
		&t.SLA.WarnedAt,
		&t.SLA.BreachedAt,
		&t.SLA.FirstResponseBreach,
		&t.CreatedAt,
		&t.CreatedBy,
		&t.UpdatedAt,
		&t.UpdatedBy,
		&t.DeletedAt,
		&t.DeletedBy,
	}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(ticketDest(&t)...); err != nil {
		return nil, err
	}
	return &t, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
