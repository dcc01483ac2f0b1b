package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// HistoryFilter narrows a ticket's audit trail. Zero values match everything.
type HistoryFilter struct {
	ChangeTypes []domain.TicketChangeType
	Since       *time.Time
}

// TicketHistoryRepository stores the append-only ticket audit trail.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, tenantID, ticketID string, filter HistoryFilter) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (tenant_id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TenantID,
		entry.TicketID,
		entry.ChangedByType,
		entry.ChangedByID,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, tenantID, ticketID string, filter HistoryFilter) ([]domain.TicketHistory, error) {
	w := tenantScope("tenant_id", tenantID)
	w.add("ticket_id=%s", ticketID)
	in(w, "change_type", filter.ChangeTypes)
	if filter.Since != nil {
		w.add("created_at >= %s", *filter.Since)
	}
	query := `
        SELECT id, tenant_id, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history WHERE ` + w.where() + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.TicketHistory{}
	for rows.Next() {
		var e domain.TicketHistory
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.TicketID,
			&e.ChangedByType, &e.ChangedByID, &e.ChangeType,
			&e.OldValue, &e.NewValue, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
