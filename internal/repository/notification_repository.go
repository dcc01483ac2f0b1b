package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationFilter narrows a user's notification feed.
type NotificationFilter struct {
	UnreadOnly bool
	Page       domain.Page
}

// NotificationRepository persists in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, tenantID, userID string, filter NotificationFilter) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, tenantID, userID string) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, id string) error
	MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (tenant_id, user_id, type, title, body, link)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.TenantID,
		n.UserID,
		n.Type,
		n.Title,
		n.Body,
		n.Link,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) List(ctx context.Context, tenantID, userID string, filter NotificationFilter) ([]domain.Notification, int, error) {
	w := tenantScope("tenant_id", tenantID)
	w.add("user_id=%s", userID)
	if filter.UnreadOnly {
		w.raw("read_at IS NULL")
	}
	query := fmt.Sprintf(`
        SELECT id, tenant_id, user_id, type, title, body, link, read_at, created_at, COUNT(*) OVER()
        FROM notifications WHERE %s ORDER BY created_at DESC, id ASC %s`, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Notification
		total  int
	)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.TenantID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Body,
			&n.Link,
			&n.ReadAt,
			&n.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, n)
	}
	return result, total, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, tenantID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id=$1 AND user_id=$2 AND read_at IS NULL`,
		tenantID, userID,
	).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, tenantID, userID, id string) error {
	const query = `
        UPDATE notifications SET read_at=COALESCE(read_at, NOW())
        WHERE tenant_id=$1 AND user_id=$2 AND id=$3`
	cmd, err := r.pool.Exec(ctx, query, tenantID, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at=NOW() WHERE tenant_id=$1 AND user_id=$2 AND read_at IS NULL`,
		tenantID, userID,
	)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
