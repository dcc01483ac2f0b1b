package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Search  string
	Company string
	Page    domain.Page
}

// ContactRepository persists customer contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *domain.Contact) error
	Update(ctx context.Context, contact *domain.Contact) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Contact, error)
	GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error)
	List(ctx context.Context, tenantID string, filter ContactFilter) ([]domain.Contact, int, error)
	SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository builds the repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

const contactColumns = `id, tenant_id, first_name, last_name, email, phone, company, notes,
        created_at, created_by, updated_at, updated_by, deleted_at, deleted_by`

func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (tenant_id, first_name, last_name, email, phone, company, notes, created_by, updated_by)
        VALUES ($1,$2,$3,LOWER($4),$5,$6,$7,$8,$8)
        RETURNING id, email, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		contact.TenantID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Company,
		contact.Notes,
		contact.CreatedBy,
	).Scan(&contact.ID, &contact.Email, &contact.CreatedAt, &contact.UpdatedAt)
}

func (r *contactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	const query = `
        UPDATE contacts SET first_name=$1, last_name=$2, email=LOWER($3), phone=$4, company=$5, notes=$6,
            updated_by=$7, updated_at=NOW()
        WHERE tenant_id=$8 AND id=$9 AND deleted_at IS NULL
        RETURNING email, updated_at`
	return r.pool.QueryRow(ctx, query,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Company,
		contact.Notes,
		contact.UpdatedBy,
		contact.TenantID,
		contact.ID,
	).Scan(&contact.Email, &contact.UpdatedAt)
}

func (r *contactRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id=$1 AND id=$2 AND deleted_at IS NULL`
	return scanContact(r.pool.QueryRow(ctx, query, tenantID, id))
}

func (r *contactRepository) GetByEmail(ctx context.Context, tenantID, email string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id=$1 AND email=LOWER($2) AND deleted_at IS NULL`
	return scanContact(r.pool.QueryRow(ctx, query, tenantID, email))
}

func (r *contactRepository) List(ctx context.Context, tenantID string, filter ContactFilter) ([]domain.Contact, int, error) {
	w := tenantScope("tenant_id", tenantID)
	w.raw("deleted_at IS NULL")
	if filter.Company != "" {
		w.add("LOWER(company)=LOWER(%s)", filter.Company)
	}
	w.search(filter.Search, "first_name", "last_name", "email", "company")

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM contacts WHERE %s ORDER BY last_name ASC, first_name ASC, id ASC %s`,
		contactColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Contact
		total  int
	)
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(append(contactDest(&c), &total)...); err != nil {
			return nil, 0, err
		}
		result = append(result, c)
	}
	return result, total, rows.Err()
}

func (r *contactRepository) SoftDelete(ctx context.Context, tenantID, id string, actorID *string) error {
	const query = `
        UPDATE contacts SET deleted_at=NOW(), deleted_by=$1
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

func contactDest(c *domain.Contact) []any {
	return []any{
		&c.ID,
		&c.TenantID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&c.Company,
		&c.Notes,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.UpdatedAt,
		&c.UpdatedBy,
		&c.DeletedAt,
		&c.DeletedBy,
	}
}

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var c domain.Contact
	if err := row.Scan(contactDest(&c)...); err != nil {
		return nil, err
	}
	return &c, nil
}
