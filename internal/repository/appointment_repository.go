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

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	StaffUserID *string
	ContactID   *string
	Status      *domain.AppointmentStatus
	From        *time.Time
	To          *time.Time
	Page        domain.Page
}

// BookingCheck inspects the staff member's other live bookings overlapping the
// checked window and rejects the write by returning an error.
type BookingCheck func(existing []domain.Appointment) error

// AppointmentRepository persists appointments, staff working hours and booking settings.
type AppointmentRepository interface {
	// Save inserts (empty ID) or updates appt while holding a per-staff lock, after check accepts
	// the staff member's other non-cancelled bookings between from and to.
	Save(ctx context.Context, appt *domain.Appointment, from, to time.Time, check BookingCheck) error
	UpdateStatus(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Appointment, error)
	List(ctx context.Context, tenantID string, filter AppointmentFilter) ([]domain.Appointment, int, error)
	ListForStaff(ctx context.Context, tenantID, staffUserID string, from, to time.Time) ([]domain.Appointment, error)

	GetWorkingHours(ctx context.Context, tenantID, userID string) ([]domain.StaffWorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, tenantID, userID string, hours []domain.StaffWorkingHours) error

	GetSettings(ctx context.Context, tenantID string) (*domain.AppointmentSettings, error)
	SaveSettings(ctx context.Context, settings *domain.AppointmentSettings) error
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepository builds the repository.
func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

const appointmentColumns = `id, tenant_id, staff_user_id, contact_id, ticket_id, title, notes, starts_at, ends_at,
        status, cancelled_at, created_at, created_by, updated_at, updated_by`

func (r *appointmentRepository) Save(ctx context.Context, appt *domain.Appointment, from, to time.Time, check BookingCheck) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "appointments:"+appt.StaffUserID); err != nil {
			return err
		}
		query := `SELECT ` + appointmentColumns + ` FROM appointments
            WHERE tenant_id=$1 AND staff_user_id=$2 AND status <> 'CANCELLED'
              AND starts_at < $4 AND ends_at > $3 AND id::text <> $5
            ORDER BY starts_at`
		existing, err := queryAppointments(ctx, tx, query, appt.TenantID, appt.StaffUserID, from, to, appt.ID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(existing); err != nil {
				return err
			}
		}
		if appt.ID == "" {
			const insert = `
                INSERT INTO appointments (tenant_id, staff_user_id, contact_id, ticket_id, title, notes, starts_at, ends_at, status, created_by, updated_by)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
                RETURNING id, created_at, updated_at`
			return tx.QueryRow(ctx, insert,
				appt.TenantID,
				appt.StaffUserID,
				appt.ContactID,
				appt.TicketID,
				appt.Title,
				appt.Notes,
				appt.StartsAt,
				appt.EndsAt,
				appt.Status,
				appt.CreatedBy,
			).Scan(&appt.ID, &appt.CreatedAt, &appt.UpdatedAt)
		}
		const update = `
            UPDATE appointments SET staff_user_id=$1, contact_id=$2, ticket_id=$3, title=$4, notes=$5,
                starts_at=$6, ends_at=$7, updated_by=$8, updated_at=NOW()
            WHERE tenant_id=$9 AND id=$10
            RETURNING updated_at`
		return tx.QueryRow(ctx, update,
			appt.StaffUserID,
			appt.ContactID,
			appt.TicketID,
			appt.Title,
			appt.Notes,
			appt.StartsAt,
			appt.EndsAt,
			appt.UpdatedBy,
			appt.TenantID,
			appt.ID,
		).Scan(&appt.UpdatedAt)
	})
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, appt *domain.Appointment) error {
	const query = `
        UPDATE appointments SET status=$1, cancelled_at=$2, updated_by=$3, updated_at=NOW()
        WHERE tenant_id=$4 AND id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, appt.Status, appt.CancelledAt, appt.UpdatedBy, appt.TenantID, appt.ID).Scan(&appt.UpdatedAt)
}

func (r *appointmentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id=$1 AND id=$2`
	var a domain.Appointment
	if err := r.pool.QueryRow(ctx, query, tenantID, id).Scan(appointmentDest(&a)...); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) List(ctx context.Context, tenantID string, filter AppointmentFilter) ([]domain.Appointment, int, error) {
	w := tenantScope("tenant_id", tenantID)
	if filter.StaffUserID != nil {
		w.add("staff_user_id=%s", *filter.StaffUserID)
	}
	if filter.ContactID != nil {
		w.add("contact_id=%s", *filter.ContactID)
	}
	if filter.Status != nil {
		w.add("status=%s", *filter.Status)
	}
	if filter.From != nil {
		w.add("ends_at > %s", *filter.From)
	}
	if filter.To != nil {
		w.add("starts_at < %s", *filter.To)
	}
	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM appointments WHERE %s ORDER BY starts_at ASC, id ASC %s`,
		appointmentColumns, w.where(), pageClause(filter.Page))
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Appointment
		total  int
	)
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(append(appointmentDest(&a), &total)...); err != nil {
			return nil, 0, err
		}
		result = append(result, a)
	}
	return result, total, rows.Err()
}

func (r *appointmentRepository) ListForStaff(ctx context.Context, tenantID, staffUserID string, from, to time.Time) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
        WHERE tenant_id=$1 AND staff_user_id=$2 AND status <> 'CANCELLED' AND starts_at < $4 AND ends_at > $3
        ORDER BY starts_at`
	return queryAppointments(ctx, r.pool, query, tenantID, staffUserID, from, to)
}

func (r *appointmentRepository) GetWorkingHours(ctx context.Context, tenantID, userID string) ([]domain.StaffWorkingHours, error) {
	const query = `
        SELECT user_id, weekday, start_time, end_time FROM staff_working_hours
        WHERE tenant_id=$1 AND user_id=$2 ORDER BY weekday, start_time`
	rows, err := r.pool.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffWorkingHours
	for rows.Next() {
		var (
			h       domain.StaffWorkingHours
			weekday int16
		)
		if err := rows.Scan(&h.UserID, &weekday, &h.Start, &h.End); err != nil {
			return nil, err
		}
		h.Weekday = time.Weekday(weekday)
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *appointmentRepository) ReplaceWorkingHours(ctx context.Context, tenantID, userID string, hours []domain.StaffWorkingHours) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM staff_working_hours WHERE tenant_id=$1 AND user_id=$2`, tenantID, userID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, h := range hours {
			batch.Queue(`INSERT INTO staff_working_hours (tenant_id, user_id, weekday, start_time, end_time) VALUES ($1,$2,$3,$4,$5)`,
				tenantID, userID, int16(h.Weekday), h.Start, h.End)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// GetSettings returns stored settings or the defaults.
func (r *appointmentRepository) GetSettings(ctx context.Context, tenantID string) (*domain.AppointmentSettings, error) {
	const query = `SELECT slot_minutes, buffer_minutes, min_notice_minutes FROM appointment_settings WHERE tenant_id=$1`
	s := domain.AppointmentSettings{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(&s.SlotMinutes, &s.BufferMinutes, &s.MinNoticeMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		def := domain.DefaultAppointmentSettings(tenantID)
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *appointmentRepository) SaveSettings(ctx context.Context, s *domain.AppointmentSettings) error {
	const query = `
        INSERT INTO appointment_settings (tenant_id, slot_minutes, buffer_minutes, min_notice_minutes)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tenant_id) DO UPDATE
        SET slot_minutes=EXCLUDED.slot_minutes, buffer_minutes=EXCLUDED.buffer_minutes, min_notice_minutes=EXCLUDED.min_notice_minutes`
	_, err := r.pool.Exec(ctx, query, s.TenantID, s.SlotMinutes, s.BufferMinutes, s.MinNoticeMinutes)
	return err
}

func queryAppointments(ctx context.Context, q queryer, query string, args ...any) ([]domain.Appointment, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(appointmentDest(&a)...); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func appointmentDest(a *domain.Appointment) []any {
	return []any{
		&a.ID,
		&a.TenantID,
		&a.StaffUserID,
		&a.ContactID,
		&a.TicketID,
		&a.Title,
		&a.Notes,
		&a.StartsAt,
		&a.EndsAt,
		&a.Status,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.CreatedBy,
		&a.UpdatedAt,
		&a.UpdatedBy,
	}
}
