package domain

import "time"

// AppointmentStatus is the lifecycle of a booking.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
)

// Appointment is a booked slot between a staff user and a contact.
type Appointment struct {
	ID          string
	TenantID    string
	StaffUserID string
	ContactID   string
	TicketID    *string
	Title       string
	Notes       string
	StartsAt    time.Time
	EndsAt      time.Time
	Status      AppointmentStatus
	CancelledAt *time.Time
	Audit
}

// StaffWorkingHours is one weekly working window of a staff user, in "HH:MM".
type StaffWorkingHours struct {
	UserID  string
	Weekday time.Weekday
	Start   string
	End     string
}

// AppointmentSettings tunes availability computation per tenant.
type AppointmentSettings struct {
	TenantID         string
	SlotMinutes      int
	BufferMinutes    int
	MinNoticeMinutes int
}

// DefaultAppointmentSettings returns 30 minute slots, no buffer and no minimum notice.
func DefaultAppointmentSettings(tenantID string) AppointmentSettings {
	return AppointmentSettings{TenantID: tenantID, SlotMinutes: 30}
}
