package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// BookAppointmentRequest payload.
type BookAppointmentRequest struct {
	StaffUserID string    `json:"staff_user_id" validate:"required,uuid"`
	ContactID   string    `json:"contact_id" validate:"required,uuid"`
	TicketID    *string   `json:"ticket_id" validate:"omitempty,uuid"`
	Title       string    `json:"title" validate:"required,max=300"`
	Notes       string    `json:"notes" validate:"max=4000"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// RescheduleRequest payload; staff_user_id optionally moves the booking to another user.
type RescheduleRequest struct {
	StaffUserID *string   `json:"staff_user_id" validate:"omitempty,uuid"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// AppointmentResponse representation.
type AppointmentResponse struct {
	ID          string                   `json:"id"`
	StaffUserID string                   `json:"staff_user_id"`
	ContactID   string                   `json:"contact_id"`
	TicketID    *string                  `json:"ticket_id"`
	Title       string                   `json:"title"`
	Notes       string                   `json:"notes"`
	StartsAt    time.Time                `json:"starts_at"`
	EndsAt      time.Time                `json:"ends_at"`
	Status      domain.AppointmentStatus `json:"status"`
	CancelledAt *time.Time               `json:"cancelled_at"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// SlotResponse is one bookable interval.
type SlotResponse struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// AvailabilityResponse lists free slots of a staff user on one date.
type AvailabilityResponse struct {
	StaffUserID string         `json:"staff_user_id"`
	Date        string         `json:"date"`
	TimeZone    string         `json:"time_zone"`
	Slots       []SlotResponse `json:"slots"`
}

// WorkingHour is one weekly window; weekday 0 is Sunday.
type WorkingHour struct {
	Weekday int    `json:"weekday" validate:"gte=0,lte=6"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
}

// WorkingHoursRequest replaces a staff user's weekly hours.
type WorkingHoursRequest struct {
	Hours []WorkingHour `json:"hours" validate:"dive"`
}
