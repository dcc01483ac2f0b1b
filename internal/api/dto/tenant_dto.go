package dto

import "time"

// TenantResponse representation.
type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	TimeZone  string    `json:"time_zone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateTenantRequest payload.
type UpdateTenantRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	TimeZone *string `json:"time_zone" validate:"omitempty,timezone"`
}

// DaySchedule is one weekday window; index 0 is Sunday.
type DaySchedule struct {
	Open  bool   `json:"open"`
	Start string `json:"start" validate:"required_if=Open true"`
	End   string `json:"end" validate:"required_if=Open true"`
}

// Holiday is a closed date formatted YYYY-MM-DD.
type Holiday struct {
	Name string `json:"name" validate:"max=200"`
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// BusinessHoursRequest replaces the tenant schedule.
type BusinessHoursRequest struct {
	TimeZone string        `json:"time_zone" validate:"omitempty,timezone"`
	Days     []DaySchedule `json:"days" validate:"len=7,dive"`
	Holidays []Holiday     `json:"holidays" validate:"dive"`
}

// BusinessHoursResponse representation.
type BusinessHoursResponse struct {
	TimeZone string        `json:"time_zone"`
	Days     []DaySchedule `json:"days"`
	Holidays []Holiday     `json:"holidays"`
}

// AppointmentSettingsRequest payload.
type AppointmentSettingsRequest struct {
	SlotMinutes      int `json:"slot_minutes" validate:"gte=5,lte=480"`
	BufferMinutes    int `json:"buffer_minutes" validate:"gte=0,lte=240"`
	MinNoticeMinutes int `json:"min_notice_minutes" validate:"gte=0,lte=43200"`
}

// AppointmentSettingsResponse representation.
type AppointmentSettingsResponse struct {
	SlotMinutes      int `json:"slot_minutes"`
	BufferMinutes    int `json:"buffer_minutes"`
	MinNoticeMinutes int `json:"min_notice_minutes"`
}
