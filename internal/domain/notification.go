package domain

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationTicketAssigned    NotificationType = "ticket_assigned"
	NotificationSLAWarning        NotificationType = "sla_warning"
	NotificationSLABreached       NotificationType = "sla_breached"
	NotificationAppointmentBooked NotificationType = "appointment_booked"
	NotificationExportReady       NotificationType = "export_ready"
	NotificationImportFinished    NotificationType = "import_finished"
)

// Notification is an in-app message for a user.
type Notification struct {
	ID        string
	TenantID  string
	UserID    string
	Type      NotificationType
	Title     string
	Body      string
	Link      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// IsRead reports whether the notification has been acknowledged.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
