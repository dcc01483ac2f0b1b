package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/scheduling"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var errSlotUnavailable = errors.New("slot not available")

// AppointmentService books staff time with contacts.
type AppointmentService struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	contacts     repository.ContactRepository
	tickets      repository.TicketRepository
	tenants      repository.TenantRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// AppointmentDependencies bundles collaborators.
type AppointmentDependencies struct {
	AppointmentRepo repository.AppointmentRepository
	UserRepo        repository.UserRepository
	ContactRepo     repository.ContactRepository
	TicketRepo      repository.TicketRepository
	TenantRepo      repository.TenantRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// BookAppointmentInput describes a booking.
type BookAppointmentInput struct {
	StaffUserID string
	ContactID   string
	TicketID    *string
	Title       string
	Notes       string
	StartsAt    time.Time
	EndsAt      time.Time
}

// RescheduleInput moves an appointment, optionally to another staff member.
type RescheduleInput struct {
	StaffUserID *string
	StartsAt    time.Time
	EndsAt      time.Time
}

// AppointmentListFilter narrows List.
type AppointmentListFilter struct {
	StaffUserID *string
	ContactID   *string
	Status      *domain.AppointmentStatus
	From        *time.Time
	To          *time.Time
	Page        domain.Page
}

// Availability is the bookable slots of one staff member on one date.
type Availability struct {
	StaffUserID string
	Date        string
	TimeZone    string
	Slots       []scheduling.Interval
}

// NewAppointmentService constructs the service.
func NewAppointmentService(deps AppointmentDependencies) *AppointmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		appointments: deps.AppointmentRepo,
		users:        deps.UserRepo,
		contacts:     deps.ContactRepo,
		tickets:      deps.TicketRepo,
		tenants:      deps.TenantRepo,
		dispatcher:   deps.Dispatcher,
		logger:       logger.Named("appointments"),
		now:          time.Now,
	}
}

// GetAvailability lists free slots of staffUserID on the calendar day of date,
// read in the tenant's business-hours time zone.
func (s *AppointmentService) GetAvailability(ctx context.Context, actor domain.Actor, staffUserID string, date time.Time) (*Availability, error) {
	if _, err := s.activeStaff(ctx, actor.TenantID, staffUserID); err != nil {
		return nil, err
	}
	req, err := s.request(ctx, actor.TenantID, staffUserID, date)
	if err != nil {
		return nil, err
	}
	// Only the calendar date of the argument matters; noon avoids zone shifts onto a neighbouring day.
	y, m, d := date.Date()
	req.Date = time.Date(y, m, d, 12, 0, 0, 0, req.Calendar.Location())
	day := req.Day()
	bookings, err := s.appointments.ListForStaff(ctx, actor.TenantID, staffUserID, day.Start.Add(-s.buffer(req)), day.End.Add(s.buffer(req)))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	req.Bookings = bookings
	return &Availability{
		StaffUserID: staffUserID,
		Date:        day.Start.Format("2006-01-02"),
		TimeZone:    req.Calendar.Location().String(),
		Slots:       scheduling.Availability(req),
	}, nil
}

// Book creates an appointment. The window must fit a single free interval.
func (s *AppointmentService) Book(ctx context.Context, actor domain.Actor, input BookAppointmentInput) (*domain.Appointment, error) {
	appt := &domain.Appointment{
		TenantID:    actor.TenantID,
		StaffUserID: strings.TrimSpace(input.StaffUserID),
		ContactID:   strings.TrimSpace(input.ContactID),
		TicketID:    trimPtr(input.TicketID),
		Title:       strings.TrimSpace(input.Title),
		Notes:       strings.TrimSpace(input.Notes),
		StartsAt:    input.StartsAt.UTC(),
		EndsAt:      input.EndsAt.UTC(),
		Status:      domain.AppointmentScheduled,
	}
	fields := map[string]string{}
	if appt.StaffUserID == "" {
		fields["staff_user_id"] = "is required"
	}
	if appt.ContactID == "" {
		fields["contact_id"] = "is required"
	}
	if appt.Title == "" {
		fields["title"] = "is required"
	}
	validateWindow(fields, appt.StartsAt, appt.EndsAt)
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, appt); err != nil {
		return nil, err
	}

	appt.CreatedBy = actor.ID
	appt.UpdatedBy = actor.ID
	if err := s.save(ctx, appt); err != nil {
		return nil, err
	}
	s.publish(ctx, actor, events.EventAppointmentBooked, appt)
	return appt, nil
}

// Reschedule moves a scheduled appointment to a new window.
func (s *AppointmentService) Reschedule(ctx context.Context, actor domain.Actor, id string, input RescheduleInput) (*domain.Appointment, error) {
	appt, err := s.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentScheduled {
		return nil, apperrors.NewConflict("appointment is not scheduled", map[string]any{"status": appt.Status})
	}
	fields := map[string]string{}
	validateWindow(fields, input.StartsAt, input.EndsAt)
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	if staff := trimPtr(input.StaffUserID); staff != nil {
		appt.StaffUserID = *staff
	}
	if _, err := s.activeStaff(ctx, actor.TenantID, appt.StaffUserID); err != nil {
		return nil, err
	}
	appt.StartsAt = input.StartsAt.UTC()
	appt.EndsAt = input.EndsAt.UTC()
	appt.UpdatedBy = actor.ID
	if err := s.save(ctx, appt); err != nil {
		return nil, err
	}
	s.publish(ctx, actor, events.EventAppointmentBooked, appt)
	return appt, nil
}

// Cancel cancels a scheduled appointment and frees its slot.
func (s *AppointmentService) Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.Appointment, error) {
	appt, err := s.transition(ctx, actor, id, domain.AppointmentCancelled)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, actor, events.EventAppointmentCancelled, appt)
	return appt, nil
}

// Complete marks a scheduled appointment as held.
func (s *AppointmentService) Complete(ctx context.Context, actor domain.Actor, id string) (*domain.Appointment, error) {
	return s.transition(ctx, actor, id, domain.AppointmentCompleted)
}

// GetAppointment loads one appointment.
func (s *AppointmentService) GetAppointment(ctx context.Context, actor domain.Actor, id string) (*domain.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err, "appointment", id)
	}
	return appt, nil
}

// ListAppointments pages through appointments ordered by start.
func (s *AppointmentService) ListAppointments(ctx context.Context, actor domain.Actor, filter AppointmentListFilter) (domain.PagedResult[domain.Appointment], error) {
	items, total, err := s.appointments.List(ctx, actor.TenantID, repository.AppointmentFilter{
		StaffUserID: trimPtr(filter.StaffUserID),
		ContactID:   trimPtr(filter.ContactID),
		Status:      filter.Status,
		From:        filter.From,
		To:          filter.To,
		Page:        filter.Page,
	})
	if err != nil {
		return domain.PagedResult[domain.Appointment]{}, apperrors.MapError(err)
	}
	return domain.NewPagedResult(items, filter.Page, total), nil
}

// GetWorkingHours returns the weekly windows of a staff member. Empty means business hours apply.
func (s *AppointmentService) GetWorkingHours(ctx context.Context, actor domain.Actor, userID string) ([]domain.StaffWorkingHours, error) {
	if _, err := s.staff(ctx, actor.TenantID, userID); err != nil {
		return nil, err
	}
	hours, err := s.appointments.GetWorkingHours(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return hours, nil
}

// SetWorkingHours replaces the weekly windows of a staff member.
func (s *AppointmentService) SetWorkingHours(ctx context.Context, actor domain.Actor, userID string, hours []domain.StaffWorkingHours) ([]domain.StaffWorkingHours, error) {
	if _, err := s.staff(ctx, actor.TenantID, userID); err != nil {
		return nil, err
	}
	normalized, err := normalizeWorkingHours(userID, hours)
	if err != nil {
		return nil, err
	}
	if err := s.appointments.ReplaceWorkingHours(ctx, actor.TenantID, userID, normalized); err != nil {
		return nil, apperrors.MapError(err)
	}
	return normalized, nil
}

// GetSettings returns the tenant's booking settings.
func (s *AppointmentService) GetSettings(ctx context.Context, actor domain.Actor) (*domain.AppointmentSettings, error) {
	settings, err := s.appointments.GetSettings(ctx, actor.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return settings, nil
}

// UpdateSettings stores the tenant's booking settings.
func (s *AppointmentService) UpdateSettings(ctx context.Context, actor domain.Actor, settings domain.AppointmentSettings) (*domain.AppointmentSettings, error) {
	fields := map[string]string{}
	if settings.SlotMinutes < 5 || settings.SlotMinutes > 480 {
		fields["slot_minutes"] = "must be between 5 and 480"
	}
	if settings.BufferMinutes < 0 || settings.BufferMinutes > 240 {
		fields["buffer_minutes"] = "must be between 0 and 240"
	}
	if settings.MinNoticeMinutes < 0 || settings.MinNoticeMinutes > 30*24*60 {
		fields["min_notice_minutes"] = "must be between 0 and 43200"
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	settings.TenantID = actor.TenantID
	if err := s.appointments.SaveSettings(ctx, &settings); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &settings, nil
}

// save writes appt under the staff lock after re-checking the window against
// the bookings visible inside the transaction.
func (s *AppointmentService) save(ctx context.Context, appt *domain.Appointment) error {
	req, err := s.request(ctx, appt.TenantID, appt.StaffUserID, appt.StartsAt)
	if err != nil {
		return err
	}
	day := req.Day()
	candidate := scheduling.Interval{Start: appt.StartsAt, End: appt.EndsAt}
	if !day.Contains(candidate) {
		return apperrors.NewConflict("slot not available", map[string]any{"reason": "appointment must start and end on the same day"})
	}
	if appt.StartsAt.Before(scheduling.EarliestStart(req.Settings, req.Now)) {
		return apperrors.NewConflict("slot not available", map[string]any{"reason": "minimum notice not met"})
	}

	buffer := s.buffer(req)
	err = s.appointments.Save(ctx, appt, day.Start.Add(-buffer), day.End.Add(buffer), func(existing []domain.Appointment) error {
		req.Bookings = existing
		if !scheduling.Fits(scheduling.FreeIntervals(req), candidate) {
			return errSlotUnavailable
		}
		return nil
	})
	if errors.Is(err, errSlotUnavailable) {
		return apperrors.NewConflict("slot not available", map[string]any{
			"staff_user_id": appt.StaffUserID,
			"starts_at":     appt.StartsAt,
			"ends_at":       appt.EndsAt,
		})
	}
	return apperrors.MapError(err)
}

func (s *AppointmentService) request(ctx context.Context, tenantID, staffUserID string, date time.Time) (scheduling.Request, error) {
	bh, err := s.tenants.GetBusinessHours(ctx, tenantID)
	if err != nil {
		return scheduling.Request{}, apperrors.MapError(err)
	}
	cal, err := sla.NewCalendar(*bh)
	if err != nil {
		return scheduling.Request{}, apperrors.NewInternalError(err)
	}
	hours, err := s.appointments.GetWorkingHours(ctx, tenantID, staffUserID)
	if err != nil {
		return scheduling.Request{}, apperrors.MapError(err)
	}
	settings, err := s.appointments.GetSettings(ctx, tenantID)
	if err != nil {
		return scheduling.Request{}, apperrors.MapError(err)
	}
	return scheduling.Request{
		Date:       date,
		Calendar:   cal,
		StaffHours: hours,
		Settings:   *settings,
		Now:        s.now().UTC(),
	}, nil
}

func (s *AppointmentService) buffer(req scheduling.Request) time.Duration {
	return time.Duration(req.Settings.BufferMinutes) * time.Minute
}

func (s *AppointmentService) transition(ctx context.Context, actor domain.Actor, id string, status domain.AppointmentStatus) (*domain.Appointment, error) {
	appt, err := s.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentScheduled {
		return nil, apperrors.NewConflict("appointment is not scheduled", map[string]any{"status": appt.Status})
	}
	appt.Status = status
	if status == domain.AppointmentCancelled {
		now := s.now().UTC()
		appt.CancelledAt = &now
	}
	appt.UpdatedBy = actor.ID
	if err := s.appointments.UpdateStatus(ctx, appt); err != nil {
		return nil, notFound(err, "appointment", id)
	}
	return appt, nil
}

func (s *AppointmentService) checkReferences(ctx context.Context, appt *domain.Appointment) error {
	if _, err := s.activeStaff(ctx, appt.TenantID, appt.StaffUserID); err != nil {
		return err
	}
	if _, err := s.contacts.GetByID(ctx, appt.TenantID, appt.ContactID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewFieldErrors(map[string]string{"contact_id": "unknown contact"})
		}
		return apperrors.MapError(err)
	}
	if appt.TicketID != nil {
		if _, err := s.tickets.GetByID(ctx, appt.TenantID, *appt.TicketID); err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewFieldErrors(map[string]string{"ticket_id": "unknown ticket"})
			}
			return apperrors.MapError(err)
		}
	}
	return nil
}

func (s *AppointmentService) staff(ctx context.Context, tenantID, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return user, nil
}

func (s *AppointmentService) activeStaff(ctx context.Context, tenantID, userID string) (*domain.User, error) {
	user, err := s.staff(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.NewConflict("staff member is inactive", map[string]any{"user_id": userID})
	}
	return user, nil
}

func (s *AppointmentService) publish(ctx context.Context, actor domain.Actor, eventType events.EventType, appt *domain.Appointment) {
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:      eventType,
		TenantID:  appt.TenantID,
		SubjectID: appt.ID,
		Actor:     actor,
		Payload: events.AppointmentPayload{
			StaffUserID: appt.StaffUserID,
			ContactID:   appt.ContactID,
			Title:       appt.Title,
			StartsAt:    appt.StartsAt,
			EndsAt:      appt.EndsAt,
		},
	})
}

func validateWindow(fields map[string]string, start, end time.Time) {
	if start.IsZero() {
		fields["starts_at"] = "is required"
	}
	if end.IsZero() {
		fields["ends_at"] = "is required"
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		fields["ends_at"] = "must be after starts_at"
	}
}

// normalizeWorkingHours validates clock values and rejects overlapping windows on a weekday.
func normalizeWorkingHours(userID string, hours []domain.StaffWorkingHours) ([]domain.StaffWorkingHours, error) {
	type window struct {
		start, end time.Duration
	}
	fields := map[string]string{}
	byDay := map[time.Weekday][]window{}
	out := make([]domain.StaffWorkingHours, 0, len(hours))
	for i, h := range hours {
		key := fmt.Sprintf("hours[%d]", i)
		if h.Weekday < time.Sunday || h.Weekday > time.Saturday {
			fields[key+".weekday"] = "must be between 0 (Sunday) and 6 (Saturday)"
			continue
		}
		start, err := sla.ParseClock(h.Start)
		if err != nil {
			fields[key+".start"] = "must be HH:MM"
			continue
		}
		end, err := sla.ParseClock(h.End)
		if err != nil {
			fields[key+".end"] = "must be HH:MM"
			continue
		}
		if end <= start {
			fields[key+".end"] = "must be after start"
			continue
		}
		for _, w := range byDay[h.Weekday] {
			if start < w.end && w.start < end {
				fields[key] = "overlaps another window on the same day"
			}
		}
		byDay[h.Weekday] = append(byDay[h.Weekday], window{start, end})
		out = append(out, domain.StaffWorkingHours{UserID: userID, Weekday: h.Weekday, Start: h.Start, End: h.End})
	}
	if err := fieldErrors(fields); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weekday != out[j].Weekday {
			return out[i].Weekday < out[j].Weekday
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}
