package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type fakeAppointments struct {
	repository.AppointmentRepository
	items    map[string]*domain.Appointment
	hours    map[string][]domain.StaffWorkingHours
	settings *domain.AppointmentSettings
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{items: map[string]*domain.Appointment{}, hours: map[string][]domain.StaffWorkingHours{}}
}

func (f *fakeAppointments) Save(_ context.Context, appt *domain.Appointment, from, to time.Time, check repository.BookingCheck) error {
	var existing []domain.Appointment
	for _, a := range f.items {
		if a.ID == appt.ID || a.TenantID != appt.TenantID || a.StaffUserID != appt.StaffUserID {
			continue
		}
		if a.Status == domain.AppointmentCancelled || !a.StartsAt.Before(to) || !from.Before(a.EndsAt) {
			continue
		}
		existing = append(existing, *a)
	}
	if err := check(existing); err != nil {
		return err
	}
	if appt.ID == "" {
		appt.ID = fmt.Sprintf("appt-%d", len(f.items)+1)
	}
	cp := *appt
	f.items[appt.ID] = &cp
	return nil
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, appt *domain.Appointment) error {
	cp := *appt
	f.items[appt.ID] = &cp
	return nil
}

func (f *fakeAppointments) GetByID(_ context.Context, tenantID, id string) (*domain.Appointment, error) {
	a, ok := f.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) ListForStaff(_ context.Context, tenantID, staffUserID string, from, to time.Time) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range f.items {
		if a.TenantID == tenantID && a.StaffUserID == staffUserID && a.StartsAt.Before(to) && from.Before(a.EndsAt) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) GetWorkingHours(_ context.Context, _, userID string) ([]domain.StaffWorkingHours, error) {
	return f.hours[userID], nil
}

func (f *fakeAppointments) ReplaceWorkingHours(_ context.Context, _, userID string, hours []domain.StaffWorkingHours) error {
	f.hours[userID] = hours
	return nil
}

func (f *fakeAppointments) GetSettings(_ context.Context, tenantID string) (*domain.AppointmentSettings, error) {
	if f.settings == nil {
		s := domain.DefaultAppointmentSettings(tenantID)
		return &s, nil
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeAppointments) SaveSettings(_ context.Context, s *domain.AppointmentSettings) error {
	cp := *s
	f.settings = &cp
	return nil
}

// testNow is a Monday; tuesday returns a wall time on the following day.
func tuesday(h, m int) time.Time {
	return time.Date(2026, 3, 3, h, m, 0, 0, time.UTC)
}

type appointmentFixture struct {
	repo       *fakeAppointments
	dispatcher *recordingDispatcher
	svc        *AppointmentService
	actor      domain.Actor
}

func newAppointmentFixture() *appointmentFixture {
	bh := domain.DefaultBusinessHours(tenantA)
	f := &appointmentFixture{
		repo:       newFakeAppointments(),
		dispatcher: &recordingDispatcher{},
		actor:      userActor(tenantA, "agent-1"),
	}
	f.svc = NewAppointmentService(AppointmentDependencies{
		AppointmentRepo: f.repo,
		UserRepo: newFakeUsers(
			domain.User{ID: "agent-1", TenantID: tenantA, IsActive: true},
			domain.User{ID: "gone", TenantID: tenantA, IsActive: false},
		),
		ContactRepo: newFakeContacts(domain.Contact{ID: "contact-1", TenantID: tenantA, FirstName: "Ada"}),
		TicketRepo:  newFakeTickets(),
		TenantRepo:  &fakeTenants{hours: map[string]*domain.BusinessHours{tenantA: &bh}},
		Dispatcher:  f.dispatcher,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *appointmentFixture) book(start, end time.Time) (*domain.Appointment, error) {
	return f.svc.Book(context.Background(), f.actor, BookAppointmentInput{
		StaffUserID: "agent-1",
		ContactID:   "contact-1",
		Title:       "Onboarding call",
		StartsAt:    start,
		EndsAt:      end,
	})
}

func conflictReason(t *testing.T, err error) any {
	t.Helper()
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	require.Equal(t, "CONFLICT", de.Code)
	return de.Details["reason"]
}

func TestGetAvailability_SubtractsBookings(t *testing.T) {
	f := newAppointmentFixture()

	free, err := f.svc.GetAvailability(context.Background(), f.actor, "agent-1", tuesday(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", free.Date)
	assert.Equal(t, "UTC", free.TimeZone)
	require.Len(t, free.Slots, 16)
	assert.Equal(t, tuesday(9, 0), free.Slots[0].Start)

	_, err = f.book(tuesday(10, 0), tuesday(11, 0))
	require.NoError(t, err)

	free, err = f.svc.GetAvailability(context.Background(), f.actor, "agent-1", tuesday(15, 0))
	require.NoError(t, err)
	assert.Len(t, free.Slots, 14)
	for _, slot := range free.Slots {
		assert.False(t, slot.Start.Before(tuesday(11, 0)) && slot.End.After(tuesday(10, 0)))
	}
}

func TestGetAvailability_StaffHoursNarrowBusinessHours(t *testing.T) {
	f := newAppointmentFixture()
	_, err := f.svc.SetWorkingHours(context.Background(), f.actor, "agent-1", []domain.StaffWorkingHours{
		{Weekday: time.Tuesday, Start: "13:00", End: "15:00"},
	})
	require.NoError(t, err)

	free, err := f.svc.GetAvailability(context.Background(), f.actor, "agent-1", tuesday(0, 0))
	require.NoError(t, err)
	require.Len(t, free.Slots, 4)
	assert.Equal(t, tuesday(13, 0), free.Slots[0].Start)
}

func TestBook_RejectsOverlap(t *testing.T) {
	f := newAppointmentFixture()

	first, err := f.book(tuesday(10, 0), tuesday(11, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentScheduled, first.Status)
	assert.Equal(t, []events.EventType{events.EventAppointmentBooked}, f.dispatcher.types())

	_, err = f.book(tuesday(10, 30), tuesday(11, 30))
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, "agent-1", de.Details["staff_user_id"])

	_, err = f.svc.Cancel(context.Background(), f.actor, first.ID)
	require.NoError(t, err)
	_, err = f.book(tuesday(10, 30), tuesday(11, 30))
	assert.NoError(t, err)
}

func TestBook_EnforcesMinimumNotice(t *testing.T) {
	f := newAppointmentFixture()
	_, err := f.svc.UpdateSettings(context.Background(), f.actor, domain.AppointmentSettings{SlotMinutes: 30, MinNoticeMinutes: 120})
	require.NoError(t, err)

	_, err = f.book(testNow.Add(time.Hour), testNow.Add(90*time.Minute))
	assert.Equal(t, "minimum notice not met", conflictReason(t, err))

	_, err = f.book(testNow.Add(3*time.Hour), testNow.Add(210*time.Minute))
	assert.NoError(t, err)
}

func TestBook_OutsideBusinessHoursConflicts(t *testing.T) {
	f := newAppointmentFixture()

	_, err := f.book(tuesday(18, 0), tuesday(18, 30))
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	_, err = f.book(tuesday(16, 30), time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, "appointment must start and end on the same day", conflictReason(t, err))
}

func TestBook_ValidatesInput(t *testing.T) {
	f := newAppointmentFixture()

	_, err := f.svc.Book(context.Background(), f.actor, BookAppointmentInput{StartsAt: tuesday(11, 0), EndsAt: tuesday(10, 0)})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "staff_user_id")
	assert.Contains(t, fields, "contact_id")
	assert.Contains(t, fields, "title")
	assert.Equal(t, "must be after starts_at", fields["ends_at"])

	_, err = f.svc.Book(context.Background(), f.actor, BookAppointmentInput{
		StaffUserID: "gone", ContactID: "contact-1", Title: "x",
		StartsAt: tuesday(10, 0), EndsAt: tuesday(10, 30),
	})
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestReschedule_MovesAndFreesOldSlot(t *testing.T) {
	f := newAppointmentFixture()
	appt, err := f.book(tuesday(10, 0), tuesday(10, 30))
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(context.Background(), f.actor, appt.ID, RescheduleInput{StartsAt: tuesday(10, 15), EndsAt: tuesday(10, 45)})
	require.NoError(t, err)
	assert.Equal(t, tuesday(10, 15), moved.StartsAt)

	_, err = f.svc.Complete(context.Background(), f.actor, appt.ID)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(context.Background(), f.actor, appt.ID, RescheduleInput{StartsAt: tuesday(12, 0), EndsAt: tuesday(12, 30)})
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
	_, err = f.svc.Cancel(context.Background(), f.actor, appt.ID)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestSetWorkingHours_RejectsOverlaps(t *testing.T) {
	f := newAppointmentFixture()

	_, err := f.svc.SetWorkingHours(context.Background(), f.actor, "agent-1", []domain.StaffWorkingHours{
		{Weekday: time.Monday, Start: "09:00", End: "12:00"},
		{Weekday: time.Monday, Start: "11:00", End: "14:00"},
		{Weekday: time.Friday, Start: "9am", End: "10:00"},
	})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "hours[1]")
	assert.Contains(t, fields, "hours[2].start")
}

func TestUpdateSettings_Validates(t *testing.T) {
	f := newAppointmentFixture()

	_, err := f.svc.UpdateSettings(context.Background(), f.actor, domain.AppointmentSettings{SlotMinutes: 1, BufferMinutes: -5})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "slot_minutes")
	assert.Contains(t, fields, "buffer_minutes")
}
