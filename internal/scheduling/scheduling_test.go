package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// 2026-03-02 is a Monday.
func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func iv(sh, sm, eh, em int) Interval {
	return Interval{Start: at(sh, sm), End: at(eh, em)}
}

func TestNormalize_MergesAndSorts(t *testing.T) {
	got := Normalize([]Interval{iv(12, 0, 13, 0), iv(9, 0, 10, 0), iv(9, 30, 11, 0), iv(11, 0, 11, 30), iv(14, 0, 14, 0)})
	assert.Equal(t, []Interval{iv(9, 0, 11, 30), iv(12, 0, 13, 0)}, got)
}

func TestIntersect(t *testing.T) {
	a := []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)}
	b := []Interval{iv(10, 0, 14, 0)}
	assert.Equal(t, []Interval{iv(10, 0, 12, 0), iv(13, 0, 14, 0)}, Intersect(a, b))
	assert.Empty(t, Intersect(a, nil))
}

func TestSubtract(t *testing.T) {
	base := []Interval{iv(9, 0, 17, 0)}
	cut := []Interval{iv(10, 0, 11, 0), iv(8, 0, 9, 30), iv(16, 0, 18, 0)}
	assert.Equal(t, []Interval{iv(9, 30, 10, 0), iv(11, 0, 16, 0)}, Subtract(base, cut))

	assert.Empty(t, Subtract(base, []Interval{iv(8, 0, 18, 0)}))
	assert.Equal(t, base, Subtract(base, nil))
}

func TestSlots(t *testing.T) {
	free := []Interval{iv(9, 0, 10, 45)}
	got := Slots(free, 30*time.Minute, at(0, 0))
	assert.Equal(t, []Interval{iv(9, 0, 9, 30), iv(9, 30, 10, 0), iv(10, 0, 10, 30)}, got)

	got = Slots(free, 30*time.Minute, at(9, 10))
	assert.Equal(t, []Interval{iv(9, 30, 10, 0), iv(10, 0, 10, 30)}, got)

	assert.Nil(t, Slots(free, 0, at(0, 0)))
}

func TestFits(t *testing.T) {
	free := []Interval{iv(9, 0, 10, 0), iv(11, 0, 12, 0)}
	assert.True(t, Fits(free, iv(9, 0, 10, 0)))
	assert.False(t, Fits(free, iv(9, 30, 11, 30)))
	assert.False(t, Fits(free, iv(9, 0, 9, 0)))
}

func request() Request {
	return Request{
		Date:     at(0, 0),
		Calendar: sla.MustCalendar(domain.DefaultBusinessHours("t")),
		Settings: domain.AppointmentSettings{TenantID: "t", SlotMinutes: 60},
		Now:      at(0, 0),
	}
}

func TestAvailability_BusinessHoursOnly(t *testing.T) {
	slots := Availability(request())
	require.Len(t, slots, 8)
	assert.Equal(t, iv(9, 0, 10, 0), slots[0])
	assert.Equal(t, iv(16, 0, 17, 0), slots[7])
}

func TestAvailability_IntersectsStaffHours(t *testing.T) {
	r := request()
	r.StaffHours = []domain.StaffWorkingHours{
		{Weekday: time.Monday, Start: "07:00", End: "11:00"},
		{Weekday: time.Tuesday, Start: "09:00", End: "17:00"},
	}
	assert.Equal(t, []Interval{iv(9, 0, 10, 0), iv(10, 0, 11, 0)}, Availability(r))

	r.StaffHours = []domain.StaffWorkingHours{{Weekday: time.Friday, Start: "09:00", End: "17:00"}}
	assert.Empty(t, Availability(r))
}

func TestAvailability_BookingsWithBuffer(t *testing.T) {
	r := request()
	r.Settings.SlotMinutes = 30
	r.Settings.BufferMinutes = 15
	r.Bookings = []domain.Appointment{
		{StartsAt: at(10, 0), EndsAt: at(11, 0), Status: domain.AppointmentScheduled},
		{StartsAt: at(13, 0), EndsAt: at(14, 0), Status: domain.AppointmentCancelled},
	}
	free := FreeIntervals(r)
	assert.Equal(t, []Interval{iv(9, 0, 9, 45), iv(11, 15, 17, 0)}, free)

	slots := Availability(r)
	assert.Equal(t, iv(9, 0, 9, 30), slots[0])
	assert.Equal(t, iv(11, 15, 11, 45), slots[1])
}

func TestAvailability_MinimumNotice(t *testing.T) {
	r := request()
	r.Now = at(12, 20)
	r.Settings.MinNoticeMinutes = 60
	slots := Availability(r)
	require.NotEmpty(t, slots)
	assert.Equal(t, iv(14, 0, 15, 0), slots[0])
}

func TestAvailability_HolidayAndWeekend(t *testing.T) {
	r := request()
	r.Date = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, Availability(r))

	bh := domain.DefaultBusinessHours("t")
	bh.Holidays = []domain.Holiday{{Name: "Closed", Date: at(0, 0)}}
	r = request()
	r.Calendar = sla.MustCalendar(bh)
	assert.Empty(t, Availability(r))
}
