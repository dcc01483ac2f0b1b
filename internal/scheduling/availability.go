package scheduling

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// Request gathers what is needed to compute one staff member's availability on one date.
type Request struct {
	// Date is interpreted as a calendar day in the business-hours time zone.
	Date       time.Time
	Calendar   *sla.Calendar
	StaffHours []domain.StaffWorkingHours
	Bookings   []domain.Appointment
	Settings   domain.AppointmentSettings
	Now        time.Time
}

// Day returns [midnight, next midnight) of the request date in the calendar zone.
func (r Request) Day() Interval {
	loc := r.Calendar.Location()
	y, m, d := r.Date.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: time.Date(y, m, d+1, 0, 0, 0, 0, loc)}
}

// FreeIntervals is business hours intersected with the staff working hours,
// minus buffered bookings. Holidays have no business hours.
func FreeIntervals(r Request) []Interval {
	day := r.Day()
	ws, we, ok := r.Calendar.Window(day.Start)
	if !ok {
		return nil
	}
	open := []Interval{{Start: ws, End: we}}

	if staff := staffIntervals(day, r.StaffHours); staff != nil {
		open = Intersect(open, staff)
	}

	buffer := time.Duration(r.Settings.BufferMinutes) * time.Minute
	busy := make([]Interval, 0, len(r.Bookings))
	for _, b := range r.Bookings {
		if b.Status == domain.AppointmentCancelled {
			continue
		}
		busy = append(busy, Interval{Start: b.StartsAt, End: b.EndsAt}.Widen(buffer))
	}
	return Subtract(open, busy)
}

// Availability lists bookable slots for the request.
func Availability(r Request) []Interval {
	slot := time.Duration(r.Settings.SlotMinutes) * time.Minute
	if slot <= 0 {
		slot = time.Duration(domain.DefaultAppointmentSettings(r.Settings.TenantID).SlotMinutes) * time.Minute
	}
	return Slots(FreeIntervals(r), slot, EarliestStart(r.Settings, r.Now))
}

// EarliestStart is now plus the minimum booking notice.
func EarliestStart(s domain.AppointmentSettings, now time.Time) time.Time {
	return now.Add(time.Duration(s.MinNoticeMinutes) * time.Minute)
}

// staffIntervals returns nil when the staff member has no configured hours,
// meaning they follow business hours.
func staffIntervals(day Interval, hours []domain.StaffWorkingHours) []Interval {
	if len(hours) == 0 {
		return nil
	}
	weekday := day.Start.Weekday()
	out := []Interval{}
	for _, h := range hours {
		if h.Weekday != weekday {
			continue
		}
		start, err := sla.ParseClock(h.Start)
		if err != nil {
			continue
		}
		end, err := sla.ParseClock(h.End)
		if err != nil || end <= start {
			continue
		}
		out = append(out, Interval{Start: atOffset(day.Start, start), End: atOffset(day.Start, end)})
	}
	return out
}

func atOffset(midnight time.Time, offset time.Duration) time.Time {
	y, m, d := midnight.Date()
	h := int(offset / time.Hour)
	mins := int((offset % time.Hour) / time.Minute)
	return time.Date(y, m, d, h, mins, 0, 0, midnight.Location())
}
