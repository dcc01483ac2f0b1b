package sla

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rickar/cal/v2"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// maxScanDays bounds the day-by-day walk when a schedule is almost always closed.
const maxScanDays = 3 * 366

type window struct {
	open  bool
	start time.Duration
	end   time.Duration
}

// Calendar answers business-time questions for one tenant schedule.
type Calendar struct {
	loc      *time.Location
	days     [7]window
	holidays *cal.BusinessCalendar
	anyOpen  bool
}

// NewCalendar compiles business hours into a Calendar.
func NewCalendar(bh domain.BusinessHours) (*Calendar, error) {
	c := &Calendar{
		loc:      bh.Location(),
		holidays: cal.NewBusinessCalendar(),
	}
	for day, sched := range bh.Days {
		if !sched.Open {
			continue
		}
		start, err := ParseClock(sched.Start)
		if err != nil {
			return nil, fmt.Errorf("%s start: %w", time.Weekday(day), err)
		}
		end, err := ParseClock(sched.End)
		if err != nil {
			return nil, fmt.Errorf("%s end: %w", time.Weekday(day), err)
		}
		if end <= start {
			return nil, fmt.Errorf("%s: end %s is not after start %s", time.Weekday(day), sched.End, sched.Start)
		}
		c.days[day] = window{open: true, start: start, end: end}
		c.anyOpen = true
	}
	for i := range bh.Holidays {
		h := bh.Holidays[i]
		year := h.Date.Year()
		c.holidays.AddHoliday(&cal.Holiday{
			Name:      h.Name,
			Month:     h.Date.Month(),
			Day:       h.Date.Day(),
			StartYear: year,
			EndYear:   year,
			Func:      cal.CalcDayOfMonth,
		})
	}
	return c, nil
}

// MustCalendar is NewCalendar for schedules already validated on write.
func MustCalendar(bh domain.BusinessHours) *Calendar {
	c, err := NewCalendar(bh)
	if err != nil {
		c, _ = NewCalendar(domain.DefaultBusinessHours(bh.TenantID))
	}
	return c
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid time %q", v)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Location is the calendar time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsHoliday reports whether the local date of t is a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	actual, observed, _ := c.holidays.IsHoliday(t.In(c.loc))
	return actual || observed
}

// Window returns the open interval of the local day containing t, if any.
func (c *Calendar) Window(t time.Time) (start, end time.Time, ok bool) {
	local := t.In(c.loc)
	w := c.days[local.Weekday()]
	if !w.open || c.IsHoliday(local) {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	return clockOn(midnight, w.start), clockOn(midnight, w.end), true
}

// AddBusinessMinutes advances start by minutes counted only inside open windows.
func (c *Calendar) AddBusinessMinutes(start time.Time, minutes int) time.Time {
	if minutes <= 0 {
		return start
	}
	if !c.anyOpen {
		return start.Add(time.Duration(minutes) * time.Minute)
	}
	remaining := time.Duration(minutes) * time.Minute
	cursor := start.In(c.loc)
	for i := 0; i < maxScanDays; i++ {
		if ws, we, ok := c.Window(cursor); ok {
			if cursor.Before(ws) {
				cursor = ws
			}
			if cursor.Before(we) {
				avail := we.Sub(cursor)
				if remaining <= avail {
					return cursor.Add(remaining).UTC()
				}
				remaining -= avail
			}
		}
		cursor = nextMidnight(cursor, c.loc)
	}
	return start.Add(time.Duration(minutes) * time.Minute)
}

// BusinessDuration is the open time between from and to.
func (c *Calendar) BusinessDuration(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}
	if !c.anyOpen {
		return to.Sub(from)
	}
	var total time.Duration
	cursor := from.In(c.loc)
	for i := 0; i < maxScanDays && cursor.Before(to); i++ {
		if ws, we, ok := c.Window(cursor); ok {
			lo := maxTime(ws, cursor)
			hi := minTime(we, to)
			if hi.After(lo) {
				total += hi.Sub(lo)
			}
		}
		cursor = nextMidnight(cursor, c.loc)
	}
	return total
}

func clockOn(midnight time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	y, mo, d := midnight.Date()
	return time.Date(y, mo, d, h, m, 0, 0, midnight.Location())
}

func nextMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
