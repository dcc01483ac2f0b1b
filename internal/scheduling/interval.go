// Package scheduling computes appointment availability with half-open time intervals.
package scheduling

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval has no duration.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Duration is End minus Start, or zero for empty intervals.
func (i Interval) Duration() time.Duration {
	if i.Empty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Contains reports whether o lies fully inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Overlaps reports whether the two intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Widen extends the interval by d on both sides.
func (i Interval) Widen(d time.Duration) Interval {
	return Interval{Start: i.Start.Add(-d), End: i.End.Add(d)}
}

// Normalize drops empty intervals, sorts by start and merges overlapping or touching ones.
func Normalize(in []Interval) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Start.Before(out[b].Start)
	})
	merged := out[:0]
	for _, iv := range out {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Intersect returns the instants covered by both sets.
func Intersect(a, b []Interval) []Interval {
	a, b = Normalize(a), Normalize(b)
	var out []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := later(a[i].Start, b[j].Start)
		hi := earlier(a[i].End, b[j].End)
		if hi.After(lo) {
			out = append(out, Interval{Start: lo, End: hi})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Subtract removes every instant in cut from base.
func Subtract(base, cut []Interval) []Interval {
	base, cut = Normalize(base), Normalize(cut)
	var out []Interval
	for _, b := range base {
		cursor := b.Start
		for _, c := range cut {
			if !c.End.After(cursor) {
				continue
			}
			if !c.Start.Before(b.End) {
				break
			}
			if c.Start.After(cursor) {
				out = append(out, Interval{Start: cursor, End: c.Start})
			}
			cursor = later(cursor, c.End)
			if !cursor.Before(b.End) {
				break
			}
		}
		if cursor.Before(b.End) {
			out = append(out, Interval{Start: cursor, End: b.End})
		}
	}
	return out
}

// Slots cuts free intervals into consecutive slots of length, each starting
// on a step boundary measured from its interval start and not before notBefore.
func Slots(free []Interval, length time.Duration, notBefore time.Time) []Interval {
	if length <= 0 {
		return nil
	}
	var out []Interval
	for _, iv := range Normalize(free) {
		start := iv.Start
		if notBefore.After(start) {
			steps := (notBefore.Sub(start) + length - 1) / length
			start = start.Add(steps * length)
		}
		for end := start.Add(length); !end.After(iv.End); end = start.Add(length) {
			out = append(out, Interval{Start: start, End: end})
			start = end
		}
	}
	return out
}

// Fits reports whether candidate lies inside a single free interval.
func Fits(free []Interval, candidate Interval) bool {
	if candidate.Empty() {
		return false
	}
	for _, iv := range Normalize(free) {
		if iv.Contains(candidate) {
			return true
		}
	}
	return false
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
