// Package rulebook implements the task generation engine: condition
// matching, period expansion and due date resolution. Everything in this
// package is a pure function of its inputs (no HTTP, no database) so the
// scheduling rules stay trivially testable.
package rulebook

import "time"

const isoDate = "2006-01-02"

// Calendar answers business-day questions. Weekends are always
// non-business; holidays come from the caller (per-country calendars are
// maintained outside this service).
type Calendar struct {
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from a set of holiday dates.
func NewCalendar(holidays []time.Time) Calendar {
	m := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		m[h.Format(isoDate)] = struct{}{}
	}
	return Calendar{holidays: m}
}

// ParseHolidays parses ISO dates (YYYY-MM-DD) as supplied by the trigger
// payload.
func ParseHolidays(dates []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(isoDate, d)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// IsBusinessDay reports whether t is a weekday outside the holiday set.
func (c Calendar) IsBusinessDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[t.Format(isoDate)]
	return !holiday
}

// NextBusinessDay rolls t forward to the nearest business day (t itself if
// it already is one).
func (c Calendar) NextBusinessDay(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// PrevBusinessDay rolls t backward to the nearest business day.
func (c Calendar) PrevBusinessDay(t time.Time) time.Time {
	for !c.IsBusinessDay(t) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// NthBusinessDay returns the n-th business day (1-based) of the given
// month. If the month runs out of business days the last one is returned.
func (c Calendar) NthBusinessDay(year int, month time.Month, n int) time.Time {
	if n < 1 {
		n = 1
	}
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	count := 0
	var last time.Time
	for t.Month() == month {
		if c.IsBusinessDay(t) {
			count++
			last = t
			if count == n {
				return t
			}
		}
		t = t.AddDate(0, 0, 1)
	}
	return last
}
