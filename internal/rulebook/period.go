package rulebook

import (
	"fmt"
	"time"
)

// RecurrenceKind enumerates how often an obligation recurs.
type RecurrenceKind string

const (
	RecurrenceMonthly     RecurrenceKind = "monthly"
	RecurrenceQuarterly   RecurrenceKind = "quarterly"
	RecurrenceAnnual      RecurrenceKind = "annual"
	RecurrenceSemiMonthly RecurrenceKind = "semi_monthly"
)

// Recurrence is the closed recurrence configuration of a rule.
type Recurrence struct {
	Kind RecurrenceKind `json:"kind"`
	// EventTrigger optionally names a client lifecycle event the obligation
	// is tied to (informational; period expansion is purely calendar based).
	EventTrigger string `json:"event_trigger,omitempty"`
}

// Validate rejects unknown recurrence kinds at the store boundary.
func (r Recurrence) Validate() error {
	switch r.Kind {
	case RecurrenceMonthly, RecurrenceQuarterly, RecurrenceAnnual, RecurrenceSemiMonthly:
		return nil
	default:
		return fmt.Errorf("unknown recurrence kind %q", r.Kind)
	}
}

// Period is one obligation window. Start and End are inclusive dates; Key
// is the stable identifier used in the generation ledger ("2026-03",
// "2026-Q1", "2026", "2026-03-A").
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// ExpandPeriods returns the chronological, non-overlapping periods of the
// given recurrence whose windows intersect [from, to]. Semi-monthly months
// split into fixed calendar halves: 1–15 (A) and 16–end of month (B); the
// client's payroll days only influence due date resolution.
func ExpandPeriods(rec Recurrence, from, to time.Time) ([]Period, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("period range end %s before start %s", to.Format(isoDate), from.Format(isoDate))
	}

	var periods []Period
	switch rec.Kind {
	case RecurrenceMonthly:
		for cur := startOfMonth(from); !cur.After(to); cur = cur.AddDate(0, 1, 0) {
			periods = append(periods, Period{
				Key:   cur.Format("2006-01"),
				Start: cur,
				End:   endOfMonth(cur),
			})
		}
	case RecurrenceQuarterly:
		for cur := startOfQuarter(from); !cur.After(to); cur = cur.AddDate(0, 3, 0) {
			q := (int(cur.Month())-1)/3 + 1
			periods = append(periods, Period{
				Key:   fmt.Sprintf("%d-Q%d", cur.Year(), q),
				Start: cur,
				End:   endOfMonth(cur.AddDate(0, 2, 0)),
			})
		}
	case RecurrenceAnnual:
		for year := from.Year(); ; year++ {
			start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			if start.After(to) {
				break
			}
			periods = append(periods, Period{
				Key:   fmt.Sprintf("%d", year),
				Start: start,
				End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
			})
		}
	case RecurrenceSemiMonthly:
		for cur := startOfMonth(from); !cur.After(to); cur = cur.AddDate(0, 1, 0) {
			first := Period{
				Key:   cur.Format("2006-01") + "-A",
				Start: cur,
				End:   cur.AddDate(0, 0, 14),
			}
			second := Period{
				Key:   cur.Format("2006-01") + "-B",
				Start: cur.AddDate(0, 0, 15),
				End:   endOfMonth(cur),
			}
			for _, p := range []Period{first, second} {
				if !p.End.Before(from) && !p.Start.After(to) {
					periods = append(periods, p)
				}
			}
		}
	}
	return periods, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, -1)
}

func startOfQuarter(t time.Time) time.Time {
	qm := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
}
