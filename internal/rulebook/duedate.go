package rulebook

import (
	"fmt"
	"strings"
	"time"
)

// DueRuleKind enumerates the supported due date shapes.
type DueRuleKind string

const (
	DueDayOfMonth         DueRuleKind = "day_of_month"
	DueProfileDayOfMonth  DueRuleKind = "profile_day_of_month"
	DueBusinessDayOfMonth DueRuleKind = "business_day_of_month"
	DueDaysAfterPeriodEnd DueRuleKind = "days_after_period_end"
	DueFixedDate          DueRuleKind = "fixed_date"
)

// ShiftPolicy controls what happens when the computed date lands on a
// weekend or holiday.
type ShiftPolicy string

const (
	ShiftNone ShiftPolicy = "none"
	ShiftNext ShiftPolicy = "next_business_day"
	ShiftPrev ShiftPolicy = "prev_business_day"
)

// DueRule is the closed due date configuration of a rule. Exactly the
// fields of the declared Kind are meaningful; Validate enforces that the
// shape is coherent before it is stored.
type DueRule struct {
	Kind DueRuleKind `json:"kind"`

	// day_of_month, business_day_of_month, fixed_date
	Day int `json:"day,omitempty"`
	// day_of_month, profile_day_of_month, business_day_of_month: months
	// after the period end the target month lies (nil = shape default).
	MonthOffset *int `json:"month_offset,omitempty"`
	// profile_day_of_month
	ProfileField string `json:"profile_field,omitempty"`
	// days_after_period_end
	Days int `json:"days,omitempty"`
	// fixed_date
	Month time.Month `json:"month,omitempty"`

	Shift ShiftPolicy `json:"shift_if_non_business_day,omitempty"`
}

// Validate rejects malformed due rules at the store boundary.
func (d DueRule) Validate() error {
	switch d.Shift {
	case "", ShiftNone, ShiftNext, ShiftPrev:
	default:
		return fmt.Errorf("unknown shift policy %q", d.Shift)
	}
	switch d.Kind {
	case DueDayOfMonth, DueBusinessDayOfMonth:
		if d.Day < 1 || d.Day > 31 {
			return fmt.Errorf("%s requires day in 1..31, got %d", d.Kind, d.Day)
		}
	case DueProfileDayOfMonth:
		// Empty profile_field means "by period half": the advance day for
		// the first half-month, the final-pay day for the second.
		switch d.ProfileField {
		case "", ProfileFieldPayrollAdvanceDay, ProfileFieldPayrollFinalDay:
		default:
			return fmt.Errorf("profile_day_of_month requires profile_field %q or %q",
				ProfileFieldPayrollAdvanceDay, ProfileFieldPayrollFinalDay)
		}
	case DueDaysAfterPeriodEnd:
		if d.Days < 0 {
			return fmt.Errorf("days_after_period_end requires days >= 0, got %d", d.Days)
		}
	case DueFixedDate:
		if d.Month < time.January || d.Month > time.December {
			return fmt.Errorf("fixed_date requires month in 1..12, got %d", d.Month)
		}
		if d.Day < 1 || d.Day > 31 {
			return fmt.Errorf("fixed_date requires day in 1..31, got %d", d.Day)
		}
	default:
		return fmt.Errorf("unknown due rule kind %q", d.Kind)
	}
	return nil
}

// monthOffset applies the shape default when the rule leaves it unset:
// day-of-month shapes target the month following the period, the payroll
// shape targets the period month itself.
func (d DueRule) monthOffset() int {
	if d.MonthOffset != nil {
		return *d.MonthOffset
	}
	if d.Kind == DueProfileDayOfMonth {
		return 0
	}
	return 1
}

// ResolveDueDate computes the concrete due date of one period under one
// rule. Deterministic and pure: same inputs, same date.
func ResolveDueDate(rule DueRule, period Period, profile Profile, cal Calendar) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}

	var due time.Time
	switch rule.Kind {
	case DueDayOfMonth:
		due = dayInMonth(targetMonth(period, rule.monthOffset()), rule.Day)
	case DueProfileDayOfMonth:
		field := rule.ProfileField
		offset := rule.monthOffset()
		if field == "" {
			switch {
			case strings.HasSuffix(period.Key, "-A"):
				field = ProfileFieldPayrollAdvanceDay
			case strings.HasSuffix(period.Key, "-B"):
				field = ProfileFieldPayrollFinalDay
				// Final salary for the second half is paid the following
				// month unless the rule says otherwise.
				if rule.MonthOffset == nil {
					offset = 1
				}
			default:
				return time.Time{}, fmt.Errorf("profile_day_of_month needs profile_field for period %s", period.Key)
			}
		}
		day, ok := profile.PayrollDay(field)
		if !ok {
			return time.Time{}, fmt.Errorf("client has no %s configured", field)
		}
		due = dayInMonth(targetMonth(period, offset), day)
	case DueBusinessDayOfMonth:
		target := targetMonth(period, rule.monthOffset())
		due = cal.NthBusinessDay(target.Year(), target.Month(), rule.Day)
	case DueDaysAfterPeriodEnd:
		due = period.End.AddDate(0, 0, rule.Days)
	case DueFixedDate:
		due = dayInMonth(time.Date(period.Start.Year(), rule.Month, 1, 0, 0, 0, 0, time.UTC), rule.Day)
	}

	switch rule.Shift {
	case ShiftNext:
		due = cal.NextBusinessDay(due)
	case ShiftPrev:
		due = cal.PrevBusinessDay(due)
	}
	return due, nil
}

// targetMonth returns the first day of the month offset months after the
// month the period ends in.
func targetMonth(period Period, offset int) time.Time {
	return startOfMonth(period.End).AddDate(0, offset, 0)
}

// dayInMonth clamps day to the month length, so "day 31" of April resolves
// to April 30 instead of rolling into May.
func dayInMonth(firstOfMonth time.Time, day int) time.Time {
	last := endOfMonth(firstOfMonth).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, time.UTC)
}
