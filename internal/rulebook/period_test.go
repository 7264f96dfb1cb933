package rulebook_test

import (
	"testing"
	"time"

	"taxops/internal/rulebook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expand(t *testing.T, kind rulebook.RecurrenceKind, from, to time.Time) []rulebook.Period {
	t.Helper()
	periods, err := rulebook.ExpandPeriods(rulebook.Recurrence{Kind: kind}, from, to)
	require.NoError(t, err)
	return periods
}

func periodKeys(periods []rulebook.Period) []string {
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = p.Key
	}
	return keys
}

func TestExpandPeriods_Monthly(t *testing.T) {
	periods := expand(t, rulebook.RecurrenceMonthly, date(2026, time.January, 1), date(2026, time.March, 31))

	assert.Equal(t, []string{"2026-01", "2026-02", "2026-03"}, periodKeys(periods))
	assert.Equal(t, date(2026, time.February, 1), periods[1].Start)
	// 2026 is not a leap year
	assert.Equal(t, date(2026, time.February, 28), periods[1].End)
}

func TestExpandPeriods_LeapFebruary(t *testing.T) {
	periods := expand(t, rulebook.RecurrenceMonthly, date(2028, time.February, 10), date(2028, time.February, 20))

	require.Len(t, periods, 1)
	assert.Equal(t, "2028-02", periods[0].Key)
	assert.Equal(t, date(2028, time.February, 29), periods[0].End)
}

func TestExpandPeriods_MidWindowIncludesContainingPeriod(t *testing.T) {
	// A window that starts mid-month still yields the month it starts in.
	periods := expand(t, rulebook.RecurrenceMonthly, date(2026, time.January, 20), date(2026, time.February, 5))
	assert.Equal(t, []string{"2026-01", "2026-02"}, periodKeys(periods))
}

func TestExpandPeriods_Quarterly(t *testing.T) {
	periods := expand(t, rulebook.RecurrenceQuarterly, date(2026, time.February, 1), date(2026, time.August, 1))

	assert.Equal(t, []string{"2026-Q1", "2026-Q2", "2026-Q3"}, periodKeys(periods))
	assert.Equal(t, date(2026, time.January, 1), periods[0].Start)
	assert.Equal(t, date(2026, time.March, 31), periods[0].End)
	assert.Equal(t, date(2026, time.September, 30), periods[2].End)
}

func TestExpandPeriods_Annual(t *testing.T) {
	periods := expand(t, rulebook.RecurrenceAnnual, date(2025, time.November, 1), date(2026, time.February, 1))

	assert.Equal(t, []string{"2025", "2026"}, periodKeys(periods))
	assert.Equal(t, date(2025, time.January, 1), periods[0].Start)
	assert.Equal(t, date(2025, time.December, 31), periods[0].End)
}

func TestExpandPeriods_SemiMonthly(t *testing.T) {
	periods := expand(t, rulebook.RecurrenceSemiMonthly, date(2026, time.February, 1), date(2026, time.February, 28))

	require.Equal(t, []string{"2026-02-A", "2026-02-B"}, periodKeys(periods))
	assert.Equal(t, date(2026, time.February, 1), periods[0].Start)
	assert.Equal(t, date(2026, time.February, 15), periods[0].End)
	assert.Equal(t, date(2026, time.February, 16), periods[1].Start)
	assert.Equal(t, date(2026, time.February, 28), periods[1].End)
}

func TestExpandPeriods_SemiMonthlyWindowFilter(t *testing.T) {
	// Second half only: the first half ends before the window opens.
	periods := expand(t, rulebook.RecurrenceSemiMonthly, date(2026, time.March, 16), date(2026, time.March, 31))
	assert.Equal(t, []string{"2026-03-B"}, periodKeys(periods))
}

func TestExpandPeriods_NonOverlappingAndChronological(t *testing.T) {
	for _, kind := range []rulebook.RecurrenceKind{
		rulebook.RecurrenceMonthly,
		rulebook.RecurrenceQuarterly,
		rulebook.RecurrenceAnnual,
		rulebook.RecurrenceSemiMonthly,
	} {
		periods := expand(t, kind, date(2026, time.January, 1), date(2026, time.December, 31))
		require.NotEmpty(t, periods, string(kind))
		for i := 1; i < len(periods); i++ {
			assert.True(t, periods[i].Start.After(periods[i-1].End),
				"%s: period %s overlaps %s", kind, periods[i].Key, periods[i-1].Key)
			assert.NotEqual(t, periods[i].Key, periods[i-1].Key)
		}
	}
}

func TestExpandPeriods_Invalid(t *testing.T) {
	_, err := rulebook.ExpandPeriods(rulebook.Recurrence{Kind: "weekly"}, date(2026, 1, 1), date(2026, 2, 1))
	assert.Error(t, err)

	_, err = rulebook.ExpandPeriods(rulebook.Recurrence{Kind: rulebook.RecurrenceMonthly}, date(2026, 2, 1), date(2026, 1, 1))
	assert.Error(t, err)
}
