package forecast

import "time"

// =============================================================================
// CALENDAR MONTH MATH
// =============================================================================

// Date truncates t to midnight UTC on its calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1)
}

// EndOfMonth returns the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month()+1, 1).AddDate(0, 0, -1)
}

func truncateDay(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// monthIndex counts months since year 0 so two months can be subtracted.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// dayNumber counts calendar days since the Unix epoch.
func dayNumber(t time.Time) int {
	return int(truncateDay(t).Unix() / 86400)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// addMonthsClamped adds n months to t keeping the day where possible and
// clamping to the month end otherwise (Jan 31 + 1 = Feb 28/29). time.AddDate
// would roll over into the following month instead.
func addMonthsClamped(t time.Time, n int) time.Time {
	first := Date(t.Year(), t.Month()+time.Month(n), 1)
	last := EndOfMonth(first).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive [Start, End] range of calendar dates.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t falls within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(truncateDay(p.Start)) && !d.After(truncateDay(p.End))
}

// IsEmpty is true when End is before Start.
func (p Period) IsEmpty() bool {
	return truncateDay(p.End).Before(truncateDay(p.Start))
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// =============================================================================
// TIME BUCKETER
// =============================================================================

// MonthBuckets returns the first-of-month dates from start's month through
// end's month inclusive. It is empty whenever end is before start, including
// the case where both fall in the same month.
func MonthBuckets(start, end time.Time) []time.Time {
	if (Period{Start: start, End: end}).IsEmpty() {
		return nil
	}
	n := monthIndex(end) - monthIndex(start) + 1
	if n <= 0 {
		return nil
	}
	first := StartOfMonth(start)
	months := make([]time.Time, n)
	for i := range months {
		months[i] = first.AddDate(0, i, 0)
	}
	return months
}

// bucketRange is the full date span covered by a month sequence.
func bucketRange(months []time.Time) Period {
	if len(months) == 0 {
		return Period{Start: time.Time{}, End: time.Time{}.AddDate(0, 0, -1)}
	}
	return Period{Start: months[0], End: EndOfMonth(months[len(months)-1])}
}

// bucketOf returns the index of the month containing t, or -1.
func bucketOf(months []time.Time, t time.Time) int {
	if len(months) == 0 {
		return -1
	}
	i := monthIndex(t) - monthIndex(months[0])
	if i < 0 || i >= len(months) {
		return -1
	}
	return i
}
