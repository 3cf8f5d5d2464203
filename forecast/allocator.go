/*
allocator.go - Planned item distribution across month buckets

DATE MODES:
  FixedDate:
    The full signed amount lands in the month containing the date.

  Schedule:
    Every occurrence AnchorDate + k*Interval*Frequency (k >= 0) inside the
    bucketed range contributes the full signed amount to its month.
    Occurrences in the same month add up.

  FlexibleWindow:
    The window is intersected with the bucketed months.
    EvenlySpread: each overlapping month gets an equal share.
    AllAtEnd:     the last overlapping month gets everything.

ROUNDING (EvenlySpread):
  Shares are truncated to cents toward zero and the last overlapping month
  absorbs the remainder. The item therefore always sums to exactly +/-Amount.
  Example: 3001 over 3 months -> 1000.33, 1000.33, 1000.34.

Items outside the range, zero-width windows and excluded items contribute
nothing. Summation is order independent.
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// CentPlaces is the precision used for split amounts and baseline figures.
const CentPlaces = 2

// MaxScheduleInterval is the largest accepted ScheduleSpec.Interval: one step
// every ten thousand years.
const MaxScheduleInterval = 12 * 10000

// AllocatePlannedItems returns the signed planned-item total for each month.
// The returned slice is parallel to months. Items must already be valid.
func AllocatePlannedItems(months []time.Time, items []PlannedItem) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(months))
	for i := range totals {
		totals[i] = decimal.Zero
	}
	if len(months) == 0 {
		return totals
	}

	for _, item := range items {
		if !item.IsIncluded {
			continue
		}
		for i, v := range allocateItem(months, item) {
			totals[i] = totals[i].Add(v)
		}
	}
	return totals
}

// allocateItem returns the contribution of one item keyed by month index.
func allocateItem(months []time.Time, item PlannedItem) map[int]decimal.Decimal {
	signed := item.SignedAmount()
	out := make(map[int]decimal.Decimal)

	switch item.DateMode {
	case DateModeFixedDate:
		if item.FixedDate == nil {
			return out
		}
		if i := bucketOf(months, item.FixedDate.Date); i >= 0 {
			out[i] = signed
		}

	case DateModeSchedule:
		if item.Schedule == nil {
			return out
		}
		for _, at := range ScheduleOccurrences(*item.Schedule, bucketRange(months)) {
			i := bucketOf(months, at)
			if i < 0 {
				continue
			}
			if prev, ok := out[i]; ok {
				out[i] = prev.Add(signed)
			} else {
				out[i] = signed
			}
		}

	case DateModeFlexibleWindow:
		if item.FlexibleWindow == nil {
			return out
		}
		first, last, ok := windowOverlap(months, *item.FlexibleWindow)
		if !ok {
			return out
		}
		switch item.FlexibleWindow.AllocationMode {
		case AllocateAllAtEnd:
			out[last] = signed
		case AllocateEvenlySpread:
			for k, share := range SplitEvenly(signed, last-first+1) {
				out[first+k] = share
			}
		}
	}
	return out
}

// windowOverlap returns the first and last bucket indexes covered by the
// window. ok is false for windows outside the range or with End < Start.
func windowOverlap(months []time.Time, w FlexibleWindowSpec) (first, last int, ok bool) {
	if (Period{Start: w.StartDate, End: w.EndDate}).IsEmpty() {
		return 0, 0, false
	}
	lo := monthIndex(w.StartDate) - monthIndex(months[0])
	hi := monthIndex(w.EndDate) - monthIndex(months[0])
	if lo < 0 {
		lo = 0
	}
	if hi > len(months)-1 {
		hi = len(months) - 1
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// SplitEvenly divides amount into n parts that sum exactly to amount.
// Every part but the last is amount/n truncated to cents; the last takes the
// remainder.
func SplitEvenly(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	parts := make([]decimal.Decimal, n)
	share := amount.Div(decimal.NewFromInt(int64(n))).Truncate(CentPlaces)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = share
		allocated = allocated.Add(share)
	}
	parts[n-1] = amount.Sub(allocated)
	return parts
}

// ScheduleOccurrences lists every occurrence of s inside within, in order.
// Each step is computed from the anchor so month-end anchors do not drift.
// Iteration starts at the first step that can reach within, so an old anchor
// costs nothing extra.
func ScheduleOccurrences(s ScheduleSpec, within Period) []time.Time {
	if s.Interval < 1 || s.Interval > MaxScheduleInterval || within.IsEmpty() {
		return nil
	}
	anchor := truncateDay(s.AnchorDate)
	end := truncateDay(within.End)

	var (
		step  func(k int) time.Time
		first int
	)
	switch s.Frequency {
	case FrequencyWeekly:
		days := 7 * s.Interval
		step = func(k int) time.Time { return anchor.AddDate(0, 0, k*days) }
		first = (dayNumber(within.Start) - dayNumber(anchor)) / days
	case FrequencyMonthly, FrequencyYearly:
		months := s.Interval
		if s.Frequency == FrequencyYearly {
			months *= 12
		}
		step = func(k int) time.Time { return addMonthsClamped(anchor, k*months) }
		first = (monthIndex(within.Start) - monthIndex(anchor)) / months
	default:
		return nil
	}
	if first < 0 {
		first = 0
	}

	var out []time.Time
	for k := first; ; k++ {
		at := step(k)
		if at.After(end) {
			return out
		}
		if within.Contains(at) {
			out = append(out, at)
		}
	}
}
