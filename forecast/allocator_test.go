package forecast_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

func year2024() []time.Time {
	return forecast.MonthBuckets(date(2024, time.January, 1), date(2024, time.December, 31))
}

func window(start, end time.Time, mode forecast.AllocationMode, typ forecast.ItemType, amount string) forecast.PlannedItem {
	return forecast.PlannedItem{
		ID:             "window",
		ItemType:       typ,
		Amount:         dec(amount),
		IsIncluded:     true,
		DateMode:       forecast.DateModeFlexibleWindow,
		FlexibleWindow: &forecast.FlexibleWindowSpec{StartDate: start, EndDate: end, AllocationMode: mode},
	}
}

func schedule(freq forecast.Frequency, anchor time.Time, interval int, amount string) forecast.PlannedItem {
	return forecast.PlannedItem{
		ID:         "schedule",
		ItemType:   forecast.ItemExpense,
		Amount:     dec(amount),
		IsIncluded: true,
		DateMode:   forecast.DateModeSchedule,
		Schedule:   &forecast.ScheduleSpec{Frequency: freq, AnchorDate: anchor, Interval: interval},
	}
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func strs(values []decimal.Decimal) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

// =============================================================================
// FLEXIBLE WINDOW
// =============================================================================

func TestAllocate_EvenlySpread_DivisibleAmount(t *testing.T) {
	months := year2024()
	item := window(date(2024, time.March, 10), date(2024, time.May, 2), forecast.AllocateEvenlySpread, forecast.ItemExpense, "3000")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	assert.Equal(t, "0", totals[1].String())
	assert.Equal(t, "-1000", totals[2].String())
	assert.Equal(t, "-1000", totals[3].String())
	assert.Equal(t, "-1000", totals[4].String())
	assert.Equal(t, "0", totals[5].String())
	assert.True(t, sum(totals).Equal(dec("-3000")))
}

func TestAllocate_EvenlySpread_RemainderToLastMonth(t *testing.T) {
	months := year2024()
	item := window(date(2024, time.January, 1), date(2024, time.March, 31), forecast.AllocateEvenlySpread, forecast.ItemIncome, "3001")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	assert.Equal(t, []string{"1000.33", "1000.33", "1000.34"}, strs(totals[:3]))
	assert.True(t, sum(totals).Equal(dec("3001")))
}

func TestAllocate_EvenlySpread_SumsExactlyForAwkwardSplits(t *testing.T) {
	months := year2024()
	for _, amount := range []string{"100", "0.01", "999.99", "12345.67", "1"} {
		for _, typ := range []forecast.ItemType{forecast.ItemIncome, forecast.ItemExpense} {
			item := window(date(2024, time.February, 1), date(2024, time.August, 31), forecast.AllocateEvenlySpread, typ, amount)
			totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})
			assert.True(t, sum(totals).Equal(item.SignedAmount()), "%s %s -> %s", typ, amount, sum(totals))
		}
	}
}

func TestAllocate_AllAtEnd_LastOverlappingMonthOnly(t *testing.T) {
	months := year2024()
	item := window(date(2024, time.October, 1), date(2025, time.March, 31), forecast.AllocateAllAtEnd, forecast.ItemExpense, "600")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	// Window is clipped to the plan: December is the last overlapping month
	for i := 0; i < 11; i++ {
		assert.True(t, totals[i].IsZero(), "month %d", i)
	}
	assert.Equal(t, "-600", totals[11].String())
}

func TestAllocate_Window_ClippedAtStart(t *testing.T) {
	months := year2024()
	item := window(date(2023, time.November, 1), date(2024, time.January, 31), forecast.AllocateEvenlySpread, forecast.ItemExpense, "900")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	// Only January overlaps, so it takes everything
	assert.Equal(t, "-900", totals[0].String())
	assert.True(t, sum(totals).Equal(dec("-900")))
}

func TestAllocate_Window_OutsideRangeOrInverted_Nothing(t *testing.T) {
	months := year2024()
	items := []forecast.PlannedItem{
		window(date(2025, time.January, 1), date(2025, time.June, 30), forecast.AllocateEvenlySpread, forecast.ItemExpense, "100"),
		window(date(2023, time.January, 1), date(2023, time.June, 30), forecast.AllocateAllAtEnd, forecast.ItemExpense, "100"),
		window(date(2024, time.June, 30), date(2024, time.June, 1), forecast.AllocateEvenlySpread, forecast.ItemExpense, "100"),
	}

	totals := forecast.AllocatePlannedItems(months, items)
	assert.True(t, sum(totals).IsZero())
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestAllocate_MonthlySchedule_EveryMonthFromAnchor(t *testing.T) {
	months := year2024()
	item := schedule(forecast.FrequencyMonthly, date(2024, time.April, 5), 1, "50")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	for i := 0; i < 3; i++ {
		assert.True(t, totals[i].IsZero(), "no occurrences before the anchor")
	}
	for i := 3; i < 12; i++ {
		assert.Equal(t, "-50", totals[i].String(), "month %d", i)
	}
}

func TestAllocate_MonthlySchedule_AnchorBeforeRange(t *testing.T) {
	months := forecast.MonthBuckets(date(2024, time.March, 1), date(2024, time.May, 31))
	item := schedule(forecast.FrequencyMonthly, date(2023, time.December, 15), 2, "100")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	// Dec, Feb, Apr, Jun -> only April is in range
	assert.Equal(t, []string{"0", "-100", "0"}, strs(totals))
}

func TestAllocate_WeeklySchedule_OccurrencesInSameMonthSum(t *testing.T) {
	months := forecast.MonthBuckets(date(2024, time.January, 1), date(2024, time.February, 29))
	item := schedule(forecast.FrequencyWeekly, date(2024, time.January, 1), 1, "10")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	// Mondays: Jan 1, 8, 15, 22, 29 and Feb 5, 12, 19, 26
	assert.Equal(t, []string{"-50", "-40"}, strs(totals))
}

func TestAllocate_YearlySchedule(t *testing.T) {
	months := forecast.MonthBuckets(date(2024, time.January, 1), date(2026, time.December, 31))
	item := schedule(forecast.FrequencyYearly, date(2023, time.July, 1), 1, "1200")

	totals := forecast.AllocatePlannedItems(months, []forecast.PlannedItem{item})

	assert.Equal(t, "-1200", totals[6].String())
	assert.Equal(t, "-1200", totals[18].String())
	assert.Equal(t, "-1200", totals[30].String())
	assert.True(t, sum(totals).Equal(dec("-3600")))
}

func TestScheduleOccurrences_MonthEndAnchorDoesNotDrift(t *testing.T) {
	spec := forecast.ScheduleSpec{Frequency: forecast.FrequencyMonthly, AnchorDate: date(2024, time.January, 31), Interval: 1}
	within := forecast.Period{Start: date(2024, time.January, 1), End: date(2024, time.April, 30)}

	got := forecast.ScheduleOccurrences(spec, within)

	require.Len(t, got, 4)
	assert.Equal(t, date(2024, time.January, 31), got[0])
	assert.Equal(t, date(2024, time.February, 29), got[1])
	assert.Equal(t, date(2024, time.March, 31), got[2])
	assert.Equal(t, date(2024, time.April, 30), got[3])
}

func TestScheduleOccurrences_HugeIntervalsReturn(t *testing.T) {
	within := forecast.Period{Start: date(2024, time.January, 1), End: date(2024, time.December, 31)}
	anchor := date(2023, time.June, 15)

	for _, freq := range []forecast.Frequency{forecast.FrequencyWeekly, forecast.FrequencyMonthly, forecast.FrequencyYearly} {
		for _, interval := range []int{forecast.MaxScheduleInterval, forecast.MaxScheduleInterval + 1, 1 << 40, 1 << 62, math.MaxInt64 / 7} {
			// GIVEN: A schedule whose step can overflow int arithmetic
			spec := forecast.ScheduleSpec{Frequency: freq, AnchorDate: anchor, Interval: interval}

			// WHEN: Expanding it over a year
			done := make(chan []time.Time, 1)
			go func() { done <- forecast.ScheduleOccurrences(spec, within) }()

			// THEN: It returns promptly with no occurrence in range
			select {
			case got := <-done:
				assert.Empty(t, got, "%s interval=%d", freq, interval)
			case <-time.After(3 * time.Second):
				t.Fatalf("%s interval=%d did not return", freq, interval)
			}
		}
	}
}

func TestScheduleOccurrences_AnchorFarInPast(t *testing.T) {
	within := forecast.Period{Start: date(2024, time.January, 1), End: date(2024, time.February, 29)}

	// GIVEN: A weekly schedule anchored on Monday 1900-01-01
	weekly := forecast.ScheduleSpec{Frequency: forecast.FrequencyWeekly, AnchorDate: date(1900, time.January, 1), Interval: 1}
	got := forecast.ScheduleOccurrences(weekly, within)

	// THEN: Every Monday of Jan-Feb 2024
	require.Len(t, got, 9)
	assert.Equal(t, date(2024, time.January, 1), got[0])
	assert.Equal(t, date(2024, time.February, 26), got[8])

	// GIVEN: A month-end anchor from 1990, every second month
	monthly := forecast.ScheduleSpec{Frequency: forecast.FrequencyMonthly, AnchorDate: date(1990, time.March, 31), Interval: 2}
	got = forecast.ScheduleOccurrences(monthly, within)

	// THEN: Only Jan 31; February is off-cycle
	assert.Equal(t, []time.Time{date(2024, time.January, 31)}, got)
}

// =============================================================================
// FIXED DATE + AGGREGATION
// =============================================================================

func TestAllocate_MixedItems_SumPerMonth(t *testing.T) {
	months := forecast.MonthBuckets(date(2024, time.January, 1), date(2024, time.March, 31))
	bonus := fixedExpense("bonus", "2000", date(2024, time.February, 20))
	bonus.ItemType = forecast.ItemIncome
	items := []forecast.PlannedItem{
		bonus,
		fixedExpense("rent-deposit", "1500", date(2024, time.February, 1)),
		schedule(forecast.FrequencyMonthly, date(2024, time.January, 15), 1, "100"),
	}

	totals := forecast.AllocatePlannedItems(months, items)
	assert.Equal(t, []string{"-100", "400", "-100"}, strs(totals))

	// Order does not matter
	reversed := []forecast.PlannedItem{items[2], items[1], items[0]}
	assert.Equal(t, strs(totals), strs(forecast.AllocatePlannedItems(months, reversed)))
}

func TestSplitEvenly(t *testing.T) {
	parts := forecast.SplitEvenly(dec("-100"), 3)
	assert.Equal(t, []string{"-33.33", "-33.33", "-33.34"}, strs(parts))
	assert.Nil(t, forecast.SplitEvenly(dec("100"), 0))
}
