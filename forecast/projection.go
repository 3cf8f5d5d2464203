package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTH CHAIN PROJECTOR
// =============================================================================

// ProjectionInput is everything the chain needs once I/O is done.
type ProjectionInput struct {
	Months          []time.Time
	StartingBalance decimal.Decimal
	MonthlyIncome   decimal.Decimal
	Baseline        decimal.Decimal
	PlannedTotals   []decimal.Decimal  // parallel to Months
	ActualBalances  []*decimal.Decimal // parallel to Months, may be nil
}

// ProjectMonths folds the months left to right:
//
//	closing = opening + income - baseline + planned
//
// and every opening after the first is the previous closing.
func ProjectMonths(in ProjectionInput) []MonthResult {
	results := make([]MonthResult, len(in.Months))
	opening := in.StartingBalance
	for i, m := range in.Months {
		planned := decimal.Zero
		if i < len(in.PlannedTotals) {
			planned = in.PlannedTotals[i]
		}
		closing := opening.Add(in.MonthlyIncome).Sub(in.Baseline).Add(planned)

		results[i] = MonthResult{
			Month:                  m,
			OpeningBalance:         opening,
			ClosingBalance:         closing,
			BaselineOutgoingsTotal: in.Baseline,
			PlannedItemsTotal:      planned,
		}
		if i < len(in.ActualBalances) {
			results[i].ActualBalance = in.ActualBalances[i]
		}
		opening = closing
	}
	return results
}

// =============================================================================
// SUMMARY AGGREGATOR
// =============================================================================

// Summarize derives the summary from a completed month list. The lowest
// month is the first one with the minimum closing balance.
func Summarize(months []MonthResult, monthlyIncome, baseline decimal.Decimal) ForecastSummary {
	summary := ForecastSummary{
		TotalIncome:              decimal.Zero,
		MonthlyBaselineOutgoings: baseline,
	}
	if len(months) == 0 {
		return summary
	}

	lowest := 0
	for i, m := range months {
		if m.ClosingBalance.IsNegative() {
			summary.MonthsBelowZero++
		}
		if m.ClosingBalance.LessThan(months[lowest].ClosingBalance) {
			lowest = i
		}
	}
	month := months[lowest].Month
	summary.LowestBalanceMonth = &month
	summary.TotalIncome = monthlyIncome.Mul(decimal.NewFromInt(int64(len(months))))
	return summary
}
