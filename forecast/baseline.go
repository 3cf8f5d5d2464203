/*
baseline.go - Baseline outgoings estimation

PURPOSE:
  Computes the single "typical monthly spend" figure stamped onto every
  projected month.

TWO ESTIMATES:
  Historical:
    Sum of Debit totals over the LookbackMonths before the plan start,
    divided by LookbackMonths. Zero when LookbackMonths is 0 or no debits.

  Recalibrated:
    From consecutive observed month-end balances (summed across accounts):
      derived = prev + monthlyIncome - curr
    Planned items are NOT subtracted; the figure isolates typical spend.
    A negative derived value is an anomaly (unexplained increase) and the
    pair is dropped. The estimate is the mean of the surviving values, and
    undefined when none survive.

SELECTION:
  SelectBaseline(historical, recalibrated) returns recalibrated when defined,
  otherwise historical.

Only non-savings accounts feed both estimates so that long-horizon savings
transfers do not pollute the spend signal.
*/
package forecast

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalBaseline averages debit totals over lookback months.
func HistoricalBaseline(totals map[AccountID][]CreditDebitTotal, lookback int) decimal.Decimal {
	if lookback <= 0 {
		return decimal.Zero
	}
	debits := decimal.Zero
	found := false
	for _, list := range totals {
		for _, t := range list {
			if t.TransactionType != TxDebit {
				continue
			}
			debits = debits.Add(t.Total.Abs())
			found = true
		}
	}
	if !found {
		return decimal.Zero
	}
	return debits.Div(decimal.NewFromInt(int64(lookback))).RoundBank(CentPlaces)
}

// SumBalancesByPeriod collapses per-account snapshots into one balance per
// period end, sorted ascending.
func SumBalancesByPeriod(balances map[AccountID][]MonthlyBalance) []MonthlyBalance {
	byDate := make(map[time.Time]decimal.Decimal)
	for _, list := range balances {
		for _, b := range list {
			d := truncateDay(b.PeriodEnd)
			if prev, ok := byDate[d]; ok {
				byDate[d] = prev.Add(b.Balance)
			} else {
				byDate[d] = b.Balance
			}
		}
	}

	out := make([]MonthlyBalance, 0, len(byDate))
	for d, v := range byDate {
		out = append(out, MonthlyBalance{PeriodEnd: d, Balance: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	return out
}

// DerivedOutgoing is the spend implied by two consecutive month-end balances.
type DerivedOutgoing struct {
	From      time.Time
	To        time.Time
	Amount    decimal.Decimal
	Anomalous bool
}

// DeriveOutgoings walks consecutive pairs of sorted balances.
func DeriveOutgoings(sorted []MonthlyBalance, monthlyIncome decimal.Decimal) []DerivedOutgoing {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]DerivedOutgoing, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		amount := prev.Balance.Add(monthlyIncome).Sub(curr.Balance)
		out = append(out, DerivedOutgoing{
			From:      prev.PeriodEnd,
			To:        curr.PeriodEnd,
			Amount:    amount,
			Anomalous: amount.IsNegative(),
		})
	}
	return out
}

// RecalibratedBaseline returns the mean of the non-anomalous derived
// outgoings, or nil when none survive.
func RecalibratedBaseline(derived []DerivedOutgoing) *decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, d := range derived {
		if d.Anomalous {
			continue
		}
		sum = sum.Add(d.Amount)
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum.Div(decimal.NewFromInt(int64(n))).RoundBank(CentPlaces)
	return &mean
}

// SelectBaseline prefers the recalibrated figure when it exists.
func SelectBaseline(historical decimal.Decimal, recalibrated *decimal.Decimal) decimal.Decimal {
	if recalibrated != nil {
		return *recalibrated
	}
	return historical
}

// actualBalances maps each bucketed month to the observed month-end balance
// in that calendar month, if any.
func actualBalances(months []time.Time, sorted []MonthlyBalance) []*decimal.Decimal {
	out := make([]*decimal.Decimal, len(months))
	for _, b := range sorted {
		if i := bucketOf(months, b.PeriodEnd); i >= 0 {
			v := b.Balance
			out[i] = &v
		}
	}
	return out
}
