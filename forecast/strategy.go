package forecast

import "github.com/shopspring/decimal"

// =============================================================================
// INCOME STRATEGY - Sealed sum type
// =============================================================================

// IncomeStrategy models how income arrives. The set of implementations is
// closed: only types in this package satisfy it.
type IncomeStrategy interface {
	IncomeMode() string
	isIncomeStrategy()
}

// ManualRecurringIncome is a fixed amount added once per projected month.
// Frequency is kept as entered but does not scale the amount; buckets are
// always months.
type ManualRecurringIncome struct {
	Amount    decimal.Decimal
	Frequency Frequency
}

func (ManualRecurringIncome) IncomeMode() string { return "ManualRecurring" }
func (ManualRecurringIncome) isIncomeStrategy()  {}

// =============================================================================
// OUTGOING STRATEGY - Sealed sum type
// =============================================================================

type OutgoingStrategy interface {
	OutgoingMode() string
	isOutgoingStrategy()
}

// HistoricalAverageOutgoing averages debit activity over the LookbackMonths
// before the plan start. Zero disables the historical baseline.
type HistoricalAverageOutgoing struct {
	LookbackMonths int
}

func (HistoricalAverageOutgoing) OutgoingMode() string { return "HistoricalAverage" }
func (HistoricalAverageOutgoing) isOutgoingStrategy()  {}

// monthlyIncome returns the flat amount contributed to every month.
func monthlyIncome(s IncomeStrategy) (decimal.Decimal, error) {
	switch v := s.(type) {
	case ManualRecurringIncome:
		return v.Amount, nil
	case *ManualRecurringIncome:
		if v == nil {
			return decimal.Zero, &StrategyError{Kind: "income", Reason: "nil strategy"}
		}
		return v.Amount, nil
	case nil:
		return decimal.Zero, &StrategyError{Kind: "income", Reason: "missing strategy"}
	default:
		return decimal.Zero, &StrategyError{Kind: "income", Mode: s.IncomeMode(), Reason: "unsupported mode"}
	}
}

func lookbackMonths(s OutgoingStrategy) (int, error) {
	var months int
	switch v := s.(type) {
	case HistoricalAverageOutgoing:
		months = v.LookbackMonths
	case *HistoricalAverageOutgoing:
		if v == nil {
			return 0, &StrategyError{Kind: "outgoing", Reason: "nil strategy"}
		}
		months = v.LookbackMonths
	case nil:
		return 0, &StrategyError{Kind: "outgoing", Reason: "missing strategy"}
	default:
		return 0, &StrategyError{Kind: "outgoing", Mode: s.OutgoingMode(), Reason: "unsupported mode"}
	}
	if months < 0 {
		return 0, &StrategyError{Kind: "outgoing", Mode: "HistoricalAverage", Reason: "negative lookback"}
	}
	return months, nil
}
