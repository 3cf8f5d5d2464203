/*
Package forecast provides the cash-flow forecast engine.

PURPOSE:
  Given a financial plan (starting balance, date range, income model, spend
  model and ad-hoc planned items) the engine produces a month-by-month
  projection of opening and closing balances plus a summary. It is a pure
  function of the plan and a snapshot of repository reads.

KEY CONCEPTS IN THIS FILE (types.go):
  - ForecastPlan: The input aggregate
  - PlannedItem: One discrete income or expense with scheduling semantics
  - MonthResult: One projected calendar month
  - ForecastSummary / ForecastResult: The output

DESIGN PRINCIPLES:
  1. Precision: Every amount is a decimal.Decimal, never a float
  2. Closed strategies: Income/outgoing models are sealed interfaces (strategy.go)
  3. Stateless: A result is built fresh on every Calculate call

USAGE:
  engine := &forecast.Engine{Reports: reports, Instruments: instruments, User: user}
  result, err := engine.Calculate(ctx, plan)

SEE ALSO:
  - engine.go: Calculate and the month chain
  - allocator.go: Planned item distribution
  - baseline.go: Baseline outgoings estimation
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type PlannedItemID string
type FamilyID string
type AccountID string

// =============================================================================
// PLAN - The input aggregate
// =============================================================================

type StartingBalanceMode string

const (
	StartingBalanceManual     StartingBalanceMode = "ManualAmount"
	StartingBalanceCalculated StartingBalanceMode = "CalculatedCurrent"
)

type AccountScopeMode string

const (
	ScopeAllAccounts      AccountScopeMode = "AllAccounts"
	ScopeSelectedAccounts AccountScopeMode = "SelectedAccounts"
)

// ForecastPlan is a named projection configuration. StartDate and EndDate are
// calendar dates, both inclusive. An EndDate before StartDate is valid and
// yields zero months.
type ForecastPlan struct {
	ID       PlanID
	FamilyID FamilyID
	Name     string

	StartDate time.Time
	EndDate   time.Time

	StartingBalanceMode StartingBalanceMode
	// Required iff StartingBalanceMode is StartingBalanceManual.
	StartingBalanceAmount *decimal.Decimal

	AccountScopeMode AccountScopeMode
	SelectedAccounts []AccountID

	Income   IncomeStrategy
	Outgoing OutgoingStrategy

	PlannedItems []PlannedItem
}

// =============================================================================
// PLANNED ITEMS
// =============================================================================

type ItemType string

const (
	ItemIncome  ItemType = "Income"
	ItemExpense ItemType = "Expense"
)

type DateMode string

const (
	DateModeFixedDate      DateMode = "FixedDate"
	DateModeSchedule       DateMode = "Schedule"
	DateModeFlexibleWindow DateMode = "FlexibleWindow"
)

type Frequency string

const (
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

type AllocationMode string

const (
	AllocateEvenlySpread AllocationMode = "EvenlySpread"
	AllocateAllAtEnd     AllocationMode = "AllAtEnd"
)

// PlannedItem is one planned income or expense. Amount is always entered
// positive; ItemType decides the sign. Exactly one of the date sub-records
// matching DateMode must be set.
type PlannedItem struct {
	ID         PlannedItemID
	PlanID     PlanID
	Name       string
	ItemType   ItemType
	Amount     decimal.Decimal
	IsIncluded bool

	DateMode       DateMode
	FixedDate      *FixedDateSpec
	Schedule       *ScheduleSpec
	FlexibleWindow *FlexibleWindowSpec
}

type FixedDateSpec struct {
	Date time.Time
}

// ScheduleSpec describes occurrences at AnchorDate + k*Interval*Frequency, k >= 0.
type ScheduleSpec struct {
	Frequency  Frequency
	AnchorDate time.Time
	Interval   int
}

type FlexibleWindowSpec struct {
	StartDate      time.Time
	EndDate        time.Time
	AllocationMode AllocationMode
}

// SignedAmount returns +Amount for income and -Amount for expenses.
func (p PlannedItem) SignedAmount() decimal.Decimal {
	if p.ItemType == ItemExpense {
		return p.Amount.Neg()
	}
	return p.Amount
}

// =============================================================================
// RESULT
// =============================================================================

// MonthResult is one projected calendar month. ActualBalance is informational
// only and never feeds back into the chain.
type MonthResult struct {
	Month                  time.Time
	OpeningBalance         decimal.Decimal
	ClosingBalance         decimal.Decimal
	BaselineOutgoingsTotal decimal.Decimal
	PlannedItemsTotal      decimal.Decimal
	ActualBalance          *decimal.Decimal
}

type ForecastSummary struct {
	// nil when there are no months.
	LowestBalanceMonth       *time.Time
	MonthsBelowZero          int
	TotalIncome              decimal.Decimal
	MonthlyBaselineOutgoings decimal.Decimal
}

type ForecastResult struct {
	PlanID  PlanID
	Months  []MonthResult
	Summary ForecastSummary
}
