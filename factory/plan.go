/*
Package factory provides JSON to Go forecast plan conversion.

PURPOSE:
  Plans arrive from the API and the CLI as JSON with the income and outgoing
  strategies as small tagged payloads. The factory decodes them into the
  closed forecast.IncomeStrategy / forecast.OutgoingStrategy types so that
  the engine never sees a dynamically keyed structure.

JSON SCHEMA:
  {
    "id": "plan-2024",
    "family_id": "fam-1",
    "name": "2024 outlook",
    "start_date": "2024-01-01",
    "end_date": "2024-12-31",
    "starting_balance_mode": "ManualAmount",
    "starting_balance_amount": "10000.00",
    "account_scope_mode": "SelectedAccounts",
    "selected_accounts": ["acc-1"],
    "income_strategy": {"mode": "ManualRecurring", "amount": 5000, "frequency": "Monthly"},
    "outgoing_strategy": {"mode": "HistoricalAverage", "lookback_months": 6},
    "planned_items": [
      {"name": "Car service", "item_type": "Expense", "amount": 800,
       "is_included": true, "date_mode": "FixedDate",
       "fixed_date": {"date": "2024-05-14"}},
      {"name": "Gym", "item_type": "Expense", "amount": 45,
       "is_included": true, "date_mode": "Schedule",
       "schedule": {"frequency": "Monthly", "anchor_date": "2024-01-31", "interval": 1}},
      {"name": "Holiday", "item_type": "Expense", "amount": 3000,
       "is_included": true, "date_mode": "FlexibleWindow",
       "flexible_window": {"start_date": "2024-06-01", "end_date": "2024-08-31",
                           "allocation_mode": "EvenlySpread"}}
    ]
  }

KEY FEATURES:
  - Unknown strategy modes are rejected, never defaulted
  - Amounts accept JSON numbers or strings (decimal, no float rounding)
  - Missing ids are filled with UUIDs
  - Parsed plans are validated before being returned

SEE ALSO:
  - forecast/types.go: Plan type definition
  - forecast/strategy.go: Strategy sum types
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a forecast plan.
type PlanJSON struct {
	ID                    string            `json:"id,omitempty"`
	FamilyID              string            `json:"family_id,omitempty"`
	Name                  string            `json:"name"`
	StartDate             string            `json:"start_date"`
	EndDate               string            `json:"end_date"`
	StartingBalanceMode   string            `json:"starting_balance_mode"`
	StartingBalanceAmount *decimal.Decimal  `json:"starting_balance_amount,omitempty"`
	AccountScopeMode      string            `json:"account_scope_mode"`
	SelectedAccounts      []string          `json:"selected_accounts,omitempty"`
	IncomeStrategy        json.RawMessage   `json:"income_strategy"`
	OutgoingStrategy      json.RawMessage   `json:"outgoing_strategy"`
	PlannedItems          []PlannedItemJSON `json:"planned_items,omitempty"`
}

// PlannedItemJSON represents one planned item.
type PlannedItemJSON struct {
	ID             string              `json:"id,omitempty"`
	Name           string              `json:"name"`
	ItemType       string              `json:"item_type"` // Income, Expense
	Amount         decimal.Decimal     `json:"amount"`
	IsIncluded     *bool               `json:"is_included,omitempty"` // absent means included
	DateMode       string              `json:"date_mode"` // FixedDate, Schedule, FlexibleWindow
	FixedDate      *FixedDateJSON      `json:"fixed_date,omitempty"`
	Schedule       *ScheduleJSON       `json:"schedule,omitempty"`
	FlexibleWindow *FlexibleWindowJSON `json:"flexible_window,omitempty"`
}

type FixedDateJSON struct {
	Date string `json:"date"`
}

type ScheduleJSON struct {
	Frequency  string `json:"frequency"` // Weekly, Monthly, Yearly
	AnchorDate string `json:"anchor_date"`
	Interval   int    `json:"interval"`
}

type FlexibleWindowJSON struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	AllocationMode string `json:"allocation_mode"` // EvenlySpread, AllAtEnd
}

// strategyJSON is the union of every strategy payload field, keyed by mode.
type strategyJSON struct {
	Mode           string           `json:"mode"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Frequency      string           `json:"frequency,omitempty"`
	LookbackMonths *int             `json:"lookback_months,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to forecast plans.
type PlanFactory struct {
	// NewID generates missing identifiers. Defaults to uuid.NewString.
	NewID func() string
}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{NewID: uuid.NewString}
}

// ParsePlan parses and validates a JSON plan.
func (f *PlanFactory) ParsePlan(data []byte) (*forecast.ForecastPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("%w: failed to parse plan JSON: %v", forecast.ErrInvalidPlan, err)
	}
	plan, err := f.FromJSON(pj)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// FromJSON converts PlanJSON to a forecast plan without validating it.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*forecast.ForecastPlan, error) {
	start, err := parseDate("start_date", pj.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", pj.EndDate)
	if err != nil {
		return nil, err
	}

	income, err := parseIncomeStrategy(pj.IncomeStrategy)
	if err != nil {
		return nil, err
	}
	outgoing, err := parseOutgoingStrategy(pj.OutgoingStrategy)
	if err != nil {
		return nil, err
	}

	plan := &forecast.ForecastPlan{
		ID:                    forecast.PlanID(f.idOr(pj.ID)),
		FamilyID:              forecast.FamilyID(pj.FamilyID),
		Name:                  pj.Name,
		StartDate:             start,
		EndDate:               end,
		StartingBalanceMode:   forecast.StartingBalanceMode(pj.StartingBalanceMode),
		StartingBalanceAmount: pj.StartingBalanceAmount,
		AccountScopeMode:      forecast.AccountScopeMode(pj.AccountScopeMode),
		Income:                income,
		Outgoing:              outgoing,
	}
	for _, id := range pj.SelectedAccounts {
		plan.SelectedAccounts = append(plan.SelectedAccounts, forecast.AccountID(id))
	}

	for _, ij := range pj.PlannedItems {
		item, err := f.parsePlannedItem(plan.ID, ij)
		if err != nil {
			return nil, err
		}
		plan.PlannedItems = append(plan.PlannedItems, item)
	}
	return plan, nil
}

// ToJSON converts a forecast plan back to its JSON representation.
func (f *PlanFactory) ToJSON(plan *forecast.ForecastPlan) (PlanJSON, error) {
	pj := PlanJSON{
		ID:                    string(plan.ID),
		FamilyID:              string(plan.FamilyID),
		Name:                  plan.Name,
		StartDate:             plan.StartDate.Format(DateLayout),
		EndDate:               plan.EndDate.Format(DateLayout),
		StartingBalanceMode:   string(plan.StartingBalanceMode),
		StartingBalanceAmount: plan.StartingBalanceAmount,
		AccountScopeMode:      string(plan.AccountScopeMode),
	}
	for _, id := range plan.SelectedAccounts {
		pj.SelectedAccounts = append(pj.SelectedAccounts, string(id))
	}

	var err error
	if pj.IncomeStrategy, err = incomeStrategyJSON(plan.Income); err != nil {
		return PlanJSON{}, err
	}
	if pj.OutgoingStrategy, err = outgoingStrategyJSON(plan.Outgoing); err != nil {
		return PlanJSON{}, err
	}

	for _, item := range plan.PlannedItems {
		ij := PlannedItemJSON{
			ID:         string(item.ID),
			Name:       item.Name,
			ItemType:   string(item.ItemType),
			Amount:     item.Amount,
			IsIncluded: &item.IsIncluded,
			DateMode:   string(item.DateMode),
		}
		if item.FixedDate != nil {
			ij.FixedDate = &FixedDateJSON{Date: item.FixedDate.Date.Format(DateLayout)}
		}
		if item.Schedule != nil {
			ij.Schedule = &ScheduleJSON{
				Frequency:  string(item.Schedule.Frequency),
				AnchorDate: item.Schedule.AnchorDate.Format(DateLayout),
				Interval:   item.Schedule.Interval,
			}
		}
		if item.FlexibleWindow != nil {
			ij.FlexibleWindow = &FlexibleWindowJSON{
				StartDate:      item.FlexibleWindow.StartDate.Format(DateLayout),
				EndDate:        item.FlexibleWindow.EndDate.Format(DateLayout),
				AllocationMode: string(item.FlexibleWindow.AllocationMode),
			}
		}
		pj.PlannedItems = append(pj.PlannedItems, ij)
	}
	return pj, nil
}

func (f *PlanFactory) idOr(id string) string {
	if id != "" {
		return id
	}
	if f.NewID == nil {
		return uuid.NewString()
	}
	return f.NewID()
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q", forecast.ErrInvalidPlan, field, s)
	}
	return t, nil
}

func decodeStrategy(kind string, raw json.RawMessage) (strategyJSON, error) {
	var sj strategyJSON
	if len(raw) == 0 || string(raw) == "null" {
		return sj, &forecast.StrategyError{Kind: kind, Reason: "missing strategy"}
	}
	// Some clients store the payload as a JSON string holding the object.
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &sj); err != nil {
		return sj, &forecast.StrategyError{Kind: kind, Reason: "malformed payload: " + err.Error()}
	}
	return sj, nil
}

func parseIncomeStrategy(raw json.RawMessage) (forecast.IncomeStrategy, error) {
	sj, err := decodeStrategy("income", raw)
	if err != nil {
		return nil, err
	}
	switch sj.Mode {
	case "ManualRecurring":
		if sj.Amount == nil {
			return nil, &forecast.StrategyError{Kind: "income", Mode: sj.Mode, Reason: "amount required"}
		}
		freq := forecast.Frequency(sj.Frequency)
		if freq == "" {
			freq = forecast.FrequencyMonthly
		}
		return forecast.ManualRecurringIncome{Amount: *sj.Amount, Frequency: freq}, nil
	default:
		return nil, &forecast.StrategyError{Kind: "income", Mode: sj.Mode, Reason: "unsupported mode"}
	}
}

func parseOutgoingStrategy(raw json.RawMessage) (forecast.OutgoingStrategy, error) {
	sj, err := decodeStrategy("outgoing", raw)
	if err != nil {
		return nil, err
	}
	switch sj.Mode {
	case "HistoricalAverage":
		if sj.LookbackMonths == nil {
			return nil, &forecast.StrategyError{Kind: "outgoing", Mode: sj.Mode, Reason: "lookback_months required"}
		}
		return forecast.HistoricalAverageOutgoing{LookbackMonths: *sj.LookbackMonths}, nil
	default:
		return nil, &forecast.StrategyError{Kind: "outgoing", Mode: sj.Mode, Reason: "unsupported mode"}
	}
}

func incomeStrategyJSON(s forecast.IncomeStrategy) (json.RawMessage, error) {
	switch v := s.(type) {
	case forecast.ManualRecurringIncome:
		amount := v.Amount
		return json.Marshal(strategyJSON{Mode: v.IncomeMode(), Amount: &amount, Frequency: string(v.Frequency)})
	default:
		return nil, &forecast.StrategyError{Kind: "income", Reason: "cannot encode strategy"}
	}
}

func outgoingStrategyJSON(s forecast.OutgoingStrategy) (json.RawMessage, error) {
	switch v := s.(type) {
	case forecast.HistoricalAverageOutgoing:
		months := v.LookbackMonths
		return json.Marshal(strategyJSON{Mode: v.OutgoingMode(), LookbackMonths: &months})
	default:
		return nil, &forecast.StrategyError{Kind: "outgoing", Reason: "cannot encode strategy"}
	}
}

func (f *PlanFactory) parsePlannedItem(planID forecast.PlanID, ij PlannedItemJSON) (forecast.PlannedItem, error) {
	item := forecast.PlannedItem{
		ID:         forecast.PlannedItemID(f.idOr(ij.ID)),
		PlanID:     planID,
		Name:       ij.Name,
		ItemType:   forecast.ItemType(ij.ItemType),
		Amount:     ij.Amount,
		IsIncluded: ij.IsIncluded == nil || *ij.IsIncluded,
		DateMode:   forecast.DateMode(ij.DateMode),
	}
	fail := func(reason string) error {
		return &forecast.PlannedItemError{ItemID: item.ID, Reason: reason}
	}

	if ij.FixedDate != nil {
		d, err := time.Parse(DateLayout, ij.FixedDate.Date)
		if err != nil {
			return item, fail("invalid fixed date " + ij.FixedDate.Date)
		}
		item.FixedDate = &forecast.FixedDateSpec{Date: d}
	}
	if ij.Schedule != nil {
		anchor, err := time.Parse(DateLayout, ij.Schedule.AnchorDate)
		if err != nil {
			return item, fail("invalid anchor date " + ij.Schedule.AnchorDate)
		}
		interval := ij.Schedule.Interval
		if interval == 0 {
			interval = 1
		}
		item.Schedule = &forecast.ScheduleSpec{
			Frequency:  forecast.Frequency(ij.Schedule.Frequency),
			AnchorDate: anchor,
			Interval:   interval,
		}
	}
	if ij.FlexibleWindow != nil {
		start, err := time.Parse(DateLayout, ij.FlexibleWindow.StartDate)
		if err != nil {
			return item, fail("invalid window start " + ij.FlexibleWindow.StartDate)
		}
		end, err := time.Parse(DateLayout, ij.FlexibleWindow.EndDate)
		if err != nil {
			return item, fail("invalid window end " + ij.FlexibleWindow.EndDate)
		}
		item.FlexibleWindow = &forecast.FlexibleWindowSpec{
			StartDate:      start,
			EndDate:        end,
			AllocationMode: forecast.AllocationMode(ij.FlexibleWindow.AllocationMode),
		}
	}
	return item, nil
}
