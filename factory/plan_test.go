package factory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

const samplePlan = `{
	"id": "plan-2024",
	"family_id": "fam-1",
	"name": "2024 outlook",
	"start_date": "2024-01-01",
	"end_date": "2024-12-31",
	"starting_balance_mode": "ManualAmount",
	"starting_balance_amount": "10000.00",
	"account_scope_mode": "SelectedAccounts",
	"selected_accounts": ["acc-1", "acc-2"],
	"income_strategy": {"mode": "ManualRecurring", "amount": 5000, "frequency": "Monthly"},
	"outgoing_strategy": {"mode": "HistoricalAverage", "lookback_months": 6},
	"planned_items": [
		{"id": "car", "name": "Car service", "item_type": "Expense", "amount": 800,
		 "is_included": true, "date_mode": "FixedDate", "fixed_date": {"date": "2024-05-14"}},
		{"id": "gym", "name": "Gym", "item_type": "Expense", "amount": "45.50",
		 "is_included": true, "date_mode": "Schedule",
		 "schedule": {"frequency": "Monthly", "anchor_date": "2024-01-31", "interval": 1}},
		{"id": "holiday", "name": "Holiday", "item_type": "Expense", "amount": 3000,
		 "is_included": false, "date_mode": "FlexibleWindow",
		 "flexible_window": {"start_date": "2024-06-01", "end_date": "2024-08-31", "allocation_mode": "EvenlySpread"}}
	]
}`

func TestParsePlan(t *testing.T) {
	f := NewPlanFactory()

	plan, err := f.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)

	assert.Equal(t, forecast.PlanID("plan-2024"), plan.ID)
	assert.Equal(t, forecast.FamilyID("fam-1"), plan.FamilyID)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), plan.StartDate)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), plan.EndDate)
	assert.Equal(t, forecast.StartingBalanceManual, plan.StartingBalanceMode)
	require.NotNil(t, plan.StartingBalanceAmount)
	assert.Equal(t, "10000", plan.StartingBalanceAmount.String())
	assert.Equal(t, []forecast.AccountID{"acc-1", "acc-2"}, plan.SelectedAccounts)

	income, ok := plan.Income.(forecast.ManualRecurringIncome)
	require.True(t, ok)
	assert.Equal(t, "5000", income.Amount.String())
	assert.Equal(t, forecast.FrequencyMonthly, income.Frequency)

	outgoing, ok := plan.Outgoing.(forecast.HistoricalAverageOutgoing)
	require.True(t, ok)
	assert.Equal(t, 6, outgoing.LookbackMonths)

	require.Len(t, plan.PlannedItems, 3)
	car := plan.PlannedItems[0]
	assert.Equal(t, forecast.PlanID("plan-2024"), car.PlanID)
	require.NotNil(t, car.FixedDate)
	assert.Equal(t, time.Date(2024, time.May, 14, 0, 0, 0, 0, time.UTC), car.FixedDate.Date)

	gym := plan.PlannedItems[1]
	assert.Equal(t, "45.5", gym.Amount.String())
	require.NotNil(t, gym.Schedule)
	assert.Equal(t, 1, gym.Schedule.Interval)

	holiday := plan.PlannedItems[2]
	assert.False(t, holiday.IsIncluded)
	require.NotNil(t, holiday.FlexibleWindow)
	assert.Equal(t, forecast.AllocateEvenlySpread, holiday.FlexibleWindow.AllocationMode)
}

func TestParsePlan_FillsMissingIDs(t *testing.T) {
	n := 0
	f := &PlanFactory{NewID: func() string {
		n++
		return "gen-" + string(rune('0'+n))
	}}

	plan, err := f.ParsePlan([]byte(`{
		"name": "no ids",
		"start_date": "2024-01-01",
		"end_date": "2024-03-31",
		"starting_balance_mode": "CalculatedCurrent",
		"account_scope_mode": "AllAccounts",
		"income_strategy": {"mode": "ManualRecurring", "amount": 100},
		"outgoing_strategy": {"mode": "HistoricalAverage", "lookback_months": 0},
		"planned_items": [
			{"name": "x", "item_type": "Income", "amount": 1, "is_included": true,
			 "date_mode": "FixedDate", "fixed_date": {"date": "2024-02-01"}}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, forecast.PlanID("gen-1"), plan.ID)
	assert.Equal(t, forecast.PlannedItemID("gen-2"), plan.PlannedItems[0].ID)
	assert.Equal(t, forecast.PlanID("gen-1"), plan.PlannedItems[0].PlanID)
}

func TestParsePlan_StrategyAsEncodedString(t *testing.T) {
	f := NewPlanFactory()
	pj := PlanJSON{
		Name:                "encoded",
		StartDate:           "2024-01-01",
		EndDate:             "2024-01-31",
		StartingBalanceMode: "CalculatedCurrent",
		AccountScopeMode:    "AllAccounts",
		IncomeStrategy:      json.RawMessage(`"{\"mode\":\"ManualRecurring\",\"amount\":\"250.10\"}"`),
		OutgoingStrategy:    json.RawMessage(`"{\"mode\":\"HistoricalAverage\",\"lookback_months\":3}"`),
	}

	plan, err := f.FromJSON(pj)
	require.NoError(t, err)
	assert.Equal(t, "250.1", plan.Income.(forecast.ManualRecurringIncome).Amount.String())
	assert.Equal(t, 3, plan.Outgoing.(forecast.HistoricalAverageOutgoing).LookbackMonths)
}

func TestParsePlan_Errors(t *testing.T) {
	f := NewPlanFactory()

	tests := []struct {
		name    string
		mutate  func(m map[string]any)
		wantErr error
	}{
		{
			name:    "unknown income mode",
			mutate:  func(m map[string]any) { m["income_strategy"] = map[string]any{"mode": "Salary"} },
			wantErr: forecast.ErrInvalidStrategy,
		},
		{
			name:    "missing income amount",
			mutate:  func(m map[string]any) { m["income_strategy"] = map[string]any{"mode": "ManualRecurring"} },
			wantErr: forecast.ErrInvalidStrategy,
		},
		{
			name:    "missing outgoing strategy",
			mutate:  func(m map[string]any) { delete(m, "outgoing_strategy") },
			wantErr: forecast.ErrInvalidStrategy,
		},
		{
			name:    "missing lookback",
			mutate:  func(m map[string]any) { m["outgoing_strategy"] = map[string]any{"mode": "HistoricalAverage"} },
			wantErr: forecast.ErrInvalidStrategy,
		},
		{
			name:    "bad start date",
			mutate:  func(m map[string]any) { m["start_date"] = "01/01/2024" },
			wantErr: forecast.ErrInvalidPlan,
		},
		{
			name:    "manual balance without amount",
			mutate:  func(m map[string]any) { delete(m, "starting_balance_amount") },
			wantErr: forecast.ErrStartingBalanceRequired,
		},
		{
			name: "schedule item without schedule",
			mutate: func(m map[string]any) {
				m["planned_items"] = []any{map[string]any{
					"id": "bad", "name": "bad", "item_type": "Expense", "amount": 1,
					"is_included": true, "date_mode": "Schedule",
				}}
			},
			wantErr: forecast.ErrInvalidPlannedItem,
		},
		{
			name: "schedule interval beyond cap",
			mutate: func(m map[string]any) {
				m["planned_items"] = []any{map[string]any{
					"id": "bad", "name": "bad", "item_type": "Expense", "amount": 1,
					"is_included": true, "date_mode": "Schedule",
					"schedule": map[string]any{"frequency": "Weekly", "anchor_date": "2023-06-15", "interval": int64(1) << 62},
				}}
			},
			wantErr: forecast.ErrInvalidPlannedItem,
		},
		{
			name: "unparseable fixed date",
			mutate: func(m map[string]any) {
				m["planned_items"] = []any{map[string]any{
					"id": "bad", "name": "bad", "item_type": "Expense", "amount": 1,
					"is_included": true, "date_mode": "FixedDate",
					"fixed_date": map[string]any{"date": "soon"},
				}}
			},
			wantErr: forecast.ErrInvalidPlannedItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(samplePlan), &m))
			tt.mutate(m)
			data, err := json.Marshal(m)
			require.NoError(t, err)

			_, err = f.ParsePlan(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, forecast.IsConfigurationError(err))
		})
	}
}

func TestParsePlan_MissingIsIncludedMeansIncluded(t *testing.T) {
	// GIVEN: A planned item without is_included
	data := `{
		"name": "defaults",
		"start_date": "2024-01-01",
		"end_date": "2024-03-31",
		"starting_balance_mode": "CalculatedCurrent",
		"account_scope_mode": "AllAccounts",
		"income_strategy": {"mode": "ManualRecurring", "amount": 100},
		"outgoing_strategy": {"mode": "HistoricalAverage", "lookback_months": 3},
		"planned_items": [
			{"id": "rent", "name": "Rent", "item_type": "Expense", "amount": 900,
			 "date_mode": "FixedDate", "fixed_date": {"date": "2024-02-01"}}
		]
	}`

	// WHEN: Parsing
	plan, err := NewPlanFactory().ParsePlan([]byte(data))

	// THEN: The item counts toward the forecast
	require.NoError(t, err)
	require.Len(t, plan.PlannedItems, 1)
	assert.True(t, plan.PlannedItems[0].IsIncluded)
}

func TestParsePlan_MalformedJSON(t *testing.T) {
	_, err := NewPlanFactory().ParsePlan([]byte(`{"name":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, forecast.ErrInvalidPlan)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewPlanFactory()
	plan, err := f.ParsePlan([]byte(samplePlan))
	require.NoError(t, err)

	pj, err := f.ToJSON(plan)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", pj.StartDate)
	assert.Equal(t, "2024-01-31", pj.PlannedItems[1].Schedule.AnchorDate)

	again, err := f.FromJSON(pj)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, again.ID)
	assert.Equal(t, plan.Outgoing, again.Outgoing)
	assert.True(t, plan.StartingBalanceAmount.Equal(*again.StartingBalanceAmount))
	require.Len(t, again.PlannedItems, len(plan.PlannedItems))
	for i, item := range plan.PlannedItems {
		got := again.PlannedItems[i]
		assert.Equal(t, item.ID, got.ID)
		assert.Equal(t, item.DateMode, got.DateMode)
		assert.True(t, item.Amount.Equal(got.Amount), item.Name)
		assert.Equal(t, item.FixedDate, got.FixedDate)
		assert.Equal(t, item.Schedule, got.Schedule)
		assert.Equal(t, item.FlexibleWindow, got.FlexibleWindow)
	}
}
