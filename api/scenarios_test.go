/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state and that the
	loaded history produces the forecast a reader of the scenario
	description would expect.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashflow-forecast/forecast"
)

func allTime() (time.Time, time.Time) {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestScenario_SteadyHousehold(t *testing.T) {
	// GIVEN: The steady household scenario, loaded on 2024-03-15
	h, router := setupTestHandler(t)
	ctx := context.Background()

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "steady-household"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fam-steady", decode[map[string]string](t, rec)["family_id"])

	// THEN: Six months of salary minus 3800 of spending accumulated
	everyday, err := h.Store.GetAccount(ctx, "steady-everyday")
	require.NoError(t, err)
	assert.Equal(t, "11400", everyday.Balance.String())

	savings, err := h.Store.GetAccount(ctx, "steady-savings")
	require.NoError(t, err)
	assert.Equal(t, "16800", savings.Balance.String())

	txns, err := h.Store.ListTransactions(ctx, "steady-everyday")
	require.NoError(t, err)
	assert.Len(t, txns, 36)
	assert.Equal(t, time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC), txns[0].Date)

	from, to := allTime()
	balances, err := h.Store.GetMonthlyBalancesForAccounts(ctx, []forecast.AccountID{"steady-everyday"}, from, to)
	require.NoError(t, err)
	require.Len(t, balances["steady-everyday"], 7, "opening snapshot plus six month ends")
	assert.Equal(t, time.Date(2023, time.August, 31, 0, 0, 0, 0, time.UTC), balances["steady-everyday"][0].PeriodEnd)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), balances["steady-everyday"][6].PeriodEnd)

	// WHEN: Forecasting the next quarter from current balances
	rec = do(t, router, http.MethodPost, "/api/forecasts/calculate", `{
		"id": "next-quarter",
		"start_date": "2024-03-01",
		"end_date": "2024-05-31",
		"starting_balance_mode": "CalculatedCurrent",
		"account_scope_mode": "AllAccounts",
		"income_strategy": {"mode": "ManualRecurring", "amount": 5000},
		"outgoing_strategy": {"mode": "HistoricalAverage", "lookback_months": 3}
	}`, FamilyHeader, "fam-steady")

	// THEN: Savings count toward the start but not toward spending
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ForecastResultDTO](t, rec)
	assert.Equal(t, "3800.00", result.Summary.MonthlyBaselineOutgoings)
	require.Len(t, result.Months, 3)
	assert.Equal(t, "28200.00", result.Months[0].OpeningBalance)
	assert.Equal(t, "31800.00", result.Months[2].ClosingBalance)
}

func TestScenario_TightBudget(t *testing.T) {
	h, router := setupTestHandler(t)
	ctx := context.Background()

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "tight-budget"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	accounts, err := h.Store.ListAccounts(ctx, "fam-tight")
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// 6 x (3400 - 3280) on the joint account
	joint, err := h.Store.GetAccount(ctx, "tight-everyday")
	require.NoError(t, err)
	assert.Equal(t, "1620", joint.Balance.String())

	// 6 x 310 of purchases, 3 repayments of 250
	card, err := h.Store.GetAccount(ctx, "tight-card")
	require.NoError(t, err)
	assert.Equal(t, "-2310", card.Balance.String())
}

func TestScenario_IrregularHistorySnapshotCarriesWindfall(t *testing.T) {
	h, router := setupTestHandler(t)
	ctx := context.Background()

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "irregular-history"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	from, to := allTime()
	balances, err := h.Store.GetMonthlyBalancesForAccounts(ctx, []forecast.AccountID{"irregular-everyday"}, from, to)
	require.NoError(t, err)
	series := balances["irregular-everyday"]
	require.Len(t, series, 7)

	// Nov -> Dec jumps by the windfall on top of the regular 1400 surplus
	nov, dec := series[3], series[4]
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), dec.PeriodEnd)
	assert.Equal(t, "9400", dec.Balance.Sub(nov.Balance).String())

	// With 4000 income, Nov -> Dec reads as negative spending
	derived := forecast.DeriveOutgoings(series, decimal.NewFromInt(4000))
	assert.True(t, derived[3].Anomalous)
}

func TestScenarios_ListLoadReset(t *testing.T) {
	h, router := setupTestHandler(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "steady-household"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "steady-household", decode[ScenarioDTO](t, rec).ID)

	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	accounts, err := h.Store.ListAccounts(context.Background(), "fam-steady")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}
