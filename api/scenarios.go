/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built households that populate the database with accounts,
	six months of transaction history and month-end snapshots, so a plan
	can be forecast immediately.

AVAILABLE SCENARIOS:

	steady-household:  Salary covers spending, savings account on the side
	tight-budget:      Spending close to income, credit card carrying debt
	irregular-history: A one-off windfall month that reads as negative spending

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the family's accounts with opening balances
 3. For each of the last six months, record credits and debits
 4. Snapshot every account at each month end

History is dated relative to today so lookback windows always hit it.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "steady-household"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase handler
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlite"
)

// historyMonths is how many past months each scenario fills.
const historyMonths = 6

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "steady-household",
		Name:        "Steady Household",
		Description: "Monthly salary of 5000 against roughly 3800 of spending, plus a savings account",
		FamilyID:    "fam-steady",
	},
	{
		ID:          "tight-budget",
		Name:        "Tight Budget",
		Description: "Spending within a few hundred of income and a credit card balance",
		FamilyID:    "fam-tight",
	},
	{
		ID:          "irregular-history",
		Name:        "Irregular History",
		Description: "One month with an unrecorded windfall, flagged as an anomaly by recalibration",
		FamilyID:    "fam-irregular",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var loader func(context.Context) error
	switch req.ScenarioID {
	case "steady-household":
		loader = h.loadSteadyHouseholdScenario
	case "tight-budget":
		loader = h.loadTightBudgetScenario
	case "irregular-history":
		loader = h.loadIrregularHistoryScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.writeInternal(w, r, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := loader(ctx); err != nil {
		h.writeInternal(w, r, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	family, _ := scenarioFamily(req.ScenarioID)
	h.logger().WithFields(logrus.Fields{"scenario": req.ScenarioID, "family_id": family}).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "family_id": family})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// entry is one transaction in a scenario month.
type entry struct {
	day    int
	typ    forecast.TransactionType
	amount string
	desc   string
}

func credit(day int, amount, desc string) entry {
	return entry{day: day, typ: forecast.TxCredit, amount: amount, desc: desc}
}

func debit(day int, amount, desc string) entry {
	return entry{day: day, typ: forecast.TxDebit, amount: amount, desc: desc}
}

func (h *Handler) createAccounts(ctx context.Context, family string, accounts ...sqlite.Account) error {
	for _, acc := range accounts {
		acc.FamilyID = forecast.FamilyID(family)
		if _, err := h.Store.SaveAccount(ctx, acc); err != nil {
			return err
		}
	}
	return nil
}

// seedHistory records each past month's entries per account, oldest month
// first, then snapshots every account at that month's end. monthsAgo runs
// from historyMonths down to 1.
func (h *Handler) seedHistory(ctx context.Context, entries func(monthsAgo int) map[forecast.AccountID][]entry) error {
	thisMonth := forecast.StartOfMonth(h.today())

	// Opening snapshot so the first history month has a predecessor.
	if _, err := h.Store.SnapshotMonthEnd(ctx, thisMonth.AddDate(0, -historyMonths, -1)); err != nil {
		return err
	}

	for ago := historyMonths; ago >= 1; ago-- {
		month := thisMonth.AddDate(0, -ago, 0)
		last := forecast.EndOfMonth(month).Day()

		for accountID, list := range entries(ago) {
			for _, e := range list {
				d := e.day
				if d > last {
					d = last
				}
				_, err := h.Store.RecordTransaction(ctx, sqlite.TransactionRecord{
					AccountID:   accountID,
					Date:        forecast.Date(month.Year(), month.Month(), d),
					Type:        e.typ,
					Amount:      decimal.RequireFromString(e.amount),
					Description: e.desc,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", accountID, err)
				}
			}
		}

		if _, err := h.Store.SnapshotMonthEnd(ctx, forecast.EndOfMonth(month)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSteadyHouseholdScenario(ctx context.Context) error {
	err := h.createAccounts(ctx, "fam-steady",
		sqlite.Account{ID: "steady-everyday", Name: "Everyday", AccountType: forecast.AccountTransaction, Balance: decimal.NewFromInt(4200)},
		sqlite.Account{ID: "steady-savings", Name: "Rainy Day", AccountType: forecast.AccountSavings, Balance: decimal.NewFromInt(15000)},
	)
	if err != nil {
		return err
	}

	return h.seedHistory(ctx, func(int) map[forecast.AccountID][]entry {
		return map[forecast.AccountID][]entry{
			"steady-everyday": {
				credit(1, "5000.00", "Salary"),
				debit(3, "1800.00", "Rent"),
				debit(8, "650.40", "Groceries"),
				debit(15, "420.00", "Utilities"),
				debit(22, "629.60", "Groceries"),
				debit(28, "300.00", "Transfer to savings"),
			},
			"steady-savings": {
				credit(28, "300.00", "Transfer from everyday"),
			},
		}
	})
}

func (h *Handler) loadTightBudgetScenario(ctx context.Context) error {
	err := h.createAccounts(ctx, "fam-tight",
		sqlite.Account{ID: "tight-everyday", Name: "Joint Account", AccountType: forecast.AccountTransaction, Balance: decimal.NewFromInt(900)},
		sqlite.Account{ID: "tight-card", Name: "Credit Card", AccountType: forecast.AccountCredit, Balance: decimal.NewFromInt(-1200)},
	)
	if err != nil {
		return err
	}

	return h.seedHistory(ctx, func(ago int) map[forecast.AccountID][]entry {
		card := []entry{debit(12, "310.00", "Card purchases")}
		if ago%2 == 0 {
			card = append(card, credit(25, "250.00", "Card repayment"))
		}
		return map[forecast.AccountID][]entry{
			"tight-everyday": {
				credit(15, "3400.00", "Wages"),
				debit(1, "1450.00", "Rent"),
				debit(10, "780.00", "Groceries"),
				debit(18, "600.00", "Car loan"),
				debit(25, "450.00", "Bills"),
			},
			"tight-card": card,
		}
	})
}

func (h *Handler) loadIrregularHistoryScenario(ctx context.Context) error {
	err := h.createAccounts(ctx, "fam-irregular",
		sqlite.Account{ID: "irregular-everyday", Name: "Everyday", AccountType: forecast.AccountTransaction, Balance: decimal.NewFromInt(3000)},
	)
	if err != nil {
		return err
	}

	if err := h.seedHistory(ctx, func(int) map[forecast.AccountID][]entry {
		list := []entry{
			credit(1, "4000.00", "Salary"),
			debit(5, "1500.00", "Mortgage"),
			debit(14, "1100.00", "Living costs"),
		}
		return map[forecast.AccountID][]entry{"irregular-everyday": list}
	}); err != nil {
		return err
	}

	// An inheritance landed three months ago but was never recorded as a
	// transaction; only the snapshot shows it.
	month := forecast.StartOfMonth(h.today()).AddDate(0, -3, 0)
	acc, err := h.Store.GetAccount(ctx, "irregular-everyday")
	if err != nil {
		return err
	}
	balances, err := h.Store.GetMonthlyBalancesForAccounts(ctx, []forecast.AccountID{acc.ID}, month, forecast.EndOfMonth(month))
	if err != nil {
		return err
	}
	for _, b := range balances[acc.ID] {
		err := h.Store.SaveSnapshot(ctx, sqlite.SnapshotRecord{
			AccountID: acc.ID,
			PeriodEnd: b.PeriodEnd,
			Balance:   b.Balance.Add(decimal.NewFromInt(8000)),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// scenarioFamily returns the family a scenario populates.
func scenarioFamily(id string) (string, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s.FamilyID, true
		}
	}
	return "", false
}
