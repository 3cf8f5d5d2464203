/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the forecast domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Accounts:     AccountDTO, CreateAccountRequest
  Transactions: TransactionDTO, CreateTransactionRequest
  Snapshots:    SnapshotDTO, CreateSnapshotRequest, MonthEndRequest
  Forecasts:    ForecastResultDTO, MonthResultDTO, ForecastSummaryDTO
  Scenarios:    ScenarioDTO, LoadScenarioRequest

MONEY:
  Decimals are rendered as strings ("1234.50") so clients never see a
  float. Requests accept numbers or strings.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON request body
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID          string `json:"id"`
	FamilyID    string `json:"family_id"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	Balance     string `json:"balance"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID          string          `json:"id"`
	FamilyID    string          `json:"family_id"`
	Name        string          `json:"name"`
	AccountType string          `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
}

func toAccountDTO(acc sqlite.Account) AccountDTO {
	return AccountDTO{
		ID:          string(acc.ID),
		FamilyID:    string(acc.FamilyID),
		Name:        acc.Name,
		AccountType: string(acc.AccountType),
		Balance:     acc.Balance.StringFixed(2),
		CreatedAt:   acc.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transaction_type"`
	Description     string `json:"description,omitempty"`
}

// CreateTransactionRequest records a credit or debit. Amount is positive.
type CreateTransactionRequest struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType string          `json:"transaction_type"` // Credit, Debit
	Description     string          `json:"description"`
}

func toTransactionDTO(t sqlite.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		ID:              t.ID,
		AccountID:       string(t.AccountID),
		Date:            t.Date.Format(dateLayout),
		Amount:          t.Amount.StringFixed(2),
		TransactionType: string(t.Type),
		Description:     t.Description,
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SnapshotDTO represents a month-end balance.
type SnapshotDTO struct {
	AccountID string `json:"account_id"`
	PeriodEnd string `json:"period_end"`
	Balance   string `json:"balance"`
}

// CreateSnapshotRequest records a balance for one account. PeriodEnd
// defaults to the end of the current month.
type CreateSnapshotRequest struct {
	PeriodEnd string           `json:"period_end"`
	Balance   *decimal.Decimal `json:"balance"`
}

// MonthEndRequest snapshots every account at PeriodEnd.
type MonthEndRequest struct {
	PeriodEnd string `json:"period_end"`
}

// MonthEndResponse reports how many accounts were captured.
type MonthEndResponse struct {
	PeriodEnd string `json:"period_end"`
	Accounts  int    `json:"accounts"`
}

// =============================================================================
// FORECASTS
// =============================================================================

// MonthResultDTO is one projected month.
type MonthResultDTO struct {
	Month                  string  `json:"month"` // YYYY-MM
	OpeningBalance         string  `json:"opening_balance"`
	ClosingBalance         string  `json:"closing_balance"`
	BaselineOutgoingsTotal string  `json:"baseline_outgoings_total"`
	PlannedItemsTotal      string  `json:"planned_items_total"`
	ActualBalance          *string `json:"actual_balance,omitempty"`
}

// ForecastSummaryDTO summarizes a projection.
type ForecastSummaryDTO struct {
	LowestBalanceMonth       *string `json:"lowest_balance_month,omitempty"`
	MonthsBelowZero          int     `json:"months_below_zero"`
	TotalIncome              string  `json:"total_income"`
	MonthlyBaselineOutgoings string  `json:"monthly_baseline_outgoings"`
}

// ForecastResultDTO is the response of POST /api/forecasts/calculate.
type ForecastResultDTO struct {
	PlanID  string             `json:"plan_id"`
	Months  []MonthResultDTO   `json:"months"`
	Summary ForecastSummaryDTO `json:"summary"`
}

// ToForecastResultDTO renders an engine result for API and CLI output.
// Money is rounded to cents for display; the engine's figures stay exact.
func ToForecastResultDTO(res *forecast.ForecastResult) ForecastResultDTO {
	dto := ForecastResultDTO{
		PlanID: string(res.PlanID),
		Months: make([]MonthResultDTO, len(res.Months)),
		Summary: ForecastSummaryDTO{
			MonthsBelowZero:          res.Summary.MonthsBelowZero,
			TotalIncome:              res.Summary.TotalIncome.StringFixed(2),
			MonthlyBaselineOutgoings: res.Summary.MonthlyBaselineOutgoings.StringFixed(2),
		},
	}
	if res.Summary.LowestBalanceMonth != nil {
		dto.Summary.LowestBalanceMonth = strPtr(res.Summary.LowestBalanceMonth.Format("2006-01"))
	}
	for i, m := range res.Months {
		dto.Months[i] = MonthResultDTO{
			Month:                  m.Month.Format("2006-01"),
			OpeningBalance:         m.OpeningBalance.StringFixed(2),
			ClosingBalance:         m.ClosingBalance.StringFixed(2),
			BaselineOutgoingsTotal: m.BaselineOutgoingsTotal.StringFixed(2),
			PlannedItemsTotal:      m.PlannedItemsTotal.StringFixed(2),
		}
		if m.ActualBalance != nil {
			dto.Months[i].ActualBalance = strPtr(m.ActualBalance.StringFixed(2))
		}
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FamilyID    string `json:"family_id"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func strPtr(s string) *string {
	return &s
}
