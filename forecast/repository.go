package forecast

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLABORATORS - Read-only views the engine depends on
// =============================================================================

type TransactionType string

const (
	TxCredit TransactionType = "Credit"
	TxDebit  TransactionType = "Debit"
)

// CreditDebitTotal is the aggregate of one transaction type for one account.
// Totals are positive magnitudes.
type CreditDebitTotal struct {
	TransactionType TransactionType
	Total           decimal.Decimal
}

// MonthlyBalance is an observed balance at a month end.
type MonthlyBalance struct {
	PeriodEnd time.Time
	Balance   decimal.Decimal
}

type AccountType string

const (
	AccountTransaction AccountType = "Transaction"
	AccountSavings     AccountType = "Savings"
	AccountCredit      AccountType = "Credit"
	AccountLoan        AccountType = "Loan"
)

// Instrument is the current state of one account.
type Instrument struct {
	AccountID   AccountID
	Name        string
	AccountType AccountType
	Balance     decimal.Decimal
}

func (i Instrument) IsSavings() bool { return i.AccountType == AccountSavings }

// ReportRepository serves aggregated historical data. Both queries take an
// inclusive [start, end] date range.
type ReportRepository interface {
	GetCreditDebitTotalsForAccounts(ctx context.Context, accountIDs []AccountID, start, end time.Time) (map[AccountID][]CreditDebitTotal, error)
	GetMonthlyBalancesForAccounts(ctx context.Context, accountIDs []AccountID, start, end time.Time) (map[AccountID][]MonthlyBalance, error)
}

// InstrumentRepository returns the current instruments for the given accounts.
type InstrumentRepository interface {
	Get(ctx context.Context, accountIDs []AccountID) ([]Instrument, error)
}

// UserContext exposes the caller's family and the accounts they may use when
// the plan scope is AllAccounts.
type UserContext interface {
	FamilyID() FamilyID
	AccountIDs() []AccountID
}

// StaticUser is a UserContext with fixed values.
type StaticUser struct {
	Family   FamilyID
	Accounts []AccountID
}

func (u StaticUser) FamilyID() FamilyID      { return u.Family }
func (u StaticUser) AccountIDs() []AccountID { return u.Accounts }
