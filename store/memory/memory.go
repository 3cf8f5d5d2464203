// Package memory provides in-memory forecast repositories (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
)

// =============================================================================
// MEMORY STORE - Implements ReportRepository and InstrumentRepository
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	instruments  map[forecast.AccountID]forecast.Instrument
	transactions map[forecast.AccountID][]Transaction
	balances     map[forecast.AccountID][]forecast.MonthlyBalance

	// Account sets each query was called with, in call order.
	calls []Call
}

// Transaction is one dated credit or debit. Amount is a positive magnitude.
type Transaction struct {
	Date   time.Time
	Type   forecast.TransactionType
	Amount decimal.Decimal
}

// Call records one repository invocation.
type Call struct {
	Method     string
	AccountIDs []forecast.AccountID
	Start, End time.Time
}

func NewMemory() *Memory {
	return &Memory{
		instruments:  make(map[forecast.AccountID]forecast.Instrument),
		transactions: make(map[forecast.AccountID][]Transaction),
		balances:     make(map[forecast.AccountID][]forecast.MonthlyBalance),
	}
}

// AddInstrument registers or replaces an account.
func (m *Memory) AddInstrument(in forecast.Instrument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments[in.AccountID] = in
}

// AddTransaction appends a transaction for an account.
func (m *Memory) AddTransaction(id forecast.AccountID, tx Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[id] = append(m.transactions[id], tx)
}

// AddMonthlyBalance records a month-end balance, keeping them ordered.
func (m *Memory) AddMonthlyBalance(id forecast.AccountID, b forecast.MonthlyBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.balances[id]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].PeriodEnd.After(b.PeriodEnd)
	})
	list = append(list, forecast.MonthlyBalance{})
	copy(list[i+1:], list[i:])
	list[i] = b
	m.balances[id] = list
}

// Calls returns a copy of the recorded invocations.
func (m *Memory) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call(nil), m.calls...)
}

func (m *Memory) record(method string, ids []forecast.AccountID, start, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{
		Method:     method,
		AccountIDs: append([]forecast.AccountID(nil), ids...),
		Start:      start,
		End:        end,
	})
}

// Get returns instruments for the given accounts. Unknown ids are skipped.
func (m *Memory) Get(ctx context.Context, accountIDs []forecast.AccountID) ([]forecast.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.record("Get", accountIDs, time.Time{}, time.Time{})

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []forecast.Instrument
	for _, id := range accountIDs {
		if in, ok := m.instruments[id]; ok {
			out = append(out, in)
		}
	}
	return out, nil
}

// GetCreditDebitTotalsForAccounts sums transactions per type in [start, end].
func (m *Memory) GetCreditDebitTotalsForAccounts(ctx context.Context, accountIDs []forecast.AccountID, start, end time.Time) (map[forecast.AccountID][]forecast.CreditDebitTotal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.record("GetCreditDebitTotalsForAccounts", accountIDs, start, end)

	m.mu.RLock()
	defer m.mu.RUnlock()
	period := forecast.Period{Start: start, End: end}
	result := make(map[forecast.AccountID][]forecast.CreditDebitTotal)
	for _, id := range accountIDs {
		sums := make(map[forecast.TransactionType]decimal.Decimal)
		for _, tx := range m.transactions[id] {
			if !period.Contains(tx.Date) {
				continue
			}
			sums[tx.Type] = sums[tx.Type].Add(tx.Amount)
		}
		for _, typ := range []forecast.TransactionType{forecast.TxCredit, forecast.TxDebit} {
			if total, ok := sums[typ]; ok {
				result[id] = append(result[id], forecast.CreditDebitTotal{TransactionType: typ, Total: total})
			}
		}
	}
	return result, nil
}

// GetMonthlyBalancesForAccounts returns month-end balances in [start, end].
func (m *Memory) GetMonthlyBalancesForAccounts(ctx context.Context, accountIDs []forecast.AccountID, start, end time.Time) (map[forecast.AccountID][]forecast.MonthlyBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.record("GetMonthlyBalancesForAccounts", accountIDs, start, end)

	m.mu.RLock()
	defer m.mu.RUnlock()
	period := forecast.Period{Start: start, End: end}
	result := make(map[forecast.AccountID][]forecast.MonthlyBalance)
	for _, id := range accountIDs {
		for _, b := range m.balances[id] {
			if period.Contains(b.PeriodEnd) {
				result[id] = append(result[id], b)
			}
		}
	}
	return result, nil
}

// User returns a user context owning every registered account.
func (m *Memory) User(family forecast.FamilyID) forecast.StaticUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]forecast.AccountID, 0, len(m.instruments))
	for id := range m.instruments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return forecast.StaticUser{Family: family, Accounts: ids}
}
