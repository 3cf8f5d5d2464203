/*
Package sqlite provides a SQLite-backed implementation of the forecast repositories.

PURPOSE:
  Persists accounts, their credit/debit transactions and month-end balance
  snapshots, and serves the aggregated reads the forecast engine needs.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  forecast.ReportRepository:     Credit/debit totals, monthly balances
  forecast.InstrumentRepository: Account metadata and current balances

KEY TABLES:
  accounts:          One row per account, holds the current balance
  transactions:      Dated credits and debits (positive magnitudes)
  balance_snapshots: Month-end balances, one per account per period end

MONEY:
  Amounts are stored as TEXT (decimal.String) and summed in Go, never with
  SQL SUM, so no value ever passes through a float.

DATES:
  Calendar dates are stored as YYYY-MM-DD so range filters compare
  lexicographically. Audit timestamps are RFC3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, WAL mode for concurrent readers.

USAGE:
  store, err := sqlite.New("./data/forecast.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  user, _ := store.UserContext(ctx, "fam-1")
  engine := forecast.NewEngine(store, store, user)

SEE ALSO:
  - forecast/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/cashflow-forecast/forecast"
)

const dateLayout = "2006-01-02"

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidAccount     = errors.New("invalid account")
)

// Store implements the forecast repositories using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_family ON accounts(family_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		txn_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: credit/debit totals over a lookback window
	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, txn_date);

	CREATE TABLE IF NOT EXISTS balance_snapshots (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		period_end TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(account_id, period_end)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// Account is a stored account with its current balance.
type Account struct {
	ID          forecast.AccountID
	FamilyID    forecast.FamilyID
	Name        string
	AccountType forecast.AccountType
	Balance     decimal.Decimal
	CreatedAt   time.Time
}

// SaveAccount inserts or updates an account. A missing ID is generated.
func (s *Store) SaveAccount(ctx context.Context, acc Account) (Account, error) {
	if acc.FamilyID == "" || acc.Name == "" {
		return acc, fmt.Errorf("%w: family and name are required", ErrInvalidAccount)
	}
	switch acc.AccountType {
	case forecast.AccountTransaction, forecast.AccountSavings, forecast.AccountCredit, forecast.AccountLoan:
	default:
		return acc, fmt.Errorf("%w: unknown account type %q", ErrInvalidAccount, acc.AccountType)
	}
	if acc.ID == "" {
		acc.ID = forecast.AccountID(uuid.NewString())
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO accounts (id, family_id, name, account_type, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			family_id = excluded.family_id,
			name = excluded.name,
			account_type = excluded.account_type,
			balance = excluded.balance
	`

	_, err := s.db.ExecContext(ctx, query,
		acc.ID, acc.FamilyID, acc.Name, acc.AccountType,
		acc.Balance.String(),
		acc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return acc, fmt.Errorf("failed to save account: %w", err)
	}
	return acc, nil
}

// GetAccount retrieves an account by ID. Returns nil, nil when absent.
func (s *Store) GetAccount(ctx context.Context, id forecast.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, family_id, name, account_type, balance, created_at FROM accounts WHERE id = ?",
		id,
	)
	acc, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListAccounts returns a family's accounts ordered by name.
func (s *Store) ListAccounts(ctx context.Context, familyID forecast.FamilyID) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, family_id, name, account_type, balance, created_at
		 FROM accounts WHERE family_id = ? ORDER BY name, id`,
		familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (Account, error) {
	var acc Account
	var balance, createdAt string
	if err := row.Scan(&acc.ID, &acc.FamilyID, &acc.Name, &acc.AccountType, &balance, &createdAt); err != nil {
		return acc, err
	}
	var err error
	if acc.Balance, err = parseDecimal(balance); err != nil {
		return acc, err
	}
	acc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return acc, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionRecord is one credit or debit against an account.
// Amount is a positive magnitude; Type gives the direction.
type TransactionRecord struct {
	ID          string
	AccountID   forecast.AccountID
	Date        time.Time
	Amount      decimal.Decimal
	Type        forecast.TransactionType
	Description string
	CreatedAt   time.Time
}

// RecordTransaction stores a transaction and adjusts the account balance in
// the same database transaction.
func (s *Store) RecordTransaction(ctx context.Context, txn TransactionRecord) (TransactionRecord, error) {
	if !txn.Amount.IsPositive() {
		return txn, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	var delta decimal.Decimal
	switch txn.Type {
	case forecast.TxCredit:
		delta = txn.Amount
	case forecast.TxDebit:
		delta = txn.Amount.Neg()
	default:
		return txn, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.Date.IsZero() {
		return txn, fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return txn, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var balance string
	err = sqlTx.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", txn.AccountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return txn, ErrAccountNotFound
	}
	if err != nil {
		return txn, err
	}
	current, err := parseDecimal(balance)
	if err != nil {
		return txn, err
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, txn_date, amount, transaction_type, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.AccountID,
		txn.Date.Format(dateLayout),
		txn.Amount.String(),
		txn.Type,
		nullString(txn.Description),
		txn.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return txn, fmt.Errorf("failed to record transaction: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, "UPDATE accounts SET balance = ? WHERE id = ?",
		current.Add(delta).String(), txn.AccountID)
	if err != nil {
		return txn, fmt.Errorf("failed to update balance: %w", err)
	}

	return txn, sqlTx.Commit()
}

// ListTransactions returns an account's transactions, oldest first.
func (s *Store) ListTransactions(ctx context.Context, accountID forecast.AccountID) ([]TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, txn_date, amount, transaction_type, description, created_at
		 FROM transactions WHERE account_id = ? ORDER BY txn_date, created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []TransactionRecord
	for rows.Next() {
		var t TransactionRecord
		var date, amount, createdAt string
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.AccountID, &date, &amount, &t.Type, &desc, &createdAt); err != nil {
			return nil, err
		}
		if t.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		t.Date, _ = time.Parse(dateLayout, date)
		t.Description = desc.String
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// =============================================================================
// BALANCE SNAPSHOTS
// =============================================================================

// SnapshotRecord is an account balance captured at a month end.
type SnapshotRecord struct {
	ID        string
	AccountID forecast.AccountID
	PeriodEnd time.Time
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// SaveSnapshot saves a balance snapshot, replacing any existing one for the
// same account and period end.
func (s *Store) SaveSnapshot(ctx context.Context, snap SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveSnapshot(ctx, s.db, snap)
}

func saveSnapshot(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, snap SnapshotRecord) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	query := `
		INSERT INTO balance_snapshots (id, account_id, period_end, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, period_end) DO UPDATE SET
			balance = excluded.balance,
			created_at = excluded.created_at
	`

	_, err := db.ExecContext(ctx, query,
		snap.ID, snap.AccountID,
		snap.PeriodEnd.Format(dateLayout),
		snap.Balance.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// SnapshotMonthEnd copies every account's current balance into a snapshot
// dated periodEnd. Returns the number of accounts captured.
func (s *Store) SnapshotMonthEnd(ctx context.Context, periodEnd time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	rows, err := sqlTx.QueryContext(ctx, "SELECT id, balance FROM accounts ORDER BY id")
	if err != nil {
		return 0, err
	}
	var snaps []SnapshotRecord
	for rows.Next() {
		var snap SnapshotRecord
		var balance string
		if err := rows.Scan(&snap.AccountID, &balance); err != nil {
			rows.Close()
			return 0, err
		}
		if snap.Balance, err = parseDecimal(balance); err != nil {
			rows.Close()
			return 0, err
		}
		snap.PeriodEnd = periodEnd
		snaps = append(snaps, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, snap := range snaps {
		if err := saveSnapshot(ctx, sqlTx, snap); err != nil {
			return 0, err
		}
	}
	return len(snaps), sqlTx.Commit()
}

// =============================================================================
// REPORT REPOSITORY (forecast.ReportRepository interface)
// =============================================================================

// GetCreditDebitTotalsForAccounts sums each account's credits and debits with
// dates in [start, end]. Accounts without activity are absent from the map.
func (s *Store) GetCreditDebitTotalsForAccounts(ctx context.Context, accountIDs []forecast.AccountID, start, end time.Time) (map[forecast.AccountID][]forecast.CreditDebitTotal, error) {
	result := make(map[forecast.AccountID][]forecast.CreditDebitTotal)
	if len(accountIDs) == 0 {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT account_id, transaction_type, amount FROM transactions
		WHERE account_id IN (` + placeholders(len(accountIDs)) + `)
		AND txn_date >= ? AND txn_date <= ?`
	args := append(idArgs(accountIDs), start.Format(dateLayout), end.Format(dateLayout))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct {
		account forecast.AccountID
		typ     forecast.TransactionType
	}
	sums := make(map[key]decimal.Decimal)
	for rows.Next() {
		var k key
		var amount string
		if err := rows.Scan(&k.account, &k.typ, &amount); err != nil {
			return nil, err
		}
		v, err := parseDecimal(amount)
		if err != nil {
			return nil, err
		}
		sums[k] = sums[k].Add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for k, total := range sums {
		result[k.account] = append(result[k.account], forecast.CreditDebitTotal{TransactionType: k.typ, Total: total})
	}
	for _, totals := range result {
		sort.Slice(totals, func(i, j int) bool { return totals[i].TransactionType < totals[j].TransactionType })
	}
	return result, nil
}

// GetMonthlyBalancesForAccounts returns snapshots with period ends in
// [start, end], ordered by period end.
func (s *Store) GetMonthlyBalancesForAccounts(ctx context.Context, accountIDs []forecast.AccountID, start, end time.Time) (map[forecast.AccountID][]forecast.MonthlyBalance, error) {
	result := make(map[forecast.AccountID][]forecast.MonthlyBalance)
	if len(accountIDs) == 0 {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT account_id, period_end, balance FROM balance_snapshots
		WHERE account_id IN (` + placeholders(len(accountIDs)) + `)
		AND period_end >= ? AND period_end <= ?
		ORDER BY period_end, account_id`
	args := append(idArgs(accountIDs), start.Format(dateLayout), end.Format(dateLayout))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id forecast.AccountID
		var periodEnd, balance string
		if err := rows.Scan(&id, &periodEnd, &balance); err != nil {
			return nil, err
		}
		mb := forecast.MonthlyBalance{}
		if mb.Balance, err = parseDecimal(balance); err != nil {
			return nil, err
		}
		if mb.PeriodEnd, err = time.Parse(dateLayout, periodEnd); err != nil {
			return nil, fmt.Errorf("invalid period end %q: %w", periodEnd, err)
		}
		result[id] = append(result[id], mb)
	}
	return result, rows.Err()
}

// =============================================================================
// INSTRUMENT REPOSITORY (forecast.InstrumentRepository interface)
// =============================================================================

// Get returns instruments for the accounts that exist; unknown IDs are skipped.
func (s *Store) Get(ctx context.Context, accountIDs []forecast.AccountID) ([]forecast.Instrument, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, family_id, name, account_type, balance, created_at FROM accounts
		 WHERE id IN (`+placeholders(len(accountIDs))+`) ORDER BY id`,
		idArgs(accountIDs)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []forecast.Instrument
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, forecast.Instrument{
			AccountID:   acc.ID,
			Name:        acc.Name,
			AccountType: acc.AccountType,
			Balance:     acc.Balance,
		})
	}
	return instruments, rows.Err()
}

// UserContext builds the account set of a family.
func (s *Store) UserContext(ctx context.Context, familyID forecast.FamilyID) (forecast.StaticUser, error) {
	accounts, err := s.ListAccounts(ctx, familyID)
	if err != nil {
		return forecast.StaticUser{}, err
	}
	user := forecast.StaticUser{Family: familyID}
	for _, acc := range accounts {
		user.Accounts = append(user.Accounts, acc.ID)
	}
	sort.Slice(user.Accounts, func(i, j int) bool { return user.Accounts[i] < user.Accounts[j] })
	return user, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"balance_snapshots", "transactions", "accounts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return d, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []forecast.AccountID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}
