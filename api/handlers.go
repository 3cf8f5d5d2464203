/*
handlers.go - HTTP API handlers for the cash-flow forecast service

PURPOSE:
  Exposes accounts, their history and the forecast engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  store and the engine.

ENDPOINTS:
  Accounts:
    GET    /api/accounts?family_id=...          List a family's accounts
    POST   /api/accounts                        Create account
    GET    /api/accounts/{id}                   Get account
    GET    /api/accounts/{id}/transactions      Transaction history
    POST   /api/accounts/{id}/transactions      Record credit/debit
    POST   /api/accounts/{id}/snapshots         Record a month-end balance

  Forecasts:
    POST   /api/forecasts/calculate             Run a plan (body: plan JSON)

  Admin:
    POST   /api/admin/month-end                 Snapshot every account

  Scenarios:
    GET    /api/scenarios                       List demo scenarios
    POST   /api/scenarios/load                  Load a demo scenario
    POST   /api/scenarios/reset                 Clear all data

FAMILY RESOLUTION:
  The X-Family-ID header selects the family. Account listing also accepts
  ?family_id=, and forecasts fall back to the plan's family_id.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, plan configuration errors
  - 404: Unknown account
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/factory"
	"github.com/warp/cashflow-forecast/forecast"
	"github.com/warp/cashflow-forecast/store/sqlite"
)

// FamilyHeader carries the caller's family.
const FamilyHeader = "X-Family-ID"

const maxPlanBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Plans *factory.PlanFactory
	Log   logrus.FieldLogger

	// Now is the clock used for month-end defaults.
	Now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store: store,
		Plans: factory.NewPlanFactory(),
		Log:   log,
		Now:   time.Now,
	}
}

func (h *Handler) logger() logrus.FieldLogger {
	if h.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return h.Log
}

func (h *Handler) today() time.Time {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	t := now().UTC()
	return forecast.Date(t.Year(), t.Month(), t.Day())
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns a family's accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	family := r.Header.Get(FamilyHeader)
	if q := r.URL.Query().Get("family_id"); q != "" {
		family = q
	}
	if family == "" {
		writeError(w, http.StatusBadRequest, "family_id query parameter or X-Family-ID header required", nil)
		return
	}

	accounts, err := h.Store.ListAccounts(r.Context(), forecast.FamilyID(family))
	if err != nil {
		h.writeInternal(w, r, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, acc := range accounts {
		dtos[i] = toAccountDTO(acc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FamilyID == "" {
		req.FamilyID = r.Header.Get(FamilyHeader)
	}

	acc, err := h.Store.SaveAccount(r.Context(), sqlite.Account{
		ID:          forecast.AccountID(req.ID),
		FamilyID:    forecast.FamilyID(req.FamilyID),
		Name:        req.Name,
		AccountType: forecast.AccountType(req.AccountType),
		Balance:     req.Balance,
	})
	if err != nil {
		h.writeStoreError(w, r, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(acc))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(*acc))
}

func (h *Handler) loadAccount(w http.ResponseWriter, r *http.Request) (*sqlite.Account, bool) {
	id := forecast.AccountID(chi.URLParam(r, "id"))

	acc, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		h.writeInternal(w, r, "Failed to get account", err)
		return nil, false
	}
	if acc == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return nil, false
	}
	return acc, true
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns an account's transaction history.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	acc, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	txns, err := h.Store.ListTransactions(r.Context(), acc.ID)
	if err != nil {
		h.writeInternal(w, r, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txns))
	for i, t := range txns {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransaction records a credit or debit and adjusts the balance.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	txn, err := h.Store.RecordTransaction(r.Context(), sqlite.TransactionRecord{
		ID:          req.ID,
		AccountID:   forecast.AccountID(chi.URLParam(r, "id")),
		Date:        date,
		Amount:      req.Amount,
		Type:        forecast.TransactionType(req.TransactionType),
		Description: req.Description,
	})
	if err != nil {
		h.writeStoreError(w, r, "Failed to record transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionDTO(txn))
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// CreateSnapshot records a month-end balance for one account. Without an
// explicit balance the account's current balance is used.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	periodEnd, err := h.periodEnd(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
		return
	}

	balance := acc.Balance
	if req.Balance != nil {
		balance = *req.Balance
	}

	snap := sqlite.SnapshotRecord{AccountID: acc.ID, PeriodEnd: periodEnd, Balance: balance}
	if err := h.Store.SaveSnapshot(r.Context(), snap); err != nil {
		h.writeInternal(w, r, "Failed to save snapshot", err)
		return
	}

	writeJSON(w, http.StatusCreated, SnapshotDTO{
		AccountID: string(acc.ID),
		PeriodEnd: periodEnd.Format(dateLayout),
		Balance:   balance.StringFixed(2),
	})
}

// MonthEnd snapshots every account's balance.
func (h *Handler) MonthEnd(w http.ResponseWriter, r *http.Request) {
	var req MonthEndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	periodEnd, err := h.periodEnd(req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period_end format (use YYYY-MM-DD)", err)
		return
	}

	n, err := h.Store.SnapshotMonthEnd(r.Context(), periodEnd)
	if err != nil {
		h.writeInternal(w, r, "Failed to snapshot balances", err)
		return
	}

	h.logger().WithFields(logrus.Fields{"period_end": periodEnd.Format(dateLayout), "accounts": n}).
		Info("month-end snapshot taken")
	writeJSON(w, http.StatusOK, MonthEndResponse{PeriodEnd: periodEnd.Format(dateLayout), Accounts: n})
}

// periodEnd parses s, defaulting to the end of the current month.
func (h *Handler) periodEnd(s string) (time.Time, error) {
	if s == "" {
		return forecast.EndOfMonth(h.today()), nil
	}
	return time.Parse(dateLayout, s)
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// CalculateForecast parses a plan from the body and runs the engine over the
// caller's family.
func (h *Handler) CalculateForecast(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.Plans.ParsePlan(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid forecast plan", err)
		return
	}

	family := r.Header.Get(FamilyHeader)
	if family == "" {
		family = string(plan.FamilyID)
	}
	if family == "" {
		writeError(w, http.StatusBadRequest, "X-Family-ID header or plan family_id required", nil)
		return
	}

	user, err := h.Store.UserContext(r.Context(), forecast.FamilyID(family))
	if err != nil {
		h.writeInternal(w, r, "Failed to load family accounts", err)
		return
	}

	engine := forecast.NewEngine(h.Store, h.Store, user)
	engine.Log = h.logger().WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"family_id":  family,
		"plan_id":    plan.ID,
	})

	result, err := engine.Calculate(r.Context(), *plan)
	if err != nil {
		if forecast.IsConfigurationError(err) {
			writeError(w, http.StatusBadRequest, "Invalid forecast plan", err)
			return
		}
		h.writeInternal(w, r, "Failed to calculate forecast", err)
		return
	}

	writeJSON(w, http.StatusOK, ToForecastResultDTO(result))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeInternal(w, r, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps store validation errors to 4xx, the rest to 500.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, sqlite.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found", err)
	case errors.Is(err, sqlite.ErrInvalidTransaction), errors.Is(err, sqlite.ErrInvalidAccount):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.writeInternal(w, r, message, err)
	}
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger().WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	}).Error(message)
	writeError(w, http.StatusInternalServerError, message, err)
}
