/*
engine.go - Forecast calculation entry point

STAGES (dependency order):
  1. Validate the plan                  (configuration errors fail fast)
  2. Resolve the account scope          (scope.go)
  3. Bucket the months                  (month.go; empty -> zeroed result)
  4. Load instruments for the scope     (types + current balances)
  5. Load report data, concurrently     (non-savings accounts only)
  6. Allocate planned items             (allocator.go)
  7. Estimate the baseline              (baseline.go)
  8. Resolve the starting balance
  9. Project the month chain + summary  (projection.go)

I/O:
  Repository errors are wrapped and returned. No retries. The context is
  handed to every repository call; the engine holds nothing across calls so
  cancellation needs no cleanup.
*/
package forecast

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine computes forecasts. It is safe for concurrent use as long as its
// collaborators are.
type Engine struct {
	Reports     ReportRepository
	Instruments InstrumentRepository
	User        UserContext
	Log         logrus.FieldLogger
}

// NewEngine wires an engine with a discarding logger.
func NewEngine(reports ReportRepository, instruments InstrumentRepository, user UserContext) *Engine {
	return &Engine{Reports: reports, Instruments: instruments, User: user}
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Calculate projects plan month by month.
func (e *Engine) Calculate(ctx context.Context, plan ForecastPlan) (*ForecastResult, error) {
	log := e.logger().WithField("plan_id", plan.ID)

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	income, _ := monthlyIncome(plan.Income)
	lookback, _ := lookbackMonths(plan.Outgoing)

	scope, err := ResolveAccountScope(plan, e.User)
	if err != nil {
		return nil, err
	}

	months := MonthBuckets(plan.StartDate, plan.EndDate)
	if len(months) == 0 {
		log.Debug("plan range is empty, returning zeroed forecast")
		return &ForecastResult{
			PlanID:  plan.ID,
			Months:  []MonthResult{},
			Summary: Summarize(nil, income, decimal.Zero),
		}, nil
	}

	// Needed in both starting balance modes: account types drive the
	// savings filter for the report queries.
	instruments, err := e.Instruments.Get(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruments: %w", err)
	}

	data, err := e.loadReports(ctx, spendingAccounts(scope, instruments), plan.StartDate, months, lookback)
	if err != nil {
		return nil, err
	}

	historical := HistoricalBaseline(data.totals, lookback)
	balances := SumBalancesByPeriod(data.balances)
	derived := DeriveOutgoings(balances, income)
	for _, d := range derived {
		if d.Anomalous {
			log.WithFields(logrus.Fields{
				"from":    d.From.Format("2006-01-02"),
				"to":      d.To.Format("2006-01-02"),
				"derived": d.Amount.String(),
			}).Debug("discarding anomalous balance pair")
		}
	}
	recalibrated := RecalibratedBaseline(derived)
	baseline := SelectBaseline(historical, recalibrated)
	log.WithFields(logrus.Fields{
		"historical":   historical.String(),
		"recalibrated": recalibrated != nil,
		"baseline":     baseline.String(),
	}).Debug("baseline outgoings selected")

	starting, err := StartingBalance(plan, instruments)
	if err != nil {
		return nil, err
	}

	results := ProjectMonths(ProjectionInput{
		Months:          months,
		StartingBalance: starting,
		MonthlyIncome:   income,
		Baseline:        baseline,
		PlannedTotals:   AllocatePlannedItems(months, plan.PlannedItems),
		ActualBalances:  actualBalances(months, balances),
	})

	return &ForecastResult{
		PlanID:  plan.ID,
		Months:  results,
		Summary: Summarize(results, income, baseline),
	}, nil
}

// =============================================================================
// STARTING BALANCE RESOLVER
// =============================================================================

// StartingBalance seeds the first month. Calculated mode sums every
// instrument in scope, savings included.
func StartingBalance(plan ForecastPlan, instruments []Instrument) (decimal.Decimal, error) {
	switch plan.StartingBalanceMode {
	case StartingBalanceManual:
		if plan.StartingBalanceAmount == nil {
			return decimal.Zero, ErrStartingBalanceRequired
		}
		return *plan.StartingBalanceAmount, nil
	case StartingBalanceCalculated:
		total := decimal.Zero
		for _, in := range instruments {
			total = total.Add(in.Balance)
		}
		return total, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown starting balance mode %q", ErrInvalidPlan, plan.StartingBalanceMode)
	}
}

// =============================================================================
// REPORT LOADING
// =============================================================================

type reportData struct {
	totals   map[AccountID][]CreditDebitTotal
	balances map[AccountID][]MonthlyBalance
}

// spendingAccounts keeps the scoped accounts that are not savings. Accounts
// the instrument repository did not return are kept; their type is unknown.
func spendingAccounts(scope []AccountID, instruments []Instrument) []AccountID {
	savings := make(map[AccountID]bool)
	for _, in := range instruments {
		if in.IsSavings() {
			savings[in.AccountID] = true
		}
	}
	out := make([]AccountID, 0, len(scope))
	for _, id := range scope {
		if !savings[id] {
			out = append(out, id)
		}
	}
	return out
}

// loadReports issues the two report queries concurrently.
func (e *Engine) loadReports(ctx context.Context, accounts []AccountID, start time.Time, months []time.Time, lookback int) (reportData, error) {
	var data reportData
	if len(accounts) == 0 {
		return data, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	planStart := StartOfMonth(start)

	if lookback > 0 {
		g.Go(func() error {
			from := planStart.AddDate(0, -lookback, 0)
			to := planStart.AddDate(0, 0, -1)
			totals, err := e.Reports.GetCreditDebitTotalsForAccounts(gctx, accounts, from, to)
			if err != nil {
				return fmt.Errorf("failed to load credit/debit totals: %w", err)
			}
			data.totals = totals
			return nil
		})
	}

	g.Go(func() error {
		from := planStart.AddDate(0, -1, 0)
		to := EndOfMonth(months[len(months)-1])
		balances, err := e.Reports.GetMonthlyBalancesForAccounts(gctx, accounts, from, to)
		if err != nil {
			return fmt.Errorf("failed to load monthly balances: %w", err)
		}
		data.balances = balances
		return nil
	})

	if err := g.Wait(); err != nil {
		return reportData{}, err
	}
	return data, nil
}
