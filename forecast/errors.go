/*
errors.go - Centralized error types for the forecast engine

ERROR CATEGORIES:
  1. Configuration errors - The plan cannot be computed as given. Rejected
     before any repository call.
  2. Empty results - Inverted ranges, items outside the plan. NOT errors;
     they produce zero contributions.
  3. Data anomalies - Negative derived outgoings. NOT errors; excluded from
     the recalibrated baseline.

Repository failures are wrapped with context and otherwise returned as-is,
so errors.Is(err, context.Canceled) keeps working for callers.
*/
package forecast

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is returned for structural plan problems (unknown modes).
	ErrInvalidPlan = errors.New("invalid forecast plan")

	// ErrStartingBalanceRequired is returned when the starting balance mode is
	// ManualAmount but no amount was supplied.
	ErrStartingBalanceRequired = errors.New("starting balance amount required for manual mode")

	// ErrNoAccounts is returned when the resolved account scope is empty.
	ErrNoAccounts = errors.New("account scope resolved to no accounts")

	// ErrInvalidStrategy is returned for missing or unsupported strategy payloads.
	ErrInvalidStrategy = errors.New("invalid strategy")

	// ErrInvalidPlannedItem is returned when a planned item is malformed.
	ErrInvalidPlannedItem = errors.New("invalid planned item")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PlannedItemError identifies which item failed validation and why.
type PlannedItemError struct {
	ItemID PlannedItemID
	Reason string
}

func (e *PlannedItemError) Error() string {
	return fmt.Sprintf("planned item %q: %s", e.ItemID, e.Reason)
}

func (e *PlannedItemError) Unwrap() error { return ErrInvalidPlannedItem }

// StrategyError reports a strategy that cannot be evaluated.
type StrategyError struct {
	Kind   string // "income" or "outgoing"
	Mode   string
	Reason string
}

func (e *StrategyError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("%s strategy: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s strategy %q: %s", e.Kind, e.Mode, e.Reason)
}

func (e *StrategyError) Unwrap() error { return ErrInvalidStrategy }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError reports whether err was caused by the plan itself
// rather than by a collaborator.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrStartingBalanceRequired) ||
		errors.Is(err, ErrNoAccounts) ||
		errors.Is(err, ErrInvalidStrategy) ||
		errors.Is(err, ErrInvalidPlannedItem)
}
