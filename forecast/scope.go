package forecast

import "fmt"

// ResolveAccountScope returns the accounts every repository query uses.
// SelectedAccounts is passed through unmodified; AllAccounts takes the user's
// full set.
func ResolveAccountScope(plan ForecastPlan, user UserContext) ([]AccountID, error) {
	var ids []AccountID
	switch plan.AccountScopeMode {
	case ScopeAllAccounts:
		if user == nil {
			return nil, fmt.Errorf("%w: no user context for all-accounts scope", ErrNoAccounts)
		}
		ids = user.AccountIDs()
	case ScopeSelectedAccounts:
		ids = plan.SelectedAccounts
	default:
		return nil, fmt.Errorf("%w: unknown account scope mode %q", ErrInvalidPlan, plan.AccountScopeMode)
	}
	if len(ids) == 0 {
		return nil, ErrNoAccounts
	}
	return ids, nil
}

// Validate rejects configuration errors before any computation starts.
func (plan ForecastPlan) Validate() error {
	switch plan.StartingBalanceMode {
	case StartingBalanceManual:
		if plan.StartingBalanceAmount == nil {
			return ErrStartingBalanceRequired
		}
	case StartingBalanceCalculated:
	default:
		return fmt.Errorf("%w: unknown starting balance mode %q", ErrInvalidPlan, plan.StartingBalanceMode)
	}

	if _, err := monthlyIncome(plan.Income); err != nil {
		return err
	}
	if _, err := lookbackMonths(plan.Outgoing); err != nil {
		return err
	}

	for _, item := range plan.PlannedItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the item carries the sub-record its DateMode needs.
// Excluded items are still validated; a malformed item is a configuration
// error regardless of whether it currently contributes.
func (p PlannedItem) Validate() error {
	fail := func(reason string) error {
		return &PlannedItemError{ItemID: p.ID, Reason: reason}
	}

	switch p.ItemType {
	case ItemIncome, ItemExpense:
	default:
		return fail(fmt.Sprintf("unknown item type %q", p.ItemType))
	}
	if p.Amount.IsNegative() {
		return fail("amount must not be negative")
	}

	switch p.DateMode {
	case DateModeFixedDate:
		if p.FixedDate == nil {
			return fail("fixed date mode without fixed date")
		}
	case DateModeSchedule:
		if p.Schedule == nil {
			return fail("schedule mode without schedule")
		}
		switch p.Schedule.Frequency {
		case FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		default:
			return fail(fmt.Sprintf("unknown schedule frequency %q", p.Schedule.Frequency))
		}
		if p.Schedule.Interval < 1 {
			return fail("schedule interval must be at least 1")
		}
		if p.Schedule.Interval > MaxScheduleInterval {
			return fail(fmt.Sprintf("schedule interval must be at most %d", MaxScheduleInterval))
		}
	case DateModeFlexibleWindow:
		if p.FlexibleWindow == nil {
			return fail("flexible window mode without window")
		}
		switch p.FlexibleWindow.AllocationMode {
		case AllocateEvenlySpread, AllocateAllAtEnd:
		default:
			return fail(fmt.Sprintf("unknown allocation mode %q", p.FlexibleWindow.AllocationMode))
		}
	default:
		return fail(fmt.Sprintf("unknown date mode %q", p.DateMode))
	}
	return nil
}
