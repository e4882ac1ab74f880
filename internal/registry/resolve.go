package registry

import (
	"context"
	"fmt"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
)

// ResolveAccount picks the account to use for op on calendarID.
//
// An explicit accountID must be in accounts. For a write its registry role on
// the calendar must allow writing; a calendar the registry does not list for
// that account (such as the "primary" alias) is accepted with an empty role.
//
// An empty accountID, or DefaultAccount when no account has that name, lets
// the registry choose: a single-account directory uses that account,
// otherwise GetAccountForCalendar decides.
func (r *Registry) ResolveAccount(ctx context.Context, accountID, calendarID string, accounts map[string]calendar.Service, op OperationType) (*AccountSelection, error) {
	if err := ValidateCalendarID(calendarID); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts are configured", ErrAccountNotFound)
	}

	explicit := accountID != "" && accountID != DefaultAccount
	if accountID == DefaultAccount {
		_, explicit = accounts[DefaultAccount]
	}
	if explicit {
		return r.resolveExplicit(ctx, accountID, calendarID, accounts, op)
	}

	if len(accounts) == 1 {
		for id := range accounts {
			return r.resolveExplicit(ctx, id, calendarID, accounts, op)
		}
	}

	sel, err := r.GetAccountForCalendar(ctx, calendarID, accounts, op)
	if err != nil {
		return nil, err
	}
	if sel != nil {
		return sel, nil
	}

	entries, err := r.GetAccountsForCalendar(ctx, calendarID, accounts)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s (specify an account)", ErrCalendarNotFound, calendarID)
	}
	return nil, fmt.Errorf("%w: preferred account %s has role %s on calendar %s",
		ErrInsufficientPermission, entries[0].AccountID, entries[0].AccessRole, calendarID)
}

func (r *Registry) resolveExplicit(ctx context.Context, accountID, calendarID string, accounts map[string]calendar.Service, op OperationType) (*AccountSelection, error) {
	if _, ok := accounts[accountID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	entries, err := r.GetAccountsForCalendar(ctx, calendarID, accounts)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.AccountID != accountID {
			continue
		}
		if op == OperationWrite && !CanWrite(e.AccessRole) {
			return nil, fmt.Errorf("%w: account %s has role %s on calendar %s",
				ErrInsufficientPermission, accountID, e.AccessRole, calendarID)
		}
		return &AccountSelection{AccountID: accountID, AccessRole: e.AccessRole}, nil
	}
	return &AccountSelection{AccountID: accountID}, nil
}
