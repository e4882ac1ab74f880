package batch

import (
	"context"
	"fmt"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

type resolutionKey struct {
	account    string
	calendarID string
}

// resolution is the cached outcome for one (account, calendar) pair.
type resolution struct {
	client     calendar.Service
	accountID  string
	calendarID string
	err        error

	timeZone    string
	timeZoneErr error
	tzLoaded    bool
}

// resolver caches account and time zone lookups for one batch invocation.
type resolver struct {
	reg      *registry.Registry
	accounts map[string]calendar.Service
	cache    map[resolutionKey]*resolution
}

func newResolver(reg *registry.Registry, accounts map[string]calendar.Service) *resolver {
	return &resolver{reg: reg, accounts: accounts, cache: make(map[resolutionKey]*resolution)}
}

func keyFor(account, calendarID string) resolutionKey {
	if account == "" {
		account = registry.DefaultAccount
	}
	return resolutionKey{account: account, calendarID: calendarID}
}

// resolve returns the cached resolution for the pair, resolving on a miss.
// Failed resolutions are cached too.
func (r *resolver) resolve(ctx context.Context, account, calendarID string) *resolution {
	key := keyFor(account, calendarID)
	if res, ok := r.cache[key]; ok {
		return res
	}

	res := &resolution{calendarID: calendarID}
	sel, err := r.reg.ResolveAccount(ctx, account, calendarID, r.accounts, registry.OperationWrite)
	if err != nil {
		res.err = err
	} else {
		res.accountID = sel.AccountID
		res.client = r.accounts[sel.AccountID]
	}
	r.cache[key] = res
	return res
}

// timeZone loads the calendar's zone once per resolution.
func (r *resolver) timeZone(ctx context.Context, res *resolution) (string, error) {
	if !res.tzLoaded {
		info, err := res.client.GetCalendar(ctx, res.calendarID)
		if err != nil {
			res.timeZoneErr = fmt.Errorf("failed to look up time zone for calendar %s: %w", res.calendarID, err)
		} else {
			res.timeZone = info.TimeZone
		}
		res.tzLoaded = true
	}
	return res.timeZone, res.timeZoneErr
}
