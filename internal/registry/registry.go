package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
)

const (
	// DefaultTTL is how long a snapshot is served before it is rebuilt.
	DefaultTTL = 5 * time.Minute

	// listConcurrency bounds parallel calendar-list calls during a build.
	listConcurrency = 4
)

// Registry serves unified calendar snapshots and account selection.
type Registry struct {
	store   SnapshotStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// builds collapses concurrent misses for one account set into one build.
	builds singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore sets the snapshot store. The default is a MemoryStore.
func WithStore(store SnapshotStore) Option {
	return func(r *Registry) { r.store = store }
}

// WithTTL sets the snapshot lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics records cache lookups and list failures.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		store: NewMemoryStore(),
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(r.logger, "registry")
	return r
}

// TTL returns the snapshot lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// GetUnifiedCalendars returns the unified view for accounts, building and
// caching it on a miss. A failing account contributes no calendars. The
// only error is ctx being done before the view is available.
func (r *Registry) GetUnifiedCalendars(ctx context.Context, accounts map[string]calendar.Service) ([]UnifiedCalendar, error) {
	snap, err := r.snapshot(ctx, accounts)
	if err != nil {
		return nil, err
	}
	return snap.Calendars, nil
}

// GetAccountForCalendar selects the preferred account for calendarID. For a
// write the preferred account must be an owner or writer; a lower-ranked
// writer is never used instead. Returns nil when nothing qualifies.
func (r *Registry) GetAccountForCalendar(ctx context.Context, calendarID string, accounts map[string]calendar.Service, op OperationType) (*AccountSelection, error) {
	snap, err := r.snapshot(ctx, accounts)
	if err != nil {
		return nil, err
	}
	unified, ok := snap.find(calendarID)
	if !ok || len(unified.AccessEntries) == 0 {
		return nil, nil
	}

	preferred := unified.Preferred()
	if op == OperationWrite && !CanWrite(preferred.AccessRole) {
		return nil, nil
	}
	return &AccountSelection{AccountID: preferred.AccountID, AccessRole: preferred.AccessRole}, nil
}

// GetAccountsForCalendar returns every access entry for calendarID in rank
// order, or nil if no account sees it.
func (r *Registry) GetAccountsForCalendar(ctx context.Context, calendarID string, accounts map[string]calendar.Service) ([]CalendarAccessEntry, error) {
	snap, err := r.snapshot(ctx, accounts)
	if err != nil {
		return nil, err
	}
	unified, ok := snap.find(calendarID)
	if !ok {
		return nil, nil
	}
	return unified.AccessEntries, nil
}

// ClearCache drops every snapshot.
func (r *Registry) ClearCache(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return err
	}
	r.logger.Info("registry cache cleared")
	return nil
}

func (r *Registry) fresh(snap *Snapshot) bool {
	return snap != nil && r.now().Sub(snap.BuiltAt) < r.ttl
}

func (r *Registry) lookup(ctx context.Context, key string) *Snapshot {
	snap, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("snapshot store read failed", logging.Err(err))
		return nil
	}
	if !ok || !r.fresh(snap) {
		return nil
	}
	return snap
}

func (r *Registry) snapshot(ctx context.Context, accounts map[string]calendar.Service) (*Snapshot, error) {
	ids := sortedAccountIDs(accounts)
	key := cacheKey(ids)

	if snap := r.lookup(ctx, key); snap != nil {
		r.metrics.RecordRegistryLookup(ctx, instrumentation.CacheHit)
		return snap, nil
	}

	for {
		ch := r.builds.DoChan(key, func() (interface{}, error) {
			return r.buildAndStore(ctx, key, ids, accounts)
		})
		select {
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*Snapshot), nil
			}
			// The build ran on another caller's context and was cancelled there.
			if ctx.Err() == nil && isContextErr(res.Err) {
				continue
			}
			return nil, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Registry) buildAndStore(ctx context.Context, key string, ids []string, accounts map[string]calendar.Service) (*Snapshot, error) {
	// A build that finished just before this one started has already stored it.
	if snap := r.lookup(ctx, key); snap != nil {
		r.metrics.RecordRegistryLookup(ctx, instrumentation.CacheHit)
		return snap, nil
	}
	r.metrics.RecordRegistryLookup(ctx, instrumentation.CacheMiss)

	snap, err := r.build(ctx, ids, accounts)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, key, snap, r.ttl); err != nil {
		r.logger.Warn("snapshot store write failed", logging.Err(err))
	}
	return snap, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Registry) build(ctx context.Context, ids []string, accounts map[string]calendar.Service) (*Snapshot, error) {
	perAccount := make([][]calendar.CalendarInfo, len(ids))

	var g errgroup.Group
	g.SetLimit(listConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			cals, err := accounts[id].ListCalendars(ctx)
			if err != nil {
				r.metrics.RecordRegistryListFailure(ctx)
				r.logger.Warn("failed to list calendars for account",
					logging.AccountHash(id),
					logging.Err(err))
				return nil
			}
			perAccount[i] = cals
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grouped := make(map[string][]CalendarAccessEntry)
	for i, id := range ids {
		for _, cal := range perAccount[i] {
			grouped[cal.ID] = append(grouped[cal.ID], CalendarAccessEntry{
				AccountID:           id,
				AccessRole:          cal.AccessRole,
				IsPrimary:           cal.Primary,
				DisplayName:         cal.Summary,
				DisplayNameOverride: cal.SummaryOverride,
			})
		}
	}

	calendars := make([]UnifiedCalendar, 0, len(grouped))
	for calendarID, entries := range grouped {
		rankEntries(entries)
		calendars = append(calendars, UnifiedCalendar{
			CalendarID:         calendarID,
			AccessEntries:      entries,
			PreferredAccountID: entries[0].AccountID,
			DisplayName:        displayName(entries),
		})
	}
	sort.Slice(calendars, func(i, j int) bool { return calendars[i].CalendarID < calendars[j].CalendarID })

	r.logger.Debug("registry snapshot built",
		slog.Int("accounts", len(ids)),
		slog.Int("calendars", len(calendars)))

	return &Snapshot{Calendars: calendars, BuiltAt: r.now()}, nil
}

// displayName prefers the primary account's override, then the preferred
// entry's override, then the preferred entry's name. entries must be ranked.
func displayName(entries []CalendarAccessEntry) string {
	for _, e := range entries {
		if e.IsPrimary && e.DisplayNameOverride != "" {
			return e.DisplayNameOverride
		}
	}
	if entries[0].DisplayNameOverride != "" {
		return entries[0].DisplayNameOverride
	}
	return entries[0].DisplayName
}

func sortedAccountIDs(accounts map[string]calendar.Service) []string {
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
