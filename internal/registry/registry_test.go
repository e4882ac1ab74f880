package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar/calendartest"
)

const teamCal = "team@group.calendar.google.com"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sharedTeamAccounts returns three accounts that all see teamCal.
func sharedTeamAccounts() (map[string]calendar.Service, map[string]*calendartest.Fake) {
	fakes := map[string]*calendartest.Fake{
		"personal": {Calendars: []calendar.CalendarInfo{
			calendartest.Entry("me@gmail.com", "Me", calendar.RoleOwner, true),
			calendartest.Entry(teamCal, "Team", calendar.RoleReader, false),
		}},
		"work": {Calendars: []calendar.CalendarInfo{
			calendartest.Entry("me@work.com", "Work", calendar.RoleOwner, true),
			calendartest.Entry(teamCal, "Team", calendar.RoleOwner, false),
		}},
		"side": {Calendars: []calendar.CalendarInfo{
			calendartest.Entry(teamCal, "Team", calendar.RoleWriter, false),
		}},
	}
	return directory(fakes), fakes
}

func directory(fakes map[string]*calendartest.Fake) map[string]calendar.Service {
	accounts := make(map[string]calendar.Service, len(fakes))
	for id, f := range fakes {
		accounts[id] = f
	}
	return accounts
}

func TestGetUnifiedCalendars_DeduplicatesAndRanks(t *testing.T) {
	reg := New()
	accounts, _ := sharedTeamAccounts()

	cals, err := reg.GetUnifiedCalendars(context.Background(), accounts)
	require.NoError(t, err)
	require.Len(t, cals, 3)

	// Sorted by calendar ID.
	assert.Equal(t, "me@gmail.com", cals[0].CalendarID)
	assert.Equal(t, "me@work.com", cals[1].CalendarID)
	assert.Equal(t, teamCal, cals[2].CalendarID)

	team := cals[2]
	require.Len(t, team.AccessEntries, 3)
	assert.Equal(t, "work", team.PreferredAccountID)
	assert.Equal(t, []string{"owner", "writer", "reader"}, []string{
		team.AccessEntries[0].AccessRole,
		team.AccessEntries[1].AccessRole,
		team.AccessEntries[2].AccessRole,
	})
	assert.Equal(t, "Team", team.DisplayName)
}

func TestGetUnifiedCalendars_PreferredIsMaxRank(t *testing.T) {
	fakes := map[string]*calendartest.Fake{
		"a": {Calendars: []calendar.CalendarInfo{calendartest.Entry("x", "X", calendar.RoleReader, false)}},
		"b": {Calendars: []calendar.CalendarInfo{calendartest.Entry("x", "X", calendar.RoleOwner, false)}},
		"c": {Calendars: []calendar.CalendarInfo{calendartest.Entry("x", "X", calendar.RoleWriter, false)}},
	}
	cals, err := New().GetUnifiedCalendars(context.Background(), directory(fakes))
	require.NoError(t, err)
	require.Len(t, cals, 1)

	best := 0
	for _, e := range cals[0].AccessEntries {
		if r := PermissionRank(e.AccessRole); r > best {
			best = r
		}
	}
	assert.Equal(t, "b", cals[0].PreferredAccountID)
	assert.Equal(t, best, PermissionRank(cals[0].Preferred().AccessRole))
}

func TestGetUnifiedCalendars_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]calendar.CalendarInfo
		want    string
	}{
		{
			name: "primary account override wins",
			entries: map[string]calendar.CalendarInfo{
				"a": {ID: "x", Summary: "Plain", AccessRole: "owner", SummaryOverride: "Owner Override"},
				"b": {ID: "x", Summary: "Plain", AccessRole: "reader", Primary: true, SummaryOverride: "Primary Override"},
			},
			want: "Primary Override",
		},
		{
			name: "preferred override when primary has none",
			entries: map[string]calendar.CalendarInfo{
				"a": {ID: "x", Summary: "Plain", AccessRole: "owner", SummaryOverride: "Owner Override"},
				"b": {ID: "x", Summary: "Plain", AccessRole: "reader", Primary: true},
			},
			want: "Owner Override",
		},
		{
			name: "plain name otherwise",
			entries: map[string]calendar.CalendarInfo{
				"a": {ID: "x", Summary: "Plain", AccessRole: "owner"},
				"b": {ID: "x", Summary: "Other", AccessRole: "reader"},
			},
			want: "Plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakes := make(map[string]*calendartest.Fake)
			for id, info := range tt.entries {
				fakes[id] = &calendartest.Fake{Calendars: []calendar.CalendarInfo{info}}
			}
			cals, err := New().GetUnifiedCalendars(context.Background(), directory(fakes))
			require.NoError(t, err)
			require.Len(t, cals, 1)
			assert.Equal(t, tt.want, cals[0].DisplayName)
		})
	}
}

func TestGetUnifiedCalendars_AccountFailureIsIsolated(t *testing.T) {
	accounts, fakes := sharedTeamAccounts()
	fakes["work"].ListCalendarsErr = &calendar.APIError{StatusCode: 500, Message: "backend error"}

	cals, err := New().GetUnifiedCalendars(context.Background(), accounts)
	require.NoError(t, err)
	require.Len(t, cals, 2)

	team := cals[1]
	assert.Equal(t, teamCal, team.CalendarID)
	assert.Equal(t, "side", team.PreferredAccountID)
	for _, c := range cals {
		_, ok := c.EntryFor("work")
		assert.False(t, ok)
	}
}

func TestGetUnifiedCalendars_CacheTTL(t *testing.T) {
	clock := newFakeClock()
	reg := New(WithClock(clock.Now))
	accounts, fakes := sharedTeamAccounts()
	ctx := context.Background()

	_, err := reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	clock.Advance(4*time.Minute + 59*time.Second)
	_, err = reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, 1, fakes["work"].Calls("ListCalendars"))

	clock.Advance(time.Second)
	_, err = reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, 2, fakes["work"].Calls("ListCalendars"))

	require.NoError(t, reg.ClearCache(ctx))
	_, err = reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, 3, fakes["work"].Calls("ListCalendars"))
}

func TestGetUnifiedCalendars_KeyedByAccountSet(t *testing.T) {
	reg := New()
	accounts, fakes := sharedTeamAccounts()
	ctx := context.Background()

	_, err := reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)

	subset := map[string]calendar.Service{"work": fakes["work"]}
	cals, err := reg.GetUnifiedCalendars(ctx, subset)
	require.NoError(t, err)
	assert.Len(t, cals, 2)
	assert.Equal(t, 2, fakes["work"].Calls("ListCalendars"))
	assert.Equal(t, 1, fakes["side"].Calls("ListCalendars"))
}

func TestGetUnifiedCalendars_ConcurrentMissesBuildOnce(t *testing.T) {
	reg := New()
	accounts, fakes := sharedTeamAccounts()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.GetUnifiedCalendars(context.Background(), accounts)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fakes["work"].Calls("ListCalendars"))
}

// gatedService blocks ListCalendars until release is closed.
type gatedService struct {
	*calendartest.Fake
	entered chan struct{}
	release chan struct{}
}

func (g *gatedService) ListCalendars(ctx context.Context) ([]calendar.CalendarInfo, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Fake.ListCalendars(ctx)
}

func TestGetUnifiedCalendars_WaiterOutlivesCancelledBuilder(t *testing.T) {
	svc := &gatedService{
		Fake: &calendartest.Fake{Calendars: []calendar.CalendarInfo{
			calendartest.Entry("me@work.com", "Work", calendar.RoleOwner, true),
			calendartest.Entry(teamCal, "Team", calendar.RoleWriter, false),
		}},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	accounts := map[string]calendar.Service{"work": svc}
	reg := New()

	builderCtx, cancel := context.WithCancel(context.Background())
	builderErr := make(chan error, 1)
	go func() {
		_, err := reg.GetUnifiedCalendars(builderCtx, accounts)
		builderErr <- err
	}()
	<-svc.entered

	type outcome struct {
		cals []UnifiedCalendar
		err  error
	}
	waiter := make(chan outcome, 1)
	go func() {
		cals, err := reg.GetUnifiedCalendars(context.Background(), accounts)
		waiter <- outcome{cals, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-builderErr, context.Canceled)
	close(svc.release)

	select {
	case got := <-waiter:
		require.NoError(t, got.err)
		assert.Len(t, got.cals, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not finish")
	}
}

func TestGetUnifiedCalendars_ManyAccountSets(t *testing.T) {
	reg := New()
	_, fakes := sharedTeamAccounts()
	ctx := context.Background()

	sets := []map[string]calendar.Service{
		{"work": fakes["work"]},
		{"work": fakes["work"], "side": fakes["side"]},
		{"personal": fakes["personal"]},
		{"work": fakes["work"], "side": fakes["side"], "personal": fakes["personal"]},
	}
	for round := 0; round < 2; round++ {
		for _, set := range sets {
			_, err := reg.GetUnifiedCalendars(ctx, set)
			require.NoError(t, err)
		}
	}

	// One build per set; the second round is served from the store.
	assert.Equal(t, 3, fakes["work"].Calls("ListCalendars"))
	assert.Equal(t, 2, fakes["side"].Calls("ListCalendars"))
	assert.Equal(t, 2, fakes["personal"].Calls("ListCalendars"))
}

func TestGetUnifiedCalendars_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	accounts, _ := sharedTeamAccounts()

	_, err := New().GetUnifiedCalendars(ctx, accounts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetAccountForCalendar(t *testing.T) {
	reg := New()
	accounts, _ := sharedTeamAccounts()
	ctx := context.Background()

	sel, err := reg.GetAccountForCalendar(ctx, teamCal, accounts, OperationRead)
	require.NoError(t, err)
	assert.Equal(t, &AccountSelection{AccountID: "work", AccessRole: "owner"}, sel)

	sel, err = reg.GetAccountForCalendar(ctx, teamCal, accounts, OperationWrite)
	require.NoError(t, err)
	assert.Equal(t, "work", sel.AccountID)

	sel, err = reg.GetAccountForCalendar(ctx, "unknown@example.com", accounts, OperationRead)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestGetAccountForCalendar_WriteRefusesDowngrade(t *testing.T) {
	for _, role := range []string{calendar.RoleReader, calendar.RoleFreeBusyReader} {
		t.Run(role, func(t *testing.T) {
			fakes := map[string]*calendartest.Fake{
				"alpha": {Calendars: []calendar.CalendarInfo{calendartest.Entry("x", "X", role, false)}},
			}
			reg := New()
			ctx := context.Background()

			sel, err := reg.GetAccountForCalendar(ctx, "x", directory(fakes), OperationWrite)
			require.NoError(t, err)
			assert.Nil(t, sel)

			sel, err = reg.GetAccountForCalendar(ctx, "x", directory(fakes), OperationRead)
			require.NoError(t, err)
			require.NotNil(t, sel)
			assert.Equal(t, role, sel.AccessRole)
		})
	}
}

func TestGetAccountForCalendar_NoFallbackToLowerRankedWriter(t *testing.T) {
	// Ranking never puts a reader above a writer, so seed the snapshot
	// directly to pin the selection rule.
	store := NewMemoryStore()
	clock := newFakeClock()
	reg := New(WithStore(store), WithClock(clock.Now))
	accounts := map[string]calendar.Service{"a": &calendartest.Fake{}, "b": &calendartest.Fake{}}

	require.NoError(t, store.Put(context.Background(), cacheKey([]string{"a", "b"}), &Snapshot{
		BuiltAt: clock.Now(),
		Calendars: []UnifiedCalendar{{
			CalendarID: "x",
			AccessEntries: []CalendarAccessEntry{
				{AccountID: "a", AccessRole: calendar.RoleReader},
				{AccountID: "b", AccessRole: calendar.RoleWriter},
			},
			PreferredAccountID: "a",
		}},
	}, DefaultTTL))

	sel, err := reg.GetAccountForCalendar(context.Background(), "x", accounts, OperationWrite)
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestGetAccountsForCalendar(t *testing.T) {
	reg := New()
	accounts, _ := sharedTeamAccounts()
	ctx := context.Background()

	entries, err := reg.GetAccountsForCalendar(ctx, teamCal, accounts)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = reg.GetAccountsForCalendar(ctx, "nope", accounts)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingStore struct{ MemoryStore }

func (s *failingStore) Get(context.Context, string) (*Snapshot, bool, error) {
	return nil, false, errors.New("store down")
}

func (s *failingStore) Put(context.Context, string, *Snapshot, time.Duration) error {
	return errors.New("store down")
}

func TestGetUnifiedCalendars_StoreFailureDegrades(t *testing.T) {
	reg := New(WithStore(&failingStore{}))
	accounts, fakes := sharedTeamAccounts()

	cals, err := reg.GetUnifiedCalendars(context.Background(), accounts)
	require.NoError(t, err)
	assert.Len(t, cals, 3)

	_, err = reg.GetUnifiedCalendars(context.Background(), accounts)
	require.NoError(t, err)
	assert.Equal(t, 2, fakes["work"].Calls("ListCalendars"))
}

func TestMemoryStore_EvictsExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, "a", &Snapshot{BuiltAt: base}, time.Minute))
	require.NoError(t, store.Put(ctx, "b", &Snapshot{BuiltAt: base.Add(30 * time.Second)}, time.Minute))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Put(ctx, "c", &Snapshot{BuiltAt: base.Add(time.Minute)}, time.Minute))
	assert.Equal(t, 2, store.Len())
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
}
