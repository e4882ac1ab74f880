package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar/calendartest"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func event(summary string, offset time.Duration) calendar.EventInput {
	return calendar.EventInput{
		Summary: summary,
		Start:   baseTime.Add(offset),
		End:     baseTime.Add(offset + 30*time.Minute),
	}
}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{Event: event("event", time.Duration(i)*time.Hour)}
	}
	return out
}

func workFake() *calendartest.Fake {
	return &calendartest.Fake{
		TimeZone: "Europe/Berlin",
		Calendars: []calendar.CalendarInfo{
			calendartest.Entry("me@work.com", "Work", calendar.RoleOwner, true),
			calendartest.Entry("team@example.com", "Team", calendar.RoleWriter, false),
			calendartest.Entry("holidays@example.com", "Holidays", calendar.RoleReader, false),
		},
	}
}

func TestCreateMany_AllCreated(t *testing.T) {
	fake := workFake()
	accounts := map[string]calendar.Service{"work": fake}
	p := New(registry.New())

	res, err := p.CreateMany(context.Background(), Defaults{CalendarID: "team@example.com"}, items(3), accounts)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRequested)
	assert.Equal(t, 3, res.TotalCreated)
	assert.Zero(t, res.TotalFailed)
	assert.Empty(t, res.Failed)
	assert.False(t, res.IsError)
	for i, c := range res.Created {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "work", c.AccountID)
	}
}

func TestCreateMany_InvalidSize(t *testing.T) {
	p := New(registry.New())
	accounts := map[string]calendar.Service{"work": workFake()}

	_, err := p.CreateMany(context.Background(), Defaults{}, nil, accounts)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = p.CreateMany(context.Background(), Defaults{}, items(MaxItems+1), accounts)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	res, err := p.CreateMany(context.Background(), Defaults{}, items(MaxItems), accounts)
	require.NoError(t, err)
	assert.Equal(t, MaxItems, res.TotalCreated)
}

func TestCreateMany_CircuitBreakerTrips(t *testing.T) {
	fake := workFake()
	fake.InsertEventFunc = func(context.Context, string, calendar.EventInput) (*calendar.EventSummary, error) {
		return nil, &calendar.APIError{Operation: "create", StatusCode: 403, Message: "Forbidden"}
	}
	p := New(registry.New())

	res, err := p.CreateMany(context.Background(), Defaults{CalendarID: "team@example.com"}, items(5),
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)

	assert.Equal(t, 3, fake.Calls("InsertEvent"))
	assert.Equal(t, 5, res.TotalFailed)
	assert.True(t, res.IsError)
	for _, f := range res.Failed[:3] {
		assert.Equal(t, "calendar create failed (403): Forbidden", f.Error)
	}
	for _, f := range res.Failed[3:] {
		assert.True(t, strings.HasPrefix(f.Error, "Skipped: circuit breaker open after 3 consecutive identical failures: "), f.Error)
		assert.ErrorIs(t, f.Err, ErrCircuitOpen)
	}
	assert.Equal(t, 3, res.Failed[3].Index)
	assert.Equal(t, 4, res.Failed[4].Index)
}

func TestCreateMany_SuccessKeepsCircuitClosed(t *testing.T) {
	fake := workFake()
	calls := 0
	fake.InsertEventFunc = func(_ context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
		calls++
		if calls == 3 {
			return &calendar.EventSummary{ID: "ok", CalendarID: calendarID, Summary: input.Summary}, nil
		}
		return nil, errors.New("backend error")
	}
	p := New(registry.New())

	res, err := p.CreateMany(context.Background(), Defaults{CalendarID: "team@example.com"}, items(5),
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)

	assert.Equal(t, 5, fake.Calls("InsertEvent"))
	assert.Equal(t, 1, res.TotalCreated)
	assert.Equal(t, 4, res.TotalFailed)
	assert.False(t, res.IsError)
}

func TestCreateMany_PartialVersusTotalFailure(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		fake := workFake()
		fake.InsertEventFunc = func(_ context.Context, _ string, input calendar.EventInput) (*calendar.EventSummary, error) {
			if input.Summary == "bad" {
				return nil, errors.New("invalid attendee")
			}
			return &calendar.EventSummary{ID: input.Summary}, nil
		}
		batch := []Item{
			{Event: event("one", 0)},
			{Event: event("bad", time.Hour)},
			{Event: event("two", 2*time.Hour)},
		}

		res, err := New(registry.New()).CreateMany(context.Background(), Defaults{}, batch,
			map[string]calendar.Service{"work": fake})
		require.NoError(t, err)
		assert.Equal(t, 2, res.TotalCreated)
		assert.Equal(t, 1, res.TotalFailed)
		assert.False(t, res.IsError)
		assert.Equal(t, "bad", res.Failed[0].Label)
		assert.Equal(t, 1, res.Failed[0].Index)
	})

	t.Run("total", func(t *testing.T) {
		fake := workFake()
		fake.InsertEventFunc = func(context.Context, string, calendar.EventInput) (*calendar.EventSummary, error) {
			return nil, errors.New("backend error")
		}

		res, err := New(registry.New()).CreateMany(context.Background(), Defaults{}, items(2),
			map[string]calendar.Service{"work": fake})
		require.NoError(t, err)
		assert.Zero(t, res.TotalCreated)
		assert.Equal(t, 2, res.TotalFailed)
		assert.True(t, res.IsError)
		assert.Empty(t, res.Created)
	})
}

func TestCreateMany_FailFastOnInvalidAccount(t *testing.T) {
	fake := workFake()
	p := New(registry.New())

	res, err := p.CreateMany(context.Background(), Defaults{Account: "nobody"}, items(2),
		map[string]calendar.Service{"work": fake})

	assert.ErrorIs(t, err, registry.ErrAccountNotFound)
	assert.Nil(t, res)
	assert.Zero(t, fake.Calls("InsertEvent"))
	assert.Zero(t, fake.Calls("ListCalendars"))
}

func TestCreateMany_FailFastOnReadOnlyCalendar(t *testing.T) {
	fake := workFake()
	p := New(registry.New())

	_, err := p.CreateMany(context.Background(), Defaults{Account: "work", CalendarID: "holidays@example.com"}, items(2),
		map[string]calendar.Service{"work": fake})

	assert.ErrorIs(t, err, registry.ErrInsufficientPermission)
	assert.Zero(t, fake.Calls("InsertEvent"))
}

func TestCreateMany_OverrideSkipsPreValidation(t *testing.T) {
	work := workFake()
	personal := &calendartest.Fake{
		TimeZone:  "America/New_York",
		Calendars: []calendar.CalendarInfo{calendartest.Entry("me@gmail.com", "Me", calendar.RoleOwner, true)},
	}
	accounts := map[string]calendar.Service{"work": work, "personal": personal}

	batch := []Item{
		{Event: event("a", 0)},
		{Account: ptr("personal"), CalendarID: ptr("me@gmail.com"), Event: event("b", time.Hour)},
	}
	// The shared default account does not exist; only the first item fails.
	res, err := New(registry.New()).CreateMany(context.Background(),
		Defaults{Account: "nobody", CalendarID: "me@work.com"}, batch, accounts)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalCreated)
	assert.Equal(t, "personal", res.Created[0].AccountID)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, registry.ErrAccountNotFound)
	assert.Equal(t, 1, personal.Calls("InsertEvent"))
	assert.Zero(t, work.Calls("InsertEvent"))
}

func TestCreateMany_ItemValuesWinOverDefaults(t *testing.T) {
	fake := workFake()
	batch := []Item{
		{Event: event("defaults", 0)},
		{CalendarID: ptr("me@work.com"), TimeZone: ptr("Asia/Tokyo"), SendUpdates: ptr(""), Event: event("override", time.Hour)},
	}

	_, err := New(registry.New()).CreateMany(context.Background(), Defaults{
		CalendarID:  "team@example.com",
		TimeZone:    "UTC",
		SendUpdates: calendar.SendUpdatesAll,
	}, batch, map[string]calendar.Service{"work": fake})
	require.NoError(t, err)

	inserts := fake.Inserts()
	require.Len(t, inserts, 2)
	assert.Equal(t, "team@example.com", inserts[0].CalendarID)
	assert.Equal(t, "UTC", inserts[0].Input.TimeZone)
	assert.Equal(t, calendar.SendUpdatesAll, inserts[0].Options.SendUpdates)

	assert.Equal(t, "me@work.com", inserts[1].CalendarID)
	assert.Equal(t, "Asia/Tokyo", inserts[1].Input.TimeZone)
	assert.Equal(t, "", inserts[1].Options.SendUpdates)
}

func TestCreateMany_TimeZoneLookedUpOncePerCalendar(t *testing.T) {
	fake := workFake()

	res, err := New(registry.New()).CreateMany(context.Background(), Defaults{CalendarID: "team@example.com"}, items(4),
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)
	require.Equal(t, 4, res.TotalCreated)

	assert.Equal(t, 1, fake.Calls("GetCalendar"))
	for _, in := range fake.Inserts() {
		assert.Equal(t, "Europe/Berlin", in.Input.TimeZone)
	}
}

func TestCreateMany_NoTimeZoneLookupWhenSupplied(t *testing.T) {
	fake := workFake()

	_, err := New(registry.New()).CreateMany(context.Background(),
		Defaults{CalendarID: "team@example.com", TimeZone: "UTC"}, items(3),
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)
	assert.Zero(t, fake.Calls("GetCalendar"))
}

func TestCreateMany_InvalidEventDoesNotCallRemote(t *testing.T) {
	fake := workFake()
	batch := []Item{
		{Event: calendar.EventInput{Summary: "backwards", Start: baseTime, End: baseTime.Add(-time.Hour)}},
		{Event: event("fine", 0)},
	}

	res, err := New(registry.New()).CreateMany(context.Background(), Defaults{}, batch,
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCreated)
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, ErrInvalidEvent)
	assert.Equal(t, 1, fake.Calls("InsertEvent"))
}

func TestCreateMany_InvalidEventBreaksFailureRun(t *testing.T) {
	fake := workFake()
	fake.InsertEventFunc = func(context.Context, string, calendar.EventInput) (*calendar.EventSummary, error) {
		return nil, errors.New("backend error")
	}
	batch := []Item{
		{Event: event("first", 0)},
		{Event: calendar.EventInput{Summary: "backwards", Start: baseTime, End: baseTime.Add(-time.Hour)}},
		{Event: event("third", 2*time.Hour)},
		{Event: event("fourth", 3*time.Hour)},
		{Event: event("fifth", 4*time.Hour)},
	}

	res, err := New(registry.New()).CreateMany(context.Background(), Defaults{CalendarID: "team@example.com"}, batch,
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)

	assert.Equal(t, 4, fake.Calls("InsertEvent"))
	assert.Equal(t, 5, res.TotalFailed)
	assert.ErrorIs(t, res.Failed[1].Err, ErrInvalidEvent)
	for _, f := range res.Failed {
		assert.NotContains(t, f.Error, "Skipped")
		assert.NotErrorIs(t, f.Err, ErrCircuitOpen)
	}
}

func TestCreateMany_CancelledContextSkipsRemaining(t *testing.T) {
	fake := workFake()
	ctx, cancel := context.WithCancel(context.Background())
	fake.InsertEventFunc = func(_ context.Context, _ string, input calendar.EventInput) (*calendar.EventSummary, error) {
		cancel()
		return &calendar.EventSummary{ID: "1"}, nil
	}

	res, err := New(registry.New()).CreateMany(ctx, Defaults{CalendarID: "team@example.com", TimeZone: "UTC"}, items(3),
		map[string]calendar.Service{"work": fake})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCreated)
	assert.Equal(t, 2, res.TotalFailed)
	assert.ErrorIs(t, res.Failed[0].Err, context.Canceled)
	assert.Equal(t, 1, fake.Calls("InsertEvent"))
}
