package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "gcal-mcp-test:"+uuid.NewString()+":")
	t.Cleanup(func() { _ = store.Clear(context.Background()) })
	return store
}

func TestRedisStore_PutGetClear(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	builtAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, ok, err := store.Get(ctx, "a,b")
	require.NoError(t, err)
	assert.False(t, ok)

	snap := &Snapshot{
		BuiltAt: builtAt,
		Calendars: []UnifiedCalendar{{
			CalendarID:         "x",
			PreferredAccountID: "a",
			DisplayName:        "X",
			AccessEntries:      []CalendarAccessEntry{{AccountID: "a", AccessRole: "owner"}},
		}},
	}
	require.NoError(t, store.Put(ctx, "a,b", snap, time.Minute))

	got, ok, err := store.Get(ctx, "a,b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Calendars[0].PreferredAccountID)
	assert.True(t, got.BuiltAt.Equal(builtAt))

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx, "a,b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_WithRegistry(t *testing.T) {
	store := newTestRedisStore(t)
	reg := New(WithStore(store))
	accounts, fakes := sharedTeamAccounts()
	ctx := context.Background()

	_, err := reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	_, err = reg.GetUnifiedCalendars(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, 1, fakes["work"].Calls("ListCalendars"))
}
