package google_tools

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar/calendartest"
	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
)

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(ts *httptest.Server) ConfigFunc {
	return func() (*oauth2.Config, error) {
		return &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  ts.URL + "/auth",
				TokenURL: ts.URL + "/token",
			},
			Scopes: google.DefaultOAuthScopes,
		}, nil
	}
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestGetAuthURL(t *testing.T) {
	ts := newTokenServer(t)

	result, err := handleGetAuthURL(context.Background(), callTool(map[string]interface{}{"account": "work"}), testConfig(ts))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, text(t, result), ts.URL+"/auth")
	assert.Contains(t, text(t, result), "state=work")

	result, err = handleGetAuthURL(context.Background(), callTool(map[string]interface{}{"account": "../etc"}), testConfig(ts))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	missing := func() (*oauth2.Config, error) { return nil, errors.New("no client configured") }
	result, err = handleGetAuthURL(context.Background(), callTool(nil), missing)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSaveAuthCode(t *testing.T) {
	ts := newTokenServer(t)
	store := google.NewFileTokenStore(t.TempDir())

	existing := &calendartest.Fake{Calendars: []calendar.CalendarInfo{
		calendartest.Entry("me@example.com", "Me", calendar.RoleOwner, true),
	}}
	sc, err := server.NewServerContext(context.Background(),
		server.WithTokenProvider(google.NewFileTokenProvider(store)),
		server.WithLogger(slog.New(slog.DiscardHandler)),
		server.WithClient("personal", existing),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	accounts, err := sc.Accounts()
	require.NoError(t, err)
	_, err = sc.Registry().GetUnifiedCalendars(context.Background(), accounts)
	require.NoError(t, err)
	require.Equal(t, 1, existing.Calls("ListCalendars"))

	result, err := handleSaveAuthCode(context.Background(), callTool(map[string]interface{}{
		"account":  "work",
		"authCode": "bad-code",
	}), sc, testConfig(ts))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.False(t, store.Has("work"))

	result, err = handleSaveAuthCode(context.Background(), callTool(map[string]interface{}{
		"account":  "work",
		"authCode": "good-code",
	}), sc, testConfig(ts))
	require.NoError(t, err)
	assert.False(t, result.IsError, text(t, result))
	assert.True(t, store.Has("work"))

	token, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "refresh", token.RefreshToken)

	// The registry was cleared, so the next view is rebuilt.
	_, err = sc.Registry().GetUnifiedCalendars(context.Background(), map[string]calendar.Service{"personal": existing})
	require.NoError(t, err)
	assert.Equal(t, 2, existing.Calls("ListCalendars"))
}

func TestSaveAuthCode_RequiresCode(t *testing.T) {
	ts := newTokenServer(t)
	sc, err := server.NewServerContext(context.Background(),
		server.WithTokenProvider(google.NewFileTokenProvider(google.NewFileTokenStore(t.TempDir()))),
		server.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	result, err := handleSaveAuthCode(context.Background(), callTool(nil), sc, testConfig(ts))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, text(t, result), "authCode is required")
}
