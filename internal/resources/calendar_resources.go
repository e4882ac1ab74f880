package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
)

const (
	AccountsURI  = "calendar://accounts"
	CalendarsURI = "calendar://calendars"

	mimeJSON = "application/json"
)

// RegisterCalendarResources registers the account and calendar directory
// resources.
func RegisterCalendarResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	accountsResource := mcp.NewResource(
		AccountsURI,
		"Configured Accounts",
		mcp.WithResourceDescription("Google accounts this server can use and whether each has a stored token"),
		mcp.WithMIMEType(mimeJSON),
	)

	s.AddResource(accountsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAccounts(ctx, request, sc)
	})

	calendarsResource := mcp.NewResource(
		CalendarsURI,
		"Calendars",
		mcp.WithResourceDescription("Every calendar visible to the configured accounts, merged by calendar ID with the preferred account first"),
		mcp.WithMIMEType(mimeJSON),
	)

	s.AddResource(calendarsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCalendars(ctx, request, sc)
	})

	return nil
}

type accountEntry struct {
	Account  string `json:"account"`
	HasToken bool   `json:"hasToken"`
}

func handleAccounts(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	ids, err := sc.AccountIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	entries := make([]accountEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, accountEntry{Account: id, HasToken: sc.HasToken(id)})
	}

	return jsonContents(request.Params.URI, map[string]interface{}{
		"accounts": entries,
		"readOnly": sc.ReadOnly(),
	})
}

func handleCalendars(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	accounts, err := sc.Accounts()
	if err != nil {
		return nil, err
	}

	calendars, err := sc.Registry().GetUnifiedCalendars(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar view: %w", err)
	}
	if calendars == nil {
		calendars = []registry.UnifiedCalendar{}
	}

	return jsonContents(request.Params.URI, map[string]interface{}{
		"calendars": calendars,
	})
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     string(jsonData),
		},
	}, nil
}
