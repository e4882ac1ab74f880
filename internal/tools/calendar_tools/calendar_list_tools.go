package calendar_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

// RegisterCalendarListTools registers list-calendars and manage-accounts.
func RegisterCalendarListTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listCalendarsTool := mcp.NewTool("list-calendars",
		mcp.WithDescription("List every calendar visible to any configured account. Calendars shared between accounts appear once, with the account that will be used for them and each account's access role."),
		mcp.WithString("account",
			mcp.Description("Only show calendars this account can see"),
		),
	)

	s.AddTool(listCalendarsTool, common.InstrumentedToolHandlerWithService(
		"list-calendars", instrumentation.OperationCalList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListCalendars(ctx, request, sc)
		}))

	manageAccountsTool := mcp.NewTool("manage-accounts",
		mcp.WithDescription("List the configured Google accounts, or refresh them after authenticating a new account"),
		mcp.WithString("action",
			mcp.Description("'list' (default) or 'refresh'"),
			mcp.Enum("list", "refresh"),
		),
	)

	s.AddTool(manageAccountsTool, common.InstrumentedToolHandler(
		"manage-accounts", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleManageAccounts(ctx, request, sc)
		}))

	return nil
}

func handleListCalendars(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	onlyAccount := common.StringArg(args, "account")

	accounts, err := sc.Accounts()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if onlyAccount != "" {
		if _, ok := accounts[onlyAccount]; !ok {
			return mcp.NewToolResultError(common.DescribeResolveError(onlyAccount,
				fmt.Errorf("%w: %s", registry.ErrAccountNotFound, onlyAccount))), nil
		}
	}

	calendars, err := sc.Registry().GetUnifiedCalendars(ctx, accounts)
	if err != nil {
		return common.ErrorResult("list calendars", err), nil
	}

	var b strings.Builder
	n := 0
	for _, cal := range calendars {
		if onlyAccount != "" {
			if _, ok := cal.EntryFor(onlyAccount); !ok {
				continue
			}
		}
		n++
		preferred := cal.Preferred()
		fmt.Fprintf(&b, "%d. %s\n", n, cal.DisplayName)
		fmt.Fprintf(&b, "   ID: %s\n", cal.CalendarID)
		fmt.Fprintf(&b, "   Account: %s (%s)\n", cal.PreferredAccountID, preferred.AccessRole)
		if len(cal.AccessEntries) > 1 {
			others := make([]string, 0, len(cal.AccessEntries)-1)
			for _, e := range cal.AccessEntries[1:] {
				others = append(others, fmt.Sprintf("%s (%s)", e.AccountID, e.AccessRole))
			}
			fmt.Fprintf(&b, "   Also visible to: %s\n", strings.Join(others, ", "))
		}
		if preferred.IsPrimary {
			b.WriteString("   [PRIMARY]\n")
		}
		b.WriteString("\n")
	}

	header := fmt.Sprintf("Found %d calendar(s) across %d account(s):\n\n", n, len(accounts))
	return mcp.NewToolResultText(header + b.String()), nil
}

type accountStatus struct {
	Account   string `json:"account"`
	HasToken  bool   `json:"hasToken"`
	Calendars int    `json:"calendars"`
}

func handleManageAccounts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	action := common.StringArg(args, "action")

	switch action {
	case "", "list":
	case "refresh":
		if err := sc.RefreshAccounts(ctx); err != nil {
			return common.ErrorResult("refresh accounts", err), nil
		}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q: use 'list' or 'refresh'", action)), nil
	}

	ids, err := sc.AccountIDs()
	if err != nil {
		return common.ErrorResult("list accounts", err), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("No accounts configured. Run the auth command to add one."), nil
	}

	counts := make(map[string]int)
	if accounts, err := sc.Accounts(); err == nil {
		if calendars, err := sc.Registry().GetUnifiedCalendars(ctx, accounts); err == nil {
			for _, cal := range calendars {
				for _, e := range cal.AccessEntries {
					counts[e.AccountID]++
				}
			}
		}
	}

	statuses := make([]accountStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, accountStatus{
			Account:   id,
			HasToken:  sc.HasToken(id),
			Calendars: counts[id],
		})
	}
	return common.JSONResult(map[string]any{"accounts": statuses})
}
