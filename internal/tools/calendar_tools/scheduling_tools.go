package calendar_tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

// RegisterSchedulingTools registers availability and time tools.
func RegisterSchedulingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	freeBusyTool := mcp.NewTool("get-freebusy",
		mcp.WithDescription("Busy periods for one or more calendars or people, optionally with the free slots everyone shares"),
		common.WithAccount(),
		mcp.WithString("calendars",
			mcp.Required(),
			mcp.Description("Calendar IDs or email addresses: comma-separated list or JSON array"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range: RFC3339, local time or date"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for local times and the response (default: UTC)"),
		),
		mcp.WithNumber("minDurationMinutes",
			mcp.Description("When set, also list shared free slots of at least this many minutes"),
		),
	)

	s.AddTool(freeBusyTool, common.InstrumentedToolHandlerWithService(
		"get-freebusy", instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetFreeBusy(ctx, request, sc)
		}))

	conflictsTool := mcp.NewTool("check-conflicts",
		mcp.WithDescription("Check every calendar of every account for events overlapping a proposed time"),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Proposed start: RFC3339 or local time in timeZone"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Proposed end"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for local times (default: UTC)"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Limit the check to these calendars: comma-separated list or JSON array (default: all calendars)"),
		),
		mcp.WithString("excludeEventId",
			mcp.Description("Ignore this event, e.g. the one being rescheduled"),
		),
	)

	s.AddTool(conflictsTool, common.InstrumentedToolHandlerWithService(
		"check-conflicts", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckConflicts(ctx, request, sc)
		}))

	currentTimeTool := mcp.NewTool("get-current-time",
		mcp.WithDescription("Current date and time, in UTC and in the requested time zone"),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone (default: UTC)"),
		),
	)

	s.AddTool(currentTimeTool, common.InstrumentedToolHandler(
		"get-current-time", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCurrentTime(ctx, request, sc)
		}))

	return nil
}

// timeWindow parses the two named arguments as a non-empty range.
func timeWindow(args map[string]interface{}, minName, maxName string, loc *time.Location) (calendar.TimeRange, error) {
	minStr, err := common.RequiredString(args, minName)
	if err != nil {
		return calendar.TimeRange{}, err
	}
	maxStr, err := common.RequiredString(args, maxName)
	if err != nil {
		return calendar.TimeRange{}, err
	}
	start, _, err := common.ParseTime(minStr, loc)
	if err != nil {
		return calendar.TimeRange{}, fmt.Errorf("%s: %w", minName, err)
	}
	end, _, err := common.ParseTime(maxStr, loc)
	if err != nil {
		return calendar.TimeRange{}, fmt.Errorf("%s: %w", maxName, err)
	}
	if !end.After(start) {
		return calendar.TimeRange{}, fmt.Errorf("%s must be after %s", maxName, minName)
	}
	return calendar.TimeRange{Start: start, End: end}, nil
}

func handleGetFreeBusy(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	loc, err := common.LoadLocation(common.StringArg(args, "timeZone"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window, err := timeWindow(args, "timeMin", "timeMax", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := common.StringListArg(args, "calendars")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("calendars is required"), nil
	}

	accounts, err := sc.Accounts()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	account := common.GetAccountFromArgs(args)
	fallback := account
	if _, ok := accounts[fallback]; !ok {
		fallback = firstAccount(accounts)
	}

	// People outside every account's calendar list are still queryable
	// through any account.
	var order []string
	groups := make(map[string][]string)
	var failures []string
	for _, id := range ids {
		accountID := fallback
		sel, err := sc.Registry().ResolveAccount(ctx, account, id, accounts, registry.OperationRead)
		switch {
		case err == nil:
			accountID = sel.AccountID
		case errors.Is(err, registry.ErrCalendarNotFound):
		default:
			failures = append(failures, fmt.Sprintf("%s: %s", id, common.DescribeResolveError(id, err)))
			continue
		}
		if _, ok := groups[accountID]; !ok {
			order = append(order, accountID)
		}
		groups[accountID] = append(groups[accountID], id)
	}

	tasks := make([]executor.Task[[]calendar.FreeBusyInfo], 0, len(order))
	for _, accountID := range order {
		client, calendarIDs := accounts[accountID], groups[accountID]
		tasks = append(tasks, executor.Task[[]calendar.FreeBusyInfo]{
			ID: accountID,
			Run: func(ctx context.Context) ([]calendar.FreeBusyInfo, error) {
				return client.QueryFreeBusy(ctx, window.Start, window.End, calendarIDs)
			},
		})
	}
	res := executor.ExecuteParallel(ctx, sc.Executor(), tasks)
	for _, f := range res.Failed {
		failures = append(failures, fmt.Sprintf("%s: %v", strings.Join(groups[f.ID], ", "), f.Err))
	}

	byCalendar := make(map[string]calendar.FreeBusyInfo)
	for _, infos := range res.Successful {
		for _, info := range infos {
			byCalendar[info.Calendar] = info
		}
	}
	if len(byCalendar) == 0 && len(failures) > 0 {
		return mcp.NewToolResultError("Failed to query free/busy:\n" + strings.Join(failures, "\n")), nil
	}

	var b strings.Builder
	var allBusy []calendar.TimeRange
	fmt.Fprintf(&b, "Free/busy from %s to %s:\n\n", window.Start.In(loc).Format(time.RFC3339), window.End.In(loc).Format(time.RFC3339))
	for _, id := range ids {
		info, ok := byCalendar[id]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Calendar: %s\n", id)
		for _, e := range info.Errors {
			fmt.Fprintf(&b, "  Error: %s\n", e)
		}
		if len(info.Busy) == 0 && len(info.Errors) == 0 {
			b.WriteString("  Free for the whole range\n")
		}
		for _, busy := range info.Busy {
			fmt.Fprintf(&b, "  Busy: %s - %s\n", busy.Start.In(loc).Format(time.RFC3339), busy.End.In(loc).Format(time.RFC3339))
		}
		allBusy = append(allBusy, info.Busy...)
		b.WriteString("\n")
	}

	if minutes := common.IntArg(args, "minDurationMinutes", 0); minutes > 0 {
		slots := calendar.FreeSlots(allBusy, window, time.Duration(minutes)*time.Minute)
		fmt.Fprintf(&b, "Shared free slots of at least %d minutes (%d):\n", minutes, len(slots))
		for _, slot := range slots {
			fmt.Fprintf(&b, "  %s - %s\n", slot.Start.In(loc).Format(time.RFC3339), slot.End.In(loc).Format(time.RFC3339))
		}
	}

	if len(failures) > 0 {
		b.WriteString("\nErrors:\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// conflict is an existing event overlapping the proposed range.
type conflict struct {
	CalendarID string `json:"calendarId"`
	Account    string `json:"account"`
	EventID    string `json:"eventId"`
	Summary    string `json:"summary"`
	Start      string `json:"start"`
	End        string `json:"end"`

	startsAt time.Time
}

type conflictReport struct {
	Start            string     `json:"start"`
	End              string     `json:"end"`
	HasConflicts     bool       `json:"hasConflicts"`
	Conflicts        []conflict `json:"conflicts"`
	CheckedCalendars int        `json:"checkedCalendars"`
	Errors           []string   `json:"errors,omitempty"`
}

type conflictTarget struct {
	calendarID string
	accountID  string
}

// conflictTargets lists the calendars to check. Without an explicit list
// every known calendar is read through its preferred account, except those
// whose best access is free/busy only.
func conflictTargets(ctx context.Context, sc *server.ServerContext, ids []string, accounts map[string]calendar.Service) ([]conflictTarget, []string, error) {
	var targets []conflictTarget
	var failures []string
	if len(ids) > 0 {
		for _, id := range ids {
			sel, err := sc.Registry().ResolveAccount(ctx, "", id, accounts, registry.OperationRead)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", id, common.DescribeResolveError(id, err)))
				continue
			}
			targets = append(targets, conflictTarget{calendarID: id, accountID: sel.AccountID})
		}
		return targets, failures, nil
	}

	calendars, err := sc.Registry().GetUnifiedCalendars(ctx, accounts)
	if err != nil {
		return nil, nil, err
	}
	for _, cal := range calendars {
		if cal.Preferred().AccessRole == calendar.RoleFreeBusyReader {
			continue
		}
		targets = append(targets, conflictTarget{calendarID: cal.CalendarID, accountID: cal.PreferredAccountID})
	}
	return targets, nil, nil
}

func handleCheckConflicts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	loc, err := common.LoadLocation(common.StringArg(args, "timeZone"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window, err := timeWindow(args, "start", "end", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := common.StringListArg(args, "calendarId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	exclude := common.StringArg(args, "excludeEventId")

	accounts, err := sc.Accounts()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targets, failures, err := conflictTargets(ctx, sc, ids, accounts)
	if err != nil {
		return common.ErrorResult("list calendars", err), nil
	}

	tasks := make([]executor.Task[[]conflict], 0, len(targets))
	for _, target := range targets {
		client := accounts[target.accountID]
		tasks = append(tasks, executor.Task[[]conflict]{
			ID: target.calendarID,
			Run: func(ctx context.Context) ([]conflict, error) {
				events, err := client.ListEvents(ctx, target.calendarID, calendar.EventQuery{
					TimeMin: window.Start,
					TimeMax: window.End,
				})
				if err != nil {
					return nil, err
				}
				var found []conflict
				for _, e := range events {
					if e.ID == exclude || e.Status == "cancelled" || e.Transparent {
						continue
					}
					if !window.Overlaps(calendar.TimeRange{Start: e.Start, End: e.End}) {
						continue
					}
					found = append(found, conflict{
						CalendarID: target.calendarID,
						Account:    target.accountID,
						EventID:    e.ID,
						Summary:    e.Summary,
						Start:      formatTime(e.Start.In(loc), e.AllDay),
						End:        formatTime(e.End.In(loc), e.AllDay),
						startsAt:   e.Start,
					})
				}
				return found, nil
			},
		})
	}

	res := executor.ExecuteParallel(ctx, sc.Executor(), tasks)
	for _, f := range res.Failed {
		failures = append(failures, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}

	type key struct{ calendarID, eventID string }
	seen := make(map[key]bool)
	report := conflictReport{
		Start:            window.Start.In(loc).Format(time.RFC3339),
		End:              window.End.In(loc).Format(time.RFC3339),
		Conflicts:        []conflict{},
		CheckedCalendars: len(res.Successful),
		Errors:           failures,
	}
	for _, found := range res.Successful {
		for _, c := range found {
			k := key{c.CalendarID, c.EventID}
			if seen[k] {
				continue
			}
			seen[k] = true
			report.Conflicts = append(report.Conflicts, c)
		}
	}
	sort.SliceStable(report.Conflicts, func(i, j int) bool {
		return report.Conflicts[i].startsAt.Before(report.Conflicts[j].startsAt)
	})
	report.HasConflicts = len(report.Conflicts) > 0

	return common.JSONResult(report)
}

type currentTime struct {
	CurrentTime string `json:"currentTime"`
	TimeZone    string `json:"timeZone"`
	UTC         string `json:"utc"`
	Unix        int64  `json:"unix"`
	Weekday     string `json:"weekday"`
}

func handleGetCurrentTime(_ context.Context, request mcp.CallToolRequest, _ *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	tz := common.StringArg(args, "timeZone")
	loc, err := common.LoadLocation(tz)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tz == "" {
		tz = "UTC"
	}

	now := time.Now()
	local := now.In(loc)
	return common.JSONResult(currentTime{
		CurrentTime: local.Format(time.RFC3339),
		TimeZone:    tz,
		UTC:         now.UTC().Format(time.RFC3339),
		Unix:        now.Unix(),
		Weekday:     local.Weekday().String(),
	})
}

// firstAccount returns the smallest account ID.
func firstAccount(accounts map[string]calendar.Service) string {
	first := ""
	for id := range accounts {
		if first == "" || id < first {
			first = id
		}
	}
	return first
}
