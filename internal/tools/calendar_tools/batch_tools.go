package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/batch"
	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

func registerBatchTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	createEventsTool := mcp.NewTool("create-events",
		mcp.WithDescription(fmt.Sprintf("Create up to %d events in one call. Items are created in order; after 3 consecutive identical failures the remaining items are skipped.", batch.MaxItems)),
		mcp.WithArray("events",
			mcp.Required(),
			mcp.Description("Events to create. Each item takes summary, start, end and optionally description, location, attendees, recurrence, colorId, transparency, addGoogleMeet, and per-item account, calendarId, timeZone, sendUpdates overrides."),
			mcp.Items(map[string]any{"type": "object"}),
		),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description("Default calendar for items that do not set one (default: primary)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Default IANA time zone (default: each calendar's time zone)"),
		),
		mcp.WithString("sendUpdates",
			mcp.Description("Default notification setting: all, externalOnly or none"),
		),
	)

	s.AddTool(createEventsTool, common.InstrumentedToolHandlerWithService(
		"create-events", instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvents(ctx, request, sc)
		}))

	return nil
}

// parseBatchItem converts one events[] entry. Times without an offset are
// read in the item or default zone; with neither they stay floating and are
// placed in the calendar's zone when created.
func parseBatchItem(raw map[string]interface{}, defaultTZ string) (batch.Item, error) {
	item := batch.Item{
		Account:     common.OptionalString(raw, "account"),
		CalendarID:  common.OptionalString(raw, "calendarId"),
		TimeZone:    common.OptionalString(raw, "timeZone"),
		SendUpdates: common.OptionalString(raw, "sendUpdates"),
	}

	tz := defaultTZ
	if item.TimeZone != nil {
		tz = *item.TimeZone
	}
	loc, err := common.LoadLocation(tz)
	if err != nil {
		return item, err
	}

	startStr, err := common.RequiredString(raw, "start")
	if err != nil {
		return item, err
	}
	endStr, err := common.RequiredString(raw, "end")
	if err != nil {
		return item, err
	}
	start, end, allDay, err := parseRange(startStr, endStr, loc)
	if err != nil {
		return item, err
	}

	attendees, err := common.StringListArg(raw, "attendees")
	if err != nil {
		return item, err
	}
	recurrence, err := common.StringListArg(raw, "recurrence")
	if err != nil {
		return item, err
	}

	item.Event = calendar.EventInput{
		Summary:       common.StringArg(raw, "summary"),
		Description:   common.StringArg(raw, "description"),
		Location:      common.StringArg(raw, "location"),
		Start:         start,
		End:           end,
		AllDay:        allDay,
		Floating:      tz == "" && !allDay && !(common.HasOffset(startStr) && common.HasOffset(endStr)),
		Attendees:     attendees,
		Recurrence:    recurrence,
		ColorID:       common.StringArg(raw, "colorId"),
		Transparency:  common.StringArg(raw, "transparency"),
		AddConference: common.BoolArg(raw, "addGoogleMeet"),
	}
	return item, nil
}

type createdItem struct {
	Index    int    `json:"index"`
	Account  string `json:"account"`
	Calendar string `json:"calendarId"`
	EventID  string `json:"eventId"`
	Summary  string `json:"summary"`
	Start    string `json:"start"`
	Link     string `json:"link,omitempty"`
}

type failedItem struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Error string `json:"error"`
}

type batchResponse struct {
	TotalRequested int           `json:"totalRequested"`
	TotalCreated   int           `json:"totalCreated"`
	TotalFailed    int           `json:"totalFailed"`
	Created        []createdItem `json:"created,omitempty"`
	Failed         []failedItem  `json:"failed,omitempty"`
}

func handleCreateEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	rawEvents, ok := args["events"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("events must be an array of event objects"), nil
	}
	if len(rawEvents) == 0 || len(rawEvents) > batch.MaxItems {
		return mcp.NewToolResultError(fmt.Sprintf("%v (got %d)", batch.ErrInvalidBatchSize, len(rawEvents))), nil
	}
	sendUpdates, err := sendUpdatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	defaults := batch.Defaults{
		Account:     common.StringArg(args, "account"),
		CalendarID:  common.StringArg(args, "calendarId"),
		TimeZone:    common.StringArg(args, "timeZone"),
		SendUpdates: sendUpdates,
	}

	items := make([]batch.Item, 0, len(rawEvents))
	for i, raw := range rawEvents {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("events[%d] must be an object", i)), nil
		}
		item, err := parseBatchItem(obj, defaults.TimeZone)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("events[%d]: %v", i, err)), nil
		}
		items = append(items, item)
	}

	accounts, err := sc.Accounts()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := sc.Pipeline().CreateMany(ctx, defaults, items, accounts)
	if err != nil {
		calendarID := defaults.CalendarID
		if calendarID == "" {
			calendarID = calendar.PrimaryCalendarID
		}
		return mcp.NewToolResultError(common.DescribeResolveError(calendarID, err)), nil
	}

	resp := batchResponse{
		TotalRequested: res.TotalRequested,
		TotalCreated:   res.TotalCreated,
		TotalFailed:    res.TotalFailed,
	}
	for _, c := range res.Created {
		resp.Created = append(resp.Created, createdItem{
			Index:    c.Index,
			Account:  c.AccountID,
			Calendar: c.Event.CalendarID,
			EventID:  c.Event.ID,
			Summary:  c.Event.Summary,
			Start:    formatTime(c.Event.Start, c.Event.AllDay),
			Link:     c.Event.HTMLLink,
		})
	}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, failedItem{Index: f.Index, Label: f.Label, Error: f.Error})
	}

	result, err := common.JSONResult(resp)
	if err != nil {
		return nil, err
	}
	result.IsError = res.IsError
	return result, nil
}
