package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/batch"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

const defaultMaxResults = 250

// RegisterEventTools registers the event tools. Mutating tools are skipped
// when readOnly is set.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listEventsTool := mcp.NewTool("list-events",
		mcp.WithDescription("List events from one or more calendars. Calendars shared across accounts are read once, through the account with the best access."),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID, a comma-separated list, or a JSON array of IDs (default: primary)"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Start of the range: RFC3339, local time (2025-01-15T09:00:00) or date. Defaults to now."),
		),
		mcp.WithString("timeMax",
			mcp.Description("End of the range, same formats as timeMin"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for local times and the response (e.g. 'Europe/Berlin')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum events per calendar (default: 250)"),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithService(
		"list-events", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc, false)
		}))

	searchEventsTool := mcp.NewTool("search-events",
		mcp.WithDescription("Search events by text across one or more calendars"),
		common.WithAccount(),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free text matched against summary, description, location and attendees"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Calendar ID, a comma-separated list, or a JSON array of IDs (default: primary)"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Start of the range. Defaults to now."),
		),
		mcp.WithString("timeMax",
			mcp.Description("End of the range"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for local times and the response"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum events per calendar (default: 250)"),
		),
	)

	s.AddTool(searchEventsTool, common.InstrumentedToolHandlerWithService(
		"search-events", instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, sc, true)
		}))

	getEventTool := mcp.NewTool("get-event",
		mcp.WithDescription("Get details of a specific calendar event"),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to retrieve"),
		),
	)

	s.AddTool(getEventTool, common.InstrumentedToolHandlerWithService(
		"get-event", instrumentation.OperationGet, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEvent(ctx, request, sc)
		}))

	if readOnly {
		return nil
	}

	createEventTool := mcp.NewTool("create-event",
		mcp.WithDescription("Create a calendar event. Without an account, the account with write access to the calendar is chosen."),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start: RFC3339, local time in timeZone (2025-01-15T14:00:00), or a date for all-day events"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End, same formats as start. All-day ends are exclusive."),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone (default: the calendar's time zone)"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("attendees",
			mcp.Description("Attendee emails: comma-separated list or JSON array"),
		),
		mcp.WithString("recurrence",
			mcp.Description("Recurrence rules, e.g. 'RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR' (comma-separated list or JSON array)"),
		),
		mcp.WithString("colorId",
			mcp.Description("Event color ID"),
		),
		mcp.WithString("transparency",
			mcp.Description("'opaque' (busy, default) or 'transparent' (free)"),
			mcp.Enum("opaque", "transparent"),
		),
		mcp.WithBoolean("addGoogleMeet",
			mcp.Description("Add a Google Meet link to the event"),
		),
		mcp.WithString("sendUpdates",
			mcp.Description("Who gets notified: all, externalOnly or none"),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService(
		"create-event", instrumentation.OperationCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, sc)
		}))

	if err := registerBatchTools(s, sc); err != nil {
		return err
	}

	updateEventTool := mcp.NewTool("update-event",
		mcp.WithDescription("Update fields of an existing event. Only the given fields change; an empty string clears a text field."),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("summary",
			mcp.Description("New title"),
		),
		mcp.WithString("description",
			mcp.Description("New description"),
		),
		mcp.WithString("location",
			mcp.Description("New location"),
		),
		mcp.WithString("start",
			mcp.Description("New start (same formats as create-event)"),
		),
		mcp.WithString("end",
			mcp.Description("New end"),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for local start/end (default: the calendar's time zone)"),
		),
		mcp.WithString("attendees",
			mcp.Description("Replacement attendee list: comma-separated or JSON array. An empty list removes everyone."),
		),
		mcp.WithString("colorId",
			mcp.Description("New color ID"),
		),
		mcp.WithString("sendUpdates",
			mcp.Description("Who gets notified: all, externalOnly or none"),
		),
	)

	s.AddTool(updateEventTool, common.InstrumentedToolHandlerWithService(
		"update-event", instrumentation.OperationPatch, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, sc)
		}))

	deleteEventTool := mcp.NewTool("delete-event",
		mcp.WithDescription("Delete one or more events from a calendar"),
		common.WithAccount(),
		mcp.WithString("calendarId",
			mcp.Description(calendarIDDescription),
		),
		mcp.WithArray("eventId",
			mcp.Required(),
			mcp.Description("Event ID or array of event IDs (max 50)"),
			mcp.WithStringItems(),
		),
		mcp.WithString("sendUpdates",
			mcp.Description("Who gets notified: all, externalOnly or none"),
		),
	)

	s.AddTool(deleteEventTool, common.InstrumentedToolHandlerWithService(
		"delete-event", instrumentation.OperationDelete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, sc)
		}))

	return nil
}

// calendarFetch is the merged outcome of reading several calendars.
type calendarFetch struct {
	events    []calendar.EventSummary
	calendars int
	failures  []string
}

// fetchEvents reads query from every calendar in calendarIDs. Each calendar
// is routed to an account and all of them are read in one parallel run.
func fetchEvents(ctx context.Context, sc *server.ServerContext, account string, calendarIDs []string, query calendar.EventQuery) (*calendarFetch, error) {
	accounts, err := sc.Accounts()
	if err != nil {
		return nil, err
	}

	out := &calendarFetch{}
	var sources []executor.CalendarSource
	for _, id := range calendarIDs {
		sel, err := sc.Registry().ResolveAccount(ctx, account, id, accounts, registry.OperationRead)
		if err != nil {
			out.failures = append(out.failures, fmt.Sprintf("%s: %s", id, common.DescribeResolveError(id, err)))
			continue
		}
		sources = append(sources, executor.CalendarSource{CalendarID: id, Client: accounts[sel.AccountID]})
	}

	byCalendar, failed, _ := executor.FetchFromSources(ctx, sc.Executor(), sources, query)
	for _, f := range failed {
		out.failures = append(out.failures, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}

	type eventKey struct{ calendarID, eventID string }
	seen := make(map[eventKey]bool)
	for _, src := range sources {
		events, ok := byCalendar[src.CalendarID]
		if !ok {
			continue
		}
		delete(byCalendar, src.CalendarID)
		out.calendars++
		for _, e := range events {
			k := eventKey{src.CalendarID, e.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			out.events = append(out.events, e)
		}
	}
	sortEvents(out.events)
	return out, nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, search bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query := calendar.EventQuery{
		TimeZone:   common.StringArg(args, "timeZone"),
		MaxResults: int64(common.IntArg(args, "maxResults", defaultMaxResults)),
	}
	if search {
		q, err := common.RequiredString(args, "query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		query.Query = q
	}

	loc, err := common.LoadLocation(query.TimeZone)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMin, _, ok, err := common.TimeArg(args, "timeMin", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		timeMin = time.Now()
	}
	timeMax, _, ok, err := common.TimeArg(args, "timeMax", loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok && !timeMax.After(timeMin) {
		return mcp.NewToolResultError("timeMax must be after timeMin"), nil
	}
	query.TimeMin, query.TimeMax = timeMin, timeMax

	calendarIDs, err := common.StringListArg(args, "calendarId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{calendar.PrimaryCalendarID}
	}

	fetched, err := fetchEvents(ctx, sc, common.GetAccountFromArgs(args), calendarIDs, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if fetched.calendars == 0 && len(fetched.failures) > 0 {
		return mcp.NewToolResultError("Failed to list events:\n" + strings.Join(fetched.failures, "\n")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d event(s) in %d calendar(s):\n\n", len(fetched.events), fetched.calendars)
	for i, event := range fetched.events {
		formatEventLine(&b, i+1, event)
		if len(calendarIDs) > 1 {
			fmt.Fprintf(&b, "   Calendar: %s\n", event.CalendarID)
		}
		b.WriteString("\n")
	}
	if len(fetched.failures) > 0 {
		b.WriteString("Errors:\n")
		for _, f := range fetched.failures {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, err := common.RequiredString(args, "eventId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, errResult := route(ctx, sc, args, calendarIDArg(args), registry.OperationRead)
	if errResult != nil {
		return errResult, nil
	}

	event, err := r.client.GetEvent(ctx, r.calendarID, eventID)
	if err != nil {
		if calendar.IsNotFound(err) {
			return mcp.NewToolResultError(fmt.Sprintf("Event %s not found in calendar %s", eventID, r.calendarID)), nil
		}
		return common.ErrorResult("get event", err), nil
	}
	return mcp.NewToolResultText(formatEventDetails(event, r.accountID)), nil
}

// eventTimes parses start and end in loc. A date-only start makes the event
// all-day; an all-day end on the start date is moved to the next day.
func eventTimes(args map[string]interface{}, loc *time.Location) (start, end time.Time, allDay bool, err error) {
	startStr, err := common.RequiredString(args, "start")
	if err != nil {
		return
	}
	endStr, err := common.RequiredString(args, "end")
	if err != nil {
		return
	}
	return parseRange(startStr, endStr, loc)
}

func parseRange(startStr, endStr string, loc *time.Location) (start, end time.Time, allDay bool, err error) {
	start, allDay, err = common.ParseTime(startStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("start: %w", err)
	}
	end, endDateOnly, err := common.ParseTime(endStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("end: %w", err)
	}
	if allDay != endDateOnly {
		return time.Time{}, time.Time{}, false, fmt.Errorf("start and end must both be dates or both be times")
	}
	if allDay && !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, false, fmt.Errorf("end must be after start")
	}
	return start, end, allDay, nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	logger := toolLogger(sc, "create-event")

	summary, err := common.RequiredString(args, "summary")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sendUpdates, err := sendUpdatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	attendees, err := common.StringListArg(args, "attendees")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recurrence, err := common.StringListArg(args, "recurrence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, errResult := route(ctx, sc, args, calendarIDArg(args), registry.OperationWrite)
	if errResult != nil {
		return errResult, nil
	}

	loc, tz, err := zoneFor(ctx, r, common.StringArg(args, "timeZone"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, end, allDay, err := eventTimes(args, loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	input := calendar.EventInput{
		Summary:       summary,
		Description:   common.StringArg(args, "description"),
		Location:      common.StringArg(args, "location"),
		Start:         start,
		End:           end,
		AllDay:        allDay,
		TimeZone:      tz,
		Attendees:     attendees,
		Recurrence:    recurrence,
		ColorID:       common.StringArg(args, "colorId"),
		Transparency:  common.StringArg(args, "transparency"),
		AddConference: common.BoolArg(args, "addGoogleMeet"),
	}

	event, err := r.client.InsertEvent(ctx, r.calendarID, input, calendar.WriteOptions{SendUpdates: sendUpdates})
	if err != nil {
		logger.Warn("create failed", logging.AccountHash(r.accountID), logging.Calendar(r.calendarID), logging.Err(err))
		return common.ErrorResult("create event", err), nil
	}

	return mcp.NewToolResultText("Event created.\n\n" + formatEventDetails(event, r.accountID)), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventID, err := common.RequiredString(args, "eventId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sendUpdates, err := sendUpdatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	patch := calendar.EventPatch{
		Summary:     common.OptionalString(args, "summary"),
		Description: common.OptionalString(args, "description"),
		Location:    common.OptionalString(args, "location"),
		ColorID:     common.OptionalString(args, "colorId"),
	}
	if _, ok := args["attendees"]; ok {
		attendees, err := common.StringListArg(args, "attendees")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if attendees == nil {
			attendees = []string{}
		}
		patch.Attendees = attendees
	}

	r, errResult := route(ctx, sc, args, calendarIDArg(args), registry.OperationWrite)
	if errResult != nil {
		return errResult, nil
	}

	startStr, endStr := common.StringArg(args, "start"), common.StringArg(args, "end")
	if startStr != "" || endStr != "" {
		if startStr == "" || endStr == "" {
			return mcp.NewToolResultError("start and end must be updated together"), nil
		}
		loc, tz, err := zoneFor(ctx, r, common.StringArg(args, "timeZone"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start, end, allDay, err := parseRange(startStr, endStr, loc)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		patch.Start, patch.End, patch.AllDay, patch.TimeZone = &start, &end, allDay, tz
	}

	if patch.IsEmpty() {
		return mcp.NewToolResultError("nothing to update: pass at least one field to change"), nil
	}

	event, err := r.client.PatchEvent(ctx, r.calendarID, eventID, patch, calendar.WriteOptions{SendUpdates: sendUpdates})
	if err != nil {
		if calendar.IsNotFound(err) {
			return mcp.NewToolResultError(fmt.Sprintf("Event %s not found in calendar %s", eventID, r.calendarID)), nil
		}
		return common.ErrorResult("update event", err), nil
	}
	return mcp.NewToolResultText("Event updated.\n\n" + formatEventDetails(event, r.accountID)), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	eventIDs, err := batch.ParseStringOrArray(args["eventId"], "eventId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sendUpdates, err := sendUpdatesArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, errResult := route(ctx, sc, args, calendarIDArg(args), registry.OperationWrite)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(ctx, eventIDs, func(ctx context.Context, id string) (string, error) {
		if err := r.client.DeleteEvent(ctx, r.calendarID, id, calendar.WriteOptions{SendUpdates: sendUpdates}); err != nil {
			return "", err
		}
		return "deleted", nil
	})

	if len(results) == 1 {
		if results[0].Status != batch.StatusSuccess {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete event %s: %s", eventIDs[0], results[0].Error)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted from calendar %s (account %s)", eventIDs[0], r.calendarID, r.accountID)), nil
	}

	summary := batch.Summarize(results)
	result := mcp.NewToolResultText(batch.FormatResults(results))
	result.IsError = summary.Successful == 0
	return result, nil
}
