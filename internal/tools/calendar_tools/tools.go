package calendar_tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/common"
)

const calendarIDDescription = "Calendar ID (use 'primary' for the account's primary calendar)"

// RegisterCalendarTools registers every calendar tool. Mutating tools are
// skipped when readOnly is set.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterCalendarListTools(s, sc); err != nil {
		return fmt.Errorf("failed to register calendar list tools: %w", err)
	}
	if err := RegisterEventTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	if err := RegisterSchedulingTools(s, sc); err != nil {
		return fmt.Errorf("failed to register scheduling tools: %w", err)
	}
	return nil
}

// toolLogger returns a logger tagged with the tool name.
func toolLogger(sc *server.ServerContext, tool string) logging.Logger {
	return logging.NewSlogAdapter(sc.Logger()).With(logging.KeyTool, tool)
}

// routed is a calendar call resolved to one account.
type routed struct {
	accountID  string
	accessRole string
	calendarID string
	client     calendar.Service
}

// route picks the account for op on calendarID. The returned tool result is
// non-nil when routing failed and should be returned as is.
func route(ctx context.Context, sc *server.ServerContext, args map[string]interface{}, calendarID string, op registry.OperationType) (*routed, *mcp.CallToolResult) {
	accounts, err := sc.Accounts()
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sel, err := sc.Registry().ResolveAccount(ctx, common.GetAccountFromArgs(args), calendarID, accounts, op)
	if err != nil {
		return nil, mcp.NewToolResultError(common.DescribeResolveError(calendarID, err))
	}
	return &routed{
		accountID:  sel.AccountID,
		accessRole: sel.AccessRole,
		calendarID: calendarID,
		client:     accounts[sel.AccountID],
	}, nil
}

// calendarIDArg returns the calendarId argument, defaulting to primary.
func calendarIDArg(args map[string]interface{}) string {
	if id := common.StringArg(args, "calendarId"); id != "" {
		return id
	}
	return calendar.PrimaryCalendarID
}

// sendUpdatesArg validates the sendUpdates argument.
func sendUpdatesArg(args map[string]interface{}) (string, error) {
	v := common.StringArg(args, "sendUpdates")
	switch v {
	case "", calendar.SendUpdatesAll, calendar.SendUpdatesExternalOnly, calendar.SendUpdatesNone:
		return v, nil
	default:
		return "", fmt.Errorf("sendUpdates must be one of all, externalOnly, none")
	}
}

// zoneFor returns the location named by tz, or the calendar's own zone when
// tz is empty. The returned name is empty when neither is known.
func zoneFor(ctx context.Context, r *routed, tz string) (*time.Location, string, error) {
	if tz == "" {
		info, err := r.client.GetCalendar(ctx, r.calendarID)
		if err == nil && info.TimeZone != "" {
			tz = info.TimeZone
		}
	}
	loc, err := common.LoadLocation(tz)
	if err != nil {
		return nil, "", err
	}
	return loc, tz, nil
}

func formatTime(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02") + " (all day)"
	}
	return t.Format(time.RFC3339)
}

func formatEventLine(b *strings.Builder, i int, event calendar.EventSummary) {
	fmt.Fprintf(b, "%d. %s\n", i, event.Summary)
	fmt.Fprintf(b, "   ID: %s\n", event.ID)
	fmt.Fprintf(b, "   Start: %s\n", formatTime(event.Start, event.AllDay))
	fmt.Fprintf(b, "   End: %s\n", formatTime(event.End, event.AllDay))
	if event.Location != "" {
		fmt.Fprintf(b, "   Location: %s\n", event.Location)
	}
	if event.MeetLink != "" {
		fmt.Fprintf(b, "   Meet: %s\n", event.MeetLink)
	}
	if len(event.Attendees) > 0 {
		fmt.Fprintf(b, "   Attendees: %d\n", len(event.Attendees))
	}
}

func formatEventDetails(event *calendar.EventSummary, accountID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", event.Summary)
	fmt.Fprintf(&b, "ID: %s\n", event.ID)
	fmt.Fprintf(&b, "Calendar: %s\n", event.CalendarID)
	if accountID != "" {
		fmt.Fprintf(&b, "Account: %s\n", accountID)
	}
	fmt.Fprintf(&b, "Start: %s\n", formatTime(event.Start, event.AllDay))
	fmt.Fprintf(&b, "End: %s\n", formatTime(event.End, event.AllDay))
	if event.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", event.Status)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", event.Description)
	}
	if event.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", event.Location)
	}
	if event.Organizer != "" {
		fmt.Fprintf(&b, "Organizer: %s\n", event.Organizer)
	}
	if event.MeetLink != "" {
		fmt.Fprintf(&b, "Google Meet: %s\n", event.MeetLink)
	}
	if len(event.Recurrence) > 0 {
		fmt.Fprintf(&b, "Recurrence: %s\n", strings.Join(event.Recurrence, "; "))
	}
	if event.HTMLLink != "" {
		fmt.Fprintf(&b, "Link: %s\n", event.HTMLLink)
	}

	if len(event.Attendees) > 0 {
		fmt.Fprintf(&b, "\nAttendees (%d):\n", len(event.Attendees))
		for _, att := range event.Attendees {
			fmt.Fprintf(&b, "  - %s (%s)", att.Email, att.ResponseStatus)
			if att.DisplayName != "" {
				fmt.Fprintf(&b, " - %s", att.DisplayName)
			}
			if att.Optional {
				b.WriteString(" [optional]")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// sortEvents orders events by start time, then ID.
func sortEvents(events []calendar.EventSummary) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}
