package executor

import (
	"context"
	"time"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
)

// CalendarSource pairs a calendar with the client that reads it.
type CalendarSource struct {
	CalendarID string
	Client     calendar.Service
}

type calendarEvents struct {
	calendarID string
	events     []calendar.EventSummary
}

// FetchAcrossCalendars lists events matching query on each calendar through
// client. Duplicate IDs are fetched once. Calendars that fail are reported
// in the failures and absent from the map.
func FetchAcrossCalendars(ctx context.Context, e *Executor, client calendar.Service, calendarIDs []string, query calendar.EventQuery) (map[string][]calendar.EventSummary, []Failure, time.Duration) {
	sources := make([]CalendarSource, len(calendarIDs))
	for i, id := range calendarIDs {
		sources[i] = CalendarSource{CalendarID: id, Client: client}
	}
	return FetchFromSources(ctx, e, sources, query)
}

// FetchFromSources is FetchAcrossCalendars with a client per calendar, so
// calendars owned by different accounts share one parallel run. The first
// source wins for a repeated calendar ID.
func FetchFromSources(ctx context.Context, e *Executor, sources []CalendarSource, query calendar.EventQuery) (map[string][]calendar.EventSummary, []Failure, time.Duration) {
	seen := make(map[string]bool, len(sources))
	tasks := make([]Task[calendarEvents], 0, len(sources))
	for _, src := range sources {
		if seen[src.CalendarID] {
			continue
		}
		seen[src.CalendarID] = true
		tasks = append(tasks, Task[calendarEvents]{
			ID: src.CalendarID,
			Run: func(ctx context.Context) (calendarEvents, error) {
				events, err := src.Client.ListEvents(ctx, src.CalendarID, query)
				return calendarEvents{calendarID: src.CalendarID, events: events}, err
			},
		})
	}

	res := ExecuteParallel(ctx, e, tasks)
	byCalendar := make(map[string][]calendar.EventSummary, len(res.Successful))
	for _, s := range res.Successful {
		byCalendar[s.calendarID] = s.events
	}
	return byCalendar, res.Failed, res.TotalTime
}
