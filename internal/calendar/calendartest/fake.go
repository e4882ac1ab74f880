// Package calendartest provides an in-memory calendar.Service for tests.
package calendartest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
)

// InsertCall records one InsertEvent invocation.
type InsertCall struct {
	CalendarID string
	Input      calendar.EventInput
	Options    calendar.WriteOptions
}

// Fake is a scriptable calendar.Service. Nil hooks fall back to the static
// fields. It is safe for concurrent use.
type Fake struct {
	Calendars        []calendar.CalendarInfo
	ListCalendarsErr error
	Events           map[string][]calendar.EventSummary
	TimeZone         string
	Busy             map[string][]calendar.TimeRange

	ListEventsFunc  func(ctx context.Context, calendarID string, query calendar.EventQuery) ([]calendar.EventSummary, error)
	InsertEventFunc func(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
	PatchEventFunc  func(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch) (*calendar.EventSummary, error)
	DeleteEventFunc func(ctx context.Context, calendarID, eventID string) error

	mu      sync.Mutex
	calls   map[string]int
	inserts []InsertCall
}

var _ calendar.Service = (*Fake)(nil)

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

// Calls returns how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Inserts returns the recorded InsertEvent calls in order.
func (f *Fake) Inserts() []InsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]InsertCall, len(f.inserts))
	copy(out, f.inserts)
	return out
}

func (f *Fake) ListCalendars(ctx context.Context) ([]calendar.CalendarInfo, error) {
	f.record("ListCalendars")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ListCalendarsErr != nil {
		return nil, f.ListCalendarsErr
	}
	return f.Calendars, nil
}

func (f *Fake) GetCalendar(_ context.Context, calendarID string) (*calendar.CalendarInfo, error) {
	f.record("GetCalendar")
	for _, c := range f.Calendars {
		if c.ID == calendarID || (calendarID == calendar.PrimaryCalendarID && c.Primary) {
			info := c
			if info.TimeZone == "" {
				info.TimeZone = f.TimeZone
			}
			return &info, nil
		}
	}
	return &calendar.CalendarInfo{ID: calendarID, TimeZone: f.TimeZone}, nil
}

func (f *Fake) ListEvents(ctx context.Context, calendarID string, query calendar.EventQuery) ([]calendar.EventSummary, error) {
	f.record("ListEvents")
	if f.ListEventsFunc != nil {
		return f.ListEventsFunc(ctx, calendarID, query)
	}
	return f.Events[calendarID], nil
}

func (f *Fake) GetEvent(_ context.Context, calendarID, eventID string) (*calendar.EventSummary, error) {
	f.record("GetEvent")
	for _, e := range f.Events[calendarID] {
		if e.ID == eventID {
			event := e
			return &event, nil
		}
	}
	return nil, &calendar.APIError{Operation: "get", StatusCode: 404, Message: "Not Found"}
}

func (f *Fake) InsertEvent(ctx context.Context, calendarID string, input calendar.EventInput, opts calendar.WriteOptions) (*calendar.EventSummary, error) {
	f.record("InsertEvent")
	f.mu.Lock()
	f.inserts = append(f.inserts, InsertCall{CalendarID: calendarID, Input: input, Options: opts})
	n := len(f.inserts)
	f.mu.Unlock()

	if f.InsertEventFunc != nil {
		return f.InsertEventFunc(ctx, calendarID, input)
	}
	return &calendar.EventSummary{
		ID:         fmt.Sprintf("evt-%d", n),
		CalendarID: calendarID,
		Summary:    input.Summary,
		Start:      input.Start,
		End:        input.End,
	}, nil
}

func (f *Fake) PatchEvent(ctx context.Context, calendarID, eventID string, patch calendar.EventPatch, _ calendar.WriteOptions) (*calendar.EventSummary, error) {
	f.record("PatchEvent")
	if f.PatchEventFunc != nil {
		return f.PatchEventFunc(ctx, calendarID, eventID, patch)
	}
	event := calendar.EventSummary{ID: eventID, CalendarID: calendarID}
	if patch.Summary != nil {
		event.Summary = *patch.Summary
	}
	return &event, nil
}

func (f *Fake) DeleteEvent(ctx context.Context, calendarID, eventID string, _ calendar.WriteOptions) error {
	f.record("DeleteEvent")
	if f.DeleteEventFunc != nil {
		return f.DeleteEventFunc(ctx, calendarID, eventID)
	}
	return nil
}

func (f *Fake) QueryFreeBusy(_ context.Context, _, _ time.Time, calendarIDs []string) ([]calendar.FreeBusyInfo, error) {
	f.record("QueryFreeBusy")
	out := make([]calendar.FreeBusyInfo, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		out = append(out, calendar.FreeBusyInfo{Calendar: id, Busy: f.Busy[id]})
	}
	return out, nil
}

// Entry builds a CalendarInfo.
func Entry(id, summary, role string, primary bool) calendar.CalendarInfo {
	return calendar.CalendarInfo{ID: id, Summary: summary, AccessRole: role, Primary: primary}
}
