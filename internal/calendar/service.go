package calendar

import (
	"context"
	"time"
)

// Service is the capability handle for one authenticated account.
type Service interface {
	ListCalendars(ctx context.Context) ([]CalendarInfo, error)
	GetCalendar(ctx context.Context, calendarID string) (*CalendarInfo, error)
	ListEvents(ctx context.Context, calendarID string, query EventQuery) ([]EventSummary, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error)
	InsertEvent(ctx context.Context, calendarID string, input EventInput, opts WriteOptions) (*EventSummary, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch, opts WriteOptions) (*EventSummary, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string, opts WriteOptions) error
	QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error)
}

// Access roles reported by the calendar list.
const (
	RoleOwner          = "owner"
	RoleWriter         = "writer"
	RoleReader         = "reader"
	RoleFreeBusyReader = "freeBusyReader"
)

// PrimaryCalendarID is the alias for an account's own calendar.
const PrimaryCalendarID = "primary"

// Values accepted by WriteOptions.SendUpdates.
const (
	SendUpdatesAll          = "all"
	SendUpdatesExternalOnly = "externalOnly"
	SendUpdatesNone         = "none"
)
