package batch

import (
	"errors"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
)

// MaxItems is the largest batch accepted.
const MaxItems = 50

var (
	// ErrInvalidBatchSize is returned for an empty or oversized batch.
	ErrInvalidBatchSize = errors.New("batch must contain between 1 and 50 items")
	// ErrCircuitOpen marks items skipped after the breaker tripped.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrInvalidEvent marks an item rejected before any remote call.
	ErrInvalidEvent = errors.New("invalid event")
)

// Defaults apply to every item that does not set its own value.
type Defaults struct {
	Account     string
	CalendarID  string
	TimeZone    string
	SendUpdates string
}

// Item is one event to create. A non-nil pointer overrides the default even
// when it points at an empty string.
type Item struct {
	Account     *string
	CalendarID  *string
	TimeZone    *string
	SendUpdates *string
	Event       calendar.EventInput
}

// Created is a successfully created item.
type Created struct {
	Index     int
	AccountID string
	Event     calendar.EventSummary
}

// Failed is an item that was not created.
type Failed struct {
	Index int
	Label string
	Error string
	Err   error
}

// Result aggregates a batch. IsError is true only when nothing was created
// and at least one item failed.
type Result struct {
	TotalRequested int
	TotalCreated   int
	TotalFailed    int
	Created        []Created
	Failed         []Failed
	IsError        bool
}

// merged is an item after applying defaults.
type merged struct {
	account     string
	calendarID  string
	timeZone    string
	sendUpdates string
	event       calendar.EventInput
}

func pick(override *string, fallback string) string {
	if override != nil {
		return *override
	}
	return fallback
}

func mergeItem(defaults Defaults, item Item) merged {
	m := merged{
		account:     pick(item.Account, defaults.Account),
		calendarID:  pick(item.CalendarID, defaults.CalendarID),
		timeZone:    pick(item.TimeZone, defaults.TimeZone),
		sendUpdates: pick(item.SendUpdates, defaults.SendUpdates),
		event:       item.Event,
	}
	if m.timeZone == "" {
		m.timeZone = item.Event.TimeZone
	}
	return m
}
