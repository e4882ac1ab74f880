package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "google.golang.org/api/calendar/v3"
)

func TestEventDateTime(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		allDay   bool
		floating bool
		tz       string
		want     api.EventDateTime
	}{
		{name: "instant", want: api.EventDateTime{DateTime: "2025-03-10T09:30:00Z"}},
		{name: "instant with zone", tz: "Europe/Berlin", want: api.EventDateTime{DateTime: "2025-03-10T09:30:00Z", TimeZone: "Europe/Berlin"}},
		{name: "floating", floating: true, tz: "Europe/Berlin", want: api.EventDateTime{DateTime: "2025-03-10T09:30:00", TimeZone: "Europe/Berlin"}},
		{name: "floating without zone", floating: true, want: api.EventDateTime{DateTime: "2025-03-10T09:30:00Z"}},
		{name: "all day", allDay: true, tz: "Europe/Berlin", want: api.EventDateTime{Date: "2025-03-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := eventDateTime(at, tt.allDay, tt.floating, tt.tz)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestToEventSummary(t *testing.T) {
	event := &api.Event{
		Id:           "evt1",
		Summary:      "Standup",
		Status:       "confirmed",
		Transparency: "transparent",
		Start:        &api.EventDateTime{Date: "2025-03-10", TimeZone: "Europe/Berlin"},
		End:          &api.EventDateTime{Date: "2025-03-11", TimeZone: "Europe/Berlin"},
		Organizer:    &api.EventOrganizer{Email: "owner@example.com"},
		ConferenceData: &api.ConferenceData{EntryPoints: []*api.EntryPoint{
			{EntryPointType: "phone", Uri: "tel:+1"},
			{EntryPointType: "video", Uri: "https://meet.google.com/abc"},
		}},
	}

	summary := toEventSummary("team@example.com", event)
	assert.Equal(t, "team@example.com", summary.CalendarID)
	assert.True(t, summary.AllDay)
	assert.True(t, summary.Transparent)
	assert.Equal(t, "owner@example.com", summary.Organizer)
	assert.Equal(t, "https://meet.google.com/abc", summary.MeetLink)
	assert.Equal(t, 24*time.Hour, summary.End.Sub(summary.Start))
}

func TestEventPatchIsEmpty(t *testing.T) {
	assert.True(t, EventPatch{TimeZone: "UTC"}.IsEmpty())
	empty := ""
	assert.False(t, EventPatch{Location: &empty}.IsEmpty())
	assert.False(t, EventPatch{Attendees: []string{}}.IsEmpty())
}
