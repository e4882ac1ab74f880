package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

const (
	dateLayout          = "2006-01-02"
	localDateTimeLayout = "2006-01-02T15:04:05"
)

// EventInput describes an event to create.
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	// TimeZone is an IANA zone applied to Start/End. Empty means the
	// offsets in Start/End are authoritative.
	TimeZone string
	// Floating means Start and End hold wall-clock times to be read in
	// TimeZone rather than instants.
	Floating   bool
	Attendees  []string
	Recurrence []string // RRULE, EXRULE, RDATE, EXDATE
	ColorID    string
	// Transparency is "opaque" (busy) or "transparent" (free).
	Transparency string
	// AddConference requests a Google Meet link.
	AddConference bool
}

// EventPatch holds the fields to change on an existing event. Nil fields are
// left untouched; a non-nil empty string clears the field.
type EventPatch struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	AllDay      bool
	TimeZone    string
	Floating    bool
	Attendees   []string
	ColorID     *string
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.Attendees == nil && p.ColorID == nil
}

// WriteOptions apply to insert, patch and delete.
type WriteOptions struct {
	// SendUpdates is one of the SendUpdates* constants, or "" for the API default.
	SendUpdates string
}

// EventQuery filters ListEvents.
type EventQuery struct {
	TimeMin    time.Time
	TimeMax    time.Time
	Query      string
	MaxResults int64
	// TimeZone formats the response times. Empty uses the calendar's zone.
	TimeZone string
}

// EventSummary is a flattened event.
type EventSummary struct {
	ID          string
	CalendarID  string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      string
	Organizer   string
	Attendees   []AttendeeInfo
	MeetLink    string
	HTMLLink    string
	Recurrence  []string
	// Transparent events do not block time.
	Transparent bool
}

// AttendeeInfo is one event attendee.
type AttendeeInfo struct {
	Email          string
	DisplayName    string
	ResponseStatus string // needsAction, declined, tentative, accepted
	Optional       bool
	Organizer      bool
	Self           bool
}

// CalendarInfo is one entry of an account's calendar list.
type CalendarInfo struct {
	ID              string
	Summary         string
	SummaryOverride string
	Description     string
	TimeZone        string
	Primary         bool
	AccessRole      string
	BackgroundColor string
}

// FreeBusyInfo is the busy time of one calendar.
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	Errors   []string
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether r and o share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func toEventSummary(calendarID string, event *calendar.Event) EventSummary {
	summary := EventSummary{
		ID:          event.Id,
		CalendarID:  calendarID,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
		Recurrence:  event.Recurrence,
		Transparent: event.Transparency == "transparent",
	}

	summary.Start, summary.AllDay = parseEventTime(event.Start)
	summary.End, _ = parseEventTime(event.End)

	if event.Organizer != nil {
		summary.Organizer = event.Organizer.Email
	}
	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, AttendeeInfo{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Optional:       att.Optional,
			Organizer:      att.Organizer,
			Self:           att.Self,
		})
	}
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				summary.MeetLink = ep.Uri
				break
			}
		}
	}
	return summary
}

// parseEventTime returns the instant and whether it was a date-only value.
func parseEventTime(edt *calendar.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t, false
		}
	}
	if edt.Date != "" {
		loc := time.UTC
		if edt.TimeZone != "" {
			if l, err := time.LoadLocation(edt.TimeZone); err == nil {
				loc = l
			}
		}
		if t, err := time.ParseInLocation(dateLayout, edt.Date, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	return CalendarInfo{
		ID:              entry.Id,
		Summary:         entry.Summary,
		SummaryOverride: entry.SummaryOverride,
		Description:     entry.Description,
		TimeZone:        entry.TimeZone,
		Primary:         entry.Primary,
		AccessRole:      entry.AccessRole,
		BackgroundColor: entry.BackgroundColor,
	}
}

func eventDateTime(t time.Time, allDay, floating bool, tz string) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	if floating && tz != "" {
		return &calendar.EventDateTime{DateTime: t.Format(localDateTimeLayout), TimeZone: tz}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339), TimeZone: tz}
}

func toAttendees(emails []string) []*calendar.EventAttendee {
	attendees := make([]*calendar.EventAttendee, 0, len(emails))
	for _, email := range emails {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	return attendees
}

// toAPIEvent builds the request body for an insert.
func toAPIEvent(input EventInput) *calendar.Event {
	event := &calendar.Event{
		Summary:      input.Summary,
		Description:  input.Description,
		Location:     input.Location,
		Start:        eventDateTime(input.Start, input.AllDay, input.Floating, input.TimeZone),
		End:          eventDateTime(input.End, input.AllDay, input.Floating, input.TimeZone),
		Recurrence:   input.Recurrence,
		ColorId:      input.ColorID,
		Transparency: input.Transparency,
	}
	if len(input.Attendees) > 0 {
		event.Attendees = toAttendees(input.Attendees)
	}
	return event
}

// toAPIPatch builds the request body for a patch. Explicit empty strings are
// force-sent so they clear the field server side.
func toAPIPatch(p EventPatch) *calendar.Event {
	event := &calendar.Event{}
	setString := func(dst *string, field string, v *string) {
		if v == nil {
			return
		}
		*dst = *v
		if *v == "" {
			event.ForceSendFields = append(event.ForceSendFields, field)
		}
	}
	setString(&event.Summary, "Summary", p.Summary)
	setString(&event.Description, "Description", p.Description)
	setString(&event.Location, "Location", p.Location)
	setString(&event.ColorId, "ColorId", p.ColorID)

	if p.Start != nil {
		event.Start = eventDateTime(*p.Start, p.AllDay, p.Floating, p.TimeZone)
	}
	if p.End != nil {
		event.End = eventDateTime(*p.End, p.AllDay, p.Floating, p.TimeZone)
	}
	if p.Attendees != nil {
		event.Attendees = toAttendees(p.Attendees)
		if len(p.Attendees) == 0 {
			event.ForceSendFields = append(event.ForceSendFields, "Attendees")
		}
	}
	return event
}
