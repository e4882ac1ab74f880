package google

import calendar "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes grants read/write access to events and the calendar list.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	calendar.CalendarScope,
}

// ReadOnlyOAuthScopes is used when the server runs with --read-only.
var ReadOnlyOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	calendar.CalendarReadonlyScope,
}
