package registry

import (
	"sort"
	"strings"
	"time"
)

// OperationType selects the access level GetAccountForCalendar requires.
type OperationType string

const (
	OperationRead  OperationType = "read"
	OperationWrite OperationType = "write"
)

// DefaultAccount is the account argument meaning "let the registry choose".
const DefaultAccount = "default"

// CalendarAccessEntry is one account's view of a calendar.
type CalendarAccessEntry struct {
	AccountID           string `json:"accountId"`
	AccessRole          string `json:"accessRole"`
	IsPrimary           bool   `json:"isPrimary"`
	DisplayName         string `json:"displayName"`
	DisplayNameOverride string `json:"displayNameOverride,omitempty"`
}

// UnifiedCalendar is one calendar merged across every account that sees it.
type UnifiedCalendar struct {
	CalendarID         string                `json:"calendarId"`
	AccessEntries      []CalendarAccessEntry `json:"accessEntries"`
	PreferredAccountID string                `json:"preferredAccountId"`
	DisplayName        string                `json:"displayName"`
}

// Preferred returns the highest-ranked entry.
func (u UnifiedCalendar) Preferred() CalendarAccessEntry {
	if len(u.AccessEntries) == 0 {
		return CalendarAccessEntry{}
	}
	return u.AccessEntries[0]
}

// EntryFor returns the entry for accountID, if any.
func (u UnifiedCalendar) EntryFor(accountID string) (CalendarAccessEntry, bool) {
	for _, e := range u.AccessEntries {
		if e.AccountID == accountID {
			return e, true
		}
	}
	return CalendarAccessEntry{}, false
}

// Snapshot is an immutable build of the unified view for one account set.
type Snapshot struct {
	Calendars []UnifiedCalendar `json:"calendars"`
	BuiltAt   time.Time         `json:"builtAt"`
}

// find returns the calendar with id. Calendars are sorted by ID.
func (s *Snapshot) find(id string) (UnifiedCalendar, bool) {
	i := sort.Search(len(s.Calendars), func(i int) bool { return s.Calendars[i].CalendarID >= id })
	if i < len(s.Calendars) && s.Calendars[i].CalendarID == id {
		return s.Calendars[i], true
	}
	return UnifiedCalendar{}, false
}

// AccountSelection is the outcome of choosing an account for a calendar.
type AccountSelection struct {
	AccountID  string `json:"accountId"`
	AccessRole string `json:"accessRole"`
}

// cacheKey is the sorted, comma-joined account IDs.
func cacheKey(accountIDs []string) string {
	return strings.Join(accountIDs, ",")
}
