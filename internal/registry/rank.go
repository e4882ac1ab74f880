package registry

import (
	"sort"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
)

// PermissionRank orders access roles: owner=4, writer=3, reader=2,
// freeBusyReader=1, anything else 0.
func PermissionRank(role string) int {
	switch role {
	case calendar.RoleOwner:
		return 4
	case calendar.RoleWriter:
		return 3
	case calendar.RoleReader:
		return 2
	case calendar.RoleFreeBusyReader:
		return 1
	default:
		return 0
	}
}

// CanWrite reports whether role allows creating or changing events.
func CanWrite(role string) bool {
	return role == calendar.RoleOwner || role == calendar.RoleWriter
}

// rankEntries sorts entries by rank descending, then account ID ascending.
func rankEntries(entries []CalendarAccessEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := PermissionRank(entries[i].AccessRole), PermissionRank(entries[j].AccessRole)
		if ri != rj {
			return ri > rj
		}
		return entries[i].AccountID < entries[j].AccountID
	})
}
