// Package registry builds a deduplicated view of every calendar visible to
// a set of accounts and picks the account to use for a read or a write.
//
// Calendars shared between accounts (a team calendar seen from both a work
// and a personal identity) collapse into one UnifiedCalendar whose access
// entries are ranked by PermissionRank. The highest-ranked entry is the
// preferred account; ties go to the lexically smallest account ID.
//
// Snapshots are cached per account set for a fixed TTL (five minutes by
// default) in a SnapshotStore. Callers must call ClearCache whenever an
// account is added, removed or re-authenticated.
//
// A Registry is an explicit instance. Construct one per process with New and
// pass it to consumers.
package registry
