// Package resources provides MCP resources for the account and calendar
// directory. Resources are read-only data sources that MCP clients can fetch
// without calling a tool:
//
//   - calendar://accounts lists the configured accounts and their token state
//   - calendar://calendars is the merged calendar view across those accounts
package resources
