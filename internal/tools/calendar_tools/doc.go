// Package calendar_tools exposes Google Calendar to MCP clients across every
// configured account.
//
// Tools never take a credential: each call is routed to an account by the
// calendar registry, which knows which accounts see which calendars and with
// what access role. Reads over several calendars fan out through the
// executor; batch creation goes through the batch pipeline.
//
// Mutating tools are only registered when the server is not read-only.
package calendar_tools
