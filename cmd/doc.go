// Package cmd implements the command-line interface for google-calendar-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server over stdio or streamable HTTP
//   - calendars: Print the merged calendar view of all configured accounts
//   - auth: Authorize a Google account and store its token
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
