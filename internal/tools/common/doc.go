// Package common provides helpers shared by the MCP tool packages:
// argument parsing, account selection, error results and the
// instrumentation wrapper every handler is registered through.
package common
