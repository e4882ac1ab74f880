// Package logging provides structured logging helpers for the calendar MCP server.
//
// All components log through log/slog. This package centralizes the attribute
// keys so that the registry, executor, batch pipeline and tool handlers emit
// the same field names, and it keeps account identifiers (which are usually
// email addresses) out of general logs.
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "registry")
//	logger.Warn("calendar list failed",
//	    logging.AccountHash(accountID),
//	    logging.Err(err))
//
// # Output
//
// NewHandler builds the process-wide handler. Output always goes to stderr
// because the stdio transport owns stdout.
package logging
