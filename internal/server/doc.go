// Package server holds the long-lived state behind the MCP tools and the
// HTTP plumbing around them.
//
// # Key Components
//
// ServerContext owns the calendar registry, the fan-out executor, the batch
// pipeline and a per-account calendar client cache. Clients are created
// lazily from a google.TokenProvider the first time an account is used.
//
// HTTPServer mounts the MCP streamable HTTP handler at /mcp on a chi router
// next to the health endpoints (/healthz, /readyz, /healthz/detailed).
//
// MetricsServer exposes Prometheus metrics on a dedicated port so
// operational data stays off the main listener.
package server
