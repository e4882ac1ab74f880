// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the calendar MCP server.
//
// # Metrics
//
// Tool layer:
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds by tool and status
//   - http_requests_total / http_request_duration_seconds for the HTTP transport
//
// Google Calendar API:
//   - google_api_operations_total / google_api_operation_duration_seconds by operation and status
//   - api_breaker_state_changes_total by target state
//
// Calendar registry:
//   - registry_cache_lookups_total by result (hit, miss)
//   - registry_account_list_failures_total
//
// Retry executor:
//   - executor_attempts_total by outcome (success, retry, terminal, timeout)
//   - executor_tasks_total by status
//
// Batch pipeline:
//   - batch_items_total by outcome (created, failed, skipped)
//   - batch_circuit_trips_total
//
// A nil *Metrics is valid and records nothing, so core packages can take an
// optional recorder without guarding every call.
//
// # Configuration
//
// DefaultConfig reads:
//
//	INSTRUMENTATION_ENABLED       true|false (default true)
//	METRICS_EXPORTER              prometheus|otlp|stdout (default prometheus)
//	TRACING_EXPORTER              otlp|stdout|none (default none)
//	OTEL_EXPORTER_OTLP_ENDPOINT   collector host:port
//	OTEL_EXPORTER_OTLP_INSECURE   true|false (default false)
//	OTEL_TRACES_SAMPLER_ARG       0.0-1.0 (default 0.1)
//	METRICS_DETAILED_LABELS       include account labels (default false)
//	AUDIT_LOGGING_ENABLED         true|false (default true)
//	AUDIT_LOGGING_INCLUDE_PII     log raw account ids (default false)
package instrumentation
