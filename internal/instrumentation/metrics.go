package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrAccount   = "account"
	attrState     = "to"
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records the server's OpenTelemetry instruments.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram
	apiBreakerTransitions      metric.Int64Counter

	registryLookupsTotal      metric.Int64Counter
	registryListFailuresTotal metric.Int64Counter

	executorAttemptsTotal metric.Int64Counter
	executorTasksTotal    metric.Int64Counter

	batchItemsTotal        metric.Int64Counter
	batchCircuitTripsTotal metric.Int64Counter

	detailedLabels bool
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"},
		{&m.googleAPIOperationsTotal, "google_api_operations_total", "Total number of Google Calendar API operations", "{operation}"},
		{&m.apiBreakerTransitions, "api_breaker_state_changes_total", "Per-account API circuit breaker state changes", "{change}"},
		{&m.registryLookupsTotal, "registry_cache_lookups_total", "Calendar registry snapshot lookups", "{lookup}"},
		{&m.registryListFailuresTotal, "registry_account_list_failures_total", "Accounts whose calendar list failed during a registry build", "{failure}"},
		{&m.executorAttemptsTotal, "executor_attempts_total", "Retry executor attempts by outcome", "{attempt}"},
		{&m.executorTasksTotal, "executor_tasks_total", "Retry executor tasks by final status", "{task}"},
		{&m.batchItemsTotal, "batch_items_total", "Batch pipeline items by outcome", "{item}"},
		{&m.batchCircuitTripsTotal, "batch_circuit_trips_total", "Batch pipeline circuit breaker trips", "{trip}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds"},
		{&m.googleAPIOperationDuration, "google_api_operation_duration_seconds", "Google Calendar API operation duration in seconds"},
	}
	for _, h := range histograms {
		hist, err := meter.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(durationBuckets...),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
		*h.dst = hist
	}

	return m, nil
}

// RecordHTTPRequest records one request served by the HTTP transport.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolInvocation records an MCP tool call. The account label is only
// attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil {
		return
	}
	kv := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && account != "" {
		kv = append(kv, attribute.String(attrAccount, account))
	}
	attrs := metric.WithAttributes(kv...)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a single Calendar API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAPIBreakerTransition records a per-account breaker moving to state.
func (m *Metrics) RecordAPIBreakerTransition(ctx context.Context, state string) {
	if m == nil || m.apiBreakerTransitions == nil {
		return
	}
	m.apiBreakerTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String(attrState, state)))
}

// RecordRegistryLookup records a snapshot cache hit or miss.
func (m *Metrics) RecordRegistryLookup(ctx context.Context, result string) {
	if m == nil || m.registryLookupsTotal == nil {
		return
	}
	m.registryLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordRegistryListFailure counts an account dropped from a snapshot build.
func (m *Metrics) RecordRegistryListFailure(ctx context.Context) {
	if m == nil || m.registryListFailuresTotal == nil {
		return
	}
	m.registryListFailuresTotal.Add(ctx, 1)
}

// RecordExecutorAttempt records one attempt of a fan-out task.
func (m *Metrics) RecordExecutorAttempt(ctx context.Context, outcome string) {
	if m == nil || m.executorAttemptsTotal == nil {
		return
	}
	m.executorAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordExecutorTask records a fan-out task's final status.
func (m *Metrics) RecordExecutorTask(ctx context.Context, status string) {
	if m == nil || m.executorTasksTotal == nil {
		return
	}
	m.executorTasksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordBatchItem records one batch item outcome.
func (m *Metrics) RecordBatchItem(ctx context.Context, outcome string) {
	if m == nil || m.batchItemsTotal == nil {
		return
	}
	m.batchItemsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordBatchCircuitTrip counts a batch that stopped on repeated failures.
func (m *Metrics) RecordBatchCircuitTrip(ctx context.Context) {
	if m == nil || m.batchCircuitTripsTotal == nil {
		return
	}
	m.batchCircuitTripsTotal.Add(ctx, 1)
}
