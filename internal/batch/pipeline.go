package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

// Pipeline creates events in batches.
type Pipeline struct {
	reg     *registry.Registry
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics records per-item outcomes and breaker trips.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates a Pipeline that resolves accounts through reg.
func New(reg *registry.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{reg: reg}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.WithComponent(p.logger, "batch")
	return p
}

// CreateMany creates items in order. It returns an error only for an invalid
// batch size or a failed up-front resolution of the shared defaults; every
// per-item problem is reported in the Result.
func (p *Pipeline) CreateMany(ctx context.Context, defaults Defaults, items []Item, accounts map[string]calendar.Service) (*Result, error) {
	if len(items) == 0 || len(items) > MaxItems {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, len(items))
	}
	if defaults.CalendarID == "" {
		defaults.CalendarID = calendar.PrimaryCalendarID
	}

	batchID := uuid.NewString()
	logger := p.logger.With(logging.BatchID(batchID))
	ctx, span := instrumentation.StartSpan(ctx, "batch.create_many",
		attribute.Int(instrumentation.SpanAttrItemCount, len(items)))

	res := newResolver(p.reg, accounts)

	if !anyAccountOverride(items) {
		r := res.resolve(ctx, defaults.Account, defaults.CalendarID)
		if r.err != nil {
			logger.Warn("batch rejected before any item ran",
				logging.Calendar(defaults.CalendarID),
				logging.Err(r.err))
			instrumentation.EndSpan(span, r.err)
			return nil, r.err
		}
	}

	result := &Result{TotalRequested: len(items)}
	var breaker breakerState

	for i, item := range items {
		m := mergeItem(defaults, item)
		label := itemLabel(i, item.Event)

		if err := ctx.Err(); err != nil {
			p.skipRemaining(ctx, result, items, i, err)
			break
		}

		err := validateEvent(m.event)
		if err == nil {
			var created *createdEvent
			created, err = p.createOne(ctx, res, m)
			if err == nil {
				breaker.record(nil)
				result.Created = append(result.Created, Created{Index: i, AccountID: created.accountID, Event: *created.event})
				p.metrics.RecordBatchItem(ctx, instrumentation.ItemCreated)
				continue
			}
		}

		// Every failure feeds the breaker, so a different message breaks the run.
		p.fail(ctx, result, i, label, err)
		if breaker.record(err) {
			p.metrics.RecordBatchCircuitTrip(ctx)
			logger.Warn("batch circuit breaker tripped",
				slog.Int("remaining", len(items)-i-1),
				logging.Err(err))
			skipErr := fmt.Errorf("%w: Skipped: circuit breaker open after %d consecutive identical failures: %s",
				ErrCircuitOpen, breakerThreshold, breaker.lastSignature)
			p.skipRemaining(ctx, result, items, i+1, skipErr)
			break
		}
	}

	result.TotalCreated = len(result.Created)
	result.TotalFailed = len(result.Failed)
	result.IsError = result.TotalCreated == 0 && result.TotalFailed > 0

	logger.Info("batch finished",
		slog.Int("requested", result.TotalRequested),
		slog.Int("created", result.TotalCreated),
		slog.Int("failed", result.TotalFailed))
	if result.IsError {
		instrumentation.EndSpan(span, fmt.Errorf("all %d items failed", result.TotalFailed))
	} else {
		instrumentation.EndSpan(span, nil)
	}
	return result, nil
}

type createdEvent struct {
	accountID string
	event     *calendar.EventSummary
}

func (p *Pipeline) createOne(ctx context.Context, res *resolver, m merged) (*createdEvent, error) {
	r := res.resolve(ctx, m.account, m.calendarID)
	if r.err != nil {
		return nil, r.err
	}

	input := m.event
	tz := m.timeZone
	if tz == "" && !input.AllDay {
		var err error
		if tz, err = res.timeZone(ctx, r); err != nil {
			return nil, err
		}
	}
	input.TimeZone = tz

	event, err := r.client.InsertEvent(ctx, r.calendarID, input, calendar.WriteOptions{SendUpdates: m.sendUpdates})
	if err != nil {
		return nil, err
	}
	return &createdEvent{accountID: r.accountID, event: event}, nil
}

func (p *Pipeline) fail(ctx context.Context, result *Result, index int, label string, err error) {
	result.Failed = append(result.Failed, Failed{Index: index, Label: label, Error: err.Error(), Err: err})
	p.metrics.RecordBatchItem(ctx, instrumentation.ItemFailed)
}

// skipRemaining marks items[from:] failed without a remote call.
func (p *Pipeline) skipRemaining(ctx context.Context, result *Result, items []Item, from int, err error) {
	for j := from; j < len(items); j++ {
		result.Failed = append(result.Failed, Failed{
			Index: j,
			Label: itemLabel(j, items[j].Event),
			Error: skipMessage(err),
			Err:   err,
		})
		p.metrics.RecordBatchItem(ctx, instrumentation.ItemSkipped)
	}
}

// skipMessage drops the sentinel prefix so the item message starts with
// "Skipped:".
func skipMessage(err error) string {
	msg := err.Error()
	prefix := ErrCircuitOpen.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func anyAccountOverride(items []Item) bool {
	for _, item := range items {
		if item.Account != nil {
			return true
		}
	}
	return false
}

func itemLabel(index int, event calendar.EventInput) string {
	if event.Summary != "" {
		return event.Summary
	}
	return fmt.Sprintf("item %d", index)
}

func validateEvent(event calendar.EventInput) error {
	if event.Start.IsZero() || event.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if !event.End.After(event.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidEvent)
	}
	return nil
}
