package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
)

const (
	defaultPageSize = 250

	// Per-account breaker guarding the API. Client errors do not count.
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
	breakerInterval            = 60 * time.Second
)

// ErrAccountUnavailable wraps the breaker rejection for an account.
var ErrAccountUnavailable = errors.New("calendar API temporarily unavailable for account")

// Client implements Service against the Google Calendar API for one account.
type Client struct {
	svc     *calendar.Service
	account string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

var _ Service = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit caps outgoing requests per second. qps <= 0 disables it.
func WithRateLimit(qps float64, burst int) ClientOption {
	return func(c *Client) {
		if qps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithClientMetrics records API call metrics.
func WithClientMetrics(m *instrumentation.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Account returns the account this client is bound to.
func (c *Client) Account() string {
	return c.account
}

// NewClientForAccount creates a client whose token comes from provider.
func NewClientForAccount(ctx context.Context, account string, provider google.TokenProvider, opts ...ClientOption) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf, err := google.GetOAuthConfig()
	if err != nil {
		return nil, err
	}

	// The HTTP client outlives ctx, so the token source must not inherit it.
	httpClient := oauth2.NewClient(context.Background(), conf.TokenSource(context.Background(), token))

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := httpClient.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return NewClientFromService(svc, account, opts...), nil
}

// NewClientFromService wraps an existing API service.
func NewClientFromService(svc *calendar.Service, account string, opts ...ClientOption) *Client {
	c := &Client{
		svc:     svc,
		account: account,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "calendar").With(logging.AccountHash(account))
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "calendar-api:" + logging.AnonymizeAccount(account),
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("calendar API breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			c.metrics.RecordAPIBreakerTransition(context.Background(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// call runs fn through the limiter and breaker, tracing and timing it.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("calendar %s: rate limiter: %w", operation, err)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, operation,
		attribute.String(instrumentation.SpanAttrAccountHash, logging.AnonymizeAccount(c.account)))
	start := time.Now()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &APIError{
			Operation:  operation,
			StatusCode: http.StatusServiceUnavailable,
			Message:    ErrAccountUnavailable.Error(),
			Err:        errors.Join(ErrAccountUnavailable, err),
		}
	} else {
		err = wrapAPIError(operation, err)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return err
}

// ListCalendars returns every calendar in the account's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var calendars []CalendarInfo
	err := c.call(ctx, instrumentation.OperationCalList, func(ctx context.Context) error {
		calendars = calendars[:0]
		return c.svc.CalendarList.List().MaxResults(defaultPageSize).Pages(ctx, func(page *calendar.CalendarList) error {
			for _, item := range page.Items {
				calendars = append(calendars, toCalendarInfo(item))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return calendars, nil
}

// GetCalendar returns one calendar list entry, including its time zone.
func (c *Client) GetCalendar(ctx context.Context, calendarID string) (*CalendarInfo, error) {
	var info CalendarInfo
	err := c.call(ctx, instrumentation.OperationCalendar, func(ctx context.Context) error {
		entry, err := c.svc.CalendarList.Get(calendarID).Context(ctx).Do()
		if err != nil {
			return err
		}
		info = toCalendarInfo(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListEvents lists single (expanded) events ordered by start time.
func (c *Client) ListEvents(ctx context.Context, calendarID string, query EventQuery) ([]EventSummary, error) {
	var events []EventSummary
	err := c.call(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		events = events[:0]
		req := c.svc.Events.List(calendarID).SingleEvents(true).OrderBy("startTime")
		if !query.TimeMin.IsZero() {
			req = req.TimeMin(query.TimeMin.Format(time.RFC3339))
		}
		if !query.TimeMax.IsZero() {
			req = req.TimeMax(query.TimeMax.Format(time.RFC3339))
		}
		if query.Query != "" {
			req = req.Q(query.Query)
		}
		if query.TimeZone != "" {
			req = req.TimeZone(query.TimeZone)
		}

		if query.MaxResults > 0 {
			resp, err := req.MaxResults(query.MaxResults).Context(ctx).Do()
			if err != nil {
				return err
			}
			for _, item := range resp.Items {
				events = append(events, toEventSummary(calendarID, item))
			}
			return nil
		}

		return req.MaxResults(defaultPageSize).Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				events = append(events, toEventSummary(calendarID, item))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent fetches one event.
func (c *Client) GetEvent(ctx context.Context, calendarID, eventID string) (*EventSummary, error) {
	var summary EventSummary
	err := c.call(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		event, err := c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
		if err != nil {
			return err
		}
		summary = toEventSummary(calendarID, event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// InsertEvent creates an event.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, input EventInput, opts WriteOptions) (*EventSummary, error) {
	event := toAPIEvent(input)
	if input.AddConference {
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	var summary EventSummary
	err := c.call(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		req := c.svc.Events.Insert(calendarID, event).Context(ctx)
		if input.AddConference {
			req = req.ConferenceDataVersion(1)
		}
		if opts.SendUpdates != "" {
			req = req.SendUpdates(opts.SendUpdates)
		}
		created, err := req.Do()
		if err != nil {
			return err
		}
		summary = toEventSummary(calendarID, created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// PatchEvent applies patch to an existing event.
func (c *Client) PatchEvent(ctx context.Context, calendarID, eventID string, patch EventPatch, opts WriteOptions) (*EventSummary, error) {
	body := toAPIPatch(patch)

	var summary EventSummary
	err := c.call(ctx, instrumentation.OperationPatch, func(ctx context.Context) error {
		req := c.svc.Events.Patch(calendarID, eventID, body).Context(ctx)
		if opts.SendUpdates != "" {
			req = req.SendUpdates(opts.SendUpdates)
		}
		updated, err := req.Do()
		if err != nil {
			return err
		}
		summary = toEventSummary(calendarID, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string, opts WriteOptions) error {
	return c.call(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		req := c.svc.Events.Delete(calendarID, eventID).Context(ctx)
		if opts.SendUpdates != "" {
			req = req.SendUpdates(opts.SendUpdates)
		}
		return req.Do()
	})
}

// QueryFreeBusy returns busy intervals for each calendar.
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		items = append(items, &calendar.FreeBusyRequestItem{Id: id})
	}
	req := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	var results []FreeBusyInfo
	err := c.call(ctx, instrumentation.OperationFreeBusy, func(ctx context.Context) error {
		resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
		if err != nil {
			return err
		}
		results = make([]FreeBusyInfo, 0, len(calendarIDs))
		// Keep request order; the response is a map.
		for _, id := range calendarIDs {
			cal, ok := resp.Calendars[id]
			if !ok {
				continue
			}
			info := FreeBusyInfo{Calendar: id}
			for _, period := range cal.Busy {
				start, err1 := time.Parse(time.RFC3339, period.Start)
				end, err2 := time.Parse(time.RFC3339, period.End)
				if err1 != nil || err2 != nil {
					continue
				}
				info.Busy = append(info.Busy, TimeRange{Start: start, End: end})
			}
			for _, e := range cal.Errors {
				info.Errors = append(info.Errors, e.Reason)
			}
			results = append(results, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
