// Package calendar wraps the Google Calendar v3 API behind the Service
// interface consumed by the registry, executor and batch pipeline.
//
// A Client is bound to one authenticated account. Every remote call passes
// through a per-account rate limiter and circuit breaker, is traced, and
// returns errors that expose the HTTP status through StatusCode so callers
// can tell transient failures (429, 5xx) from terminal ones (other 4xx).
//
// Example:
//
//	client, err := calendar.NewClientForAccount(ctx, "work", provider)
//	if err != nil {
//	    return err
//	}
//	events, err := client.ListEvents(ctx, "primary", calendar.EventQuery{
//	    TimeMin: time.Now(),
//	    TimeMax: time.Now().AddDate(0, 0, 7),
//	})
package calendar
