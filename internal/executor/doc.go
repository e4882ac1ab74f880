// Package executor runs independent remote calls concurrently under a
// concurrency ceiling, a per-attempt deadline and retry with exponential
// backoff.
//
// Admission is first-in first-out. An error whose HTTP status is a 4xx other
// than 429 is terminal and never retried; everything else, including a fired
// deadline, is retried up to Config.RetryAttempts times. Tasks never affect
// each other: the aggregate Result separates successes from failures and
// reports how many attempts each failure used.
//
// The executor knows nothing about calendars: statuses come from a
// StatusFunc, by default any error exposing HTTPStatus() int. fetch.go holds
// the calendar fan-out helpers built on top of it.
package executor
