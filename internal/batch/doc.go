// Package batch creates many calendar events in one call.
//
// Items run strictly in input order so the per-invocation resolution cache
// and circuit breaker evolve deterministically. When no item overrides the
// account, write access for the shared defaults is checked once up front and
// a failure aborts the batch before any event is created. After three
// consecutive failures with the same message every remaining item is marked
// skipped without a remote call.
//
// The result always itemizes successes and failures; IsError is set only
// when nothing was created.
package batch
