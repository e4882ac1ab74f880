package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
)

// ErrTimeout marks an attempt whose deadline fired.
var ErrTimeout = fmt.Errorf("operation timed out: %w", context.DeadlineExceeded)

// Task is one unit of work. Run must honor ctx cancellation to stop early;
// a Run that ignores it is abandoned when its deadline fires.
type Task[T any] struct {
	ID  string
	Run func(ctx context.Context) (T, error)
}

// Failure describes a task that did not succeed.
type Failure struct {
	ID           string
	Err          error
	AttemptsMade int
}

// Result aggregates one ExecuteParallel call. Successful is in submission
// order.
type Result[T any] struct {
	Successful []T
	Failed     []Failure
	TotalTime  time.Duration
}

// Executor runs tasks with bounded concurrency and retries.
type Executor struct {
	cfg     Config
	jitter  func() time.Duration
	status  StatusFunc
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics records per-attempt and per-task outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithJitter replaces the random backoff jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(e *Executor) { e.jitter = jitter }
}

// New creates an Executor. Zero Config fields take defaults.
func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:    cfg.withDefaults(),
		jitter: defaultJitter,
		status: httpStatus,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithComponent(e.logger, "executor")
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.cfg
}

type outcome[T any] struct {
	value T
	err   error
}

// ExecuteParallel runs every task and collects the outcomes. It never
// returns early because a task failed. Cancelling ctx stops admission and
// ends in-flight attempts; tasks not yet admitted fail with zero attempts.
func ExecuteParallel[T any](ctx context.Context, e *Executor, tasks []Task[T]) Result[T] {
	var (
		sem      = semaphore.NewWeighted(int64(e.cfg.MaxConcurrency))
		wg       sync.WaitGroup
		results  = make([]*outcome[T], len(tasks))
		attempts = make([]int, len(tasks))
		start    time.Time
	)

	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(tasks); j++ {
				results[j] = &outcome[T]{err: err}
				e.metrics.RecordExecutorTask(ctx, instrumentation.StatusError)
			}
			break
		}
		if start.IsZero() {
			start = time.Now()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			value, n, err := runWithRetry(ctx, e, task)
			results[i] = &outcome[T]{value: value, err: err}
			attempts[i] = n
		}()
	}
	wg.Wait()

	var res Result[T]
	if !start.IsZero() {
		res.TotalTime = time.Since(start)
	}
	for i, o := range results {
		if o.err != nil {
			res.Failed = append(res.Failed, Failure{ID: tasks[i].ID, Err: o.err, AttemptsMade: attempts[i]})
			continue
		}
		res.Successful = append(res.Successful, o.value)
	}
	return res
}

func runWithRetry[T any](ctx context.Context, e *Executor, task Task[T]) (T, int, error) {
	ctx, span := instrumentation.StartSpan(ctx, "executor.task",
		attribute.String(instrumentation.SpanAttrTaskID, task.ID))
	logger := e.logger.With(logging.TaskID(task.ID))

	attempts := 0
	op := func() (T, error) {
		attempts++
		value, err := runAttempt(ctx, e.cfg.PerCallTimeout, task)
		if err == nil {
			e.metrics.RecordExecutorAttempt(ctx, instrumentation.AttemptSuccess)
			return value, nil
		}

		switch {
		case terminalStatus(e.status(err)):
			e.metrics.RecordExecutorAttempt(ctx, instrumentation.AttemptTerminal)
			return value, backoff.Permanent(err)
		case ctx.Err() != nil:
			e.metrics.RecordExecutorAttempt(ctx, instrumentation.AttemptTerminal)
			if !errors.Is(err, ctx.Err()) {
				err = fmt.Errorf("%w: %v", ctx.Err(), err)
			}
			return value, backoff.Permanent(err)
		case errors.Is(err, ErrTimeout):
			e.metrics.RecordExecutorAttempt(ctx, instrumentation.AttemptTimeout)
		default:
			e.metrics.RecordExecutorAttempt(ctx, instrumentation.AttemptRetry)
		}
		return value, err
	}

	value, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newExpBackOff(e.cfg.BaseRetryDelay, e.jitter)),
		backoff.WithMaxTries(uint(e.cfg.RetryAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("retrying task",
				logging.Attempt(attempts),
				slog.Duration("backoff", next),
				logging.Err(err))
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	if err != nil {
		e.metrics.RecordExecutorTask(ctx, instrumentation.StatusError)
		logger.Warn("task failed",
			logging.Attempt(attempts),
			slog.Int("status_code", e.status(err)),
			logging.Err(err))
	} else {
		e.metrics.RecordExecutorTask(ctx, instrumentation.StatusSuccess)
	}
	instrumentation.EndSpan(span, err)
	return value, attempts, err
}

// runAttempt runs one attempt under its own deadline. If the deadline fires
// first the attempt is abandoned and ErrTimeout returned.
func runAttempt[T any](ctx context.Context, timeout time.Duration, task Task[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		value, err := task.Run(attemptCtx)
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return o.value, fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, o.err)
		}
		return o.value, o.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
