package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a storage call when no timeout is configured.
const DefaultTimeout = 5000 * time.Millisecond

// ErrTimeout is returned when a storage call does not settle before its deadline.
var ErrTimeout = errors.New("database operation timed out")

// ExecuteWithTimeout runs fn and returns whichever happens first: fn settling or
// the deadline passing. The context given to fn is cancelled at the deadline so a
// cancellation-aware driver aborts the query and hands its connection back.
// A fn that ignores its context keeps running in the background, but the caller
// is released on time either way.
func ExecuteWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(queryCtx)
		done <- result{value: value, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		// The driver reports its own deadline error when it loses the race by a hair.
		if r.err != nil && ctx.Err() == nil && errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return r.value, r.err
	case <-queryCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}

// Executor applies one timeout policy to every storage call that goes through it.
type Executor struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewExecutor creates an Executor; a non-positive timeout means DefaultTimeout.
func NewExecutor(timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		timeout: timeout,
		logger:  logger,
	}
}

// Timeout returns the deadline applied to each call.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Do runs fn under the executor's timeout.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute runs fn under e's timeout and returns its result.
func Execute[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	value, err := ExecuteWithTimeout(ctx, e.timeout, fn)
	if errors.Is(err, ErrTimeout) {
		e.logger.Warn("Database operation timed out", zap.Duration("timeout", e.timeout))
	}
	return value, err
}
