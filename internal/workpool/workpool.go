// Package workpool bounds how many blocking remote operations run at once.
package workpool

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultSize is used when a pool is created with a non-positive size.
const DefaultSize = 4

// ErrPanic wraps a value recovered from a job.
var ErrPanic = errors.New("job panicked")

// Pool runs jobs with at most Size of them in flight.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a pool allowing size concurrent jobs.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the maximum number of concurrent jobs.
func (p *Pool) Size() int {
	return p.size
}

// Do waits for a free slot, runs fn on its own goroutine and waits for it
// to finish. If ctx ends first Do returns ctx.Err() without waiting; the
// job keeps its slot until it returns and its result is discarded.
// A panic inside fn is returned as an error wrapping ErrPanic.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Run is Do for jobs that produce a value. The value travels back over a
// channel, so a job abandoned on ctx never touches the caller's state.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
