package worker

import (
	"context"
	"errors"
	"runtime"
)

// ErrTimeout is returned when a job's deadline expires before a worker
// finishes it. It is reported distinctly from computation failure so
// callers can retry with relaxed parameters instead of treating the
// track as defective.
var ErrTimeout = errors.New("processing timed out")

// Pool runs CPU-bound jobs on a fixed set of workers so that track
// processing never occupies a request-serving goroutine. Jobs are not
// interruptible mid-algorithm; on timeout the result is discarded when
// it eventually arrives.
type Pool struct {
	jobs chan job
	done chan struct{}
}

type job struct {
	run    func() error
	result chan error
}

// NewPool starts a pool with n workers; n <= 0 means one worker per
// CPU.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case j := <-p.jobs:
			j.result <- j.run()
		case <-p.done:
			return
		}
	}
}

// Submit runs fn on a pool worker and waits for it to finish or for
// ctx to expire, whichever comes first. Expiry while waiting for a
// free worker or while the job runs both surface as ErrTimeout.
func (p *Pool) Submit(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)

	select {
	case p.jobs <- job{run: fn, result: result}:
	case <-ctx.Done():
		return ErrTimeout
	case <-p.done:
		return errors.New("pool closed")
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ErrTimeout
	}
}

// Close stops the workers. Jobs already running finish; their results
// are discarded.
func (p *Pool) Close() {
	close(p.done)
}
