package ingest

import (
	"context"
	"sync"
)

// Result is the outcome of one job.
type Result[R any] struct {
	Value R
	Err   error
}

// job is the unit of work dispatched to a worker.
type job[T, R any] struct {
	ctx    context.Context
	input  T
	result chan<- Result[R]
}

// Pool is a fixed-size goroutine pool with a bounded input queue.
// A job, once picked up, runs to completion even if its context is cancelled.
type Pool[T, R any] struct {
	queue   chan job[T, R]
	process func(ctx context.Context, t T) (R, error)
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool creates and starts a pool with n goroutines and queue capacity depth.
func NewPool[T, R any](n, depth int, fn func(context.Context, T) (R, error)) *Pool[T, R] {
	if n < 1 {
		n = 1
	}
	if depth < 0 {
		depth = 0
	}
	p := &Pool[T, R]{
		queue:   make(chan job[T, R], depth),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
	return p
}

func (p *Pool[T, R]) run() {
	for j := range p.queue {
		// Detach so a caller that gives up cannot leave a half-done job.
		v, err := p.process(context.WithoutCancel(j.ctx), j.input)
		j.result <- Result[R]{Value: v, Err: err}
	}
}

// Submit enqueues t without blocking. It returns false when the queue is full
// or the pool has been drained.
// The returned channel receives exactly one Result.
func (p *Pool[T, R]) Submit(ctx context.Context, t T) (<-chan Result[R], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, false
	}

	res := make(chan Result[R], 1)
	select {
	case p.queue <- job[T, R]{ctx: ctx, input: t, result: res}:
		return res, true
	default:
		return nil, false
	}
}

// Drain closes the queue and waits for queued jobs to finish.
func (p *Pool[T, R]) Drain() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

// QueueLen returns how many jobs are currently queued.
func (p *Pool[T, R]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *Pool[T, R]) QueueCap() int {
	return cap(p.queue)
}

// Utilization returns queue used / capacity (0–1).
func (p *Pool[T, R]) Utilization() float64 {
	if p.QueueCap() == 0 {
		return 0
	}
	return float64(p.QueueLen()) / float64(p.QueueCap())
}
