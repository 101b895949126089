// Package worker runs independent jobs on a bounded set of goroutines and
// throttles calls to rate-limited collaborators.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently.
// Once its context is cancelled no further job starts; jobs already running
// finish and their results are still collected.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collected  []Result
	collectWg  sync.WaitGroup
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2), // Buffered to prevent blocking
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWg.Add(1)
	go func() {
		defer p.collectWg.Done()
		for result := range p.results {
			p.collected = append(p.collected, result)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job; it returns false once the pool is cancelled
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait waits for all started jobs to complete and returns their results
// in completion order
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
	p.wg.Wait()
	close(p.results)
	p.collectWg.Wait()
	p.cancelFunc()
	return p.collected
}

// Cancel stops the pool from starting further jobs
func (p *Pool) Cancel() {
	p.cancelFunc()
}

type indexedJob[T any] struct {
	index int
	fn    func(ctx context.Context, i int) T
}

func (j indexedJob[T]) Execute(ctx context.Context) Result {
	return indexedResult[T]{index: j.index, value: j.fn(ctx, j.index)}
}

type indexedResult[T any] struct {
	index int
	value T
}

func (indexedResult[T]) GetError() error { return nil }

// Map runs fn for every i in [0,n) on at most workers goroutines and places
// each value at its index. done[i] is false for jobs that never ran because
// ctx was cancelled first.
func Map[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) T) (values []T, done []bool) {
	values = make([]T, n)
	done = make([]bool, n)
	if n == 0 {
		return values, done
	}

	pool := NewPool(ctx, workers)
	pool.Start()
	for i := 0; i < n; i++ {
		if !pool.Submit(indexedJob[T]{index: i, fn: fn}) {
			break
		}
	}

	for _, r := range pool.Wait() {
		ir := r.(indexedResult[T])
		values[ir.index] = ir.value
		done[ir.index] = true
	}
	return values, done
}
