// Package pool implements the CPU worker pool that executes per-sample work
// for one pipeline. Tasks accumulate between barriers and are dequeued
// largest-cost-first, so long samples start early and the batch tail stays
// short.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	queue "github.com/emirpasic/gods/queues/priorityqueue"
)

// task is one unit of per-sample work scheduled on the pool.
type task struct {
	fn   func(worker int) error
	cost int64
	seq  uint64
	done *sync.WaitGroup
}

// Pool runs tasks on a fixed set of workers with stable ids 0..Workers-1.
// AddWork only accumulates; Run releases the accumulated batch and blocks
// until every task in it has completed.
//
// AddWork and Run must be called from a single goroutine; the workers only
// share the internal queue.
type Pool struct {
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *queue.Queue
	pending []*task
	errs    []error
	seq     uint64
	closed  bool

	wg sync.WaitGroup
}

// New creates a pool with the given number of workers and starts them.
// Panics if workers < 1.
func New(workers int) *Pool {
	if workers < 1 {
		panic(fmt.Sprintf("pool needs at least one worker, got %d", workers))
	}
	p := &Pool{
		workers: workers,
		queue:   queue.NewWith(byCostThenSeq),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	slog.Debug("worker pool started", "workers", workers)
	return p
}

// byCostThenSeq orders tasks largest cost first, FIFO among equal costs.
func byCostThenSeq(a, b any) int {
	ta := a.(*task)
	tb := b.(*task)
	switch {
	case ta.cost > tb.cost:
		return -1
	case ta.cost < tb.cost:
		return 1
	case ta.seq < tb.seq:
		return -1
	case ta.seq > tb.seq:
		return 1
	default:
		return 0
	}
}

// NumWorkers returns the fixed worker count.
func (p *Pool) NumWorkers() int {
	return p.workers
}

// AddWork queues one task for the next Run. cost should be proportional to
// the work, typically the output element count of the sample.
func (p *Pool) AddWork(fn func(worker int) error, cost int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, &task{fn: fn, cost: cost, seq: p.seq})
	p.seq++
}

// Run releases all accumulated tasks to the workers and blocks until every
// one of them has completed, returning the joined errors of the batch.
func (p *Pool) Run() error {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	var done sync.WaitGroup
	done.Add(len(batch))
	for _, t := range batch {
		t.done = &done
		p.queue.Enqueue(t)
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	done.Wait()

	p.mu.Lock()
	errs := p.errs
	p.errs = nil
	p.mu.Unlock()
	return errors.Join(errs...)
}

// Close stops the workers after the queue drains. The pool must not be used
// afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
	slog.Debug("worker pool stopped", "workers", p.workers)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		for !p.closed && p.queue.Empty() {
			p.cond.Wait()
		}
		if p.queue.Empty() {
			p.mu.Unlock()
			return
		}
		v, _ := p.queue.Dequeue()
		t := v.(*task)
		p.mu.Unlock()

		if err := p.runTask(t, id); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
		t.done.Done()

		p.mu.Lock()
	}
}

// runTask executes one task, converting a panic into an error so the batch
// barrier still completes.
func (p *Pool) runTask(t *task, worker int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: panic: %v", worker, r)
		}
	}()
	return t.fn(worker)
}
