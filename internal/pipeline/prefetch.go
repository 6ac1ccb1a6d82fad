package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/feedline-ml/feedline/internal/ops"
)

// result pairs one iteration's outputs with its error. Invalid-input
// iterations are delivered like any other; the consumer decides whether
// to keep going.
type result struct {
	out *Outputs
	err error
}

type prefetcher struct {
	cancel  context.CancelFunc
	group   *errgroup.Group
	results chan result
}

// Start runs iterations ahead of the consumer, buffering up to the
// definition's prefetch depth. Results are collected with Next. Run
// must not be called while prefetching is active.
func (p *Pipeline) Start(ctx context.Context) {
	if p.prefetch != nil {
		panic("pipeline: Start called twice")
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	pf := &prefetcher{cancel: cancel, group: g, results: make(chan result, p.def.Prefetch)}
	p.prefetch = pf

	g.Go(func() error {
		defer close(pf.results)
		for {
			out, err := p.runOnce()
			select {
			case pf.results <- result{out: out, err: err}:
			case <-ctx.Done():
				if out != nil {
					out.Release()
				}
				return ctx.Err()
			}
			// An invalid input spoils one iteration; anything else
			// stops the feed.
			if err != nil && !errors.Is(err, ops.ErrInvalidInput) {
				return err
			}
		}
	})
}

// Next returns the next prefetched iteration, blocking until one is
// ready. Once the prefetcher has stopped it reports the error that
// ended it.
func (p *Pipeline) Next(ctx context.Context) (*Outputs, error) {
	pf := p.prefetch
	if pf == nil {
		panic("pipeline: Next called without Start")
	}
	select {
	case r, ok := <-pf.results:
		if !ok {
			return nil, pf.group.Wait()
		}
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stop cancels the feed and drains undelivered outputs back to the
// allocator.
func (pf *prefetcher) stop() {
	pf.cancel()
	for r := range pf.results {
		if r.out != nil {
			r.out.Release()
		}
	}
	_ = pf.group.Wait()
}
