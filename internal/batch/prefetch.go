package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Source produces training batches. *Generator implements it.
type Source interface {
	Next() (*Batch, error)
}

// Prefetcher overlaps batch preparation (file I/O, windowing, transforms)
// with training by running a Source on its own goroutine behind a bounded
// channel. A single producer feeding an ordered channel preserves the
// synchronous generator's emission order exactly.
type Prefetcher struct {
	ch     chan *Batch
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewPrefetcher starts prefetching up to depth batches ahead of the
// consumer. depth < 1 is raised to 1.
func NewPrefetcher(ctx context.Context, src Source, depth int) *Prefetcher {
	if depth < 1 {
		depth = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	p := &Prefetcher{
		ch:     make(chan *Batch, depth),
		group:  group,
		cancel: cancel,
	}

	group.Go(func() error {
		defer close(p.ch)
		for {
			b, err := src.Next()
			if err != nil {
				return err
			}

			select {
			case p.ch <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return p
}

// Next returns the next batch in order. Once the producer has failed, Next
// reports its error.
func (p *Prefetcher) Next() (*Batch, error) {
	b, ok := <-p.ch
	if !ok {
		return nil, p.group.Wait()
	}

	return b, nil
}

// Close stops the producer and releases its goroutine. The returned error
// is the producer's exit cause; context.Canceled after a clean shutdown.
func (p *Prefetcher) Close() error {
	p.cancel()
	for range p.ch {
		// Drain so the producer can observe cancellation.
	}

	return p.group.Wait()
}
