package pipeline

import (
	"context"
	"sync"

	"github.com/nao1215/linkscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the default number of concurrent link checks.
const DefaultWorkers = 8

// checkFunc processes one link. It returns false when the result must be
// discarded, which happens when the check was cut short by cancellation.
type checkFunc func(ctx context.Context, l model.Link) (model.Link, bool)

// workerPool runs link checks either sequentially or on a bounded set of
// goroutines. Results are handed to the sink and the callback one at a
// time, in completion order.
type workerPool struct {
	workers  int
	onResult func(model.Link)
	mu       sync.Mutex
}

func newWorkerPool(workers int, onResult func(model.Link)) *workerPool {
	if workers < 1 {
		workers = 1
	}
	return &workerPool{workers: workers, onResult: onResult}
}

// run checks every link and passes kept results to add. It returns
// ctx.Err() if the context was cancelled before all links were processed.
func (p *workerPool) run(ctx context.Context, links []model.Link, check checkFunc, add func(model.Link)) error {
	if p.workers == 1 {
		return p.runSequential(ctx, links, check, add)
	}

	// A plain Group: one failed check must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(p.workers)

	for _, l := range links {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, ok := check(ctx, l)
			if !ok {
				return nil
			}
			p.emit(res, add)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *workerPool) runSequential(ctx context.Context, links []model.Link, check checkFunc, add func(model.Link)) error {
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, ok := check(ctx, l)
		if !ok {
			return ctx.Err()
		}
		p.emit(res, add)
	}
	return nil
}

func (p *workerPool) emit(l model.Link, add func(model.Link)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	add(l)
	if p.onResult != nil {
		p.onResult(l)
	}
}
