package gohelix

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultParallelism is the number of transition tasks a Participant will
// run concurrently, matching the source's ThreadPoolExecutor default width.
const DefaultParallelism = 20

// workerPool bounds the number of transition tasks running at once using a
// weighted semaphore, rather than a fixed-size pool of goroutines: each
// submission spawns its own goroutine and blocks on acquiring a slot, so
// there's no separate worker-goroutine lifecycle to manage.
type workerPool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newWorkerPool(width int64) *workerPool {
	if width <= 0 {
		width = DefaultParallelism
	}
	return &workerPool{sem: semaphore.NewWeighted(width)}
}

// Submit runs fn in a new goroutine once a slot is free. It blocks the
// caller until a slot is acquired, providing natural backpressure on the
// message-processing loop that calls it.
func (p *workerPool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()

	return nil
}

// Wait blocks until every submitted task has returned.
func (p *workerPool) Wait() {
	p.wg.Wait()
}
