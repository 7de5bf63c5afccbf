package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/monuchauhan/InstaBot/common/logger"
)

// Pool runs independent workers side by side. Each worker takes one message at
// a time, so the pool size bounds concurrent dispatches per process.
type Pool struct {
	workers []*Worker
}

// NewPool builds size workers with newWorker, which receives the worker index.
func NewPool(size int, newWorker func(i int) (*Worker, error)) (*Pool, error) {
	if size < 1 {
		return nil, errors.New("worker pool size must be at least 1")
	}
	pool := &Pool{workers: make([]*Worker, 0, size)}
	for i := 0; i < size; i++ {
		w, err := newWorker(i)
		if err != nil {
			return nil, err
		}
		pool.workers = append(pool.workers, w)
	}
	return pool, nil
}

func (p *Pool) Size() int {
	return len(p.workers)
}

// Run blocks until every worker has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i, w := range p.workers {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			wctx := logger.WithLogFields(ctx, logger.LogFields{Component: "instabot.worker"})
			if err := w.Run(wctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(wctx, "worker exited with error", "worker", i, "error", err)
			}
		}(i, w)
	}
	wg.Wait()
}

// Stop stops every worker and waits for in-flight messages to finish.
func (p *Pool) Stop() {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}
