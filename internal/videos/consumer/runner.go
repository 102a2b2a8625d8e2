package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/vidstreamlabs/vidstream-backend/internal/videos"
	"github.com/vidstreamlabs/vidstream-backend/pkg/logger"
)

// Runner drains an in-process job queue with a bounded worker pool. It backs
// the dev-mode dispatcher where no broker is configured.
type Runner struct {
	handler *Handler
	jobs    <-chan videos.Job
	workers int
	logg    *logger.Logger
}

// NewRunner constructs the pool over the provided queue.
func NewRunner(handler *Handler, jobs <-chan videos.Job, workers int, logg *logger.Logger) (*Runner, error) {
	if handler == nil {
		return nil, errors.New("job handler is required")
	}
	if jobs == nil {
		return nil, errors.New("job queue is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		handler: handler,
		jobs:    jobs,
		workers: workers,
		logg:    logg,
	}, nil
}

// Run consumes jobs until the queue closes or the context is canceled.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					logCtx := r.logg.WithVideoID(ctx, job.VideoID.String())
					if err := r.handler.Handle(logCtx, job); err != nil {
						r.logg.Error(logCtx, "in-process job handling failed", err)
					}
				}
			}
		}()
	}
	wg.Wait()
}
