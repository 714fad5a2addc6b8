// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/infra/metrics"
)

// Task is one unit of detached work (ops notification, pack generation).
type Task = func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of goroutines.
// Submit never blocks; a saturated queue rejects the task.
type Pool struct {
	wg    sync.WaitGroup
	jobs  chan Task
	quit  chan struct{}
	n     int
	log   *zerolog.Logger
	start sync.Once
	stop  sync.Once
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, queue), quit: make(chan struct{}), n: workers, log: &l}
}

// Start launches the workers. Tasks get ctx, so cancelling it aborts running work.
func (p *Pool) Start(ctx context.Context) {
	p.start.Do(func() {
		for i := 0; i < p.n; i++ {
			p.wg.Add(1)
			go p.loop(ctx, i)
		}
	})
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			// drain what is already queued before exiting
			for {
				select {
				case task := <-p.jobs:
					p.run(ctx, id, task)
				default:
					return
				}
			}
		case task := <-p.jobs:
			p.run(ctx, id, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBackgroundTask("failed")
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		metrics.IncBackgroundTask("failed")
		p.log.Warn().Int("worker", id).Err(err).Msg("task error")
		return
	}
	metrics.IncBackgroundTask("completed")
}

// Stop lets queued tasks finish and waits for the workers.
func (p *Pool) Stop() {
	p.stop.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return fmt.Errorf("pool stopped: %w", domain.ErrQueueFull)
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncBackgroundTask("rejected")
		return domain.ErrQueueFull
	}
}
