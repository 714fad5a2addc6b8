package usecase

import (
	"context"
	"time"
)

// TaskRunner accepts detached work. worker.Pool satisfies it.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// submitOrGo hands task to runner, or to a fresh goroutine when no runner is wired.
func submitOrGo(runner TaskRunner, ctx context.Context, task func(ctx context.Context) error) error {
	if runner != nil {
		return runner.Submit(task)
	}
	go func() { _ = task(ctx) }()
	return nil
}
