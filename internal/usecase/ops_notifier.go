// File: internal/usecase/ops_notifier.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/infra/metrics"
)

// Ops notification topics.
const (
	TopicPurchase        = "purchase"
	TopicRefund          = "refund"
	TopicCancellation    = "cancellation"
	TopicDeliveryFailure = "delivery_failure"
	TopicDelivered       = "delivered"
	TopicPackReady       = "pack_ready"
)

var _ OpsNotifier = (*opsNotifier)(nil)

// OpsNotifier posts operator messages. Notify never blocks the caller and never fails it.
type OpsNotifier interface {
	Notify(ctx context.Context, topic, text string)
}

type OpsOptions struct {
	BotToken  string
	ChatID    string // empty disables notifications
	PerMinute int
	Timeout   time.Duration
}

type opsNotifier struct {
	transport adapter.ChatTransport
	limiter   adapter.Limiter
	runner    TaskRunner
	opts      OpsOptions
	log       *zerolog.Logger
}

// NewOpsNotifier wires the ops channel. limiter and runner may be nil.
func NewOpsNotifier(transport adapter.ChatTransport, limiter adapter.Limiter, runner TaskRunner, opts OpsOptions, logger *zerolog.Logger) *opsNotifier {
	l := logger.With().Str("component", "OpsNotifier").Logger()
	if opts.PerMinute <= 0 {
		opts.PerMinute = 30
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &opsNotifier{transport: transport, limiter: limiter, runner: runner, opts: opts, log: &l}
}

func (n *opsNotifier) Notify(ctx context.Context, topic, text string) {
	if strings.TrimSpace(n.opts.ChatID) == "" || n.transport == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	err := submitOrGo(n.runner, detached, func(runCtx context.Context) error {
		return n.send(runCtx, topic, text)
	})
	if err != nil {
		metrics.IncOpsNotification(topic, "dropped")
		n.log.Warn().Err(err).Str("topic", topic).Msg("ops notification dropped")
	}
}

func (n *opsNotifier) send(ctx context.Context, topic, text string) error {
	ctx, cancel := withTimeout(ctx, n.opts.Timeout)
	defer cancel()

	if n.limiter != nil {
		ok, err := n.limiter.Allow(ctx, "rate_limit:ops:"+n.opts.ChatID, n.opts.PerMinute, time.Minute)
		if err != nil {
			n.log.Warn().Err(err).Msg("ops rate limiter unavailable, sending anyway")
		} else if !ok {
			metrics.IncOpsNotification(topic, "throttled")
			return nil
		}
	}

	if err := n.transport.SendText(ctx, n.opts.BotToken, n.opts.ChatID, text, nil); err != nil {
		metrics.IncOpsNotification(topic, "error")
		if errors.Is(err, domain.ErrTransportFailure) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	metrics.IncOpsNotification(topic, "sent")
	return nil
}
