package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
	"telegram-premium-delivery/internal/usecase"
)

// RedeliveryWorker periodically retries deliveries that have attempts left: failed
// records, and pending records untouched for longer than staleAfter (an attempt
// that died between record creation and the final status write).
type RedeliveryWorker struct {
	interval    time.Duration
	maxAttempts int
	staleAfter  time.Duration
	batch       int
	records     repository.DeliveryRepository
	delivery    usecase.DeliveryUseCase
	log         *zerolog.Logger
}

// NewRedeliveryWorker builds the sweeper. staleAfter should exceed the delivery
// lock TTL so a live attempt is never picked up.
func NewRedeliveryWorker(interval time.Duration, maxAttempts int, staleAfter time.Duration, records repository.DeliveryRepository, delivery usecase.DeliveryUseCase, logger *zerolog.Logger) *RedeliveryWorker {
	l := logger.With().Str("component", "RedeliveryWorker").Logger()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &RedeliveryWorker{
		interval:    interval,
		maxAttempts: maxAttempts,
		staleAfter:  staleAfter,
		batch:       50,
		records:     records,
		delivery:    delivery,
		log:         &l,
	}
}

func (w *RedeliveryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting redelivery worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping redelivery worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns how many records ended delivered.
func (w *RedeliveryWorker) Tick(ctx context.Context) int {
	staleBefore := time.Now().UTC().Add(-w.staleAfter)
	failed, err := w.records.ListRetryable(ctx, repository.NoTX, w.maxAttempts, staleBefore, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list retryable deliveries")
		return 0
	}
	delivered := 0
	for _, rec := range failed {
		if ctx.Err() != nil {
			break
		}
		out := w.delivery.Redeliver(ctx, rec.ID)
		switch out.Status {
		case model.OutcomeDelivered:
			delivered++
		case model.OutcomeFailed:
			w.log.Warn().Err(out.Err).Str("record_id", rec.ID).Int("attempts", rec.Attempts+1).Msg("redelivery failed")
		default:
			w.log.Debug().Str("record_id", rec.ID).Str("outcome", string(out.Status)).Msg("redelivery skipped")
		}
	}
	if delivered > 0 {
		w.log.Info().Int("count", delivered).Msg("failed deliveries recovered")
	}
	return delivered
}
