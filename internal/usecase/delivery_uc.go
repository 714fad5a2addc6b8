// File: internal/usecase/delivery_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/domain/ports/repository"
	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
)

var _ DeliveryUseCase = (*deliveryUC)(nil)

// DeliveryUseCase pushes paid content to a subscriber and records the attempt.
// It never changes entitlements.
type DeliveryUseCase interface {
	Deliver(ctx context.Context, subscriberID string, ent *model.Entitlement) model.DeliveryOutcome
	// Redeliver retries an existing record against the content it originally selected.
	Redeliver(ctx context.Context, recordID string) model.DeliveryOutcome
}

const defaultIntro = "Thank you for your purchase! Here is {title} ({count} items)."

type DeliveryOptions struct {
	BotToken      string
	InitialBatch  int
	LockTTL       time.Duration
	StoreTimeout  time.Duration
	IntroTemplate string // placeholders: {title} {count}
	FallbackTitle string // used when the deliverable has no title
}

type deliveryUC struct {
	catalog   *ProductCatalog
	records   repository.DeliveryRepository
	transport adapter.ChatTransport
	locker    adapter.Locker
	ops       OpsNotifier
	opts      DeliveryOptions
	log       *zerolog.Logger
	now       func() time.Time
}

// NewDeliveryUseCase builds the dispatcher. locker and ops may be nil.
func NewDeliveryUseCase(
	catalog *ProductCatalog,
	records repository.DeliveryRepository,
	transport adapter.ChatTransport,
	locker adapter.Locker,
	ops OpsNotifier,
	opts DeliveryOptions,
	logger *zerolog.Logger,
) *deliveryUC {
	l := logger.With().Str("component", "DeliveryDispatcher").Logger()
	if opts.InitialBatch <= 0 {
		opts.InitialBatch = 5
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if strings.TrimSpace(opts.IntroTemplate) == "" {
		opts.IntroTemplate = defaultIntro
	}
	if strings.TrimSpace(opts.FallbackTitle) == "" {
		opts.FallbackTitle = "your content"
	}
	return &deliveryUC{
		catalog:   catalog,
		records:   records,
		transport: transport,
		locker:    locker,
		ops:       ops,
		opts:      opts,
		log:       &l,
		now:       time.Now,
	}
}

func (uc *deliveryUC) Deliver(ctx context.Context, subscriberID string, ent *model.Entitlement) model.DeliveryOutcome {
	defer logging.TraceDuration(uc.log, "DeliveryUseCase.Deliver")()
	if strings.TrimSpace(subscriberID) == "" || ent == nil {
		return model.DeliveryOutcome{Status: model.OutcomeFailed, Err: domain.ErrInvalidArgument}
	}
	log := logging.With(ctx, uc.log)

	src := uc.catalog.SourceFor(ent.ProductType)
	d, err := src.Select(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoContentAvailable) {
			metrics.ObserveDelivery(src.Name(), string(model.OutcomeNoContentAvailable), 0)
			log.Info().Str("product_type", string(ent.ProductType)).Str("source", src.Name()).Msg("no content available")
			return model.DeliveryOutcome{Status: model.OutcomeNoContentAvailable, Err: err}
		}
		log.Error().Err(err).Str("source", src.Name()).Msg("content selection failed")
		uc.notifyFailure(ctx, subscriberID, "", err)
		return model.DeliveryOutcome{Status: model.OutcomeFailed, Err: err}
	}

	return uc.attempt(ctx, subscriberID, ent.ID, ent.ProductType, src.Name(), d)
}

func (uc *deliveryUC) Redeliver(ctx context.Context, recordID string) model.DeliveryOutcome {
	rctx, cancel := withTimeout(ctx, uc.opts.StoreTimeout)
	rec, err := uc.records.FindByID(rctx, repository.NoTX, recordID)
	cancel()
	if err != nil {
		return model.DeliveryOutcome{Status: model.OutcomeFailed, RecordID: recordID, Err: err}
	}
	if rec.Status == model.DeliveryStatusDelivered {
		return model.DeliveryOutcome{Status: model.OutcomeAlreadyDelivered, RecordID: rec.ID, ContentID: rec.PackOrItemID}
	}

	ctx = logging.WithSubscriberID(ctx, rec.SubscriberID)
	src := uc.catalog.SourceByName(rec.Source)
	d, err := src.Lookup(ctx, rec.PackOrItemID)
	if err != nil {
		out := model.DeliveryOutcome{Status: model.OutcomeFailed, RecordID: rec.ID, ContentID: rec.PackOrItemID, Err: err}
		if errors.Is(err, domain.ErrNoContentAvailable) {
			out.Status = model.OutcomeNoContentAvailable
		}
		// counted as an attempt; the sweeper stops at max attempts
		sctx, cancel := withTimeout(context.WithoutCancel(ctx), uc.opts.StoreTimeout)
		defer cancel()
		if merr := uc.records.MarkAttemptFailed(sctx, repository.NoTX, rec.ID, truncate(err.Error(), 500), uc.now().UTC()); merr != nil {
			logging.With(ctx, uc.log).Error().Err(merr).Str("record_id", rec.ID).Msg("could not mark redelivery failed")
		}
		metrics.ObserveDelivery(src.Name(), string(out.Status), 0)
		return out
	}
	return uc.attempt(ctx, rec.SubscriberID, rec.EntitlementID, rec.ProductType, src.Name(), d)
}

func deliveryLockKey(subscriberID, contentID string) string {
	return "delivery:" + subscriberID + ":" + contentID
}

// attempt runs one locked delivery of d: record bookkeeping, intro, first batch.
func (uc *deliveryUC) attempt(ctx context.Context, subscriberID, entitlementID string, pt model.ProductType, source string, d *model.Deliverable) model.DeliveryOutcome {
	start := uc.now()
	log := logging.With(ctx, uc.log).With().Str("content_id", d.ID).Str("source", source).Logger()
	out := model.DeliveryOutcome{ContentID: d.ID}

	if uc.locker != nil {
		key := deliveryLockKey(subscriberID, d.ID)
		token, err := uc.locker.TryLock(ctx, key, uc.opts.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockNotAcquired):
			log.Info().Msg("delivery already in progress")
			out.Status = model.OutcomeInProgress
			metrics.ObserveDelivery(source, string(out.Status), 0)
			return out
		case err != nil:
			log.Warn().Err(err).Msg("delivery lock unavailable, continuing unlocked")
		default:
			defer func() {
				uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
				defer cancel()
				if err := uc.locker.Unlock(uctx, key, token); err != nil {
					log.Warn().Err(err).Msg("delivery unlock failed")
				}
			}()
		}
	}

	rec, done, err := uc.prepareRecord(ctx, subscriberID, entitlementID, pt, source, d.ID)
	if done {
		out.Status = model.OutcomeAlreadyDelivered
		out.RecordID = rec.ID
		metrics.ObserveDelivery(source, string(out.Status), 0)
		log.Info().Str("record_id", rec.ID).Msg("content already delivered")
		return out
	}
	if err != nil {
		// delivery proceeds without an audit row
		log.Error().Err(err).Msg("delivery record unavailable")
	}
	if rec != nil {
		out.RecordID = rec.ID
	}

	sent, sendErr := uc.send(ctx, subscriberID, d)
	out.Sent = sent

	sctx, cancel := withTimeout(context.WithoutCancel(ctx), uc.opts.StoreTimeout)
	defer cancel()
	if sendErr != nil {
		out.Status = model.OutcomeFailed
		out.Err = sendErr
		if rec != nil {
			if err := uc.records.MarkFailed(sctx, repository.NoTX, rec.ID, truncate(sendErr.Error(), 500), uc.now().UTC()); err != nil {
				log.Error().Err(err).Str("record_id", rec.ID).Msg("could not mark delivery failed")
			}
		}
		log.Error().Err(sendErr).Int("sent", sent).Msg("delivery failed")
		uc.notifyFailure(ctx, subscriberID, d.ID, sendErr)
	} else {
		out.Status = model.OutcomeDelivered
		if rec != nil {
			if err := uc.records.MarkDelivered(sctx, repository.NoTX, rec.ID, uc.now().UTC()); err != nil {
				log.Error().Err(err).Str("record_id", rec.ID).Msg("could not mark delivery delivered")
			}
		}
		log.Info().Int("sent", sent).Msg("content delivered")
		uc.notifyDelivered(ctx, subscriberID, d)
	}
	metrics.ObserveDelivery(source, string(out.Status), uc.now().Sub(start))
	return out
}

// prepareRecord returns the record to use for this attempt. done reports an
// existing delivered record for the same content.
func (uc *deliveryUC) prepareRecord(ctx context.Context, subscriberID, entitlementID string, pt model.ProductType, source, contentID string) (*model.DeliveryRecord, bool, error) {
	ctx, cancel := withTimeout(ctx, uc.opts.StoreTimeout)
	defer cancel()
	now := uc.now().UTC()

	prev, err := uc.records.FindLatestFor(ctx, repository.NoTX, subscriberID, contentID)
	switch {
	case err == nil && prev.Status == model.DeliveryStatusDelivered:
		return prev, true, nil
	case err == nil:
		if err := uc.records.MarkPending(ctx, repository.NoTX, prev.ID, now); err != nil {
			return nil, false, fmt.Errorf("reuse delivery record: %w", err)
		}
		prev.Status = model.DeliveryStatusPending
		prev.Attempts++
		return prev, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, fmt.Errorf("find delivery record: %w", err)
	}

	rec := &model.DeliveryRecord{
		ID:            uuid.NewString(),
		SubscriberID:  subscriberID,
		EntitlementID: entitlementID,
		ProductType:   pt,
		Source:        source,
		PackOrItemID:  contentID,
		Status:        model.DeliveryStatusPending,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.records.Create(ctx, repository.NoTX, rec); err != nil {
		return nil, false, fmt.Errorf("create delivery record: %w", err)
	}
	return rec, false, nil
}

// send pushes the intro then the first batch, in order, stopping at the first error.
func (uc *deliveryUC) send(ctx context.Context, chatID string, d *model.Deliverable) (int, error) {
	items := d.Items
	if len(items) > uc.opts.InitialBatch {
		items = items[:uc.opts.InitialBatch]
	}

	sent := 0
	intro := strings.NewReplacer("{title}", uc.titleOr(d.Title), "{count}", strconv.Itoa(len(items))).Replace(uc.opts.IntroTemplate)
	if err := uc.transport.SendText(ctx, uc.opts.BotToken, chatID, intro, nil); err != nil {
		metrics.IncDeliveryMessage("text", "error")
		return sent, err
	}
	metrics.IncDeliveryMessage("text", "sent")
	sent++

	for _, it := range items {
		var err error
		kind := string(it.Kind)
		switch it.Kind {
		case model.ContentKindText:
			text := it.Caption
			if text == "" {
				text = it.URL
			}
			err = uc.transport.SendText(ctx, uc.opts.BotToken, chatID, text, nil)
		default:
			kind = string(model.ContentKindPhoto)
			err = uc.transport.SendPhoto(ctx, uc.opts.BotToken, chatID, it.URL, it.Caption, nil)
		}
		if err != nil {
			metrics.IncDeliveryMessage(kind, "error")
			return sent, fmt.Errorf("item %d: %w", it.Position, err)
		}
		metrics.IncDeliveryMessage(kind, "sent")
		sent++
	}
	return sent, nil
}

func (uc *deliveryUC) notifyFailure(ctx context.Context, subscriberID, contentID string, err error) {
	if uc.ops == nil {
		return
	}
	msg := fmt.Sprintf("Delivery failed\nSubscriber: %s\nContent: %s\nError: %s", subscriberID, contentID, truncate(err.Error(), 300))
	uc.ops.Notify(ctx, TopicDeliveryFailure, msg)
}

func (uc *deliveryUC) notifyDelivered(ctx context.Context, subscriberID string, d *model.Deliverable) {
	if uc.ops == nil {
		return
	}
	msg := fmt.Sprintf("Content delivered\nSubscriber: %s\nContent: %s (%s)\nItems: %d", subscriberID, uc.titleOr(d.Title), d.ID, len(d.Items))
	uc.ops.Notify(ctx, TopicDelivered, msg)
}

func (uc *deliveryUC) titleOr(t string) string {
	if strings.TrimSpace(t) == "" {
		return uc.opts.FallbackTitle
	}
	return t
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
