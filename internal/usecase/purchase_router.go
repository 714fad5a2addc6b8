// File: internal/usecase/purchase_router.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/adapter"
	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
)

// RouteState is where a webhook call ended up.
type RouteState string

const (
	StateReceived     RouteState = "received"
	StateRejected     RouteState = "rejected"
	StateVerified     RouteState = "verified"
	StateStored       RouteState = "stored"
	StateClassified   RouteState = "classified"
	StateProcessed    RouteState = "processed"
	StateAcknowledged RouteState = "acknowledged"
)

// RouteResult reports one routed call. Err on an acknowledged result is informational:
// the provider still gets a success response.
type RouteResult struct {
	State       RouteState
	EventID     string
	Kind        model.EventKind
	ProductType model.ProductType
	Delivery    *model.DeliveryOutcome
	Err         error
}

// Rejected reports whether the caller must answer with an authentication error.
func (r RouteResult) Rejected() bool { return r.State == StateRejected }

type RouterOptions struct {
	Source       string // provider tag stored with events
	StoreTimeout time.Duration
	Dev          bool
}

// PurchaseRouter authenticates provider webhooks and dispatches them to the ledger and the dispatcher.
type PurchaseRouter struct {
	verifier adapter.SignatureVerifier
	events   EventStore
	ledger   EntitlementUseCase
	delivery DeliveryUseCase
	catalog  *ProductCatalog
	ops      OpsNotifier
	opts     RouterOptions
	log      *zerolog.Logger
}

func NewPurchaseRouter(
	verifier adapter.SignatureVerifier,
	events EventStore,
	ledger EntitlementUseCase,
	delivery DeliveryUseCase,
	catalog *ProductCatalog,
	ops OpsNotifier,
	opts RouterOptions,
	logger *zerolog.Logger,
) *PurchaseRouter {
	l := logger.With().Str("component", "PurchaseRouter").Logger()
	if opts.Source == "" {
		opts.Source = "tribute"
	}
	return &PurchaseRouter{
		verifier: verifier,
		events:   events,
		ledger:   ledger,
		delivery: delivery,
		catalog:  catalog,
		ops:      ops,
		opts:     opts,
		log:      &l,
	}
}

// Handle runs one call through the state machine. It never panics; every failure
// after verification still ends acknowledged.
func (r *PurchaseRouter) Handle(ctx context.Context, rawBody []byte, signature string) (res RouteResult) {
	log := logging.With(ctx, r.log)
	res.State = StateReceived
	r.trace(log, res.State)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("state", string(res.State)).Msg("purchase router panic")
			res.Err = fmt.Errorf("panic: %v", rec)
			if res.State != StateRejected {
				res.State = StateAcknowledged
			}
		}
	}()

	if strings.TrimSpace(signature) == "" {
		metrics.WebhookRequests.WithLabelValues("missing_signature").Inc()
		log.Warn().Msg("webhook without signature")
		return RouteResult{State: StateRejected, Err: domain.ErrMissingSignature}
	}
	if !r.verifier.Verify(rawBody, signature) {
		metrics.WebhookRequests.WithLabelValues("invalid_signature").Inc()
		log.Warn().Msg("webhook signature mismatch")
		return RouteResult{State: StateRejected, Err: domain.ErrInvalidSignature}
	}
	res.State = StateVerified
	r.trace(log, res.State)

	if !json.Valid(rawBody) {
		metrics.WebhookRequests.WithLabelValues("malformed").Inc()
		log.Warn().Msg("verified webhook with malformed body")
		res.State = StateAcknowledged
		res.Err = domain.ErrMalformedPayload
		return res
	}

	// type mismatches leave the offending field zero and decoding carries on
	var payload model.WebhookPayload
	decodeErr := json.Unmarshal(rawBody, &payload)
	res.Kind = model.ParseEventKind(payload.EventType)

	sctx, cancel := withTimeout(ctx, r.opts.StoreTimeout)
	ev, err := r.events.Record(sctx, r.opts.Source, res.Kind, payload.EventType, rawBody)
	cancel()
	if err != nil {
		metrics.IncEventStoreFailure()
		log.Error().Err(err).Str("event_type", payload.EventType).Msg("event not stored, continuing")
	} else {
		res.EventID = ev.ID
		ctx = logging.WithEventID(ctx, ev.ID)
	}

	if decodeErr != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(decodeErr, &typeErr) {
			metrics.WebhookRequests.WithLabelValues("malformed").Inc()
			log.Warn().Err(decodeErr).Str("event_id", res.EventID).Msg("stored webhook has an unusable body")
			res.State = StateAcknowledged
			res.Err = fmt.Errorf("%w: %v", domain.ErrMalformedPayload, decodeErr)
			return res
		}
		log.Warn().Err(decodeErr).Str("field", typeErr.Field).Msg("webhook field ignored")
	}
	res.State = StateStored

	subscriberID := payload.Data.UserID.String()
	ctx = logging.WithSubscriberID(ctx, logging.Redact(subscriberID, r.opts.Dev))
	log = logging.With(ctx, r.log)
	r.trace(log, res.State)

	res.ProductType = r.catalog.Resolve(res.Kind, payload.Data)
	metrics.IncEventKind(string(res.Kind))
	res.State = StateClassified
	log.Debug().Str("state", string(res.State)).Str("kind", string(res.Kind)).Str("product_type", string(res.ProductType)).Msg("purchase router")

	if res.Kind != model.EventKindUnrecognized && subscriberID == "" {
		log.Warn().Str("kind", string(res.Kind)).Msg("event without user id, nothing to do")
		res.Err = fmt.Errorf("missing user id: %w", domain.ErrMalformedPayload)
		return r.ack(log, res)
	}

	res.Err = r.process(ctx, log, &res, subscriberID, payload)
	res.State = StateProcessed
	r.trace(log, res.State)
	return r.ack(log, res)
}

func (r *PurchaseRouter) process(ctx context.Context, log *zerolog.Logger, res *RouteResult, subscriberID string, p model.WebhookPayload) error {
	pt := res.ProductType
	switch res.Kind {
	case model.EventKindPurchaseSuccess, model.EventKindSubscriptionStarted:
		lctx, cancel := withTimeout(ctx, r.opts.StoreTimeout)
		ent, grantErr := r.ledger.Grant(lctx, subscriberID, pt)
		cancel()
		if grantErr != nil {
			// content still goes out without a ledger row
			log.Error().Err(grantErr).Msg("grant failed, delivering without entitlement row")
			ent = &model.Entitlement{SubscriberID: subscriberID, ProductType: pt, Status: model.EntitlementStatusActive}
		}
		r.notify(ctx, TopicPurchase, fmt.Sprintf("New purchase\nUser: %s\nProduct: %s (%s)\nAmount: %s",
			subscriberID, p.Data.ProductID, pt, amount(p.Data.Amount)))

		out := r.delivery.Deliver(ctx, subscriberID, ent)
		res.Delivery = &out
		if out.Status == model.OutcomeFailed {
			return out.Err
		}
		return grantErr

	case model.EventKindSubscriptionRenewed:
		lctx, cancel := withTimeout(ctx, r.opts.StoreTimeout)
		defer cancel()
		if _, err := r.ledger.Renew(lctx, subscriberID, pt); err != nil {
			log.Error().Err(err).Msg("renew failed")
			return err
		}
		return nil

	case model.EventKindRefund, model.EventKindSubscriptionCanceled:
		lctx, cancel := withTimeout(ctx, r.opts.StoreTimeout)
		_, err := r.ledger.Revoke(lctx, subscriberID, pt)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("revoke failed")
			return err
		}
		topic, title := TopicRefund, "Refund"
		if res.Kind == model.EventKindSubscriptionCanceled {
			topic, title = TopicCancellation, "Subscription canceled"
		}
		r.notify(ctx, topic, fmt.Sprintf("%s\nUser: %s\nProduct: %s", title, subscriberID, pt))
		return nil

	default:
		log.Info().Str("event_type", p.EventType).Msg("unrecognized event acknowledged")
		return nil
	}
}

func (r *PurchaseRouter) ack(log *zerolog.Logger, res RouteResult) RouteResult {
	res.State = StateAcknowledged
	r.trace(log, res.State)
	result := "ok"
	if res.Err != nil {
		result = "error"
	}
	metrics.WebhookRequests.WithLabelValues(result).Inc()
	return res
}

func (r *PurchaseRouter) notify(ctx context.Context, topic, text string) {
	if r.ops != nil {
		r.ops.Notify(ctx, topic, text)
	}
}

func (r *PurchaseRouter) trace(log *zerolog.Logger, s RouteState) {
	log.Debug().Str("state", string(s)).Msg("purchase router")
}

func amount(a model.FlexNumber) string {
	if !a.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", a.Value)
}
