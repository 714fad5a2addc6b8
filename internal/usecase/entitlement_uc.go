// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
	"telegram-premium-delivery/internal/infra/logging"
	"telegram-premium-delivery/internal/infra/metrics"
)

var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase is the only writer of entitlement rows.
type EntitlementUseCase interface {
	// Grant inserts a new active row. Granting twice leaves two active rows.
	Grant(ctx context.Context, subscriberID string, pt model.ProductType) (*model.Entitlement, error)
	// Renew reactivates the most recent row. Returns false when there was nothing to renew.
	Renew(ctx context.Context, subscriberID string, pt model.ProductType) (bool, error)
	// Revoke marks every row for the pair revoked and returns how many changed.
	Revoke(ctx context.Context, subscriberID string, pt model.ProductType) (int64, error)
	HasActiveEntitlement(ctx context.Context, subscriberID string, pt model.ProductType) (bool, error)
	// Current returns the authoritative row or domain.ErrNotFound.
	Current(ctx context.Context, subscriberID string, pt model.ProductType) (*model.Entitlement, error)
}

type entitlementUC struct {
	repo      repository.EntitlementRepository
	durations map[model.ProductType]time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

// NewEntitlementUseCase builds the ledger. durations maps product types to a
// validity window; types absent from the map never expire.
func NewEntitlementUseCase(repo repository.EntitlementRepository, durations map[model.ProductType]time.Duration, logger *zerolog.Logger) *entitlementUC {
	l := logger.With().Str("component", "EntitlementLedger").Logger()
	if durations == nil {
		durations = map[model.ProductType]time.Duration{}
	}
	return &entitlementUC{repo: repo, durations: durations, log: &l, now: time.Now}
}

func validPair(subscriberID string, pt model.ProductType) error {
	if strings.TrimSpace(subscriberID) == "" {
		return fmt.Errorf("empty subscriber id: %w", domain.ErrInvalidArgument)
	}
	if !pt.Valid() {
		return fmt.Errorf("unknown product type %q: %w", pt, domain.ErrInvalidArgument)
	}
	return nil
}

func (uc *entitlementUC) expiry(pt model.ProductType, now time.Time) *time.Time {
	d, ok := uc.durations[pt]
	if !ok || d <= 0 {
		return nil
	}
	t := now.Add(d)
	return &t
}

func (uc *entitlementUC) Grant(ctx context.Context, subscriberID string, pt model.ProductType) (*model.Entitlement, error) {
	if err := validPair(subscriberID, pt); err != nil {
		return nil, err
	}
	now := uc.now().UTC()
	e, err := model.NewEntitlement(uuid.NewString(), subscriberID, pt, uc.expiry(pt, now), now)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Insert(ctx, repository.NoTX, e); err != nil {
		metrics.IncLedgerOp("grant", string(pt), "error")
		return nil, fmt.Errorf("grant entitlement: %w", err)
	}
	metrics.IncLedgerOp("grant", string(pt), "ok")
	logging.With(ctx, uc.log).Info().Str("entitlement_id", e.ID).Str("product_type", string(pt)).Msg("entitlement granted")
	return e, nil
}

func (uc *entitlementUC) Renew(ctx context.Context, subscriberID string, pt model.ProductType) (bool, error) {
	if err := validPair(subscriberID, pt); err != nil {
		return false, err
	}
	now := uc.now().UTC()
	n, err := uc.repo.RenewLatest(ctx, repository.NoTX, subscriberID, pt, uc.expiry(pt, now), now)
	if err != nil {
		metrics.IncLedgerOp("renew", string(pt), "error")
		return false, fmt.Errorf("renew entitlement: %w", err)
	}
	if n == 0 {
		metrics.IncLedgerOp("renew", string(pt), "noop")
		logging.With(ctx, uc.log).Warn().Str("product_type", string(pt)).Msg("renewal without prior entitlement")
		return false, nil
	}
	metrics.IncLedgerOp("renew", string(pt), "ok")
	logging.With(ctx, uc.log).Info().Str("product_type", string(pt)).Msg("entitlement renewed")
	return true, nil
}

func (uc *entitlementUC) Revoke(ctx context.Context, subscriberID string, pt model.ProductType) (int64, error) {
	if err := validPair(subscriberID, pt); err != nil {
		return 0, err
	}
	n, err := uc.repo.RevokeAll(ctx, repository.NoTX, subscriberID, pt, uc.now().UTC())
	if err != nil {
		metrics.IncLedgerOp("revoke", string(pt), "error")
		return 0, fmt.Errorf("revoke entitlement: %w", err)
	}
	if n == 0 {
		metrics.IncLedgerOp("revoke", string(pt), "noop")
		logging.With(ctx, uc.log).Info().Str("product_type", string(pt)).Msg("revoke without prior entitlement")
		return 0, nil
	}
	metrics.IncLedgerOp("revoke", string(pt), "ok")
	logging.With(ctx, uc.log).Info().Str("product_type", string(pt)).Int64("rows", n).Msg("entitlement revoked")
	return n, nil
}

func (uc *entitlementUC) Current(ctx context.Context, subscriberID string, pt model.ProductType) (*model.Entitlement, error) {
	if err := validPair(subscriberID, pt); err != nil {
		return nil, err
	}
	return uc.repo.FindLatest(ctx, repository.NoTX, subscriberID, pt)
}

func (uc *entitlementUC) HasActiveEntitlement(ctx context.Context, subscriberID string, pt model.ProductType) (bool, error) {
	e, err := uc.Current(ctx, subscriberID, pt)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.IsActiveAt(uc.now()), nil
}
