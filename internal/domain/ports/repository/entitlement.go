package repository

import (
	"context"
	"time"

	"telegram-premium-delivery/internal/domain/model"
)

// EntitlementRepository owns the access-control table.
// Update methods are single filtered statements; they return the number of rows touched.
type EntitlementRepository interface {
	Insert(ctx context.Context, tx Tx, e *model.Entitlement) error
	// RenewLatest sets the most recent row for the pair to active. A nil expiresAt keeps the stored value.
	RenewLatest(ctx context.Context, tx Tx, subscriberID string, pt model.ProductType, expiresAt *time.Time, now time.Time) (int64, error)
	// RevokeAll sets every row for the pair to revoked.
	RevokeAll(ctx context.Context, tx Tx, subscriberID string, pt model.ProductType, now time.Time) (int64, error)
	// FindLatest returns the authoritative row or domain.ErrNotFound.
	FindLatest(ctx context.Context, tx Tx, subscriberID string, pt model.ProductType) (*model.Entitlement, error)
}
