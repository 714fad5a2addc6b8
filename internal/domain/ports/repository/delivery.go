package repository

import (
	"context"
	"time"

	"telegram-premium-delivery/internal/domain/model"
)

type DeliveryRepository interface {
	Create(ctx context.Context, tx Tx, d *model.DeliveryRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.DeliveryRecord, error)
	// FindLatestFor returns the newest record for (subscriber, content) or domain.ErrNotFound.
	FindLatestFor(ctx context.Context, tx Tx, subscriberID, packOrItemID string) (*model.DeliveryRecord, error)
	MarkPending(ctx context.Context, tx Tx, id string, now time.Time) error
	MarkDelivered(ctx context.Context, tx Tx, id string, at time.Time) error
	MarkFailed(ctx context.Context, tx Tx, id string, reason string, now time.Time) error
	// MarkAttemptFailed counts an attempt that never reached the transport and marks it failed.
	MarkAttemptFailed(ctx context.Context, tx Tx, id string, reason string, now time.Time) error
	// ListRetryable returns records with fewer than maxAttempts attempts that are either
	// failed or still pending since before staleBefore, oldest first.
	ListRetryable(ctx context.Context, tx Tx, maxAttempts int, staleBefore time.Time, limit int) ([]*model.DeliveryRecord, error)
}
