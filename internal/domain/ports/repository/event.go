package repository

import (
	"context"

	"telegram-premium-delivery/internal/domain/model"
)

// EventRepository is the append-only audit log of inbound payment events.
type EventRepository interface {
	Append(ctx context.Context, tx Tx, e *model.InboundEvent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.InboundEvent, error)
}
