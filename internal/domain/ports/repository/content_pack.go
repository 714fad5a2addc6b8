package repository

import (
	"context"

	"telegram-premium-delivery/internal/domain/model"
)

type ContentPackRepository interface {
	Create(ctx context.Context, tx Tx, p *model.ContentPack) error
	AddItems(ctx context.Context, tx Tx, packID string, items []model.ContentItem) error
	MarkReady(ctx context.Context, tx Tx, packID string) error
	// FindLatestReady returns the newest ready pack with its items, or domain.ErrNotFound.
	FindLatestReady(ctx context.Context, tx Tx) (*model.ContentPack, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.ContentPack, error)
}
