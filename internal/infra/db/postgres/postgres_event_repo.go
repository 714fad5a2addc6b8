package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

var _ repository.EventRepository = (*eventRepo)(nil)

type eventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

func (r *eventRepo) Append(ctx context.Context, tx repository.Tx, e *model.InboundEvent) error {
	if e == nil || e.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO events (id, source, event_kind, event_type, payload, received_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Source, string(e.Kind), e.EventType, []byte(e.RawPayload), e.ReceivedAt)
	return mapWriteErr(err)
}

func (r *eventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.InboundEvent, error) {
	const q = `
SELECT id, source, event_kind, event_type, payload, received_at
  FROM events
 WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		e       model.InboundEvent
		kind    string
		payload []byte
	)
	if err := row.Scan(&e.ID, &e.Source, &kind, &e.EventType, &payload, &e.ReceivedAt); err != nil {
		return nil, mapReadErr(err)
	}
	e.Kind = model.EventKind(kind)
	e.RawPayload = payload
	return &e, nil
}
