package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Insert(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	if e == nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO entitlements (id, telegram_user_id, product_type, status, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.SubscriberID, string(e.ProductType), string(e.Status), e.ExpiresAt, e.CreatedAt, e.UpdatedAt)
	return mapWriteErr(err)
}

// RenewLatest picks and updates the authoritative row in one statement.
func (r *entitlementRepo) RenewLatest(ctx context.Context, tx repository.Tx, subscriberID string, pt model.ProductType, expiresAt *time.Time, now time.Time) (int64, error) {
	const q = `
UPDATE entitlements
   SET status = 'active',
       expires_at = COALESCE($3, expires_at),
       updated_at = $4
 WHERE id = (
       SELECT id FROM entitlements
        WHERE telegram_user_id = $1 AND product_type = $2
        ORDER BY updated_at DESC, created_at DESC
        LIMIT 1);`
	tag, err := execSQL(ctx, r.pool, tx, q, subscriberID, string(pt), expiresAt, now)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *entitlementRepo) RevokeAll(ctx context.Context, tx repository.Tx, subscriberID string, pt model.ProductType, now time.Time) (int64, error) {
	const q = `
UPDATE entitlements
   SET status = 'revoked', updated_at = $3
 WHERE telegram_user_id = $1 AND product_type = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, subscriberID, string(pt), now)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *entitlementRepo) FindLatest(ctx context.Context, tx repository.Tx, subscriberID string, pt model.ProductType) (*model.Entitlement, error) {
	const q = `
SELECT id, telegram_user_id, product_type, status, expires_at, created_at, updated_at
  FROM entitlements
 WHERE telegram_user_id = $1 AND product_type = $2
 ORDER BY updated_at DESC, created_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriberID, string(pt))
	if err != nil {
		return nil, err
	}
	var (
		e          model.Entitlement
		pType, st string
	)
	if err := row.Scan(&e.ID, &e.SubscriberID, &pType, &st, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	e.ProductType = model.ProductType(pType)
	e.Status = model.EntitlementStatus(st)
	return &e, nil
}
