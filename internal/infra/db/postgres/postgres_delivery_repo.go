package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

var _ repository.DeliveryRepository = (*deliveryRepo)(nil)

type deliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *deliveryRepo {
	return &deliveryRepo{pool: pool}
}

const deliveryColumns = `id, subscriber_id, entitlement_id, product_type, source, pack_or_item_id,
       status, attempts, last_error, created_at, updated_at, delivered_at`

func (r *deliveryRepo) Create(ctx context.Context, tx repository.Tx, d *model.DeliveryRecord) error {
	if d == nil || d.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO deliveries (` + deliveryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err := execSQL(ctx, r.pool, tx, q,
		d.ID, d.SubscriberID, d.EntitlementID, string(d.ProductType), d.Source, d.PackOrItemID,
		string(d.Status), d.Attempts, d.LastError, d.CreatedAt, d.UpdatedAt, d.DeliveredAt)
	return mapWriteErr(err)
}

func (r *deliveryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.DeliveryRecord, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanDelivery(row)
}

func (r *deliveryRepo) FindLatestFor(ctx context.Context, tx repository.Tx, subscriberID, packOrItemID string) (*model.DeliveryRecord, error) {
	const q = `
SELECT ` + deliveryColumns + `
  FROM deliveries
 WHERE subscriber_id = $1 AND pack_or_item_id = $2
 ORDER BY (status = 'delivered') DESC, created_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriberID, packOrItemID)
	if err != nil {
		return nil, err
	}
	return scanDelivery(row)
}

// MarkPending starts another attempt on an existing record.
func (r *deliveryRepo) MarkPending(ctx context.Context, tx repository.Tx, id string, now time.Time) error {
	const q = `
UPDATE deliveries
   SET status = 'pending', attempts = attempts + 1, updated_at = $2
 WHERE id = $1 AND status <> 'delivered';`
	return r.update(ctx, tx, q, id, now)
}

func (r *deliveryRepo) MarkDelivered(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `
UPDATE deliveries
   SET status = 'delivered', last_error = '', updated_at = $2, delivered_at = $2
 WHERE id = $1;`
	return r.update(ctx, tx, q, id, at)
}

func (r *deliveryRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, reason string, now time.Time) error {
	const q = `
UPDATE deliveries
   SET status = 'failed', last_error = $3, updated_at = $2
 WHERE id = $1 AND status <> 'delivered';`
	return r.update(ctx, tx, q, id, now, reason)
}

func (r *deliveryRepo) MarkAttemptFailed(ctx context.Context, tx repository.Tx, id string, reason string, now time.Time) error {
	const q = `
UPDATE deliveries
   SET status = 'failed', attempts = attempts + 1, last_error = $3, updated_at = $2
 WHERE id = $1 AND status <> 'delivered';`
	return r.update(ctx, tx, q, id, now, reason)
}

func (r *deliveryRepo) update(ctx context.Context, tx repository.Tx, q string, args ...interface{}) error {
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *deliveryRepo) ListRetryable(ctx context.Context, tx repository.Tx, maxAttempts int, staleBefore time.Time, limit int) ([]*model.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + deliveryColumns + `
  FROM deliveries
 WHERE attempts < $1
   AND (status = 'failed' OR (status = 'pending' AND updated_at < $2))
 ORDER BY updated_at ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, maxAttempts, staleBefore, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.DeliveryRecord
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*model.DeliveryRecord, error) {
	var (
		d          model.DeliveryRecord
		pt, status string
	)
	if err := row.Scan(&d.ID, &d.SubscriberID, &d.EntitlementID, &pt, &d.Source, &d.PackOrItemID,
		&status, &d.Attempts, &d.LastError, &d.CreatedAt, &d.UpdatedAt, &d.DeliveredAt); err != nil {
		return nil, mapReadErr(err)
	}
	d.ProductType = model.ProductType(pt)
	d.Status = model.DeliveryStatus(status)
	return &d, nil
}
