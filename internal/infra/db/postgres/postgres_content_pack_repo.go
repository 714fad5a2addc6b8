package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-premium-delivery/internal/domain"
	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
)

var _ repository.ContentPackRepository = (*contentPackRepo)(nil)

type contentPackRepo struct {
	pool *pgxpool.Pool
}

func NewContentPackRepo(pool *pgxpool.Pool) *contentPackRepo {
	return &contentPackRepo{pool: pool}
}

func (r *contentPackRepo) Create(ctx context.Context, tx repository.Tx, p *model.ContentPack) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `INSERT INTO content_packs (id, theme, status, created_at) VALUES ($1, $2, $3, $4);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Theme, string(p.Status), p.CreatedAt)
	return mapWriteErr(err)
}

// AddItems inserts all items in one batch round trip.
func (r *contentPackRepo) AddItems(ctx context.Context, tx repository.Tx, packID string, items []model.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO content_items (id, pack_id, position, kind, url, caption)
VALUES ($1, $2, $3, $4, $5, $6);`

	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(q, it.ID, packID, it.Position, string(it.Kind), it.URL, it.Caption)
	}

	var br pgx.BatchResults
	switch v := ex.(type) {
	case pgx.Tx:
		br = v.SendBatch(ctx, b)
	case *pgxpool.Conn:
		br = v.SendBatch(ctx, b)
	case *pgxpool.Pool:
		br = v.SendBatch(ctx, b)
	default:
		return domain.ErrInvalidExecContext
	}
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

func (r *contentPackRepo) MarkReady(ctx context.Context, tx repository.Tx, packID string) error {
	const q = `UPDATE content_packs SET status = 'ready' WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, packID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *contentPackRepo) FindLatestReady(ctx context.Context, tx repository.Tx) (*model.ContentPack, error) {
	const q = `
SELECT id, theme, status, created_at
  FROM content_packs
 WHERE status = 'ready'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.loadPack(ctx, tx, q)
}

func (r *contentPackRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ContentPack, error) {
	const q = `SELECT id, theme, status, created_at FROM content_packs WHERE id = $1;`
	return r.loadPack(ctx, tx, q, id)
}

func (r *contentPackRepo) loadPack(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.ContentPack, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		p      model.ContentPack
		status string
	)
	if err := row.Scan(&p.ID, &p.Theme, &status, &p.CreatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	p.Status = model.ContentPackStatus(status)

	items, err := r.items(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return &p, nil
}

func (r *contentPackRepo) items(ctx context.Context, tx repository.Tx, packID string) ([]model.ContentItem, error) {
	const q = `
SELECT id, pack_id, position, kind, url, caption
  FROM content_items
 WHERE pack_id = $1
 ORDER BY position ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, packID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []model.ContentItem
	for rows.Next() {
		var (
			it   model.ContentItem
			kind string
		)
		if err := rows.Scan(&it.ID, &it.PackID, &it.Position, &kind, &it.URL, &it.Caption); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		it.Kind = model.ContentKind(kind)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
