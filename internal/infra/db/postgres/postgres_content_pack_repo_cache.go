package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
	"telegram-premium-delivery/internal/infra/metrics"
	red "telegram-premium-delivery/internal/infra/redis"
)

var _ repository.ContentPackRepository = (*contentPackRepoCacheDecorator)(nil)

const latestReadyPackKey = "content_pack:latest_ready"

func contentPackKey(id string) string { return "content_pack:" + id }

// contentPackRepoCacheDecorator caches pack reads hit on every purchase.
// Only ready packs are cached; building packs change under generation.
type contentPackRepoCacheDecorator struct {
	inner repository.ContentPackRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewContentPackRepoCacheDecorator(inner repository.ContentPackRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ContentPackRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	l := logger.With().Str("component", "ContentPackCache").Logger()
	return &contentPackRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func (d *contentPackRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, p *model.ContentPack) error {
	return d.inner.Create(ctx, tx, p)
}

func (d *contentPackRepoCacheDecorator) AddItems(ctx context.Context, tx repository.Tx, packID string, items []model.ContentItem) error {
	d.invalidate(ctx, contentPackKey(packID), latestReadyPackKey)
	return d.inner.AddItems(ctx, tx, packID, items)
}

func (d *contentPackRepoCacheDecorator) MarkReady(ctx context.Context, tx repository.Tx, packID string) error {
	if err := d.inner.MarkReady(ctx, tx, packID); err != nil {
		return err
	}
	d.invalidate(ctx, contentPackKey(packID), latestReadyPackKey)
	return nil
}

func (d *contentPackRepoCacheDecorator) FindLatestReady(ctx context.Context, tx repository.Tx) (*model.ContentPack, error) {
	if p, ok := d.get(ctx, "content_pack_latest", latestReadyPackKey); ok {
		return p, nil
	}
	p, err := d.inner.FindLatestReady(ctx, tx)
	if err != nil {
		return nil, err
	}
	d.put(ctx, latestReadyPackKey, p)
	return p, nil
}

func (d *contentPackRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ContentPack, error) {
	key := contentPackKey(id)
	if p, ok := d.get(ctx, "content_pack", key); ok {
		return p, nil
	}
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == model.ContentPackStatusReady {
		d.put(ctx, key, p)
	}
	return p, nil
}

func (d *contentPackRepoCacheDecorator) get(ctx context.Context, name, key string) (*model.ContentPack, bool) {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, red.Nil) {
			d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		metrics.IncCacheRequest(name, "miss")
		return nil, false
	}
	var p model.ContentPack
	if json.Unmarshal([]byte(val), &p) != nil {
		metrics.IncCacheRequest(name, "miss")
		return nil, false
	}
	metrics.IncCacheRequest(name, "hit")
	return &p, true
}

func (d *contentPackRepoCacheDecorator) put(ctx context.Context, key string, p *model.ContentPack) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (d *contentPackRepoCacheDecorator) invalidate(ctx context.Context, keys ...string) {
	if err := d.cache.Del(ctx, keys...); err != nil {
		d.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}
