//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-premium-delivery/internal/domain/model"
	"telegram-premium-delivery/internal/domain/ports/repository"
	red "telegram-premium-delivery/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPackRepo mocks the database repository that the pack decorator wraps.
type mockInnerPackRepo struct {
	CreateFunc          func(ctx context.Context, tx repository.Tx, p *model.ContentPack) error
	AddItemsFunc        func(ctx context.Context, tx repository.Tx, packID string, items []model.ContentItem) error
	MarkReadyFunc       func(ctx context.Context, tx repository.Tx, packID string) error
	FindLatestReadyFunc func(ctx context.Context, tx repository.Tx) (*model.ContentPack, error)
	FindByIDFunc        func(ctx context.Context, tx repository.Tx, id string) (*model.ContentPack, error)
}

func (m *mockInnerPackRepo) Create(ctx context.Context, tx repository.Tx, p *model.ContentPack) error {
	return m.CreateFunc(ctx, tx, p)
}
func (m *mockInnerPackRepo) AddItems(ctx context.Context, tx repository.Tx, packID string, items []model.ContentItem) error {
	return m.AddItemsFunc(ctx, tx, packID, items)
}
func (m *mockInnerPackRepo) MarkReady(ctx context.Context, tx repository.Tx, packID string) error {
	return m.MarkReadyFunc(ctx, tx, packID)
}
func (m *mockInnerPackRepo) FindLatestReady(ctx context.Context, tx repository.Tx) (*model.ContentPack, error) {
	return m.FindLatestReadyFunc(ctx, tx)
}
func (m *mockInnerPackRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ContentPack, error) {
	return m.FindByIDFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Close() error { return nil }
