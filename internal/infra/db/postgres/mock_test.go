//go:build !integration

package postgres

import (
	"context"
	"strconv"
	"sync"
	"time"

	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
	red "plans-admin/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, plan *model.Plan) error
	DeleteFunc   func(ctx context.Context, tx repository.Tx, id string) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	ListFunc     func(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Plan, error)
	CountFunc    func(ctx context.Context, tx repository.Tx) (int, error)
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	return m.SaveFunc(ctx, tx, plan)
}
func (m *mockInnerPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeleteFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPlanRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Plan, error) {
	return m.ListFunc(ctx, tx, offset, limit)
}
func (m *mockInnerPlanRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	return m.CountFunc(ctx, tx)
}

// memRedis is a map-backed RedisClient with optional error injection.
type memRedis struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	deleted []string
}

var _ red.RedisClient = (*memRedis)(nil)

func newMemRedis() *memRedis { return &memRedis{data: map[string]string{}} }

func (m *memRedis) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", red.Nil
	}
	return v, nil
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}

func (m *memRedis) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *memRedis) Ping(ctx context.Context) error { return nil }
func (m *memRedis) Close() error                   { return nil }

