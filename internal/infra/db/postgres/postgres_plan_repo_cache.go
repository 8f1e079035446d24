package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/metrics"
	red "plans-admin/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

const planListVersionKey = "plans:ver"

// planRepoCacheDecorator is a read-through Redis cache in front of any
// PlanRepository. Page and count entries are keyed by a list version that
// every write bumps, so a single INCR invalidates all cached pages.
// Calls made inside a transaction bypass the cache.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger,
	}
}

// NewCachedPlanRepo wraps inner with the cache and starts a new list
// version, so pages cached by an earlier process or against an earlier
// database state are never served.
func NewCachedPlanRepo(ctx context.Context, inner repository.PlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) (repository.PlanRepository, error) {
	if err := InvalidatePlanLists(ctx, cache); err != nil {
		return nil, fmt.Errorf("reset plan cache: %w", err)
	}
	return NewPlanRepoCacheDecorator(inner, cache, ttl, logger), nil
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := fmt.Sprintf("plan:%s", id)
	var plan model.Plan
	if d.lookup(ctx, "plan", key, &plan) {
		return &plan, nil
	}
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, p)
	return p, nil
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Plan, error) {
	if tx != nil {
		return d.inner.List(ctx, tx, offset, limit)
	}
	key := fmt.Sprintf("plans:v%s:page:%d:%d", d.version(ctx), offset, limit)
	var plans []*model.Plan
	if d.lookup(ctx, "plan_page", key, &plans) {
		return plans, nil
	}
	plans, err := d.inner.List(ctx, tx, offset, limit)
	if err != nil {
		return nil, err
	}
	d.store(ctx, key, plans)
	return plans, nil
}

func (d *planRepoCacheDecorator) Count(ctx context.Context, tx repository.Tx) (int, error) {
	if tx != nil {
		return d.inner.Count(ctx, tx)
	}
	key := fmt.Sprintf("plans:v%s:count", d.version(ctx))
	var n int
	if d.lookup(ctx, "plan_count", key, &n) {
		return n, nil
	}
	n, err := d.inner.Count(ctx, tx)
	if err != nil {
		return 0, err
	}
	d.store(ctx, key, n)
	return n, nil
}

// Writes go to the inner repository first. Invalidation waits for the
// commit: a reader between the write and the commit still sees the old row
// and would cache it under the new version.
func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Save(ctx, tx, plan); err != nil {
		return err
	}
	id := plan.ID
	repository.AfterCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, id) })
	return nil
}

func (d *planRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.Delete(ctx, tx, id); err != nil {
		return err
	}
	repository.AfterCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, id) })
	return nil
}

func (d *planRepoCacheDecorator) version(ctx context.Context) string {
	v, err := d.cache.Get(ctx, planListVersionKey)
	if err != nil {
		return "0"
	}
	return v
}

func (d *planRepoCacheDecorator) lookup(ctx context.Context, cacheName, key string, dst any) bool {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if json.Unmarshal([]byte(val), dst) == nil {
			metrics.IncCacheRequest(cacheName, "hit")
			return true
		}
		d.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case errors.Is(err, red.Nil):
	default:
		metrics.IncCacheRequest(cacheName, "error")
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
		return false
	}
	metrics.IncCacheRequest(cacheName, "miss")
	return false
}

func (d *planRepoCacheDecorator) store(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
	}
}

func (d *planRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, fmt.Sprintf("plan:%s", id)); err != nil {
		d.log.Warn().Err(err).Str("plan_id", id).Msg("plan cache invalidation failed")
	}
	if _, err := d.cache.Incr(ctx, planListVersionKey); err != nil {
		d.log.Warn().Err(err).Msg("plan list version bump failed")
	}
}

// InvalidatePlanLists drops every cached page and count by bumping the list
// version. Used after bulk writes that bypass the decorator.
func InvalidatePlanLists(ctx context.Context, cache red.RedisClient) error {
	_, err := cache.Incr(ctx, planListVersionKey)
	return err
}
