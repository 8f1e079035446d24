// Package memory holds process-local repositories used in dev mode and when
// no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"plans-admin/internal/domain"
	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*PlanRepo)(nil)

// PlanRepo keeps plans in a map and serves them ordered by id. Stored plans
// are copied on the way in and out so callers never share memory with it.
type PlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.Plan
}

func NewPlanRepo(seed ...*model.Plan) *PlanRepo {
	r := &PlanRepo{plans: make(map[string]*model.Plan, len(seed))}
	for _, p := range seed {
		cp := *p
		r.plans[p.ID] = &cp
	}
	return r
}

func (r *PlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if plan.IsZero() {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *plan
	if old, ok := r.plans[plan.ID]; ok {
		cp.CreatedAt = old.CreatedAt
	}
	r.plans[plan.ID] = &cp
	return nil
}

func (r *PlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PlanRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Plan, error) {
	if offset < 0 || limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.plans))
	for id := range r.plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return []*model.Plan{}, nil
	}
	end := min(offset+limit, len(ids))
	out := make([]*model.Plan, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *r.plans[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *PlanRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plans), nil
}

func (r *PlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

// SamplePlans returns the plans the panel shows out of the box.
func SamplePlans() []*model.Plan {
	gold, _ := model.NewPlan("", "Gold", true)
	basic, _ := model.NewPlan("", "Basic", false)
	return []*model.Plan{gold, basic}
}
