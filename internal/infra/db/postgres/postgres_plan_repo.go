package postgres

import (
	"context"
	"errors"
	"fmt"

	"plans-admin/internal/domain"
	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*PlanRepo)(nil)

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

func (r *PlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO plans (id, name, active, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
  SET name   = EXCLUDED.name,
      active = EXCLUDED.active;
`
	if _, err := q.Exec(ctx, sql, plan.ID, plan.Name, plan.Active, plan.CreatedAt); err != nil {
		return fmt.Errorf("Save plan: %w", err)
	}
	return nil
}

func (r *PlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const sql = `
SELECT id, name, active, created_at
  FROM plans
 WHERE id = $1;
`
	var p model.Plan
	if err := q.QueryRow(ctx, sql, id).Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID plan: %w", err)
	}
	return &p, nil
}

func (r *PlanRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Plan, error) {
	if offset < 0 || limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const sql = `
SELECT id, name, active, created_at
  FROM plans
 ORDER BY id
OFFSET $1 LIMIT $2;
`
	rows, err := q.Query(ctx, sql, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("List plans: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Plan, 0, limit)
	for rows.Next() {
		var p model.Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PlanRepo) Count(ctx context.Context, tx repository.Tx) (int, error) {
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRow(ctx, `SELECT COUNT(1) FROM plans;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count plans: %w", err)
	}
	return n, nil
}

func (r *PlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	q, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	ct, err := q.Exec(ctx, `DELETE FROM plans WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("Delete plan: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
