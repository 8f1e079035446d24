package repository

import (
	"context"

	"plans-admin/internal/domain/model"
)

// PlanRepository is the port for plan persistence. It is the data source the
// plans page reads from; in-memory, Postgres and cached implementations are
// interchangeable behind it.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	// List returns plans ordered by id, starting at offset.
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.Plan, error)
	Count(ctx context.Context, tx Tx) (int, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
