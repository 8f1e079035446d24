package usecase

import (
	"context"
	"html"
	"strings"
	"unicode/utf8"

	"plans-admin/internal/domain"
	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/logging"
	"plans-admin/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

const maxPlanNameLen = 100

// PlanPage is one page of the plans table together with the page selector
// state that produced it.
type PlanPage struct {
	Plans      []*model.Plan         `json:"data"`
	Total      int                   `json:"total"`
	PageSize   int                   `json:"page_size"`
	Pagination model.PaginationState `json:"pagination"`
}

// PlanUseCase manages plans for the admin panel.
type PlanUseCase interface {
	// ListPage returns the plans on the requested page. page and windowStart
	// come from the client and are clamped, never rejected.
	ListPage(ctx context.Context, page, windowStart int) (*PlanPage, error)

	Get(ctx context.Context, id string) (*model.Plan, error)

	Create(ctx context.Context, name string, active bool) (*model.Plan, error)

	// Update changes the given fields of an existing plan. Nil means "no change".
	Update(ctx context.Context, id string, name *string, active *bool) (*model.Plan, error)

	// Delete removes a plan and returns what was removed.
	Delete(ctx context.Context, id string) (*model.Plan, error)
}

var _ PlanUseCase = (*planUC)(nil)

type PlanListOptions struct {
	PageSize   int
	WindowSize int
}

type planUC struct {
	plans    repository.PlanRepository
	tm       repository.TransactionManager
	opts     PlanListOptions
	sanitize *bluemonday.Policy
	log      *zerolog.Logger
}

func NewPlanUseCase(
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	opts PlanListOptions,
	logger *zerolog.Logger,
) PlanUseCase {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = model.DefaultWindowSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &planUC{
		plans:    plans,
		tm:       tm,
		opts:     opts,
		sanitize: bluemonday.StrictPolicy(),
		log:      logger,
	}
}

func (uc *planUC) ListPage(ctx context.Context, page, windowStart int) (*PlanPage, error) {
	defer logging.TraceDuration(uc.log, "PlanUC.ListPage")()

	total, err := uc.plans.Count(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	last := model.LastPageFor(total, uc.opts.PageSize)
	state := model.RestorePagination(page, windowStart, last, uc.opts.WindowSize)

	plans, err := uc.plans.List(ctx, repository.NoTX, state.Offset(uc.opts.PageSize), uc.opts.PageSize)
	if err != nil {
		return nil, err
	}
	metrics.IncPlanPageView()
	return &PlanPage{
		Plans:      plans,
		Total:      total,
		PageSize:   uc.opts.PageSize,
		Pagination: state,
	}, nil
}

func (uc *planUC) Get(ctx context.Context, id string) (*model.Plan, error) {
	defer logging.TraceDuration(uc.log, "PlanUC.Get")()
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.plans.FindByID(ctx, repository.NoTX, id)
}

func (uc *planUC) Create(ctx context.Context, name string, active bool) (plan *model.Plan, err error) {
	defer logging.TraceDuration(uc.log, "PlanUC.Create")()
	defer func() { metrics.IncPlanMutation("create", err) }()

	clean, err := uc.cleanName(name)
	if err != nil {
		return nil, err
	}
	plan, err = model.NewPlan("", clean, active)
	if err != nil {
		return nil, err
	}
	if err := uc.plans.Save(ctx, repository.NoTX, plan); err != nil {
		uc.log.Error().Err(err).Msg("failed to save plan")
		return nil, err
	}
	uc.log.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Msg("plan created")
	return plan, nil
}

func (uc *planUC) Update(ctx context.Context, id string, name *string, active *bool) (plan *model.Plan, err error) {
	defer logging.TraceDuration(uc.log, "PlanUC.Update")()
	defer func() { metrics.IncPlanMutation("update", err) }()

	var clean string
	if name != nil {
		if clean, err = uc.cleanName(*name); err != nil {
			return nil, err
		}
	}

	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err = uc.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if name != nil {
			p.Name = clean
		}
		if active != nil {
			p.Active = *active
		}
		if err := uc.plans.Save(ctx, tx, p); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", plan.ID).Msg("plan updated")
	return plan, nil
}

func (uc *planUC) Delete(ctx context.Context, id string) (plan *model.Plan, err error) {
	defer logging.TraceDuration(uc.log, "PlanUC.Delete")()
	defer func() { metrics.IncPlanMutation("delete", err) }()

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.plans.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := uc.plans.Delete(ctx, tx, id); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", plan.ID).Str("name", plan.Name).Msg("plan deleted")
	return plan, nil
}

// cleanName strips markup and surrounding space. Entities produced by the
// sanitizer are decoded again because templates escape on output.
func (uc *planUC) cleanName(name string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(uc.sanitize.Sanitize(name)))
	if clean == "" || utf8.RuneCountInString(clean) > maxPlanNameLen {
		return "", domain.ErrInvalidArgument
	}
	return clean, nil
}
