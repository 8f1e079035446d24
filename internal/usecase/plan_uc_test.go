//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"plans-admin/internal/domain"
	"plans-admin/internal/domain/model"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/db/memory"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// failingPlanRepo returns err from every call.
type failingPlanRepo struct {
	repository.PlanRepository
	err error
}

func (f *failingPlanRepo) Count(ctx context.Context, tx repository.Tx) (int, error) { return 0, f.err }
func (f *failingPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	return f.err
}

func seededUC(t *testing.T, n int, opts PlanListOptions) (PlanUseCase, *memory.PlanRepo) {
	t.Helper()
	repo := memory.NewPlanRepo()
	for i := 0; i < n; i++ {
		p, _ := model.NewPlan(fmt.Sprintf("plan-%03d", i), fmt.Sprintf("Plan %d", i), i%3 != 0)
		if err := repo.Save(context.Background(), repository.NoTX, p); err != nil {
			t.Fatal(err)
		}
	}
	return NewPlanUseCase(repo, memory.TxManager{}, opts, newTestLogger()), repo
}

func TestPlanUseCase_ListPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := seededUC(t, 95, PlanListOptions{PageSize: 10, WindowSize: 5})

	t.Run("first page", func(t *testing.T) {
		page, err := uc.ListPage(ctx, 1, 1)
		if err != nil {
			t.Fatalf("ListPage returned error: %v", err)
		}
		if page.Total != 95 || len(page.Plans) != 10 {
			t.Fatalf("expected 10 of 95 plans, got %d of %d", len(page.Plans), page.Total)
		}
		if page.Pagination.LastPage != 10 {
			t.Errorf("expected 10 pages, got %d", page.Pagination.LastPage)
		}
		if page.Plans[0].ID != "plan-000" {
			t.Errorf("expected plan-000 first, got %s", page.Plans[0].ID)
		}
	})

	t.Run("last page is partial", func(t *testing.T) {
		page, err := uc.ListPage(ctx, 10, 6)
		if err != nil {
			t.Fatalf("ListPage returned error: %v", err)
		}
		if len(page.Plans) != 5 || page.Plans[0].ID != "plan-090" {
			t.Errorf("expected plans 90..94, got %d starting at %s", len(page.Plans), page.Plans[0].ID)
		}
		if !reflect.DeepEqual(page.Pagination.Window(), []int{6, 7, 8, 9, 10}) {
			t.Errorf("unexpected window %v", page.Pagination.Window())
		}
	})

	t.Run("out of range input is clamped", func(t *testing.T) {
		page, err := uc.ListPage(ctx, 99, -4)
		if err != nil {
			t.Fatalf("ListPage returned error: %v", err)
		}
		if page.Pagination.CurrentPage != 10 || page.Pagination.WindowStart != 6 {
			t.Errorf("expected page 10 window 6, got %+v", page.Pagination)
		}
	})
}

func TestPlanUseCase_ListPageEmpty(t *testing.T) {
	t.Parallel()
	uc, _ := seededUC(t, 0, PlanListOptions{})

	page, err := uc.ListPage(context.Background(), 3, 3)
	if err != nil {
		t.Fatalf("ListPage returned error: %v", err)
	}
	if len(page.Plans) != 0 || page.Pagination.CurrentPage != 1 || page.Pagination.LastPage != 1 {
		t.Errorf("expected a single empty page, got %+v", page)
	}
	if page.PageSize != 10 {
		t.Errorf("expected default page size 10, got %d", page.PageSize)
	}
}

func TestPlanUseCase_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := seededUC(t, 0, PlanListOptions{})

	plan, err := uc.Create(ctx, "  <b>Gold</b> & Co ", true)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if plan.ID == "" {
		t.Fatal("expected plan.ID to be set after Create")
	}
	if plan.Name != "Gold & Co" {
		t.Errorf("expected sanitized name %q, got %q", "Gold & Co", plan.Name)
	}

	got, err := uc.Get(ctx, plan.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Name != plan.Name || !got.Active {
		t.Errorf("unexpected plan %+v", got)
	}
}

func TestPlanUseCase_CreateInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := seededUC(t, 0, PlanListOptions{})

	long := make([]byte, maxPlanNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	for _, name := range []string{"", "   ", "<script></script>", string(long)} {
		if _, err := uc.Create(ctx, name, true); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Create(%q): expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestPlanUseCase_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := seededUC(t, 1, PlanListOptions{})

	inactive := false
	got, err := uc.Update(ctx, "plan-000", nil, &inactive)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.Active || got.Name != "Plan 0" {
		t.Errorf("expected only Active to change, got %+v", got)
	}

	name := "Renamed"
	got, err = uc.Update(ctx, "plan-000", &name, nil)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if got.Name != "Renamed" || got.Active {
		t.Errorf("expected only Name to change, got %+v", got)
	}

	if _, err := uc.Update(ctx, "missing", &name, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	empty := ""
	if _, err := uc.Update(ctx, "plan-000", &empty, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPlanUseCase_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, repo := seededUC(t, 2, PlanListOptions{})

	deleted, err := uc.Delete(ctx, "plan-001")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted.Name != "Plan 1" {
		t.Errorf("expected deleted plan to be returned, got %+v", deleted)
	}
	if n, _ := repo.Count(ctx, repository.NoTX); n != 1 {
		t.Errorf("expected 1 plan left, got %d", n)
	}
	if _, err := uc.Delete(ctx, "plan-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPlanUseCase_RepositoryErrors(t *testing.T) {
	t.Parallel()
	dbErr := errors.New("database error")
	uc := NewPlanUseCase(&failingPlanRepo{err: dbErr}, memory.TxManager{}, PlanListOptions{}, nil)

	if _, err := uc.ListPage(context.Background(), 1, 1); !errors.Is(err, dbErr) {
		t.Errorf("expected database error from ListPage, got %v", err)
	}
	if _, err := uc.Create(context.Background(), "Gold", true); !errors.Is(err, dbErr) {
		t.Errorf("expected database error from Create, got %v", err)
	}
}
