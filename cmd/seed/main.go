package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"plans-admin/internal/config"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/db/memory"
	pg "plans-admin/internal/infra/db/postgres"
	"plans-admin/internal/infra/logging"
	red "plans-admin/internal/infra/redis"
	"plans-admin/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	extra := flag.Int("n", 0, "additional numbered plans to create, for paging through a long list")
	reset := flag.Bool("reset", false, "delete all plans before seeding")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatalf("database.url is empty; nothing to seed")
	}

	if err := run(cfg, *extra, *reset); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func run(cfg *config.Config, extra int, reset bool) error {
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var cache red.RedisClient
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		cache = c
	}

	if reset {
		if _, err := pool.Exec(ctx, `TRUNCATE plans`); err != nil {
			return fmt.Errorf("truncate plans: %w", err)
		}
		fmt.Println("plans table wiped.")
	}

	planRepo := pg.NewPlanRepo(pool)
	s := &seeder{
		plans: planRepo,
		uc: usecase.NewPlanUseCase(planRepo, pg.NewTxManager(pool), usecase.PlanListOptions{
			PageSize: cfg.Admin.PageSize,
		}, logger),
		cache: cache,
		out:   os.Stdout,
	}
	return s.seed(ctx, extra, reset)
}

// seeder writes plans straight to the database, so the running panel's
// cache has to be invalidated once the writes are done.
type seeder struct {
	plans repository.PlanRepository
	uc    usecase.PlanUseCase
	cache red.RedisClient // nil when Redis is not configured
	out   io.Writer
}

func (s *seeder) seed(ctx context.Context, extra int, wiped bool) error {
	// If plans already exist, do nothing
	n, err := s.plans.Count(ctx, repository.NoTX)
	if err != nil {
		return fmt.Errorf("count plans: %w", err)
	}
	if n > 0 {
		fmt.Fprintf(s.out, "%d plans already present. No changes.\n", n)
		if wiped {
			s.invalidate(ctx)
		}
		return nil
	}

	for _, p := range memory.SamplePlans() {
		created, err := s.uc.Create(ctx, p.Name, p.Active)
		if err != nil {
			return fmt.Errorf("create plan %q: %w", p.Name, err)
		}
		fmt.Fprintf(s.out, "seeded: %s (id=%s, status=%s)\n", created.Name, created.ID, created.StatusLabel())
	}
	for i := 1; i <= extra; i++ {
		if _, err := s.uc.Create(ctx, fmt.Sprintf("Plan %03d", i), i%4 != 0); err != nil {
			return fmt.Errorf("create plan %d: %w", i, err)
		}
	}
	if extra > 0 {
		fmt.Fprintf(s.out, "seeded %d numbered plans.\n", extra)
	}
	s.invalidate(ctx)

	fmt.Fprintln(s.out, "✅ Seeding complete.")
	return nil
}

func (s *seeder) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := pg.InvalidatePlanLists(ctx, s.cache); err != nil {
		fmt.Fprintf(s.out, "WARNING: could not invalidate plan cache: %v\n", err)
	}
}
