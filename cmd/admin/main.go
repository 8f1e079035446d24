package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plans-admin/internal/config"
	"plans-admin/internal/domain/ports/repository"
	"plans-admin/internal/infra/db/memory"
	pg "plans-admin/internal/infra/db/postgres"
	"plans-admin/internal/infra/i18n"
	"plans-admin/internal/infra/logging"
	"plans-admin/internal/infra/metrics"
	red "plans-admin/internal/infra/redis"
	"plans-admin/internal/infra/web"
	"plans-admin/internal/usecase"

	"github.com/rs/zerolog"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, sample plans)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("admin panel stopped")
	}
}

// run owns every resource the panel opens, so their deferred closes run
// before main exits on error.
func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Redis (optional) ----
	var redisClient red.RedisClient
	if cfg.Redis.URL != "" {
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer c.Close()
		redisClient = c
	}

	// ---- Plan source ----
	var (
		plans repository.PlanRepository
		tm    repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		plans = pg.NewPlanRepo(pool)
		tm = pg.NewTxManager(pool)
		logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("plans stored in postgres")

		if redisClient != nil {
			plans, err = pg.NewCachedPlanRepo(ctx, plans, redisClient, cfg.Redis.TTL, logger)
			if err != nil {
				return err
			}
			logger.Info().Dur("ttl", cfg.Redis.TTL).Msg("plan cache enabled")
		}
	} else {
		// The in-memory source is process-local and never cached: Redis
		// outlives the process and would serve another run's plans.
		var seed = memory.SamplePlans()
		if !cfg.Runtime.Dev {
			seed = nil
		}
		plans = memory.NewPlanRepo(seed...)
		tm = memory.TxManager{}
		logger.Warn().Int("seeded", len(seed)).Msg("database.url empty; plans kept in memory")
	}

	var limiter web.LoginLimiter
	if redisClient != nil {
		limiter = red.NewRateLimiter(redisClient)
		logger.Info().Int("per_minute", cfg.Admin.LoginLimit).Msg("login limiter enabled")
	}

	// ---- Use cases ----
	planUC := usecase.NewPlanUseCase(plans, tm, usecase.PlanListOptions{
		PageSize:   cfg.Admin.PageSize,
		WindowSize: cfg.Admin.WindowSize,
	}, logger)

	// ---- HTTP ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Admin.Lang)
	if err != nil {
		return fmt.Errorf("i18n %q: %w", cfg.Admin.Lang, err)
	}
	auth := web.NewAuthManager(
		cfg.Admin.JWTSecret,
		cfg.Admin.APIKey,
		cfg.Admin.SecureCookie,
		cfg.Admin.CookieDomain,
		cfg.Admin.SessionTTL,
	)
	srv := web.NewServer(planUC, auth, limiter, web.Options{
		LoginLimit:     cfg.Admin.LoginLimit,
		RequestTimeout: cfg.Admin.RequestTimeout,
		Translator:     tr,
	}, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin panel listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return runErr
}
