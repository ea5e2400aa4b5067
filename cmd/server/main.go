package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/cbledger/internal/adapter/http"
	"github.com/iho/cbledger/internal/adapter/http/handler"
	"github.com/iho/cbledger/internal/adapter/http/middleware"
	memoryRepo "github.com/iho/cbledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/cbledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cbledger/internal/adapter/repository/redis"
	"github.com/iho/cbledger/internal/infrastructure/config"
	"github.com/iho/cbledger/internal/infrastructure/logger"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
	"github.com/iho/cbledger/internal/infrastructure/postgres"
	"github.com/iho/cbledger/internal/infrastructure/redis"
	"github.com/iho/cbledger/internal/infrastructure/scheduler"
	"github.com/iho/cbledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(log.WithContext(ctx), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	m := metrics.New()

	st, err := openStorage(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.RedisURL != "" {
		if err := st.attachRedis(ctx, cfg, log); err != nil {
			return err
		}
	}

	app := newApp(cfg, log, st, m)

	if cfg.RateLimitRPS > 0 {
		go app.rateLimiter.RunCleanup(ctx, 10*time.Minute)
	}

	if cfg.ReconcileEnabled() {
		sched := scheduler.New(ctx, log, time.Minute)
		if err := sched.Add("reconcile", cfg.ReconcileCron, reconcileJob(app.reconciliation, cfg.ReconcileYear, time.Now)); err != nil {
			return err
		}

		sched.Start()
		defer sched.Stop()
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      app.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("store", cfg.StoreDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")

	return nil
}

// storage bundles the repositories of the configured driver.
type storage struct {
	txManager   usecase.TransactionManager
	records     usecase.RecordRepository
	pools       usecase.PoolRepository
	routes      usecase.RouteRepository
	retrier     usecase.Retrier
	cache       usecase.Cache
	idempotency usecase.IdempotencyStore
	checks      map[string]handler.HealthCheck
	closers     []func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*storage, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return nil, err
		}

		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		log.Info().Msg("connected to postgres")

		return &storage{
			txManager: postgresRepo.NewTxManager(pool),
			records:   postgresRepo.NewRecordRepository(pool),
			pools:     postgresRepo.NewPoolRepository(pool),
			routes:    postgresRepo.NewRouteRepository(pool),
			retrier:   postgresRepo.NewRetrier(m),
			checks:    map[string]handler.HealthCheck{"postgres": pool.Ping},
			closers:   []func(){pool.Close},
		}, nil
	default:
		s := memoryRepo.NewStore()
		log.Warn().Msg("using in-memory store; balances are lost on restart")

		return &storage{
			txManager: memoryRepo.NewTxManager(s),
			records:   memoryRepo.NewRecordRepository(s),
			pools:     memoryRepo.NewPoolRepository(s),
			routes:    memoryRepo.NewRouteRepository(s),
			checks:    map[string]handler.HealthCheck{},
		}, nil
	}
}

func (s *storage) attachRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info().Msg("connected to redis")

	s.cache = redisRepo.NewCache(client)
	s.idempotency = redisRepo.NewIdempotencyStore(client)
	s.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	s.closers = append(s.closers, func() { _ = client.Close() })

	return nil
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type app struct {
	router         http.Handler
	reconciliation *usecase.ReconciliationUseCase
	rateLimiter    *middleware.RateLimiter
}

func newApp(cfg *config.Config, log zerolog.Logger, st *storage, m *metrics.Metrics) *app {
	store := usecase.NewBalanceStore(st.txManager, st.records, st.retrier, st.cache, m)

	complianceUC := usecase.NewComplianceUseCase(store, st.routes, st.cache, cfg.CacheTTL, m)
	bankingUC := usecase.NewBankingUseCase(store, m)
	poolingUC := usecase.NewPoolingUseCase(store, st.pools, postgresRepo.NewULIDGenerator(), m)
	routeUC := usecase.NewRouteUseCase(st.routes)
	reconciliationUC := usecase.NewReconciliationUseCase(store, st.pools, m)

	a := &app{reconciliation: reconciliationUC}

	routerCfg := httpAdapter.RouterConfig{
		Logger:            log,
		ComplianceHandler: handler.NewComplianceHandler(complianceUC, reconciliationUC),
		BankingHandler:    handler.NewBankingHandler(bankingUC),
		PoolHandler:       handler.NewPoolHandler(poolingUC),
		RouteHandler:      handler.NewRouteHandler(routeUC),
		HealthHandler:     handler.NewHealthHandler(st.checks),
		IdempotencyStore:  st.idempotency,
		IdempotencyTTL:    cfg.IdempotencyTTL,
	}

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.router = httpAdapter.NewRouter(routerCfg)

	return a
}

// reconcileJob checks the configured year, or the current one when year is 0.
func reconcileJob(reconciler handler.Reconciler, year int, now func() time.Time) scheduler.Job {
	return func(ctx context.Context) error {
		target := year
		if target == 0 {
			target = now().Year()
		}

		report, err := reconciler.ReconcileYear(ctx, target)
		if err != nil {
			return fmt.Errorf("reconcile %d: %w", target, err)
		}

		event := zerolog.Ctx(ctx).Info()
		if !report.Consistent() {
			event = zerolog.Ctx(ctx).Error()
		}

		event.
			Int("year", target).
			Int("records", report.Records).
			Int("pools", report.Pools).
			Int("discrepancies", len(report.Discrepancies)).
			Msg("ledger reconciled")

		return nil
	}
}
