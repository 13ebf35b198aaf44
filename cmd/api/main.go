package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixhub/fixhub-backend/internal/api"
	"github.com/fixhub/fixhub-backend/internal/auth"
	"github.com/fixhub/fixhub-backend/internal/cache"
	"github.com/fixhub/fixhub-backend/internal/config"
	"github.com/fixhub/fixhub-backend/internal/db"
	"github.com/fixhub/fixhub-backend/internal/logger"
	"github.com/fixhub/fixhub-backend/internal/metrics"
	"github.com/fixhub/fixhub-backend/internal/middleware"
	"github.com/fixhub/fixhub-backend/internal/payments/chapa"
	"github.com/fixhub/fixhub-backend/internal/repository/postgres"
	"github.com/fixhub/fixhub-backend/internal/services"
	"github.com/fixhub/fixhub-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") != "false" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)

	jobs := worker.NewPool(4)
	defer jobs.Stop()

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefreshSecret, 15*time.Minute, 7*24*time.Hour)

	var searchCache services.SearchCache
	if cfg.RedisAddr != "" {
		searchCache = cache.NewSearch(cfg.RedisAddr, 30*time.Second)
	}

	userSvc := services.NewUserService(repos.Users, tm)
	ledgerSvc := services.NewLedgerService(repos.Users)
	directorySvc := services.NewDirectoryService(repos.Users, searchCache)
	lifecycleSvc := services.NewLifecycleService(repos.Requests, repos.Users, repos.Reviews, ledgerSvc, repos.AuditLogs)
	gateway := chapa.New(cfg.ChapaBaseURL, cfg.ChapaAPIKey)
	reconcilerSvc := services.NewReconcilerService(
		repos.Transactions, repos.Users, ledgerSvc, gateway, jobs,
		repos.AuditLogs, log, cfg.CallbackBaseURL,
	)

	go reconcilerSvc.Run(ctx, cfg.SweepInterval)

	handler := api.NewRouter(api.RouterDeps{
		Cfg:           cfg,
		Auth:          middleware.NewAuthMiddleware(tm),
		UserSvc:       userSvc,
		DirectorySvc:  directorySvc,
		LifecycleSvc:  lifecycleSvc,
		LedgerSvc:     ledgerSvc,
		ReconcilerSvc: reconcilerSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http server listening", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}
