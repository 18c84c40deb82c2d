package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/teamforge/internal/config"
	"github.com/dimitrije/teamforge/internal/database"
	"github.com/dimitrije/teamforge/internal/handlers"
	"github.com/dimitrije/teamforge/internal/identity"
	"github.com/dimitrije/teamforge/internal/logging"
	"github.com/dimitrije/teamforge/internal/metrics"
	"github.com/dimitrije/teamforge/internal/provisioner"
	"github.com/dimitrije/teamforge/internal/services"
	"github.com/dimitrije/teamforge/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New("teamforge", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fatal(logger, "failed to run migrations", err)
	}

	cache, err := identityCache(cfg, logger)
	if err != nil {
		fatal(logger, "failed to connect to redis", err)
	}
	defer cache.Close()

	prov, err := resourceProvisioner(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "failed to configure provisioner", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	identityService := identity.NewService(identity.NewDirectory(db), cache, cfg.IdentityCacheTTL, logger)
	repo := services.NewTeamRepository(store.New(db))
	teamService := services.NewTeamService(repo, prov, identityService, cfg.Teams, m, logger)
	defer teamService.Invites().Stop()

	if err := teamService.Invites().Restore(ctx); err != nil {
		fatal(logger, "failed to restore invite timers", err)
	}

	sweeper := services.NewSweeper(teamService.Invites(), repo, cfg.Teams.SweepInterval, m, logger)
	go sweeper.Run(ctx)

	server := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: handlers.NewRouter(handlers.RouterConfig{
			JWT:      jwtService,
			Teams:    teamService,
			Identity: identityService,
			Logger:   logger,
			Release:  cfg.IsProduction(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go serve(logger, "metrics", metricsServer)
	go serve(logger, "api", server)

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}

func serve(logger *slog.Logger, name string, srv *http.Server) {
	logger.Info("server starting", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(logger, name+" server failed", err)
	}
}

func identityCache(cfg *config.Config, logger *slog.Logger) (identity.Cache, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("identity cache in memory")
		return identity.NewMemoryCache(), nil
	}
	return identity.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
}

func resourceProvisioner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provisioner.Provisioner, error) {
	if cfg.Provisioner.URL != "" {
		return provisioner.NewClient(ctx, cfg.Provisioner), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("PROVISIONER_URL is required in production")
	}
	logger.Warn("PROVISIONER_URL not set, using in-memory provisioner")
	return provisioner.NewMemory(), nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
