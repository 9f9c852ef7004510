package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TokenBridge/internal/api"
	"TokenBridge/internal/config"
	"TokenBridge/internal/logging"
	"TokenBridge/internal/metrics"
	"TokenBridge/internal/page"
	"TokenBridge/internal/token"
)

func main() {
	started := time.Now()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := logging.New(cfg.LogLevel, cfg.LogRedact)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting token bridge",
		logging.Environment(os.Environ(), cfg.LogRedact),
	)

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Token Client
	// ------------------------------------------------
	tokens := token.NewClient(cfg.TokenBaseURL(), cfg.BearerToken, cfg.OutboundTimeout, logger)
	tokens.LogPayload = cfg.LogTokenPayload

	// ------------------------------------------------
	// Template Cache
	// ------------------------------------------------
	fetcher := page.NewFetcher(cfg.TemplateURL(), cfg.OutboundTimeout)

	policy := page.RefreshPolicy{
		Threshold:     cfg.RefreshThreshold(),
		RefreshWithin: cfg.TemplateRefreshMode == config.RefreshWithin,
	}
	if policy.RefreshWithin {
		logger.Warn("template cache refetches while younger than the threshold; set TEMPLATE_REFRESH_MODE=after for expiry semantics",
			zap.Duration("threshold", policy.Threshold),
		)
	}

	templates := page.NewCache(fetcher.Fetch, policy, logger)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Tokens:       tokens,
		Templates:    templates,
		DefaultEmail: cfg.DefaultEmail,
		Log:          logger,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/healthz", api.Health(started))
	apiMux.HandleFunc("/", apiHandler.ServeToken)

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.WithRequestID(apiMux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
