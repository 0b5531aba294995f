package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"recharge-store/config"
	"recharge-store/internal/adapter/http/handler"
	"recharge-store/internal/app"
	"recharge-store/pkg/logger"

	"github.com/go-chi/cors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Recharge Store API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Background workers
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.DeliveryWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.NotificationSvc.RunSweeper(ctx, cfg.Notification.SweepInterval)
	}()

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		handler.SetOpenAPISpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /docs")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	deps := handler.RouterDeps{
		AuthSvc:         a.AuthSvc,
		UserAdminSvc:    a.UserAdminSvc,
		LedgerSvc:       a.LedgerSvc,
		OrderSvc:        a.OrderSvc,
		PaymentSvc:      a.PaymentSvc,
		CatalogSvc:      a.CatalogSvc,
		CouponSvc:       a.CouponSvc,
		NotificationSvc: a.NotificationSvc,
		ReportingSvc:    a.ReportingSvc,
		AuditSvc:        a.AuditSvc,
		HealthCheckers:  a.HealthCheckers,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		Mode:            cfg.Server.Mode,
		Logger:          log,
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimitStore = a.RateLimitStore
	}
	router := handler.SetupRouter(deps)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", handler.HeaderIdempotencyKey},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// HTTP Server with graceful shutdown
	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()

	log.Info().Msg("Server exited")
}
