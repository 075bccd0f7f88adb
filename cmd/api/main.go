// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/config"
	"github.com/rexmccreary15-dotcom/trexai/internal/events"
	"github.com/rexmccreary15-dotcom/trexai/internal/handler"
	"github.com/rexmccreary15-dotcom/trexai/internal/middleware"
	"github.com/rexmccreary15-dotcom/trexai/internal/policy"
	"github.com/rexmccreary15-dotcom/trexai/internal/provider"
	"github.com/rexmccreary15-dotcom/trexai/internal/service"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
	"github.com/rexmccreary15-dotcom/trexai/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "trexai", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Analytics rollups and daily rate-limit windows use local midnight
	// in this zone.
	loc, err := time.LoadLocation(cfg.AnalyticsTimezone)
	if err != nil {
		log.Warn("invalid analytics timezone, falling back to UTC",
			zap.String("timezone", cfg.AnalyticsTimezone), zap.Error(err))
		loc = time.UTC
	}

	// Open the database
	st, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN, cfg.DBAutoMigrate, cfg.DBMigrationsDir)
	if err != nil {
		log.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	// Connect the optional analytics event bus
	pub, err := events.Connect(cfg.NATSURL, cfg.NATSEventSubject, log)
	if err != nil {
		log.Warn("failed to connect event bus, continuing without it", zap.Error(err))
	}
	defer pub.Close()

	// Initialize services
	dispatcher := provider.NewDispatcher(provider.NewHostedClient(cfg.HostedAPIKey, cfg.HostedBaseURL))
	analyticsSvc := service.NewAnalyticsService(st, pub, loc, cfg.HeartbeatOnline, log)
	limiter := policy.NewRateLimiter(st, loc)
	chatSvc := service.NewChatService(st, dispatcher, analyticsSvc, limiter, log)
	userSvc := service.NewUserService(st, cfg.CreatorUnlockCode, cfg.IncognitoUnlockCode, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	accountHandler := handler.NewAccountHandler(userSvc, log)
	adminHandler := handler.NewAdminHandler(userSvc, analyticsSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(nil))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.OptionalAuth(cfg.JWTSecret))

		// Anonymous-capable endpoints
		r.Post("/chat", chatHandler.Send)
		r.Post("/check-ban", accountHandler.CheckBan)
		r.Post("/heartbeat", accountHandler.Heartbeat)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", chatHandler.List)
				r.Get("/{chatID}", chatHandler.Get)
				r.Delete("/{chatID}", chatHandler.Delete)
			})

			r.Route("/unlock/{feature}", func(r chi.Router) {
				r.Get("/", accountHandler.UnlockStatus)
				r.Post("/", accountHandler.Unlock)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", accountHandler.Profile)
				r.Put("/profile", accountHandler.UpdateProfile)
				r.Get("/commands", accountHandler.Commands)
				r.Put("/commands", accountHandler.UpdateCommands)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/settings/{key}", adminHandler.GetSetting)
				r.Post("/settings/{key}", adminHandler.SetSetting)

				r.Get("/users", adminHandler.ListUsers)
				r.Get("/users/{userID}", adminHandler.GetUser)
				r.Patch("/users/{userID}", adminHandler.UpdateUser)
				r.Delete("/users/{userID}", adminHandler.DeleteUser)

				r.Get("/analytics", adminHandler.Analytics)
				r.Get("/export", adminHandler.Export)
			})
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
