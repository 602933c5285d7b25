package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/careops/visitflow/internal/activity"
	"github.com/careops/visitflow/internal/adapters/records"
	"github.com/careops/visitflow/internal/adapters/records/emrapi"
	"github.com/careops/visitflow/internal/patient"
	"github.com/careops/visitflow/internal/shared/config"
	"github.com/careops/visitflow/internal/shared/logging"
	"github.com/careops/visitflow/internal/shared/metrics"
	secmiddleware "github.com/careops/visitflow/internal/shared/middleware"
	"github.com/careops/visitflow/internal/summary"
	"github.com/careops/visitflow/internal/visit"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	Records  records.Adapter
	Recorder activity.Recorder
	Store    *activity.StoreRecorder
	Logger   zerolog.Logger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	app := &App{Config: cfg, Logger: logger}

	// Records backend client. Everything this service does goes
	// through it, so a bad configuration is fatal.
	emrClient, err := emrapi.New(emrapi.Config{
		BaseURL:              cfg.Records.BaseURL,
		Timeout:              cfg.Records.Timeout,
		RetryAttempts:        cfg.Records.RetryAttempts,
		RetryDelay:           cfg.Records.RetryDelay,
		MaxRequestsPerSecond: cfg.Records.RequestsPerSecond,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("records backend client init failed")
	}
	app.Records = emrClient

	// Activity trail (optional - falls back to in-memory)
	if cfg.Activity.Enabled {
		store, err := activity.NewStoreRecorder(cfg.Activity.StoreURL, cfg.Activity.Stream)
		if err != nil {
			logger.Warn().Err(err).Msg("activity store not available, using in-memory trail")
			app.Recorder = activity.NewMemoryRecorder()
		} else {
			if err := store.Initialize(ctx); err != nil {
				logger.Warn().Err(err).Msg("activity store initialization failed")
			}
			app.Store = store
			app.Recorder = store
			defer store.Close()
			logger.Info().Str("stream", cfg.Activity.Stream).Msg("activity store initialized")
		}
	} else {
		app.Recorder = activity.NewMemoryRecorder()
		logger.Info().Msg("activity trail running in-memory")
	}

	visits := visit.NewService(app.Records, app.Recorder, logger)
	summaries := summary.NewService(app.Records, summary.Config{
		FetchTimeout:  cfg.Aggregation.FetchTimeout,
		MaxConcurrent: cfg.Aggregation.MaxConcurrent,
	}, logger)

	patientHandler := patient.NewHandler(app.Records, visits, summaries, app.Recorder)
	activityHandler := activity.NewHandler(app.Recorder)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.RequestLogger(logger))
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.InputSanitizer)

	// Per-IP rate limiting (optional)
	if cfg.Server.RateLimitRPS > 0 {
		ipLimiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		r.Use(ipLimiter.Middleware)
		logger.Info().Int("rps", cfg.Server.RateLimitRPS).Msg("per-IP rate limiting enabled")
	}

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", patientHandler.Routes())
		r.Mount("/activity", activityHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	logger.Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("records_backend", cfg.Records.BaseURL).
		Str("records_source", app.Records.SourceSystem()).
		Bool("activity_store", app.Store != nil).
		Msg("visitflow started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}

	<-done
	logger.Info().Msg("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "CareOps VisitFlow",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		// Check the records backend
		if err := app.Records.Health(r.Context()); err != nil {
			checks["records_backend"] = "not ready: " + err.Error()
		} else {
			checks["records_backend"] = "ready"
		}

		// Check the activity store
		if app.Store != nil {
			if err := app.Store.Health(r.Context()); err != nil {
				checks["activity_store"] = "not ready: " + err.Error()
			} else {
				checks["activity_store"] = "ready"
			}
		} else {
			checks["activity_store"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
