package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carma-vehicle-api/internal/cache"
	"carma-vehicle-api/internal/config"
	"carma-vehicle-api/internal/database"
	"carma-vehicle-api/internal/handler"
	"carma-vehicle-api/internal/repository"
	"carma-vehicle-api/internal/retrieval"
	"carma-vehicle-api/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting carma-vehicle-api")

	cfg := config.Load()

	ctx := context.Background()
	slog.Info("connecting to listing store", "host", cfg.Database.Host, "database", cfg.Database.Name)
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to listing store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("listing store connection established")

	// Cohort cache: in-process by default, Redis-backed when configured.
	var candidateCache cache.CandidateCache = cache.NewMemory(cfg.Retrieval.CohortCacheTTL)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.Retrieval.CohortCacheTTL)
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, falling back to in-process cohort cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			slog.Info("cohort cache backed by redis", "addr", cfg.RedisAddr)
			candidateCache = redisCache
		}
	}

	listingRepo := repository.NewListingRepo(db)
	retriever := retrieval.NewRetriever(listingRepo, candidateCache)
	comparablesSvc := service.NewComparablesService(listingRepo, retriever)

	healthHandler := handler.NewHealthHandler(listingRepo)
	statsHandler := handler.NewStatsHandler(listingRepo)
	listingHandler := handler.NewListingHandler(comparablesSvc, listingRepo)
	comparablesHandler := handler.NewComparablesHandler(comparablesSvc, cfg.Retrieval.CandidateLimit)
	limiter := handler.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(limiter.Middleware)

	// CORS middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", healthHandler.Check)
	r.Get("/stats", statsHandler.Stats)
	r.Get("/top-vehicles", listingHandler.TopVehicles)
	r.Get("/listings/{id}", listingHandler.Get)
	r.Get("/listings/{id}/comparables", comparablesHandler.Get)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server started", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
