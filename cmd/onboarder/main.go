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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clintrovert/onboarder/internal/api/rest"
	"github.com/clintrovert/onboarder/internal/onboarding"
	"github.com/clintrovert/onboarder/internal/redmine"
	"github.com/clintrovert/onboarder/internal/roster"
	"github.com/clintrovert/onboarder/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	// Get configuration from environment
	restPort := getEnv("REST_PORT", "8080")
	dbPath := getEnv("ONBOARDER_DB", "onboarder.db")
	redmineURL := getEnv("REDMINE_URL", "")
	redmineAPIKey := getEnv("REDMINE_API_KEY", "")
	redmineTimeout := getEnv("REDMINE_TIMEOUT", "30s")

	if redmineURL == "" {
		logger.Fatal("REDMINE_URL must be set")
	}
	if redmineAPIKey == "" {
		logger.Fatal("REDMINE_API_KEY must be set")
	}

	timeout, err := time.ParseDuration(redmineTimeout)
	if err != nil {
		logger.Warn("invalid redmine timeout, using default", zap.Error(err))
		timeout = 30 * time.Second
	}

	st, err := store.Open(dbPath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	tracker := redmine.NewClient(redmineURL, redmineAPIKey, timeout, logger)
	rosterSvc := roster.NewService(st, logger)
	validator := onboarding.NewValidator(rosterSvc)
	orchestrator := onboarding.NewOrchestrator(rosterSvc, st, tracker, validator, logger)
	restHandler := rest.NewHandler(orchestrator, rosterSvc, logger)

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	restAddr := fmt.Sprintf(":%s", restPort)
	restServer := &http.Server{
		Addr:    restAddr,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server",
			zap.String("address", restAddr),
			zap.String("redmine", tracker.ServerURI()),
			zap.String("db", st.Path()),
		)
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	restServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
