package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avdeyev/techcard-service/internal/bitrix"
	"github.com/avdeyev/techcard-service/internal/concurrency"
	"github.com/avdeyev/techcard-service/internal/config"
	"github.com/avdeyev/techcard-service/internal/event"
	"github.com/avdeyev/techcard-service/internal/handler"
	"github.com/avdeyev/techcard-service/internal/metrics"
	"github.com/avdeyev/techcard-service/internal/production"
	"github.com/avdeyev/techcard-service/internal/recipe"
	"github.com/avdeyev/techcard-service/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	initLogger(cfg)
	handler.InitValidator()

	store, err := recipe.NewFileStore(cfg.RecipesPath)
	if err != nil {
		log.Fatalf("Failed to load tech card store: %v", err)
	}

	crm := bitrix.NewClient(cfg.BitrixBaseURL, cfg.BitrixTimeout)
	locks := concurrency.NewLockManager()

	eventBus := event.NewMemoryBus()
	if err := metrics.NewEventMetricsCollector().Register(eventBus); err != nil {
		log.Fatalf("Failed to register event metrics: %v", err)
	}

	productionService := production.NewService(store, crm, crm, crm, locks, eventBus)
	stages := handler.NewStageHandler(crm, cfg.StageCacheTTL)

	srv := server.NewServer(cfg.Port, cfg.APIKey, cfg.TrustedProxies, store, productionService, stages, store, eventBus)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
