package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navid-fn/pelletradar/configs"
	"github.com/navid-fn/pelletradar/internal/app"
	"github.com/navid-fn/pelletradar/server/internal/handler"
	"github.com/navid-fn/pelletradar/server/internal/repository"
	"github.com/navid-fn/pelletradar/server/internal/router"
	"github.com/navid-fn/pelletradar/server/internal/service"
)

func main() {
	cfg := configs.AppLoad()
	logger := configs.NewLogger(cfg.LogLevel)

	inMemory := flag.Bool("memory", false, "Use in-memory storage instead of MySQL")
	publish := flag.Bool("publish-drops", true, "Publish price drops to Kafka")
	flag.Parse()

	a, err := app.New(cfg, logger, app.Options{InMemory: *inMemory, PublishDrops: *publish, Hub: true})
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	catalogRepo := repository.NewCatalogRepository(a.Catalog, a.Retailers, a.Ledger)
	catalogService := service.NewCatalogService(catalogRepo, a.Pipeline)

	routerConfig := &router.Config{
		CatalogHandler: handler.NewCatalogHandler(catalogService),
		StreamHandler:  handler.NewStreamHandler(a.Hub),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router.NewRouter(routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}
	logger.Info("API server shutdown complete")
}
