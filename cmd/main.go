package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marinaops/boatcare/internal/config"
	"github.com/marinaops/boatcare/internal/db"
	"github.com/marinaops/boatcare/internal/httpapi"
	"github.com/marinaops/boatcare/internal/model"
	"github.com/marinaops/boatcare/internal/otelx"
	"github.com/marinaops/boatcare/internal/outbox"
	"github.com/marinaops/boatcare/internal/repository"
	"github.com/marinaops/boatcare/internal/resolver"
	"github.com/marinaops/boatcare/internal/scheduler"
)

func main() {
	appCfg := config.LoadAppConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("service", appCfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Tracing.
	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(appCfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// 2. Database.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		logger.Error("load db config", "err", err)
		os.Exit(1)
	}
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		logger.Error("init db", "err", err)
		os.Exit(1)
	}

	// 3. Migrations.
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Error("auto migrate", "err", err)
		os.Exit(1)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Error("sql DB", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// 4. Repositories.
	directoryRepo := repository.NewGormDirectoryRepository(gormDB)
	requestRepo := repository.NewGormRequestRepository(gormDB)
	appointmentRepo := repository.NewGormAppointmentRepository(gormDB)
	events := outbox.NewRepository()

	// 5. Core decision components.
	providerResolver := resolver.New(directoryRepo)
	appointmentScheduler := scheduler.New(gormDB, events, logger)

	// 6. Outbox publisher.
	publisher := outbox.NewPublisher(gormDB, events, logger, outbox.PublisherConfig{
		Brokers: appCfg.KafkaBrokers,
	})
	go publisher.Run(ctx)

	// 7. HTTP surface.
	handler := httpapi.NewHandler(
		gormDB,
		providerResolver,
		appointmentScheduler,
		requestRepo,
		appointmentRepo,
		events,
		logger,
	)

	srv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(handler.Routes(), "boatcare-core"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("core listening", "addr", appCfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "err", err)
			stop()
		}
	}()

	// 8. Graceful shutdown on signal.
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
}
