package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	grpcapi "virtual-secretary/internal/api/grpc"
	"virtual-secretary/internal/app"
	"virtual-secretary/internal/config"
	httpapi "virtual-secretary/internal/http"
	"virtual-secretary/internal/observability"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}
	logger := application.Logger

	metricsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, prometheus.DefaultGatherer, application.Ready, logger)
	metricsServer.Start()

	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to listen")
	}
	grpcServer := grpcapi.New(application.Metrics, logger)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("grpc serve failed")
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      httpapi.NewRouter(application),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start application")
	}
	grpcServer.SetServing(true)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	grpcServer.SetServing(false)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	grpcServer.GracefulStop()
	application.Shutdown()
	_ = metricsServer.Shutdown(shutdownCtx)
}
