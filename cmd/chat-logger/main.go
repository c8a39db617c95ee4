package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"twitch-ws-irc/config"
	"twitch-ws-irc/service"
	"twitch-ws-irc/storage"
	"twitch-ws-irc/telemetry"
	"twitch-ws-irc/twitch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	telemetry.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		srv := startMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	batcher := storage.NewBatcher(ctx, pool, storage.BatchConfig{
		MaxBatch:      cfg.Batch.MaxBatch,
		FlushEvery:    cfg.Batch.FlushEvery,
		ChanBuffer:    cfg.Batch.ChanBuffer,
		StatsLogEvery: cfg.Batch.StatsLogEvery,
		FlushTimeout:  cfg.Batch.FlushTimeout,
	}, logger.Named("batcher"))

	handler := service.NewHandler(batcher, logger.Named("handler"))
	client := twitch.NewClient(cfg.Twitch, handler, logger.Named("twitch"))
	srv := service.New(client)

	logger.Info("starting", zap.String("nick", cfg.Twitch.Username), zap.Strings("channels", cfg.Twitch.Channels))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service run failed", zap.Error(err))
	}

	logger.Info("shutting down...")
	cancel()
	<-batcher.Done()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func startMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv
}
