package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/cache"
	"github.com/bl0ckchained/myelinmap-sub000/internal/config"
	"github.com/bl0ckchained/myelinmap-sub000/internal/handler"
	"github.com/bl0ckchained/myelinmap-sub000/internal/httpserver"
	"github.com/bl0ckchained/myelinmap-sub000/internal/predictor"
	"github.com/bl0ckchained/myelinmap-sub000/internal/repository"
	"github.com/bl0ckchained/myelinmap-sub000/internal/service"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/db"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/mq"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/outbox"
	redisclient "github.com/bl0ckchained/myelinmap-sub000/pkg/redis"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting myelinmap API server...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("port", cfg.Server.Port),
	)

	shutdownTracing, err := otel.Init(cfg.OTel, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing()

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb, err := redisclient.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	habitRepo := repository.NewHabitRepository(dbConn, log)
	modelRepo := repository.NewModelRepository(dbConn, log)
	snapshotRepo := repository.NewSnapshotRepository(dbConn, outbox.NewRepository(dbConn), log)
	insightCache := cache.NewInsightCache(rdb, cfg.Insight.CacheTTL, log)

	svc, err := service.NewInsightService(habitRepo, modelRepo, snapshotRepo, insightCache, service.Config{
		Model: predictor.Config{
			LearningRate: cfg.Model.LearningRate,
			DropoutRate:  cfg.Model.DropoutRate,
			Epochs:       cfg.Model.Epochs,
			Seed:         cfg.Model.Seed,
		},
		CacheSize: cfg.Model.CacheSize,
	}, log)
	if err != nil {
		log.Fatal("Failed to init insight service", zap.Error(err))
	}

	router := httpserver.NewRouter(handler.NewInsightHandler(svc, publisher, log), log, dbConn, publisher)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API server gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("API server shutdown complete")
}
