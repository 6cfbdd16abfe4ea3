package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	contracts "github.com/bl0ckchained/myelinmap-sub000/contracts/mq"
	"github.com/bl0ckchained/myelinmap-sub000/internal/cache"
	"github.com/bl0ckchained/myelinmap-sub000/internal/config"
	"github.com/bl0ckchained/myelinmap-sub000/internal/httpserver"
	"github.com/bl0ckchained/myelinmap-sub000/internal/mqhandler"
	"github.com/bl0ckchained/myelinmap-sub000/internal/predictor"
	"github.com/bl0ckchained/myelinmap-sub000/internal/repository"
	"github.com/bl0ckchained/myelinmap-sub000/internal/service"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/db"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/mq"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/outbox"
	redisclient "github.com/bl0ckchained/myelinmap-sub000/pkg/redis"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/util"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting myelinmap worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Duration("retrain_interval", cfg.Insight.RetrainInterval),
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

	outboxRepo := outbox.NewRepository(dbConn)
	svc, err := service.NewInsightService(
		repository.NewHabitRepository(dbConn, log),
		repository.NewModelRepository(dbConn, log),
		repository.NewSnapshotRepository(dbConn, outboxRepo, log),
		cache.NewInsightCache(rdb, cfg.Insight.CacheTTL, log),
		service.Config{
			Model: predictor.Config{
				LearningRate: cfg.Model.LearningRate,
				DropoutRate:  cfg.Model.DropoutRate,
				Epochs:       cfg.Model.Epochs,
				Seed:         cfg.Model.Seed,
			},
			CacheSize: cfg.Model.CacheSize,
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to init insight service", zap.Error(err))
	}

	deduper := util.NewDeduper(rdb, cfg.Insight.DedupTTL, log)
	activityHandler := mqhandler.NewActivityLoggedHandler(svc, log)
	retries := util.NewRetryCounter(rdb, cfg.Insight.DedupTTL)
	requestedHandler := mqhandler.NewInsightsRequestedHandler(svc, deduper, log).
		WithRetryLimit(retries, cfg.Insight.MaxAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// (1) Cache invalidation on new activity
	invalidateConsumer := startConsumer(ctx, &wg, cfg.MQ.URL,
		"habit.activity.logged.invalidate.q", contracts.RoutingActivityLogged,
		activityHandler.HandleActivityLogged, log)
	defer invalidateConsumer.Close()

	// (2) Snapshot generation on request
	refreshConsumer := startConsumer(ctx, &wg, cfg.MQ.URL,
		"habit.insights.requested.refresh.q", contracts.RoutingInsightsRequested,
		requestedHandler.HandleInsightsRequested, log)
	defer refreshConsumer.Close()

	// (3) Outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting outbox dispatcher")
		dispatcher.Start(ctx)
	}()

	// (4) Periodic retraining
	if cfg.Insight.RetrainInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runRetrainLoop(ctx, svc, cfg.Insight.RetrainInterval, log)
		}()
	}

	router := httpserver.NewHealthRouter(log, dbConn, refreshConsumer)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.HealthPort,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Health server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health server failed", zap.Error(err))
		}
	}()

	log.Info("Worker is running. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for workers to stop")
	}
	log.Info("Worker shutdown complete")
}

func startConsumer(
	ctx context.Context,
	wg *sync.WaitGroup,
	url, queue, routingKey string,
	h mq.MessageHandler,
	log *zap.Logger,
) *mq.Consumer {
	log.Info("Initializing consumer", zap.String("queue", queue), zap.String("routing_key", routingKey))
	consumer, err := mq.NewConsumer(url, queue, routingKey, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.String("queue", queue), zap.Error(err))
	}
	consumer.SetHandler(h)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("Consumer stopped", zap.String("queue", queue), zap.Error(err))
		}
	}()
	return consumer
}

// runRetrainLoop retrains every user with activity since the previous tick.
// The first window starts one interval before the loop.
func runRetrainLoop(ctx context.Context, svc *service.InsightService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastRun := time.Now().Add(-interval)
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			n, err := svc.RetrainActive(ctx, lastRun)
			if err != nil {
				log.Error("Periodic retrain failed", zap.Time("since", lastRun), zap.Error(err))
				continue
			}
			log.Info("Periodic retrain finished", zap.Int("users", n), zap.Time("since", lastRun))
			lastRun = tick
		}
	}
}
