package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bl0ckchained/myelinmap-sub000/internal/cache"
	"github.com/bl0ckchained/myelinmap-sub000/internal/correlation"
	"github.com/bl0ckchained/myelinmap-sub000/internal/heuristic"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/predictor"
	"github.com/bl0ckchained/myelinmap-sub000/internal/progress"
	"github.com/bl0ckchained/myelinmap-sub000/internal/repository"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/circuitbreaker"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/metrics"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
)

const (
	SourceNetwork   = "network"
	SourceHeuristic = "heuristic"

	defaultCacheSize = 128
)

var ErrNoHabits = errors.New("user has no habits")

type HabitStore interface {
	ListByUser(ctx context.Context, userID int) ([]model.Habit, error)
	ActivitiesByUser(ctx context.Context, userID int, since time.Time) ([]model.DailyActivity, error)
	UsersWithActivitySince(ctx context.Context, since time.Time) ([]int, error)
}

type ModelStore interface {
	Save(ctx context.Context, rec repository.ModelRecord) error
	Load(ctx context.Context, userID int) (*repository.ModelRecord, error)
	TrainedAt(ctx context.Context, userID int) (time.Time, error)
}

type SnapshotStore interface {
	Save(ctx context.Context, report *model.InsightReport) error
}

type ReportCache interface {
	Get(ctx context.Context, userID int) (*model.InsightReport, error)
	Set(ctx context.Context, report *model.InsightReport) error
	Invalidate(ctx context.Context, userID int) error
}

type Config struct {
	Model predictor.Config
	// CacheSize is the number of trained predictors kept in memory.
	CacheSize int
}

// TrainSummary describes one completed training run.
type TrainSummary struct {
	UserID    int       `json:"user_id"`
	Examples  int       `json:"examples"`
	Epochs    int       `json:"epochs"`
	Loss      float64   `json:"loss"`
	Stopped   bool      `json:"early_stop"`
	TrainedAt time.Time `json:"trained_at"`
}

// cachedPredictor remembers which stored model a predictor was built from.
type cachedPredictor struct {
	p         *predictor.HabitPredictor
	trainedAt time.Time
}

// InsightService assembles predictions, behavioral insights and
// correlations for a user, training and caching one predictor per user.
type InsightService struct {
	habits     HabitStore
	models     ModelStore
	snapshots  SnapshotStore
	cache      ReportCache
	breaker    *circuitbreaker.CircuitBreaker
	predictors *lru.Cache[int, cachedPredictor]
	engine     *heuristic.Engine
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*InsightService)

func WithClock(now func() time.Time) Option {
	return func(s *InsightService) { s.now = now }
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(s *InsightService) { s.breaker = cb }
}

func NewInsightService(
	habits HabitStore,
	models ModelStore,
	snapshots SnapshotStore,
	reportCache ReportCache,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) (*InsightService, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	predictors, err := lru.New[int, cachedPredictor](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create predictor cache: %w", err)
	}

	s := &InsightService{
		habits:     habits,
		models:     models,
		snapshots:  snapshots,
		cache:      reportCache,
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		predictors: predictors,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = heuristic.NewEngine(s.now)
	return s, nil
}

// Generate builds a fresh report. Predictions come from the user's trained
// network when one exists, otherwise from the heuristic engine. Risk factors
// and suggested modifications always come from the heuristic engine.
func (s *InsightService) Generate(ctx context.Context, userID int) (*model.InsightReport, error) {
	ctx, span := otel.StartSpan(ctx, "InsightService.Generate")
	defer span.End()

	habits, acts, err := s.history(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.predictorFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := Assemble(s.engine, p, habits, acts, s.now())
	report.ID = uuid.NewString()
	report.UserID = userID
	metrics.IncrementReportGenerated(report.Source)

	logger.WithTrace(ctx, s.logger).Info("Insight report generated",
		zap.Int("user_id", userID),
		zap.String("source", report.Source),
		zap.Int("habits", len(habits)),
		zap.Int("activities", len(acts)),
	)
	return report, nil
}

// Insights returns the cached report for userID, generating and caching one
// on a miss. Cache failures fall through to generation.
func (s *InsightService) Insights(ctx context.Context, userID int) (*model.InsightReport, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int("user_id", userID))

	cached, err := s.cache.Get(ctx, userID)
	switch {
	case err == nil:
		metrics.IncrementCacheLookup("hit")
		return cached, nil
	case errors.Is(err, cache.ErrMiss):
		metrics.IncrementCacheLookup("miss")
	default:
		metrics.IncrementCacheLookup("error")
		log.Warn("Insight cache read failed", zap.Error(err))
	}

	report, err := s.Generate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, report); err != nil {
		log.Warn("Insight cache write failed", zap.Error(err))
	}
	return report, nil
}

// Refresh regenerates the report, optionally retraining first, then stores
// a snapshot and updates the cache.
func (s *InsightService) Refresh(ctx context.Context, userID int, retrain bool) (*model.InsightReport, error) {
	if retrain {
		if _, err := s.Train(ctx, userID); err != nil {
			return nil, err
		}
	}

	report, err := s.Generate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, report); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Insight cache write failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
	}
	return report, nil
}

// Invalidate drops the cached report after new activity.
func (s *InsightService) Invalidate(ctx context.Context, userID int) error {
	return s.cache.Invalidate(ctx, userID)
}

// Train fits a brand new predictor on the user's history, persists its state
// and makes it the user's active predictor. Earlier learned state is
// discarded.
func (s *InsightService) Train(ctx context.Context, userID int) (TrainSummary, error) {
	ctx, span := otel.StartSpan(ctx, "InsightService.Train")
	defer span.End()

	habits, acts, err := s.history(ctx, userID)
	if err != nil {
		return TrainSummary{}, err
	}

	log := logger.WithTrace(ctx, s.logger).With(zap.Int("user_id", userID))
	p, err := predictor.New(s.cfg.Model, predictor.WithClock(s.now), predictor.WithLogger(log))
	if err != nil {
		return TrainSummary{}, err
	}

	now := s.now()
	// Postgres keeps microseconds; the cached version must match what Load
	// returns.
	trainedAt := now.Truncate(time.Microsecond)
	set := p.PrepareTrainingData(habits, progress.ComputeAll(habits, acts, now), acts)

	start := time.Now()
	res := p.Train(set)
	metrics.RecordTraining(time.Since(start), res.Epochs, res.Loss)

	summary := TrainSummary{
		UserID:    userID,
		Examples:  set.Len(),
		Epochs:    res.Epochs,
		Loss:      res.Loss,
		Stopped:   res.Stopped,
		TrainedAt: trainedAt,
	}

	err = s.breaker.Execute(func() error {
		return s.models.Save(ctx, repository.ModelRecord{
			UserID:    userID,
			State:     p.Export(),
			Epochs:    res.Epochs,
			Loss:      res.Loss,
			Examples:  set.Len(),
			TrainedAt: trainedAt,
		})
	})
	if err != nil {
		return TrainSummary{}, fmt.Errorf("failed to persist model: %w", err)
	}

	s.predictors.Add(userID, cachedPredictor{p: p, trainedAt: trainedAt})
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		log.Warn("Insight cache invalidation failed", zap.Error(err))
	}
	return summary, nil
}

// RetrainActive retrains every user with activity after since and returns
// how many were trained. A failure for one user does not stop the others.
func (s *InsightService) RetrainActive(ctx context.Context, since time.Time) (int, error) {
	var users []int
	err := s.breaker.Execute(func() error {
		var err error
		users, err = s.habits.UsersWithActivitySince(ctx, since)
		return err
	})
	if err != nil {
		return 0, err
	}

	trained := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return trained, ctx.Err()
		}
		if _, err := s.Train(ctx, userID); err != nil {
			if !errors.Is(err, ErrNoHabits) {
				s.logger.Error("Retrain failed", zap.Int("user_id", userID), zap.Error(err))
			}
			continue
		}
		trained++
	}
	return trained, nil
}

// history loads habits and their full activity log concurrently behind the
// breaker. Progress is defined over the whole log, so nothing is windowed
// here; recency windows live in the feature extractor.
func (s *InsightService) history(ctx context.Context, userID int) ([]model.Habit, []model.DailyActivity, error) {
	var (
		habits []model.Habit
		acts   []model.DailyActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.breaker.Execute(func() error {
			var err error
			habits, err = s.habits.ListByUser(gctx, userID)
			return err
		})
	})
	g.Go(func() error {
		return s.breaker.Execute(func() error {
			var err error
			acts, err = s.habits.ActivitiesByUser(gctx, userID, time.Time{})
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to load history for user %d: %w", userID, err)
	}
	if len(habits) == 0 {
		return nil, nil, fmt.Errorf("%w: user %d", ErrNoHabits, userID)
	}
	return habits, acts, nil
}

// predictorFor returns the user's trained predictor, restoring it from the
// model store when nothing is cached or the stored model is newer than the
// cached one. It returns nil when the user was never trained.
func (s *InsightService) predictorFor(ctx context.Context, userID int) (*predictor.HabitPredictor, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int("user_id", userID))

	cached, ok := s.predictors.Get(userID)
	if ok {
		var stored time.Time
		err := s.breaker.Execute(func() error {
			var err error
			stored, err = s.models.TrainedAt(ctx, userID)
			return err
		})
		switch {
		case err == nil && stored.Equal(cached.trainedAt):
			return cached.p, nil
		case errors.Is(err, repository.ErrModelNotFound):
			s.predictors.Remove(userID)
			return nil, nil
		case err != nil:
			log.Warn("Model version check failed, using cached predictor", zap.Error(err))
			return cached.p, nil
		}
		log.Info("Stored model changed, reloading predictor",
			zap.Time("cached_trained_at", cached.trainedAt),
			zap.Time("stored_trained_at", stored),
		)
	}

	var rec *repository.ModelRecord
	err := s.breaker.Execute(func() error {
		var err error
		rec, err = s.models.Load(ctx, userID)
		if errors.Is(err, repository.ErrModelNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if rec == nil {
		s.predictors.Remove(userID)
		return nil, nil
	}

	p, err := predictor.New(s.cfg.Model, predictor.WithClock(s.now), predictor.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	if err := p.Restore(rec.State); err != nil {
		// A stale or corrupt state falls back to heuristics until retrained.
		log.Warn("Stored model rejected", zap.Error(err))
		s.predictors.Remove(userID)
		return nil, nil
	}
	s.predictors.Add(userID, cachedPredictor{p: p, trainedAt: rec.TrainedAt})
	return p, nil
}

// Assemble builds a report from history alone. With a nil or untrained
// predictor every prediction is heuristic. Otherwise the network supplies the
// numbers and the heuristic engine the risk factors and modifications.
func Assemble(
	engine *heuristic.Engine,
	p *predictor.HabitPredictor,
	habits []model.Habit,
	acts []model.DailyActivity,
	now time.Time,
) *model.InsightReport {
	prog := progress.ComputeAll(habits, acts, now)
	predictions := engine.PredictAll(habits, prog, acts)
	source := SourceHeuristic

	if p != nil && p.Trained() {
		source = SourceNetwork
		for _, h := range habits {
			heur := predictions[h.ID]
			pred := p.PredictHabit(h, prog[h.ID], acts)
			pred.RiskFactors = heur.RiskFactors
			pred.SuggestedModifications = heur.SuggestedModifications
			predictions[h.ID] = pred
		}
	}

	return &model.InsightReport{
		Source:       source,
		GeneratedAt:  now,
		Predictions:  predictions,
		Insights:     engine.InsightsAll(habits, prog, acts),
		Correlations: correlation.Compute(habits, acts),
	}
}
