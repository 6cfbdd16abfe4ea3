package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/contracts/mq"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/service"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/util"
)

const insightsRequestedHandler = "insights_requested"

type Refresher interface {
	Refresh(ctx context.Context, userID int, retrain bool) (*model.InsightReport, error)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type InsightsRequestedHandler struct {
	svc         Refresher
	deduper     Deduper
	retries     RetryTracker
	maxAttempts int64
	logger      *zap.Logger
}

func NewInsightsRequestedHandler(svc Refresher, deduper Deduper, logger *zap.Logger) *InsightsRequestedHandler {
	return &InsightsRequestedHandler{
		svc:     svc,
		deduper: deduper,
		logger:  logger,
	}
}

// WithRetryLimit dead-letters a request after maxAttempts failed deliveries.
func (h *InsightsRequestedHandler) WithRetryLimit(retries RetryTracker, maxAttempts int) *InsightsRequestedHandler {
	h.retries = retries
	h.maxAttempts = int64(maxAttempts)
	return h
}

// HandleInsightsRequested regenerates and snapshots the user's report once
// per request id.
func (h *InsightsRequestedHandler) HandleInsightsRequested(ctx context.Context, raw json.RawMessage) error {
	var p mq.InsightsRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode insights requested payload: %w", err)
	}
	if p.UserID <= 0 {
		return fmt.Errorf("%w: insights requested without user_id", util.ErrPermanent)
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int("user_id", p.UserID),
		zap.String("request_id", p.RequestID),
	)

	key := p.RequestID
	if key == "" {
		key = strconv.Itoa(p.UserID) + ":" + strconv.FormatInt(p.RequestedAt.Unix(), 10)
	}
	if !h.deduper.AcquireOnce(ctx, insightsRequestedHandler, key) {
		return nil
	}

	report, err := h.svc.Refresh(ctx, p.UserID, p.Retrain)
	if errors.Is(err, service.ErrNoHabits) {
		log.Info("Skipping insights for user without habits")
		return nil
	}
	if err != nil {
		h.deduper.Release(ctx, insightsRequestedHandler, key)
		return h.giveUpAfterLimit(ctx, key, err, log)
	}
	if h.retries != nil {
		_ = h.retries.Reset(ctx, util.FormatRetryKey(insightsRequestedHandler, key))
	}

	log.Info("Insights refreshed",
		zap.String("snapshot_id", report.ID),
		zap.String("source", report.Source),
	)
	return nil
}

// giveUpAfterLimit turns err permanent once the request has failed
// maxAttempts times. Counter failures leave err as is.
func (h *InsightsRequestedHandler) giveUpAfterLimit(ctx context.Context, key string, err error, log *zap.Logger) error {
	if h.retries == nil || h.maxAttempts <= 0 {
		return err
	}
	retryKey := util.FormatRetryKey(insightsRequestedHandler, key)
	attempts, cerr := h.retries.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		log.Warn("Retry counter unavailable", zap.Error(cerr))
		return err
	}
	if attempts < h.maxAttempts {
		return err
	}

	log.Error("Giving up on insights request",
		zap.Int64("attempts", attempts),
		zap.Error(err),
	)
	_ = h.retries.Reset(ctx, retryKey)
	return fmt.Errorf("%w: after %d attempts: %w", util.ErrPermanent, attempts, err)
}
