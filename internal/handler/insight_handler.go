package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/contracts/mq"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/service"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/circuitbreaker"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

type InsightService interface {
	Insights(ctx context.Context, userID int) (*model.InsightReport, error)
	Train(ctx context.Context, userID int) (service.TrainSummary, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type InsightHandler struct {
	svc       InsightService
	publisher EventPublisher
	logger    *zap.Logger
}

func NewInsightHandler(svc InsightService, publisher EventPublisher, logger *zap.Logger) *InsightHandler {
	return &InsightHandler{svc: svc, publisher: publisher, logger: logger}
}

// GetInsights serves the user's report with completion probabilities
// clamped to [0, 100].
func (h *InsightHandler) GetInsights(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	report, err := h.svc.Insights(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "GetInsights", userID, err)
		return
	}
	c.JSON(http.StatusOK, present(report))
}

func (h *InsightHandler) Train(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	summary, err := h.svc.Train(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "Train", userID, err)
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("Train: success",
		zap.Int("user_id", userID),
		zap.Int("epochs", summary.Epochs),
		zap.Float64("loss", summary.Loss),
	)
	c.JSON(http.StatusOK, summary)
}

// RequestRefresh queues an asynchronous regeneration. ?retrain=true also
// retrains the user's network first.
func (h *InsightHandler) RequestRefresh(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	retrain, _ := strconv.ParseBool(c.Query("retrain"))

	ctx := c.Request.Context()
	payload := mq.InsightsRequestedPayload{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		Retrain:     retrain,
		RequestedAt: time.Now().UTC(),
		TraceID:     trace.FromContext(ctx),
	}
	if err := h.publisher.Publish(ctx, mq.RoutingInsightsRequested, payload); err != nil {
		logger.WithTrace(ctx, h.logger).Error("RequestRefresh: publish failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue refresh"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": payload.RequestID})
}

func (h *InsightHandler) userID(c *gin.Context) (int, bool) {
	raw := c.Param("user_id")
	userID, err := strconv.Atoi(raw)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return userID, true
}

func (h *InsightHandler) fail(c *gin.Context, op string, userID int, err error) {
	log := logger.WithTrace(c.Request.Context(), h.logger).With(
		zap.String("op", op),
		zap.Int("user_id", userID),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, service.ErrNoHabits):
		c.JSON(http.StatusNotFound, gin.H{"error": "user has no habits"})
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		log.Warn("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		log.Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// present copies report with display-ready percentages.
func present(report *model.InsightReport) model.InsightReport {
	out := *report
	out.Predictions = make(map[int]model.HabitPrediction, len(report.Predictions))
	for id, p := range report.Predictions {
		p.CompletionProbability = model.ClampPercent(p.CompletionProbability)
		out.Predictions[id] = p
	}
	return out
}
