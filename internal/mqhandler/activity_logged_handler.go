package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/contracts/mq"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/logger"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/util"
)

type Invalidator interface {
	Invalidate(ctx context.Context, userID int) error
}

type ActivityLoggedHandler struct {
	svc    Invalidator
	logger *zap.Logger
}

func NewActivityLoggedHandler(svc Invalidator, logger *zap.Logger) *ActivityLoggedHandler {
	return &ActivityLoggedHandler{
		svc:    svc,
		logger: logger,
	}
}

// HandleActivityLogged drops the user's cached report so the next read
// reflects the new activity.
func (h *ActivityLoggedHandler) HandleActivityLogged(ctx context.Context, raw json.RawMessage) error {
	var p mq.ActivityLoggedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode activity logged payload: %w", err)
	}
	if p.UserID <= 0 {
		return fmt.Errorf("%w: activity logged without user_id", util.ErrPermanent)
	}

	if err := h.svc.Invalidate(ctx, p.UserID); err != nil {
		return err
	}

	logger.WithTrace(ctx, h.logger).Debug("Cached insights invalidated",
		zap.Int("user_id", p.UserID),
		zap.Int("habit_id", p.HabitID),
	)
	return nil
}
