package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayService returns parked events to the pending queue so the
// dispatcher publishes them again.
type ReplayService struct {
	repo   *Repository
	logger *zap.Logger
}

func NewReplayService(repo *Repository, logger *zap.Logger) *ReplayService {
	return &ReplayService{repo: repo, logger: logger}
}

func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.repo.ResetEvent(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("Outbox event requeued", zap.Int64("event_id", eventID))
	return nil
}

// ReplayFailedEvents requeues up to limit failed events and returns how many
// were requeued.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to requeue outbox event",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		replayed++
	}
	return replayed, nil
}
