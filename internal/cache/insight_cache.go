package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
)

var ErrMiss = errors.New("insight cache miss")

// InsightCache keeps the latest InsightReport per user in redis.
type InsightCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewInsightCache(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *InsightCache {
	return &InsightCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func key(userID int) string {
	return fmt.Sprintf("insights:user:%d", userID)
}

// Get returns ErrMiss when nothing is cached for userID.
func (c *InsightCache) Get(ctx context.Context, userID int) (*model.InsightReport, error) {
	data, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached insights: %w", err)
	}

	var report model.InsightReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warn("Dropping undecodable cached report",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		_ = c.rdb.Del(ctx, key(userID)).Err()
		return nil, ErrMiss
	}
	return &report, nil
}

func (c *InsightCache) Set(ctx context.Context, report *model.InsightReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.rdb.Set(ctx, key(report.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache insights: %w", err)
	}
	return nil
}

func (c *InsightCache) Invalidate(ctx context.Context, userID int) error {
	if err := c.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate insights: %w", err)
	}
	return nil
}
