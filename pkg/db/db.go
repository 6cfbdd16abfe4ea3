package db

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/config"
)

// Pool sizing for the habit store. Insight generation fans out three reads per
// request, so a handful of idle connections is kept warm.
const (
	maxConns     = 10
	minConns     = 2
	idleTimeout  = time.Minute
	dialTimeout  = 5 * time.Second
	pingTimeout  = 2 * time.Second
	sslModeParam = "disable"
)

// DSN renders cfg as a postgres URL. Credentials are escaped.
func DSN(cfg config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslModeParam}}.Encode(),
	}
	return u.String()
}

// NewConnection opens the habit store pool and checks it answers.
func NewConnection(cfg config.DBConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("habit store config: %w", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnIdleTime = idleTimeout
	if cfg.SlowQueryThreshold > 0 {
		poolCfg.ConnConfig.Tracer = NewSlowQueryTracer(logger, cfg.SlowQueryThreshold)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open habit store %s@%s: %w", cfg.Name, cfg.Host, err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), pingTimeout)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("habit store unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info("Habit store ready",
		zap.String("host", cfg.Host),
		zap.String("db", cfg.Name),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return pool, nil
}
