package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/handler"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/metrics"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/otel"
	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ConnectionChecker interface {
	IsConnected() bool
}

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires the health checks, metrics and insight routes. db and mq may be
// nil, in which case readiness skips them.
func NewRouter(insights *handler.InsightHandler, logger *zap.Logger, db Pinger, mq ConnectionChecker) *Router {
	r := NewHealthRouter(logger, db, mq)

	users := r.Engine.Group("/users/:user_id")
	{
		users.GET("/insights", insights.GetInsights)
		users.POST("/insights/refresh", insights.RequestRefresh)
		users.POST("/train", insights.Train)
	}
	return r
}

// NewHealthRouter serves only /healthz, /readyz and /metrics.
func NewHealthRouter(logger *zap.Logger, db Pinger, mq ConnectionChecker) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), traceID(), otel.GinMiddleware(), requestLog(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		if mq != nil && !mq.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}

// traceID reuses the caller's X-Trace-ID or assigns one, and echoes it back.
func traceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(trace.HeaderName())
		if id == "" {
			id = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), id))
		c.Header(trace.HeaderName(), id)
		c.Next()
	}
}

func requestLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), latency)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}
