package logger

import (
	"context"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/trace"
)

var Log *zap.Logger

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// NewCLILogger logs to stderr at the given level so stdout stays clean
// for command output.
func NewCLILogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace adds the request trace_id, and the otel span id when a span is
// recording, to logger.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if traceID := trace.FromContext(ctx); traceID != "" {
		logger = logger.With(zap.String("trace_id", traceID))
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(zap.String("span_id", sc.SpanID().String()))
	}
	return logger
}
