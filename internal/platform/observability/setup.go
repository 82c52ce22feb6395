package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc flushes the metric summary.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog, instrumentationState
}

// Setup installs the logger used for spans and metrics. Spans are only
// emitted when cfg.Enabled; metrics are always aggregated.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	loggerMu.Unlock()

	if logger != nil {
		if cfg.Enabled {
			logger.InfoContext(ctx, "[OBSERVABILITY] spans enabled")
		} else {
			logger.InfoContext(ctx, "[OBSERVABILITY] spans disabled")
		}
	}
	return func(ctx context.Context) error {
		if logger == nil || !cfg.Enabled {
			return nil
		}
		for name, m := range Snapshot() {
			logger.LogAttrs(ctx, slog.LevelInfo, "[OBSERVABILITY] metric summary",
				slog.String("metric", name),
				slog.Int64("count", m.Count),
				slog.Float64("sum", m.Sum),
				slog.Float64("last", m.Last),
			)
		}
		return nil
	}, nil
}
