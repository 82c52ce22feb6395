package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Metric names recorded by the pipeline.
const (
	MetricUnitSeconds    = "transcription.unit_seconds"
	MetricUnitFailures   = "transcription.unit_failures"
	MetricUnitRetries    = "transcription.unit_retries"
	MetricRunSeconds     = "transcription.run_seconds"
	MetricWordsPerMinute = "transcript.words_per_minute"
)

// Enabled reports whether spans are emitted.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan logs the start and end of an operation with its duration.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return ctx, func(error) {}
	}

	start := time.Now()
	logger.LogAttrs(ctx, slog.LevelDebug, "obs span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "obs span end", attrs...)
	}
}

// MetricSummary aggregates every datapoint recorded under one name.
type MetricSummary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Last  float64 `json:"last"`
}

var (
	metricsMu sync.Mutex
	metrics   = map[string]MetricSummary{}
)

// RecordMetric aggregates a datapoint and, when enabled, logs it.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	metricsMu.Lock()
	m := metrics[name]
	m.Count++
	m.Sum += value
	m.Last = value
	metrics[name] = m
	metricsMu.Unlock()

	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}

// Snapshot copies the current aggregates.
func Snapshot() map[string]MetricSummary {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := make(map[string]MetricSummary, len(metrics))
	for k, v := range metrics {
		out[k] = v
	}
	return out
}

// Reset clears all aggregates.
func Reset() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	metrics = map[string]MetricSummary{}
}
