package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMetric_Aggregates(t *testing.T) {
	Reset()
	_, err := Setup(context.Background(), Config{}, nil)
	require.NoError(t, err)

	RecordMetric(context.Background(), MetricUnitSeconds, 1.5, nil)
	RecordMetric(context.Background(), MetricUnitSeconds, 2.5, map[string]string{"backend": "fake"})

	got := Snapshot()[MetricUnitSeconds]
	assert.Equal(t, int64(2), got.Count)
	assert.InDelta(t, 4.0, got.Sum, 1e-9)
	assert.InDelta(t, 2.5, got.Last, 1e-9)
}

func TestStartSpan_LogsOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Setup(context.Background(), Config{Enabled: false}, logger)
	require.NoError(t, err)
	buf.Reset()
	_, end := StartSpan(context.Background(), "asr", "recognize")
	end(nil)
	assert.Empty(t, buf.String())

	shutdown, err := Setup(context.Background(), Config{Enabled: true}, logger)
	require.NoError(t, err)
	_, end = StartSpan(context.Background(), "asr", "recognize")
	end(errors.New("boom"))
	assert.Contains(t, buf.String(), "obs span end")
	assert.Contains(t, buf.String(), "boom")

	Reset()
	RecordMetric(context.Background(), MetricRunSeconds, 3, nil)
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), MetricRunSeconds)

	_, _ = Setup(context.Background(), Config{}, nil)
}
