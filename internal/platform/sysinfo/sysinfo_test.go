package sysinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/platform/logging"
)

func TestCollect(t *testing.T) {
	snap, err := Collect(context.Background())
	require.NoError(t, err)
	assert.Positive(t, snap.LogicalCPUs)
	assert.Positive(t, snap.Goroutines)

	Log(logging.Nop(), snap)
	Log(nil, snap)
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := Collect(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Positive(t, snap.LogicalCPUs)
}
