package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameRMS(t *testing.T) {
	samples := []float32{1, 1, 1, 1, 0, 0, 0, 0}

	plain := FrameRMS(samples, 4, 4, false)
	assert.Equal(t, []float64{1, 0}, plain)

	centered := FrameRMS(samples, 4, 2, true)
	// Two zeros of padding each side: 12 samples, frames at 0,2,4,6,8.
	assert.Len(t, centered, 5)
	assert.InDelta(t, 0.7071, centered[0], 1e-4)
	assert.InDelta(t, 1.0, centered[1], 1e-9)
	assert.InDelta(t, 0.7071, centered[2], 1e-4)
	assert.InDelta(t, 0.0, centered[3], 1e-9)
	assert.InDelta(t, 0.0, centered[4], 1e-9)

	assert.Nil(t, FrameRMS(nil, 4, 2, true))
	assert.Nil(t, FrameRMS(samples, 0, 2, true))
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 4.0, Percentile(values, 100))
	assert.InDelta(t, 1.75, Percentile(values, 25), 1e-9)
	assert.InDelta(t, 2.5, Percentile(values, 50), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 25))
	assert.Equal(t, []float64{4, 1, 3, 2}, values)
}
