package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/platform/errors"
)

func sine(n, rate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestWriteWAV_LoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := sine(8000, 16000, 440, 0.5)

	require.NoError(t, WriteWAV(path, samples, 16000))

	sig, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, sig.SampleRate)
	require.Len(t, sig.Samples, len(samples))
	for i := range samples {
		assert.InDelta(t, samples[i], sig.Samples[i], 1.0/16384)
	}
	assert.InDelta(t, 0.5, sig.Duration(), 1e-9)
}

func TestWriteWAV_ClampsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	require.NoError(t, WriteWAV(path, []float32{2, -2, 0}, 8000))

	sig, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sig.Samples[0], 1e-3)
	assert.InDelta(t, -1.0, sig.Samples[1], 1e-3)
	assert.Equal(t, float32(0), sig.Samples[2])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.wav"))
	assert.True(t, errors.IsKind(err, errors.KindAudio))

	flac := filepath.Join(dir, "a.flac")
	require.NoError(t, os.WriteFile(flac, []byte("fLaC"), 0o644))
	_, err = Load(flac)
	assert.True(t, errors.IsKind(err, errors.KindAudio))

	bogus := filepath.Join(dir, "bogus.wav")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not riff data"), 0o644))
	_, err = Load(bogus)
	assert.Error(t, err)
}

func TestSignal_Slice(t *testing.T) {
	sig := Signal{Samples: []float32{1, 2, 3, 4}, SampleRate: 2}
	assert.Equal(t, []float32{2, 3}, sig.Slice(1, 3))
	assert.Equal(t, []float32{1, 2, 3, 4}, sig.Slice(-5, 50))
	assert.Nil(t, sig.Slice(3, 2))
	assert.Equal(t, 2.0, sig.Duration())
	assert.Equal(t, 0.0, Signal{}.Duration())
}

func TestPeakNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"quiet", []float32{0.1, -0.25, 0.05}, []float32{0.4, -1, 0.2}},
		{"silent", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Signal{Samples: tt.in, SampleRate: 16000}
			got := in.PeakNormalized()
			assert.Equal(t, 16000, got.SampleRate)
			require.Len(t, got.Samples, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got.Samples[i], 1e-6)
			}
		})
	}

	quiet := Signal{Samples: []float32{0.1, -0.25}, SampleRate: 16000}
	_ = quiet.PeakNormalized()
	assert.Equal(t, []float32{0.1, -0.25}, quiet.Samples)
}
