package testing

import (
	"io"
	"math"
	"path/filepath"
	"testing"

	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/logging"
)

// SetupTestConfig returns defaults rooted in a per-test temp directory.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(dir, "logs")
	cfg.Storage.DSN = filepath.Join(dir, "test.db")
	cfg.Server.UploadDir = filepath.Join(dir, "uploads")
	cfg.Pipeline.WorkDir = filepath.Join(dir, "work")
	cfg.Pipeline.RetryBackoff = 0
	return cfg
}

// SetupTestLogger builds a file-backed logger that keeps the console quiet.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: "test.log",
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

// Tone builds a mono sine signal of the given length and amplitude.
func Tone(seconds float64, sampleRate int, freq, amplitude float64) audio.Signal {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return audio.Signal{Samples: samples, SampleRate: sampleRate}
}

// Concat joins signals that share a sample rate.
func Concat(parts ...audio.Signal) audio.Signal {
	if len(parts) == 0 {
		return audio.Signal{}
	}
	out := audio.Signal{SampleRate: parts[0].SampleRate}
	for _, p := range parts {
		out.Samples = append(out.Samples, p.Samples...)
	}
	return out
}

// WriteWAV stores sig as a 16-bit WAV under t.TempDir and returns its path.
func WriteWAV(t *testing.T, name string, sig audio.Signal) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := audio.WriteWAV(path, sig.Samples, sig.SampleRate); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	return path
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
