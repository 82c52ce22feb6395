// Package asr wraps the speech recognizer backends behind one handle.
package asr

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
)

// Backend names a recognizer implementation.
type Backend string

const (
	BackendOpenAI        Backend = "openai"
	BackendWhisperServer Backend = "whisper-server"
	BackendCommand       Backend = "command"
)

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(name); b {
	case BackendOpenAI, BackendWhisperServer, BackendCommand:
		return b, nil
	}
	return "", errors.New(errors.KindConfig, "asr.parse_backend", fmt.Sprintf("unknown recognizer backend %q", name))
}

// Options are the per-call decoding hints.
type Options struct {
	Language    string
	Prompt      string
	Temperature float32
	BeamSize    int
	BestOf      int
}

// Segment is a timed piece of recognizer output, relative to the start of the
// recognized file.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is one recognition. Segments may be empty when the backend only
// returns text.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// Recognizer turns a staged audio file into text.
type Recognizer interface {
	Init(ctx context.Context) error
	Recognize(ctx context.Context, path string, opts Options) (Result, error)
	Backend() Backend
	Model() string
	Close() error
}

// Factory builds a recognizer for one backend.
type Factory func(cfg config.ASRConfig, logger *logging.Logger) (Recognizer, error)

var (
	registryMu sync.RWMutex
	factories  = map[Backend]Factory{}
)

// Register binds a backend to its factory.
func Register(backend Backend, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[backend] = factory
}

// Backends lists the registered backends.
func Backends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Backend, 0, len(factories))
	for b := range factories {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// New builds the recognizer selected by cfg.Backend. The caller owns the
// returned handle and must call Init before use and Close when done.
func New(cfg config.ASRConfig, logger *logging.Logger) (Recognizer, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	factory, ok := factories[backend]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindConfig, "asr.new", fmt.Sprintf("backend %q not registered", backend))
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return factory(cfg, logger)
}

// DefaultOptions derives call options from configuration.
func DefaultOptions(cfg config.ASRConfig) Options {
	opts := Options{
		Language:    cfg.Language,
		Prompt:      cfg.Prompt,
		Temperature: cfg.Temperature,
		BeamSize:    cfg.BeamSize,
		BestOf:      cfg.BestOf,
	}
	if opts.Prompt == "" && opts.Language == "vi" {
		opts.Prompt = VietnamesePrompt(true)
	}
	return opts
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
