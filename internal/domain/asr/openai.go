package asr

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
)

func init() {
	Register(BackendOpenAI, newOpenAIRecognizer)
	Register(BackendWhisperServer, newOpenAIRecognizer)
}

// openAIRecognizer talks to the OpenAI transcription endpoint or to any
// whisper server exposing the same API.
type openAIRecognizer struct {
	cfg     config.ASRConfig
	backend Backend
	model   string
	logger  *logging.Logger

	mu     sync.RWMutex
	client *openai.Client
}

func newOpenAIRecognizer(cfg config.ASRConfig, logger *logging.Logger) (Recognizer, error) {
	backend := Backend(cfg.Backend)
	model := cfg.ResolvedModel()
	if backend == BackendOpenAI && cfg.Model == "" {
		model = openai.Whisper1
	}
	if backend == BackendWhisperServer && cfg.BaseURL == "" {
		return nil, errors.New(errors.KindConfig, "asr.whisper_server", "base_url is required")
	}
	return &openAIRecognizer{cfg: cfg, backend: backend, model: model, logger: logger}, nil
}

func (r *openAIRecognizer) Init(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == BackendOpenAI && r.cfg.APIKey == "" && r.cfg.BaseURL == "" {
		return errors.New(errors.KindConfig, "asr.openai.init", "missing OpenAI API key")
	}
	clientConfig := openai.DefaultConfig(r.cfg.APIKey)
	if r.cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(r.cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeoutOrDefault(r.cfg.Timeout)}
	r.client = openai.NewClientWithConfig(clientConfig)
	r.logger.InfoTag("ASR", "recognizer ready: backend=%s model=%s", r.backend, r.model)
	return nil
}

func (r *openAIRecognizer) Recognize(ctx context.Context, path string, opts Options) (Result, error) {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client == nil {
		return Result{}, errors.New(errors.KindRecognizer, "asr.openai.recognize", "recognizer not initialized")
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       r.model,
		FilePath:    path,
		Prompt:      opts.Prompt,
		Temperature: opts.Temperature,
		Language:    opts.Language,
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, classify("asr.openai.recognize", err)
	}

	result := Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	return result, nil
}

func (r *openAIRecognizer) Backend() Backend { return r.backend }

func (r *openAIRecognizer) Model() string { return r.model }

func (r *openAIRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = nil
	return nil
}

// classify tags a recognizer failure as a backend error. Backend errors are
// counted by the orchestrator and never retried, whatever the HTTP status.
func classify(op string, err error) error {
	if errors.KindOf(err) != errors.KindUnknown {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errors.Wrap(errors.KindBackend, op, fmt.Sprintf("recognizer returned HTTP %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errors.Wrap(errors.KindBackend, op, fmt.Sprintf("recognizer request failed with HTTP %d", reqErr.HTTPStatusCode), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Wrap(errors.KindBackend, op, "recognizer unreachable", err)
	}
	return errors.Wrap(errors.KindBackend, op, "recognition failed", err)
}
