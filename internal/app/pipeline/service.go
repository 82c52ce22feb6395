// Package pipeline runs one recording through every stage: load, segment,
// recognize, normalize, attribute, enhance, and persist.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vietscribe-go/internal/domain/asr"
	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/domain/diarization"
	"vietscribe-go/internal/domain/enhance"
	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/domain/textnorm"
	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/domain/transcription"
	"vietscribe-go/internal/domain/vad"
	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/observability"
	"vietscribe-go/internal/platform/storage"
)

// Strategy selects how the signal is cut into recognition units.
type Strategy string

const (
	StrategyFixed Strategy = "fixed"
	StrategyVAD   Strategy = "vad"
)

// ParseStrategy accepts "fixed" or "vad", case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategyVAD:
		return StrategyVAD, nil
	}
	return "", errors.New(errors.KindConfig, "pipeline.strategy", fmt.Sprintf("unknown segmentation strategy %q", s))
}

// Request describes one transcription job.
type Request struct {
	// ID is generated when empty.
	ID    string
	Title string
	// Path is decoded unless Signal is set.
	Path     string
	Signal   *audio.Signal
	Strategy Strategy
	Diarize  bool
	Enhance  bool
	// RemoveSource deletes Path once a queued job ends, whatever its outcome.
	RemoveSource bool
}

// Store is the persistence the service needs. storage.TranscriptRepository
// satisfies it.
type Store interface {
	CreateRun(ctx context.Context, run *storage.TranscriptRun) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	SaveDocument(ctx context.Context, doc transcript.Document, units int) error
}

// Service owns the stage configuration; the recognizer handle stays owned by
// the caller.
type Service struct {
	cfg        *config.Config
	recognizer asr.Recognizer
	normalizer *textnorm.Normalizer
	enhancer   enhance.Enhancer
	detector   vad.Detector
	attributor diarization.Attributor
	store      Store
	events     eventbus.Publisher
	logger     *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithPublisher(p eventbus.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithStore persists every run.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

func WithEnhancer(e enhance.Enhancer) Option {
	return func(s *Service) { s.enhancer = e }
}

func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

func WithDetector(d vad.Detector) Option {
	return func(s *Service) { s.detector = d }
}

// New builds a Service. Unset collaborators fall back to the embedded
// normalization rules, the energy detector and a passthrough enhancer.
func New(cfg *config.Config, recognizer asr.Recognizer, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if recognizer == nil {
		return nil, errors.New(errors.KindConfig, "pipeline.new", "recognizer is required")
	}
	s := &Service{
		cfg:        cfg,
		recognizer: recognizer,
		logger:     logging.Nop(),
		events:     eventbus.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		n, err := NewNormalizer(cfg.Normalize, s.logger)
		if err != nil {
			return nil, err
		}
		s.normalizer = n
	}
	if s.detector == nil {
		v := cfg.Segmenter.VAD
		s.detector = vad.NewEnergyDetector(vad.Config{
			FrameMs:        v.FrameMs,
			ThresholdRatio: v.ThresholdRatio,
			MinSpeech:      v.MinSpeech,
			MinSilence:     v.MinSilence,
		})
	}
	if s.enhancer == nil {
		s.enhancer = enhance.Passthrough{}
	}
	s.attributor = diarization.Attributor{Logger: s.logger}
	return s, nil
}

// NewNormalizer loads the rules file named by cfg, or the embedded rules.
func NewNormalizer(cfg config.NormalizeConfig, logger *logging.Logger) (*textnorm.Normalizer, error) {
	rules := textnorm.DefaultRules()
	if cfg.RulesFile != "" {
		loaded, err := textnorm.LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return textnorm.New(rules, textnorm.WithLogger(logger))
}

// Defaults returns a request for path using the configured strategy and
// optional stages.
func (s *Service) Defaults(path string) Request {
	strategy, err := ParseStrategy(s.cfg.Segmenter.Strategy)
	if err != nil {
		strategy = StrategyFixed
	}
	return Request{
		Path:     path,
		Strategy: strategy,
		Diarize:  s.cfg.Diarization.Enabled,
		Enhance:  s.cfg.Enhance.Enabled,
	}
}

// Run transcribes one recording. On success the document is persisted (when
// a store is set) and transcription:completed is published. Any failure
// marks the run failed, or cancelled when ctx ended, and publishes
// transcription:failed.
func (s *Service) Run(ctx context.Context, req Request, progress transcription.ProgressFunc) (*transcript.Document, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = transcription.WithRunID(ctx, req.ID)
	started := time.Now()

	if err := s.begin(ctx, req); err != nil {
		return nil, err
	}

	doc, units, err := s.execute(ctx, req, progress)
	if err != nil {
		s.fail(req.ID, err, started)
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SaveDocument(ctx, *doc, units); err != nil {
			s.fail(req.ID, err, started)
			return nil, err
		}
	}

	elapsed := time.Since(started)
	observability.RecordMetric(ctx, observability.MetricRunSeconds, elapsed.Seconds(), nil)
	observability.RecordMetric(ctx, observability.MetricWordsPerMinute, doc.Stats.WordsPerMinute, nil)
	s.events.Publish(eventbus.TopicCompleted, eventbus.RunEvent{
		RunID:      req.ID,
		Segments:   len(doc.Segments),
		ErrorCount: doc.ErrorCount,
		Elapsed:    elapsed,
	})
	s.logger.InfoTag("PIPELINE", "run %s finished: %d segments, %d failed units, %.1fs",
		req.ID, len(doc.Segments), doc.ErrorCount, elapsed.Seconds())
	return doc, nil
}

func (s *Service) begin(ctx context.Context, req Request) error {
	if s.store == nil {
		return nil
	}
	err := s.store.UpdateStatus(ctx, req.ID, storage.StatusRunning, "")
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.store.CreateRun(ctx, &storage.TranscriptRun{
		ID:       req.ID,
		Title:    req.Title,
		Source:   req.Path,
		Status:   storage.StatusRunning,
		Backend:  string(s.recognizer.Backend()),
		Model:    s.recognizer.Model(),
		Language: s.cfg.ASR.Language,
	})
}

func (s *Service) fail(id string, err error, started time.Time) {
	status := storage.StatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = storage.StatusCancelled
	}
	s.logger.ErrorTag("PIPELINE", "run %s %s: %v", id, status, err)

	if s.store != nil {
		// The job context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if uerr := s.store.UpdateStatus(ctx, id, status, err.Error()); uerr != nil {
			s.logger.WarnTag("STORE", "failed to mark run %s %s: %v", id, status, uerr)
		}
	}
	s.events.Publish(eventbus.TopicFailed, eventbus.RunEvent{
		RunID:   id,
		Elapsed: time.Since(started),
		Error:   err.Error(),
	})
}

func (s *Service) execute(ctx context.Context, req Request, progress transcription.ProgressFunc) (*transcript.Document, int, error) {
	sig, err := s.load(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	units, err := s.segment(ctx, sig, req.Strategy)
	if err != nil {
		return nil, 0, err
	}
	s.logger.InfoTag("PIPELINE", "run %s: %.1fs of audio in %d units (%s)", req.ID, sig.Duration(), len(units), req.Strategy)

	orch := transcription.New(s.recognizer, s.orchestratorConfig(), transcription.WithLogger(s.logger), transcription.WithPublisher(s.events))
	result, err := orch.Run(ctx, sig, units, progress)
	if err != nil {
		return nil, len(units), err
	}

	segments := result.Segments
	if s.cfg.Normalize.Enabled {
		segments = s.normalizer.NormalizeSegments(segments)
	}

	var speakers []transcript.SpeakerSegment
	if req.Diarize {
		_, end := observability.StartSpan(ctx, "pipeline", "attribute")
		speakers = s.attributor.Attribute(segments, sig, s.cfg.Diarization.MinSilence, s.cfg.Diarization.MaxSpeakers)
		end(nil)
	}

	text := transcript.JoinText(segments)
	if req.Enhance {
		text = s.enhance(ctx, text)
	}

	// Final pass: everything leaving the pipeline goes through the normalizer.
	if s.cfg.Normalize.Enabled {
		segments = s.normalizer.NormalizeSegments(segments)
		speakers = s.normalizer.NormalizeSpeakerSegments(speakers)
		text = s.normalizer.NormalizeDocument(text)
	}

	doc := &transcript.Document{
		ID:         req.ID,
		Title:      req.Title,
		Source:     req.Path,
		Language:   s.cfg.ASR.Language,
		Model:      s.recognizer.Model(),
		CreatedAt:  time.Now(),
		Duration:   sig.Duration(),
		Text:       text,
		Segments:   segments,
		Speakers:   speakers,
		ErrorCount: result.ErrorCount,
	}
	doc.Stats = transcript.ComputeStats(doc.Text, doc.Segments, doc.Speakers, doc.Duration)
	return doc, len(units), nil
}

func (s *Service) load(ctx context.Context, req Request) (audio.Signal, error) {
	if req.Signal != nil {
		return *req.Signal, nil
	}
	if req.Path == "" {
		return audio.Signal{}, errors.New(errors.KindAudio, "pipeline.load", "no audio path or signal given")
	}
	_, end := observability.StartSpan(ctx, "pipeline", "load")
	sig, err := audio.Load(req.Path)
	end(err)
	if err != nil {
		return sig, err
	}
	if s.cfg.Segmenter.PeakNormalize {
		sig = sig.PeakNormalized()
	}
	return sig, nil
}

func (s *Service) segment(ctx context.Context, sig audio.Signal, strategy Strategy) ([]audio.Unit, error) {
	_, end := observability.StartSpan(ctx, "pipeline", "segment")
	switch strategy {
	case StrategyVAD:
		speech, err := s.detector.Detect(sig)
		end(err)
		if err != nil {
			return nil, err
		}
		seg := s.cfg.Segmenter
		windows := audio.VADWindows(sig, speech, audio.WindowOptions{
			MergeGap: seg.MergeGap,
			MinDur:   seg.MinWindow,
			MaxDur:   seg.MaxWindow,
		})
		return audio.WindowsToUnits(windows), nil
	case StrategyFixed, "":
		end(nil)
		return audio.ChunksToUnits(audio.FixedChunks(sig, s.cfg.Segmenter.ChunkSeconds)), nil
	default:
		err := errors.New(errors.KindConfig, "pipeline.segment", fmt.Sprintf("unknown segmentation strategy %q", strategy))
		end(err)
		return nil, err
	}
}

func (s *Service) enhance(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	_, end := observability.StartSpan(ctx, "pipeline", "enhance")
	out, err := s.enhancer.Enhance(ctx, text)
	end(err)
	if err != nil {
		s.logger.WarnTag("PIPELINE", "enhancement skipped: %v", err)
		return text
	}
	return out
}

func (s *Service) orchestratorConfig() transcription.Config {
	p := s.cfg.Pipeline
	cfg := transcription.Config{
		WorkDir:  p.WorkDir,
		Cleanup:  transcription.CleanupPolicy(p.Cleanup),
		Attempts: p.StageRetries,
		Backoff:  p.RetryBackoff,
		Options:  asr.DefaultOptions(s.cfg.ASR),
	}
	if s.cfg.Readability.Enabled {
		cfg.MaxWords = s.cfg.Readability.MaxWords
		cfg.MaxSentences = s.cfg.Readability.MaxSentences
	}
	return cfg
}
