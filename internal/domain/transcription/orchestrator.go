// Package transcription drives the recognizer over the units of one signal
// and assembles a single timed transcript.
package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vietscribe-go/internal/domain/asr"
	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/domain/readability"
	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/observability"
)

// CleanupPolicy decides when staged unit files are removed.
type CleanupPolicy string

const (
	CleanupImmediate CleanupPolicy = "immediate"
	CleanupDeferred  CleanupPolicy = "deferred"
)

// Config tunes one Orchestrator.
type Config struct {
	WorkDir string
	Cleanup CleanupPolicy
	// Attempts bounds tries per unit for transient failures.
	Attempts int
	// Backoff is multiplied by the attempt number between tries.
	Backoff time.Duration
	Options asr.Options
	// MaxWords and MaxSentences bound readability pieces; zero MaxWords
	// keeps recognizer segments as they are.
	MaxWords     int
	MaxSentences int
}

// DefaultConfig returns three attempts, 200ms backoff and 15/2 readability.
func DefaultConfig() Config {
	return Config{
		WorkDir:      filepath.Join(os.TempDir(), "vietscribe"),
		Cleanup:      CleanupImmediate,
		Attempts:     3,
		Backoff:      200 * time.Millisecond,
		MaxWords:     readability.DefaultMaxWords,
		MaxSentences: readability.DefaultMaxSentences,
	}
}

// ProgressFunc receives processed/total after every unit.
type ProgressFunc func(processed, total int)

// UnitFailure records why a unit produced nothing.
type UnitFailure struct {
	Index    int
	Span     audio.TimeRange
	Attempts int
	Err      error
}

// Result is the accumulated output of a run.
type Result struct {
	Segments   []transcript.Segment
	ErrorCount int
	Units      int
	Failures   []UnitFailure
}

// Orchestrator runs units strictly in order through one recognizer.
type Orchestrator struct {
	recognizer asr.Recognizer
	cfg        Config
	logger     *logging.Logger
	events     eventbus.Publisher
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithPublisher(p eventbus.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// New builds an Orchestrator. The recognizer must already be initialized and
// stays owned by the caller.
func New(recognizer asr.Recognizer, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	if cfg.Cleanup == "" {
		cfg.Cleanup = def.Cleanup
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	o := &Orchestrator{
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logging.Nop(),
		events:     eventbus.Nop{},
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type runIDKey struct{}

// WithRunID tags ctx so published events carry the run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run id set by WithRunID.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run recognizes every unit in order. Unit failures are counted and skipped.
// The returned error is ctx.Err() when cancelled between units (with the
// partial result), or an aggregate error when no unit produced text and at
// least one failed.
func (o *Orchestrator) Run(ctx context.Context, sig audio.Signal, units []audio.Unit, progress ProgressFunc) (Result, error) {
	runID := RunIDFrom(ctx)
	total := len(units)
	result := Result{Units: total, Segments: []transcript.Segment{}}
	if progress == nil {
		progress = func(int, int) {}
	}

	if err := os.MkdirAll(o.cfg.WorkDir, 0o755); err != nil {
		return result, errors.Wrap(errors.KindPlatform, "transcription.run", "cannot create work dir", err)
	}

	var staged []string
	if o.cfg.Cleanup == CleanupDeferred {
		defer func() {
			for _, p := range staged {
				removeQuietly(p)
			}
		}()
	}

	o.logger.InfoTag("ASR", "transcribing %d unit(s), %.1fs of audio", total, sig.Duration())
	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			o.logger.WarnTag("ASR", "run cancelled after %d/%d unit(s)", i, total)
			return result, err
		}

		span := unit.Span(sig.SampleRate)
		started := time.Now()
		segments, path, attempts, err := o.runUnit(ctx, sig, unit)
		if path != "" {
			if o.cfg.Cleanup == CleanupDeferred {
				staged = append(staged, path)
			} else {
				removeQuietly(path)
			}
		}
		observability.RecordMetric(ctx, observability.MetricUnitSeconds, time.Since(started).Seconds(), map[string]string{"backend": string(o.recognizer.Backend())})

		event := eventbus.UnitEvent{RunID: runID, Index: i, Total: total, Start: span.Start, End: span.End, Attempts: attempts}
		if err != nil {
			result.ErrorCount++
			result.Failures = append(result.Failures, UnitFailure{Index: i, Span: span, Attempts: attempts, Err: err})
			o.logger.WarnTag("ASR", "unit %d/%d %s failed: %v", i+1, total, span, err)
			observability.RecordMetric(ctx, observability.MetricUnitFailures, 1, map[string]string{"kind": string(errors.KindOf(err))})
			event.Error = err.Error()
			o.events.Publish(eventbus.TopicUnitFailed, event)
		} else {
			result.Segments = append(result.Segments, segments...)
			event.Segments = len(segments)
			o.events.Publish(eventbus.TopicUnitDone, event)
		}

		progress(i+1, total)
		o.events.Publish(eventbus.TopicProgress, eventbus.ProgressEvent{RunID: runID, Processed: i + 1, Total: total})
	}

	if len(result.Segments) == 0 && result.ErrorCount > 0 {
		return result, errors.New(errors.KindAggregate, "transcription.run",
			fmt.Sprintf("%d of %d unit(s) failed and no text was produced", result.ErrorCount, total))
	}
	return result, nil
}

// runUnit stages the unit audio and recognizes it, retrying transient
// failures. It returns the staged path so the caller applies the cleanup
// policy.
func (o *Orchestrator) runUnit(ctx context.Context, sig audio.Signal, unit audio.Unit) (segs []transcript.Segment, path string, attempts int, err error) {
	ctx, end := observability.StartSpan(ctx, "transcription", "unit")
	defer func() { end(err) }()

	start, stop := unit.SampleRange(sig.SampleRate)
	samples := sig.Slice(start, stop)
	span := unit.Span(sig.SampleRate)

	var res asr.Result
	for attempts = 1; ; attempts++ {
		res, err = o.attempt(ctx, &path, samples, sig.SampleRate)
		if err == nil {
			break
		}
		if !errors.Retryable(err) || attempts >= o.cfg.Attempts {
			return nil, path, attempts, err
		}
		observability.RecordMetric(ctx, observability.MetricUnitRetries, 1, nil)
		o.logger.DebugTag("ASR", "unit %d attempt %d failed, retrying: %v", unit.Position(), attempts, err)
		if serr := o.sleep(ctx, o.cfg.Backoff*time.Duration(attempts)); serr != nil {
			return nil, path, attempts, serr
		}
	}

	return o.assemble(res, span), path, attempts, nil
}

func (o *Orchestrator) attempt(ctx context.Context, path *string, samples []float32, sampleRate int) (asr.Result, error) {
	if *path == "" {
		p := filepath.Join(o.cfg.WorkDir, "unit_"+uuid.NewString()+".wav")
		if err := audio.WriteWAV(p, samples, sampleRate); err != nil {
			removeQuietly(p)
			return asr.Result{}, &errors.Error{Kind: errors.KindTransientIO, Op: "transcription.stage", Message: "cannot stage unit audio", Cause: err}
		}
		*path = p
	}
	res, err := o.recognizer.Recognize(ctx, *path, o.cfg.Options)
	if err != nil {
		return asr.Result{}, errors.Wrap(errors.KindBackend, "transcription.recognize", "recognizer failed", err)
	}
	return res, nil
}

// assemble shifts unit-local segments to absolute time and applies the
// readability split.
func (o *Orchestrator) assemble(res asr.Result, span audio.TimeRange) []transcript.Segment {
	local := res.Segments
	if len(local) == 0 && strings.TrimSpace(res.Text) != "" {
		local = []asr.Segment{{Start: 0, End: span.Duration(), Text: res.Text}}
	}

	out := make([]transcript.Segment, 0, len(local))
	for _, s := range local {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		seg := transcript.Segment{Start: span.Start + s.Start, End: span.Start + s.End, Text: text}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		if o.cfg.MaxWords > 0 {
			out = append(out, readability.SplitSegment(seg, o.cfg.MaxWords, o.cfg.MaxSentences)...)
			continue
		}
		out = append(out, seg)
	}
	return out
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
