package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/domain/asr"
	"vietscribe-go/internal/domain/asr/asrtest"
	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
)

func silence(seconds float64) audio.Signal {
	return audio.Signal{Samples: make([]float32, int(seconds*16000)), SampleRate: 16000}
}

func newTestOrchestrator(t *testing.T, rec asr.Recognizer, cfg Config, opts ...Option) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	cfg.WorkDir = t.TempDir()
	o := New(rec, cfg, opts...)
	var sleeps []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return o, &sleeps
}

func transient() error {
	return errors.New(errors.KindTransientIO, "test", "file locked")
}

func TestRun_AbsoluteTimesAreMonotonic(t *testing.T) {
	sig := silence(30)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Steps: []asrtest.Step{
		{Result: asr.Result{Segments: []asr.Segment{{Start: 0, End: 4, Text: "một"}, {Start: 4, End: 9, Text: "hai"}}}},
		asrtest.Text(1, 3, "ba"),
		asrtest.Text(0.5, 2, "bốn"),
	}}
	o, _ := newTestOrchestrator(t, rec, Config{})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 4)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, 3, res.Units)

	starts := []float64{0, 4, 11, 20.5}
	for i, s := range res.Segments {
		assert.InDelta(t, starts[i], s.Start, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, s.Start, res.Segments[i-1].Start)
		}
	}
}

func TestRun_TextOnlyResultSpansWholeUnit(t *testing.T) {
	sig := silence(20)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Fallback: asrtest.Step{Result: asr.Result{Text: " xin chào "}}}
	o, _ := newTestOrchestrator(t, rec, Config{})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)
	assert.Equal(t, 10.0, res.Segments[1].Start)
	assert.Equal(t, 20.0, res.Segments[1].End)
	assert.Equal(t, "xin chào", res.Segments[1].Text)
}

func TestRun_ReadabilitySplit(t *testing.T) {
	sig := silence(10)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Steps: []asrtest.Step{asrtest.Text(0, 8, "Một. Hai. Ba. Bốn.")}}
	o, _ := newTestOrchestrator(t, rec, Config{MaxWords: 15, MaxSentences: 2})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	require.Len(t, res.Segments, 2)
	assert.Equal(t, "Một. Hai.", res.Segments[0].Text)
	assert.Equal(t, 4.0, res.Segments[1].Start)
	assert.Equal(t, 8.0, res.Segments[1].End)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	sig := silence(10)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Steps: []asrtest.Step{
		{Err: transient()},
		{Err: transient()},
		asrtest.Text(0, 1, "được rồi"),
	}}
	o, sleeps := newTestOrchestrator(t, rec, Config{Backoff: 200 * time.Millisecond})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, 3, rec.CallCount())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *sleeps)
	assert.Equal(t, rec.Calls[0].Path, rec.Calls[2].Path, "the staged file is reused across attempts")
}

func TestRun_GivesUpAfterThreeAttempts(t *testing.T) {
	sig := silence(20)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{
		Steps:    []asrtest.Step{{Err: transient()}, {Err: transient()}, {Err: transient()}},
		Fallback: asrtest.Text(0, 1, "còn lại"),
	}
	o, _ := newTestOrchestrator(t, rec, Config{})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err, "one successful unit is enough")
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 3, res.Failures[0].Attempts)
	assert.Equal(t, 4, rec.CallCount())
	require.Len(t, res.Segments, 1)
	assert.Equal(t, 10.0, res.Segments[0].Start)
}

func TestRun_BackendErrorsAreNotRetried(t *testing.T) {
	sig := silence(10)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Fallback: asrtest.Step{Err: errors.New(errors.KindBackend, "test", "model exploded")}}
	o, _ := newTestOrchestrator(t, rec, Config{})

	_, err := o.Run(context.Background(), sig, units, nil)
	require.Error(t, err)
	assert.Equal(t, 1, rec.CallCount())
}

func TestRun_AggregateFailure(t *testing.T) {
	sig := silence(30)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Fallback: asrtest.Step{Err: errors.New(errors.KindBackend, "test", "down")}}
	o, _ := newTestOrchestrator(t, rec, Config{})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAggregate))
	assert.Contains(t, err.Error(), "3 of 3")
	assert.Equal(t, 3, res.ErrorCount)
	assert.Empty(t, res.Segments)
}

func TestRun_EmptyOutputWithoutFailuresIsNotAnError(t *testing.T) {
	sig := silence(10)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{}
	o, _ := newTestOrchestrator(t, rec, Config{})

	res, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
}

func TestRun_CancellationReturnsPartialResult(t *testing.T) {
	sig := silence(30)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "chào")}
	o, _ := newTestOrchestrator(t, rec, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res, err := o.Run(ctx, sig, units, func(processed, _ int) {
		if processed == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Segments, 1)
	assert.Equal(t, 1, rec.CallCount())
}

func TestRun_ProgressAndEvents(t *testing.T) {
	sig := silence(20)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	rec := &asrtest.Recognizer{Steps: []asrtest.Step{
		{Err: errors.New(errors.KindBackend, "test", "bad unit")},
		asrtest.Text(0, 1, "ổn"),
	}}
	bus := eventbus.New()
	var done, failed []eventbus.UnitEvent
	require.NoError(t, bus.Subscribe(eventbus.TopicUnitDone, func(e eventbus.UnitEvent) { done = append(done, e) }))
	require.NoError(t, bus.Subscribe(eventbus.TopicUnitFailed, func(e eventbus.UnitEvent) { failed = append(failed, e) }))
	o, _ := newTestOrchestrator(t, rec, Config{}, WithPublisher(bus))

	var progress [][2]int
	_, err := o.Run(WithRunID(context.Background(), "run-1"), sig, units, func(p, total int) {
		progress = append(progress, [2]int{p, total})
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
	require.Len(t, failed, 1)
	require.Len(t, done, 1)
	assert.Equal(t, "run-1", failed[0].RunID)
	assert.Contains(t, failed[0].Error, "bad unit")
	assert.Equal(t, 1, done[0].Segments)
	assert.Equal(t, 10.0, done[0].Start)
}

func TestRun_CleanupPolicies(t *testing.T) {
	sig := silence(20)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))

	t.Run("immediate", func(t *testing.T) {
		rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "a")}
		o, _ := newTestOrchestrator(t, rec, Config{Cleanup: CleanupImmediate})
		_, err := o.Run(context.Background(), sig, units, func(int, int) {
			_, statErr := os.Stat(rec.Calls[len(rec.Calls)-1].Path)
			assert.True(t, os.IsNotExist(statErr))
		})
		require.NoError(t, err)
	})

	t.Run("deferred", func(t *testing.T) {
		rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "a")}
		o, _ := newTestOrchestrator(t, rec, Config{Cleanup: CleanupDeferred})
		_, err := o.Run(context.Background(), sig, units, func(int, int) {
			for _, c := range rec.Calls {
				assert.FileExists(t, c.Path)
			}
		})
		require.NoError(t, err)
		for _, c := range rec.Calls {
			_, statErr := os.Stat(c.Path)
			assert.True(t, os.IsNotExist(statErr))
		}
	})
}

func TestRun_StagedAudioIsReadable(t *testing.T) {
	sig := silence(10)
	units := audio.ChunksToUnits(audio.FixedChunks(sig, 10))
	var loaded audio.Signal
	rec := &inspectingRecognizer{inspect: func(path string) {
		var err error
		loaded, err = audio.Load(path)
		require.NoError(t, err)
	}}
	o, _ := newTestOrchestrator(t, rec, Config{})

	_, err := o.Run(context.Background(), sig, units, nil)
	require.NoError(t, err)
	assert.Equal(t, 16000, loaded.SampleRate)
	assert.Equal(t, sig.Len(), loaded.Len())
}

type inspectingRecognizer struct {
	asrtest.Recognizer
	inspect func(path string)
}

func (r *inspectingRecognizer) Recognize(ctx context.Context, path string, opts asr.Options) (asr.Result, error) {
	r.inspect(path)
	return r.Recognizer.Recognize(ctx, path, opts)
}

func TestRun_UnavailableWhisperServerIsCalledOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"model unavailable","type":"server_error"}}`))
	}))
	defer srv.Close()

	rec, err := asr.New(config.ASRConfig{Backend: "whisper-server", BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Init(context.Background()))
	defer rec.Close()

	sig := silence(2)
	o, sleeps := newTestOrchestrator(t, rec, Config{})
	res, err := o.Run(context.Background(), sig, audio.ChunksToUnits(audio.FixedChunks(sig, 10)), nil)

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAggregate))
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *sleeps)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Attempts)
	assert.True(t, errors.IsKind(res.Failures[0].Err, errors.KindBackend))
}
