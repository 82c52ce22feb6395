// Package asrtest provides a scripted recognizer for tests.
package asrtest

import (
	"context"
	"sync"

	"vietscribe-go/internal/domain/asr"
)

// Step is the scripted outcome of one Recognize call.
type Step struct {
	Result asr.Result
	Err    error
}

// Recognizer replays Steps in call order. Once the script is exhausted it
// returns Fallback.
type Recognizer struct {
	mu       sync.Mutex
	Steps    []Step
	Fallback Step
	Calls    []Call
	Inited   bool
	Closed   bool
	// Gate, when set, blocks every call until it is closed or ctx ends.
	Gate chan struct{}
}

// Call records one Recognize invocation.
type Call struct {
	Path string
	Opts asr.Options
}

func (r *Recognizer) Init(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Inited = true
	return nil
}

func (r *Recognizer) Recognize(ctx context.Context, path string, opts asr.Options) (asr.Result, error) {
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return asr.Result{}, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := len(r.Calls)
	r.Calls = append(r.Calls, Call{Path: path, Opts: opts})
	if idx < len(r.Steps) {
		return r.Steps[idx].Result, r.Steps[idx].Err
	}
	return r.Fallback.Result, r.Fallback.Err
}

func (r *Recognizer) Backend() asr.Backend { return "fake" }

func (r *Recognizer) Model() string { return "fake" }

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// CallCount returns how many times Recognize ran.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Text is a shorthand for a successful step with one segment spanning
// [start, end].
func Text(start, end float64, text string) Step {
	return Step{Result: asr.Result{
		Text:     text,
		Segments: []asr.Segment{{Start: start, End: end, Text: text}},
	}}
}
