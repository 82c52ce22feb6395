// Package audio holds the decoded signal model and the strategies that cut a
// signal into the ordered units fed to the recognizer.
package audio

import "fmt"

// Signal is a mono sample buffer in [-1, 1] at a fixed sample rate.
type Signal struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (s Signal) Len() int { return len(s.Samples) }

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Slice returns samples in [start, end), clamped to the buffer.
func (s Signal) Slice(start, end int) []float32 {
	if start < 0 {
		start = 0
	}
	if end > len(s.Samples) {
		end = len(s.Samples)
	}
	if start >= end {
		return nil
	}
	return s.Samples[start:end]
}

// PeakNormalized returns a copy scaled so the loudest sample has magnitude 1.
// A silent or empty signal is returned unchanged.
func (s Signal) PeakNormalized() Signal {
	var peak float32
	for _, v := range s.Samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 || peak == 1 {
		return s
	}
	out := make([]float32, len(s.Samples))
	for i, v := range s.Samples {
		out[i] = v / peak
	}
	return Signal{Samples: out, SampleRate: s.SampleRate}
}

// TimeRange is a span in seconds with End >= Start.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (r TimeRange) Duration() float64 { return r.End - r.Start }

func (r TimeRange) String() string { return fmt.Sprintf("[%.2f-%.2f]", r.Start, r.End) }

// Unit is one slice of the signal handed to the recognizer. Units are
// processed in Index order.
type Unit interface {
	Position() int
	// SampleRange returns the [start, end) sample indices of the unit.
	SampleRange(sampleRate int) (int, int)
	// Span returns the unit's absolute time range in seconds.
	Span(sampleRate int) TimeRange
}

// Chunk is a fixed-stride slice of the signal.
type Chunk struct {
	Index       int
	SampleStart int
	SampleEnd   int
}

func (c Chunk) Position() int { return c.Index }

func (c Chunk) SampleRange(int) (int, int) { return c.SampleStart, c.SampleEnd }

func (c Chunk) Span(sampleRate int) TimeRange {
	if sampleRate <= 0 {
		return TimeRange{}
	}
	sr := float64(sampleRate)
	return TimeRange{Start: float64(c.SampleStart) / sr, End: float64(c.SampleEnd) / sr}
}

// Window is a speech-activity derived slice bounded by a min and max duration.
type Window struct {
	Index int
	TimeRange
}

func (w Window) Position() int { return w.Index }

func (w Window) SampleRange(sampleRate int) (int, int) {
	return int(w.Start * float64(sampleRate)), int(w.End * float64(sampleRate))
}

func (w Window) Span(int) TimeRange { return w.TimeRange }

// ChunksToUnits and WindowsToUnits adapt concrete slices to the Unit list the
// orchestrator consumes.
func ChunksToUnits(chunks []Chunk) []Unit {
	units := make([]Unit, len(chunks))
	for i, c := range chunks {
		units[i] = c
	}
	return units
}

func WindowsToUnits(windows []Window) []Unit {
	units := make([]Unit, len(windows))
	for i, w := range windows {
		units[i] = w
	}
	return units
}
