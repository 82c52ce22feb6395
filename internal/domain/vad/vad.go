// Package vad finds speech regions in a signal so the windowing segmenter can
// cut on pauses instead of a fixed stride.
package vad

import (
	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/platform/errors"
)

// Detector returns ordered speech ranges in seconds.
type Detector interface {
	Detect(sig audio.Signal) ([]audio.TimeRange, error)
}

// Config tunes the energy detector.
type Config struct {
	FrameMs        int
	ThresholdRatio float64
	MinSpeech      float64
	MinSilence     float64
}

// DefaultConfig uses 30 ms frames and marks speech at twice the noise floor.
func DefaultConfig() Config {
	return Config{FrameMs: 30, ThresholdRatio: 2.0, MinSpeech: 0.25, MinSilence: 0.3}
}

// minThreshold keeps near-silent recordings from turning dither into speech.
const minThreshold = 1e-4

// EnergyDetector marks frames whose RMS exceeds ThresholdRatio times the
// 10th percentile frame energy.
type EnergyDetector struct {
	cfg Config
}

func NewEnergyDetector(cfg Config) *EnergyDetector {
	def := DefaultConfig()
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = def.FrameMs
	}
	if cfg.ThresholdRatio <= 0 {
		cfg.ThresholdRatio = def.ThresholdRatio
	}
	return &EnergyDetector{cfg: cfg}
}

func (d *EnergyDetector) Detect(sig audio.Signal) ([]audio.TimeRange, error) {
	if sig.SampleRate <= 0 {
		return nil, errors.New(errors.KindAudio, "vad.detect", "signal has no sample rate")
	}
	frameLen := sig.SampleRate * d.cfg.FrameMs / 1000
	if frameLen <= 0 {
		return nil, errors.New(errors.KindAudio, "vad.detect", "frame shorter than one sample")
	}

	energies := audio.FrameRMS(sig.Samples, frameLen, frameLen, false)
	if len(energies) == 0 {
		return nil, nil
	}

	threshold := audio.Percentile(energies, 10) * d.cfg.ThresholdRatio
	if threshold < minThreshold {
		threshold = minThreshold
	}

	frameSec := float64(frameLen) / float64(sig.SampleRate)
	var raw []audio.TimeRange
	inSpeech := false
	var start float64
	for i, e := range energies {
		t := float64(i) * frameSec
		switch {
		case e > threshold && !inSpeech:
			inSpeech, start = true, t
		case e <= threshold && inSpeech:
			inSpeech = false
			raw = append(raw, audio.TimeRange{Start: start, End: t})
		}
	}
	if inSpeech {
		raw = append(raw, audio.TimeRange{Start: start, End: float64(len(energies)) * frameSec})
	}

	bridged := audio.MergeRanges(raw, d.cfg.MinSilence)
	speech := bridged[:0]
	for _, r := range bridged {
		if r.Duration() >= d.cfg.MinSpeech {
			speech = append(speech, r)
		}
	}
	return speech, nil
}
