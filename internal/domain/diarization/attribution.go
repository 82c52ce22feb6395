// Package diarization labels transcript segments with rotating speaker ids.
//
// This is not voice identification. A new speaker is assumed after a long
// pause or a large jump in loudness, and ids cycle through 1..maxSpeakers, so
// a returning real speaker is not recognised as such.
package diarization

import (
	"fmt"
	"math"
	"strings"

	"vietscribe-go/internal/domain/audio"
	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/logging"
)

const (
	frameSeconds      = 0.025
	hopSeconds        = 0.010
	energyPercentile  = 25
	gapFactor         = 1.5
	energyJumpRatio   = 0.3
	energyEpsilon     = 1e-6
	DefaultMinSilence = 0.5
	DefaultMaxSpeaker = 2
)

// Attributor runs the rotation heuristic. The zero value works with a
// discarding logger.
type Attributor struct {
	Logger *logging.Logger
}

// Attribute labels segments in order. It never fails: empty or malformed
// input, or any internal fault, yields an empty list.
func (a Attributor) Attribute(segments []transcript.Segment, sig audio.Signal, minSilence float64, maxSpeakers int) (out []transcript.SpeakerSegment) {
	logger := a.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WarnTag("DIAR", "speaker attribution failed: %v", r)
			out = []transcript.SpeakerSegment{}
		}
	}()

	if len(segments) == 0 || sig.SampleRate <= 0 || maxSpeakers < 1 {
		return []transcript.SpeakerSegment{}
	}
	if err := validate(segments); err != nil {
		logger.WarnTag("DIAR", "skipping speaker attribution: %v", err)
		return []transcript.SpeakerSegment{}
	}

	p := newProfile(sig)
	out = make([]transcript.SpeakerSegment, 0, len(segments))
	current := 1
	lastEnd := 0.0

	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		gap := 0.0
		if i > 0 {
			gap = seg.Start - lastEnd
		}
		energy, ok := p.mean(seg.Start, seg.End)
		if !ok {
			energy = p.threshold
		}

		switch {
		case gap > gapFactor*minSilence:
			current = current%maxSpeakers + 1
		case i > 0 && len(out) > 0:
			prev := out[len(out)-1]
			if prevEnergy, ok := p.mean(prev.Start, prev.End); ok {
				if math.Abs(energy-prevEnergy)/(prevEnergy+energyEpsilon) > energyJumpRatio {
					current = current%maxSpeakers + 1
				}
			}
		}

		out = append(out, transcript.SpeakerSegment{
			SpeakerID: current,
			Speaker:   transcript.SpeakerLabel(current),
			Start:     seg.Start,
			End:       seg.End,
			Text:      text,
		})
		lastEnd = seg.End
	}
	return out
}

// Attribute runs the heuristic with a discarding logger.
func Attribute(segments []transcript.Segment, sig audio.Signal, minSilence float64, maxSpeakers int) []transcript.SpeakerSegment {
	return Attributor{}.Attribute(segments, sig, minSilence, maxSpeakers)
}

func validate(segments []transcript.Segment) error {
	for i, s := range segments {
		if math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0) {
			return fmt.Errorf("segment %d has a non-finite time", i)
		}
		if s.End < s.Start {
			return fmt.Errorf("segment %d ends before it starts", i)
		}
	}
	return nil
}

// profile holds short-time energy over the whole signal.
type profile struct {
	energy    []float64
	hopRate   float64
	threshold float64
}

func newProfile(sig audio.Signal) profile {
	frameLen := int(frameSeconds * float64(sig.SampleRate))
	hop := int(hopSeconds * float64(sig.SampleRate))
	energy := audio.FrameRMS(sig.Samples, frameLen, hop, true)
	p := profile{energy: energy, threshold: audio.Percentile(energy, energyPercentile)}
	if hop > 0 {
		p.hopRate = float64(sig.SampleRate) / float64(hop)
	}
	return p
}

// mean returns the average frame energy over [start, end). It reports false
// when the range falls outside the signal. A range inside the signal that
// covers no frame yields NaN, which never counts as a loudness jump.
func (p profile) mean(start, end float64) (float64, bool) {
	from := int(start * p.hopRate)
	to := int(end * p.hopRate)
	if from < 0 || from >= len(p.energy) || to > len(p.energy) {
		return 0, false
	}
	if to <= from {
		return math.NaN(), true
	}
	var sum float64
	for _, e := range p.energy[from:to] {
		sum += e
	}
	return sum / float64(to-from), true
}
