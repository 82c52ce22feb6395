package textnorm

import (
	"strings"
	"sync"

	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/logging"
)

// maxPasses bounds the fixed-point loop in Normalize.
const maxPasses = 8

// Normalizer runs the cleanup stages over transcript text.
type Normalizer struct {
	stages []Stage
	logger *logging.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger attaches a logger used for pass diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(n *Normalizer) { n.logger = l }
}

// New compiles rules into a Normalizer.
func New(rules Rules, opts ...Option) (*Normalizer, error) {
	c, err := compile(rules)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		stages: []Stage{
			{Name: "unicode", Apply: nfc},
			{Name: "noise", Apply: stripNoise(c.fillers)},
			{Name: "garbage", Apply: cleanGarbage},
			{Name: "broken_sentences", Apply: repairBrokenSentences(c.mode, c.compounds), SegmentOnly: true},
			{Name: "corrections", Apply: applyCorrections(c)},
			{Name: "punctuation", Apply: fixPunctuation},
			{Name: "capitalization", Apply: capitalize},
			{Name: "whitespace", Apply: collapseWhitespace},
		},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

var (
	defaultOnce       sync.Once
	defaultNormalizer *Normalizer
)

// Default returns a shared Normalizer built from the embedded rules.
func Default() *Normalizer {
	defaultOnce.Do(func() {
		n, err := New(DefaultRules())
		if err != nil {
			panic(err)
		}
		defaultNormalizer = n
	})
	return defaultNormalizer
}

// Normalize cleans text with the default rules.
func Normalize(text string) string { return Default().Normalize(text) }

// Stages lists stage names in execution order.
func (n *Normalizer) Stages() []string {
	names := make([]string, len(n.stages))
	for i, s := range n.stages {
		names[i] = s.Name
	}
	return names
}

// Normalize applies every stage until the text stops changing, so that
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	return n.settle(text, true)
}

// NormalizeDocument normalizes joined transcript text. Segment-only stages
// are skipped so the boundaries between segments survive.
func (n *Normalizer) NormalizeDocument(text string) string {
	return n.settle(text, false)
}

func (n *Normalizer) settle(text string, segment bool) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	current := text
	for pass := 1; pass <= maxPasses; pass++ {
		next := current
		for _, stage := range n.stages {
			if stage.SegmentOnly && !segment {
				continue
			}
			next = stage.run(next)
		}
		if next == current {
			return next
		}
		current = next
	}
	n.logger.DebugTag("NORM", "normalization did not settle after %d passes", maxPasses)
	return current
}

// NormalizeSegments cleans each segment's text and drops segments left empty.
func (n *Normalizer) NormalizeSegments(segments []transcript.Segment) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.Text = n.Normalize(seg.Text)
		if seg.Text == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// NormalizeSpeakerSegments is NormalizeSegments for attributed segments.
func (n *Normalizer) NormalizeSpeakerSegments(segments []transcript.SpeakerSegment) []transcript.SpeakerSegment {
	out := make([]transcript.SpeakerSegment, 0, len(segments))
	for _, seg := range segments {
		seg.Text = n.Normalize(seg.Text)
		if seg.Text == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}
