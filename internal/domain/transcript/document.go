package transcript

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Document is a finished transcript with its metadata.
type Document struct {
	ID         string           `json:"id"`
	Title      string           `json:"title,omitempty"`
	Source     string           `json:"source,omitempty"`
	Language   string           `json:"language,omitempty"`
	Model      string           `json:"model,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Duration   float64          `json:"duration"`
	Text       string           `json:"text"`
	Segments   []Segment        `json:"segments"`
	Speakers   []SpeakerSegment `json:"speakers,omitempty"`
	ErrorCount int              `json:"error_count"`
	Stats      Stats            `json:"stats"`
}

// Stats summarizes a transcript.
type Stats struct {
	WordCount      int                     `json:"word_count"`
	CharacterCount int                     `json:"character_count"`
	SentenceCount  int                     `json:"sentence_count"`
	SegmentCount   int                     `json:"segment_count"`
	Duration       float64                 `json:"duration"`
	WordsPerMinute float64                 `json:"words_per_minute"`
	Speakers       int                     `json:"speakers"`
	SpeakerStats   map[string]SpeakerStats `json:"speaker_stats,omitempty"`
}

// SpeakerStats is the per-speaker breakdown.
type SpeakerStats struct {
	Duration       float64 `json:"duration"`
	WordCount      int     `json:"word_count"`
	WordsPerMinute float64 `json:"words_per_minute"`
	Segments       int     `json:"segments"`
}

// ComputeStats derives Stats from text, segments, optional speaker segments
// and the audio duration in seconds.
func ComputeStats(text string, segments []Segment, speakers []SpeakerSegment, duration float64) Stats {
	words := len(strings.Fields(text))
	st := Stats{
		WordCount:      words,
		CharacterCount: utf8.RuneCountInString(text),
		SentenceCount:  countSentences(text),
		SegmentCount:   len(segments),
		Duration:       duration,
		WordsPerMinute: perMinute(words, duration),
	}
	if len(speakers) == 0 {
		return st
	}

	st.SpeakerStats = map[string]SpeakerStats{}
	for _, s := range speakers {
		ss := st.SpeakerStats[s.Speaker]
		ss.Duration += s.End - s.Start
		ss.WordCount += len(strings.Fields(s.Text))
		ss.Segments++
		st.SpeakerStats[s.Speaker] = ss
	}
	for name, ss := range st.SpeakerStats {
		ss.WordsPerMinute = perMinute(ss.WordCount, ss.Duration)
		st.SpeakerStats[name] = ss
	}
	st.Speakers = len(st.SpeakerStats)
	return st
}

// SpeakerNames returns the labels present in stats, sorted.
func (s Stats) SpeakerNames() []string {
	names := make([]string, 0, len(s.SpeakerStats))
	for n := range s.SpeakerStats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func perMinute(words int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(words) / seconds * 60
}

func countSentences(text string) int {
	n := 0
	inSentence := false
	for _, r := range text {
		switch {
		case strings.ContainsRune(".!?…", r):
			if inSentence {
				n++
			}
			inSentence = false
		case r != ' ' && r != '\n' && r != '\t':
			inSentence = true
		}
	}
	if inSentence {
		n++
	}
	return n
}
