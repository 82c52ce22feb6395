// Package readability re-splits long recognizer segments into short display
// pieces bounded by word and sentence counts.
package readability

import (
	"strings"

	"vietscribe-go/internal/domain/transcript"
)

const (
	DefaultMaxWords     = 15
	DefaultMaxSentences = 2
)

// Split groups the sentences of text into pieces of at most maxSentences
// sentences and maxWords words. A sentence longer than maxWords is chopped
// into consecutive maxWords-word pieces that never merge with neighbours.
func Split(text string, maxWords, maxSentences int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}

	var (
		pieces    []string
		group     []string
		groupSize int
		groupWord int
	)
	flush := func() {
		if len(group) > 0 {
			pieces = append(pieces, strings.Join(group, " "))
		}
		group, groupSize, groupWord = nil, 0, 0
	}

	for _, sentence := range sentences(text) {
		n := len(sentence)
		if n > maxWords {
			flush()
			for i := 0; i < n; i += maxWords {
				end := i + maxWords
				if end > n {
					end = n
				}
				pieces = append(pieces, strings.Join(sentence[i:end], " "))
			}
			continue
		}
		if groupSize >= maxSentences || groupWord+n > maxWords {
			flush()
		}
		group = append(group, strings.Join(sentence, " "))
		groupSize++
		groupWord += n
	}
	flush()
	return pieces
}

// sentences splits text into word lists, ending a sentence at every word that
// ends with '.', '!' or '?'.
func sentences(text string) [][]string {
	var out [][]string
	var cur []string
	for _, w := range strings.Fields(text) {
		cur = append(cur, w)
		switch w[len(w)-1] {
		case '.', '!', '?':
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// SplitSegment splits seg's text and gives each of the N pieces an equal
// share D/N of the segment's duration. A segment with no words yields nothing.
func SplitSegment(seg transcript.Segment, maxWords, maxSentences int) []transcript.Segment {
	pieces := Split(seg.Text, maxWords, maxSentences)
	if len(pieces) == 0 {
		return nil
	}

	per := seg.Duration() / float64(len(pieces))
	out := make([]transcript.Segment, len(pieces))
	for i, p := range pieces {
		start := seg.Start + float64(i)*per
		end := seg.Start + float64(i+1)*per
		if i == len(pieces)-1 {
			end = seg.End
		}
		out[i] = transcript.Segment{Start: start, End: end, Text: p}
	}
	return out
}

// SplitSegments applies SplitSegment to every segment in order.
func SplitSegments(segments []transcript.Segment, maxWords, maxSentences int) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, SplitSegment(s, maxWords, maxSentences)...)
	}
	return out
}
