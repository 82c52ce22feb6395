package export

import (
	"strings"
	"unicode"
)

// Score holds error rates of a hypothesis against a reference.
type Score struct {
	WER            float64 `json:"wer"`
	CER            float64 `json:"cer"`
	ReferenceWords int     `json:"reference_words"`
	ReferenceChars int     `json:"reference_chars"`
	WordEdits      int     `json:"word_edits"`
	CharEdits      int     `json:"char_edits"`
}

// Evaluate computes word and character error rates as edit distance over
// reference length. Case and punctuation are ignored. An empty reference
// scores 0 against an empty hypothesis and 1 otherwise.
func Evaluate(reference, hypothesis string) Score {
	refWords := tokens(reference)
	hypWords := tokens(hypothesis)
	refChars := []rune(strings.Join(refWords, " "))
	hypChars := []rune(strings.Join(hypWords, " "))

	s := Score{
		ReferenceWords: len(refWords),
		ReferenceChars: len(refChars),
		WordEdits:      editDistance(refWords, hypWords),
		CharEdits:      editDistance(refChars, hypChars),
	}
	s.WER = rate(s.WordEdits, len(refWords), len(hypWords))
	s.CER = rate(s.CharEdits, len(refChars), len(hypChars))
	return s
}

func rate(edits, refLen, hypLen int) float64 {
	if refLen == 0 {
		if hypLen == 0 {
			return 0
		}
		return 1
	}
	return float64(edits) / float64(refLen)
}

func tokens(s string) []string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Fields(s)
}

func editDistance[T comparable](a, b []T) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
