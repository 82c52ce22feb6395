package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Stage is one text transformation. Stages never fail; a panicking stage
// leaves its input unchanged.
type Stage struct {
	Name  string
	Apply func(string) string
	// SegmentOnly stages repair single recognizer outputs and are skipped by
	// NormalizeDocument, where sentence boundaries between segments are real.
	SegmentOnly bool
}

func (s Stage) run(in string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = in
		}
	}()
	return s.Apply(in)
}

const garbagePunct = ".;:,!?"

var (
	bracketNoise  = regexp.MustCompile(`\[[^\]]*\]`)
	spacedPeriods = regexp.MustCompile(`\.(\s*\.)+`)
	leadingPunct  = regexp.MustCompile(`^[\s.;:,!?]+`)
	brokenPair    = regexp.MustCompile(`(\p{L}*\p{Ll})\.\s+(\p{L}\p{Ll}*)`)
	splitClause   = regexp.MustCompile(`(\p{L}*\p{Ll})\.\s+(\p{Lu}\p{Ll}+)`)
	spaceBefore   = regexp.MustCompile(`\s+([,.!?;:])`)
	missingSpace  = regexp.MustCompile(`([,.!?;:])(\p{L})`)
	sentenceStart = regexp.MustCompile(`[.!?…]\s+\p{Ll}`)
)

func isGarbagePunct(r rune) bool { return strings.ContainsRune(garbagePunct, r) }

func nfc(s string) string { return norm.NFC.String(s) }

func collapseWhitespace(s string) string { return strings.Join(strings.Fields(s), " ") }

func stripNoise(fillers map[string]struct{}) func(string) string {
	return func(s string) string {
		s = bracketNoise.ReplaceAllString(s, " ")
		tokens := strings.Fields(s)
		kept := tokens[:0]
		for _, tok := range tokens {
			if _, ok := fillers[strings.ToLower(strings.TrimSuffix(tok, ","))]; ok {
				continue
			}
			kept = append(kept, tok)
		}
		return strings.Join(kept, " ")
	}
}

// cleanGarbage removes runs of three or more identical punctuation marks,
// collapses spaced periods, drops punctuation-only tokens and strips leading
// punctuation.
func cleanGarbage(s string) string {
	s = dropLongRuns(s, 3)
	s = spacedPeriods.ReplaceAllString(s, ".")

	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if strings.Trim(tok, garbagePunct) != "" {
			kept = append(kept, tok)
			continue
		}
		// A trailing mark still ends the sentence.
		if i == len(tokens)-1 && len(kept) > 0 {
			kept[len(kept)-1] += tok
		}
	}
	s = strings.Join(kept, " ")
	return leadingPunct.ReplaceAllString(s, "")
}

// dropLongRuns deletes every run of at least min identical garbage marks.
func dropLongRuns(s string, minRun int) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if !isGarbagePunct(runes[i]) || j-i < minRun {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// collapseRuns reduces repeated identical punctuation marks to one.
func collapseRuns(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev && isGarbagePunct(r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func repairBrokenSentences(mode BrokenSentenceMode, compounds map[string]struct{}) func(string) string {
	return func(s string) string {
		s = brokenPair.ReplaceAllStringFunc(s, func(m string) string {
			parts := brokenPair.FindStringSubmatch(m)
			first, second := parts[1], strings.ToLower(parts[2])
			if _, ok := compounds[strings.ToLower(first)+" "+second]; !ok {
				return m
			}
			return first + " " + second
		})
		if mode == BrokenLexicon {
			return s
		}
		return splitClause.ReplaceAllStringFunc(s, func(m string) string {
			parts := splitClause.FindStringSubmatch(m)
			return parts[1] + " " + strings.ToLower(parts[2])
		})
	}
}

func applyCorrections(c *compiledRules) func(string) string {
	return func(s string) string {
		for _, r := range c.dictionary {
			s = r.apply(s)
		}
		for _, r := range c.patterns {
			s = r.apply(s)
		}
		return s
	}
}

func fixPunctuation(s string) string {
	s = spaceBefore.ReplaceAllString(s, "$1")
	s = missingSpace.ReplaceAllString(s, "$1 $2")
	s = collapseRuns(s)
	s = strings.TrimRight(s, " \t\n,;:")
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	if !strings.ContainsRune(".!?…", last) {
		s += "."
	}
	return s
}

func capitalize(s string) string {
	s = upperFirstLetter(s)
	return sentenceStart.ReplaceAllStringFunc(s, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})
}

func upperFirstLetter(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
