// Package transcript defines the segment types exchanged between pipeline
// stages and their plain-text line format.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Segment is recognized text at absolute time in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// SpeakerSegment is a Segment labelled by the attribution stage.
type SpeakerSegment struct {
	SpeakerID int     `json:"speaker_id"`
	Speaker   string  `json:"speaker"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
}

// SpeakerLabel renders the display label for a speaker id.
func SpeakerLabel(id int) string { return fmt.Sprintf("Speaker %d", id) }

// JoinText concatenates non-empty segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// FormatLines renders "[start - end] text" lines with seconds at two
// decimals. Empty segments are skipped.
func FormatLines(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%.2f - %.2f] %s", s.Start, s.End, text)
	}
	return b.String()
}

// FormatSpeakerLines renders "[mm:ss.mmm - mm:ss.mmm] Speaker N: text" lines.
func FormatSpeakerLines(segments []SpeakerSegment) string {
	var b strings.Builder
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s - %s] %s: %s", ClockTime(s.Start), ClockTime(s.End), s.Speaker, text)
	}
	return b.String()
}

// ClockTime formats seconds as mm:ss.mmm, or hh:mm:ss.mmm past an hour.
func ClockTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds * 1000)
	hours := totalMillis / 3_600_000
	minutes := totalMillis / 60_000 % 60
	secs := totalMillis / 1000 % 60
	millis := totalMillis % 1000
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
	}
	return fmt.Sprintf("%02d:%02d.%03d", minutes, secs, millis)
}

var linePattern = regexp.MustCompile(`^\[\s*([\d:.]+)\s*-\s*([\d:.]+)\s*\]\s*(.+)$`)

// secondsPerWord estimates the span of a line that carries no timestamp.
const secondsPerWord = 0.5

// ParseLines reads "[start - end] text" lines back into segments. Times may be
// plain seconds or clock notation. A line without a timestamp starts where the
// previous one ended and lasts half a second per word. Blank lines are
// skipped.
func ParseLines(r io.Reader) ([]Segment, error) {
	var out []Segment
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := linePattern.FindStringSubmatch(line); m != nil {
			start, err := ParseClock(m[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			end, err := ParseClock(m[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if end < start {
				return nil, fmt.Errorf("line %d: end %.2f before start %.2f", lineNo, end, start)
			}
			out = append(out, Segment{Start: start, End: end, Text: strings.TrimSpace(m[3])})
			continue
		}

		prevEnd := 0.0
		if len(out) > 0 {
			prevEnd = out[len(out)-1].End
		}
		words := len(strings.Fields(line))
		out = append(out, Segment{Start: prevEnd, End: prevEnd + float64(words)*secondsPerWord, Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseClock accepts "12.5", "01:02.5" or "1:02:03.250".
func ParseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}
