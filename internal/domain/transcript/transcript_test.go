package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndParseLines(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 3.2, Text: "Xin chào các bạn."},
		{Start: 3.2, End: 4, Text: "  "},
		{Start: 4, End: 7.25, Text: "Hôm nay trời đẹp."},
	}

	text := FormatLines(segments)
	assert.Equal(t, "[0.00 - 3.20] Xin chào các bạn.\n[4.00 - 7.25] Hôm nay trời đẹp.", text)

	parsed, err := ParseLines(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, []Segment{segments[0], segments[2]}, parsed)
}

func TestParseLines_ClockAndEstimated(t *testing.T) {
	input := "[00:01.500 - 00:03.000] Speaker 1: một hai\n\nkhông có mốc thời gian\n[1:00:00 - 1:00:02] cuối"

	parsed, err := ParseLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, Segment{Start: 1.5, End: 3, Text: "Speaker 1: một hai"}, parsed[0])
	assert.Equal(t, Segment{Start: 3, End: 5.5, Text: "không có mốc thời gian"}, parsed[1])
	assert.Equal(t, Segment{Start: 3600, End: 3602, Text: "cuối"}, parsed[2])
}

func TestParseLines_Invalid(t *testing.T) {
	_, err := ParseLines(strings.NewReader("[5.0 - 2.0] ngược"))
	assert.Error(t, err)

	_, err = ParseLines(strings.NewReader("[1:2:3:4 - 5] quá nhiều"))
	assert.Error(t, err)
}

func TestClockTime(t *testing.T) {
	assert.Equal(t, "00:00.000", ClockTime(0))
	assert.Equal(t, "01:05.250", ClockTime(65.25))
	assert.Equal(t, "01:00:01.000", ClockTime(3601))
	assert.Equal(t, "00:00.000", ClockTime(-2))
}

func TestFormatSpeakerLines(t *testing.T) {
	got := FormatSpeakerLines([]SpeakerSegment{
		{SpeakerID: 1, Speaker: SpeakerLabel(1), Start: 0, End: 2, Text: "xin chào"},
		{SpeakerID: 2, Speaker: SpeakerLabel(2), Start: 5, End: 7, Text: "tôi là ai"},
	})
	assert.Equal(t, "[00:00.000 - 00:02.000] Speaker 1: xin chào\n[00:05.000 - 00:07.000] Speaker 2: tôi là ai", got)
}

func TestJoinText(t *testing.T) {
	assert.Equal(t, "a b", JoinText([]Segment{{Text: " a "}, {Text: ""}, {Text: "b"}}))
}
