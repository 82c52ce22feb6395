package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/domain/transcript"
)

func sampleDoc(withSpeakers bool) transcript.Document {
	segs := []transcript.Segment{
		{Start: 0, End: 2.5, Text: "Xin chào các bạn."},
		{Start: 2.5, End: 65.25, Text: "Hôm nay chúng ta họp."},
	}
	doc := transcript.Document{
		ID:        "run-1",
		Title:     "Cuộc họp",
		Source:    "meeting.wav",
		Model:     "small",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Duration:  65.25,
		Text:      transcript.JoinText(segs),
		Segments:  segs,
	}
	if withSpeakers {
		doc.Speakers = []transcript.SpeakerSegment{
			{SpeakerID: 1, Speaker: "Speaker 1", Start: 0, End: 2.5, Text: segs[0].Text},
			{SpeakerID: 2, Speaker: "Speaker 2", Start: 2.5, End: 65.25, Text: segs[1].Text},
		}
	}
	doc.Stats = transcript.ComputeStats(doc.Text, doc.Segments, doc.Speakers, doc.Duration)
	return doc
}

func render(t *testing.T, f Format, doc transcript.Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f, doc))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"txt", FormatText, false},
		{".SRT", FormatSRT, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"csv", FormatStatsCSV, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite_Text(t *testing.T) {
	assert.Equal(t, "Xin chào các bạn. Hôm nay chúng ta họp.\n", render(t, FormatText, sampleDoc(false)))
}

func TestWrite_Timestamped(t *testing.T) {
	got := render(t, FormatTimestamped, sampleDoc(false))
	assert.Equal(t, "[00:00.000 - 00:02.500] Xin chào các bạn.\n[00:02.500 - 01:05.250] Hôm nay chúng ta họp.\n", got)

	got = render(t, FormatTimestamped, sampleDoc(true))
	assert.Contains(t, got, "] Speaker 2: Hôm nay")
}

func TestWrite_SRT(t *testing.T) {
	got := render(t, FormatSRT, sampleDoc(true))
	want := "1\n00:00:00,000 --> 00:00:02,500\nSpeaker 1: Xin chào các bạn.\n\n" +
		"2\n00:00:02,500 --> 00:01:05,250\nSpeaker 2: Hôm nay chúng ta họp.\n\n"
	assert.Equal(t, want, got)
}

func TestSRTTime(t *testing.T) {
	assert.Equal(t, "01:01:01,001", SRTTime(3661.001))
	assert.Equal(t, "00:00:00,000", SRTTime(-2))
}

func TestWrite_Markdown(t *testing.T) {
	got := render(t, FormatMarkdown, sampleDoc(true))
	assert.True(t, strings.HasPrefix(got, "# Cuộc họp\n"))
	assert.Contains(t, got, "- **Nguồn:** meeting.wav")
	assert.Contains(t, got, "**Speaker 1** `00:00.000`: Xin chào các bạn.")
	assert.Contains(t, got, "| Số từ | 9 |")
	assert.Contains(t, got, "| Speaker 2 |")
}

func TestWrite_JSON(t *testing.T) {
	got := render(t, FormatJSON, sampleDoc(false))
	var decoded transcript.Document
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, "run-1", decoded.ID)
	assert.Len(t, decoded.Segments, 2)
	assert.Equal(t, 9, decoded.Stats.WordCount)
	assert.Empty(t, decoded.Speakers)
}

func TestWrite_StatsCSV(t *testing.T) {
	got := render(t, FormatStatsCSV, sampleDoc(true))
	lines := strings.Split(strings.TrimSpace(got), "\n")
	assert.Equal(t, "Metric,Value", lines[0])
	assert.Contains(t, got, "Word Count,9")
	assert.Contains(t, got, "Speaker 1,2.50,4,96.00,1")
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "docx", sampleDoc(false)))
}
