// Package export renders transcript documents in the supported file formats.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/errors"
)

// Format names an output format.
type Format string

const (
	FormatText        Format = "txt"
	FormatTimestamped Format = "timestamped"
	FormatMarkdown    Format = "md"
	FormatSRT         Format = "srt"
	FormatJSON        Format = "json"
	FormatStatsCSV    Format = "csv"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatTimestamped, FormatMarkdown, FormatSRT, FormatJSON, FormatStatsCSV}
}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "txt", "text":
		return FormatText, nil
	case "timestamped", "ts":
		return FormatTimestamped, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "srt":
		return FormatSRT, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatStatsCSV, nil
	}
	return "", errors.New(errors.KindDomain, "export.parse_format", fmt.Sprintf("unsupported export format %q", name))
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatSRT:
		return "application/x-subrip; charset=utf-8"
	case FormatStatsCSV:
		return "text/csv; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	if f == FormatTimestamped {
		return "txt"
	}
	return string(f)
}

// Write renders doc to w.
func Write(w io.Writer, format Format, doc transcript.Document) error {
	bw := bufio.NewWriter(w)
	var err error
	switch format {
	case FormatText:
		_, err = io.WriteString(bw, strings.TrimSpace(doc.Text)+"\n")
	case FormatTimestamped:
		_, err = io.WriteString(bw, timestamped(doc)+"\n")
	case FormatMarkdown:
		err = writeMarkdown(bw, doc)
	case FormatSRT:
		err = writeSRT(bw, doc)
	case FormatJSON:
		err = writeJSON(bw, doc)
	case FormatStatsCSV:
		err = writeStatsCSV(bw, doc.Stats)
	default:
		return errors.New(errors.KindDomain, "export.write", fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return errors.Wrap(errors.KindPlatform, "export.write", "failed to render "+string(format), err)
	}
	return bw.Flush()
}

func timestamped(doc transcript.Document) string {
	if len(doc.Speakers) > 0 {
		return transcript.FormatSpeakerLines(doc.Speakers)
	}
	var b strings.Builder
	for _, s := range doc.Segments {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s - %s] %s", transcript.ClockTime(s.Start), transcript.ClockTime(s.End), s.Text)
	}
	return b.String()
}

func writeMarkdown(w io.Writer, doc transcript.Document) error {
	title := doc.Title
	if title == "" {
		title = "Transcript"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if doc.Source != "" {
		fmt.Fprintf(&b, "- **Nguồn:** %s\n", doc.Source)
	}
	if !doc.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Thời gian:** %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if doc.Model != "" {
		fmt.Fprintf(&b, "- **Mô hình:** %s\n", doc.Model)
	}
	fmt.Fprintf(&b, "- **Thời lượng:** %s\n\n", transcript.ClockTime(doc.Duration))

	b.WriteString("## Nội dung\n\n")
	if len(doc.Speakers) > 0 {
		for _, s := range doc.Speakers {
			fmt.Fprintf(&b, "**%s** `%s`: %s\n\n", s.Speaker, transcript.ClockTime(s.Start), s.Text)
		}
	} else {
		for _, s := range doc.Segments {
			fmt.Fprintf(&b, "`%s` %s\n\n", transcript.ClockTime(s.Start), s.Text)
		}
	}

	st := doc.Stats
	b.WriteString("## Thống kê\n\n| Chỉ số | Giá trị |\n|---|---|\n")
	fmt.Fprintf(&b, "| Số từ | %d |\n| Số câu | %d |\n| Số ký tự | %d |\n| Từ/phút | %.1f |\n| Số đoạn | %d |\n",
		st.WordCount, st.SentenceCount, st.CharacterCount, st.WordsPerMinute, st.SegmentCount)
	if st.Speakers > 0 {
		b.WriteString("\n| Người nói | Thời lượng (s) | Số từ | Từ/phút | Số đoạn |\n|---|---|---|---|---|\n")
		for _, name := range st.SpeakerNames() {
			ss := st.SpeakerStats[name]
			fmt.Fprintf(&b, "| %s | %.2f | %d | %.1f | %d |\n", name, ss.Duration, ss.WordCount, ss.WordsPerMinute, ss.Segments)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// SRTTime formats seconds as HH:MM:SS,mmm.
func SRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

func writeSRT(w io.Writer, doc transcript.Document) error {
	type cue struct {
		start, end float64
		text       string
	}
	var cues []cue
	if len(doc.Speakers) > 0 {
		for _, s := range doc.Speakers {
			cues = append(cues, cue{s.Start, s.End, s.Speaker + ": " + s.Text})
		}
	} else {
		for _, s := range doc.Segments {
			cues = append(cues, cue{s.Start, s.End, s.Text})
		}
	}
	for i, c := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", i+1, SRTTime(c.start), SRTTime(c.end), c.text); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, doc transcript.Document) error {
	if doc.Segments == nil {
		doc.Segments = []transcript.Segment{}
	}
	raw, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func writeStatsCSV(w io.Writer, st transcript.Stats) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Metric", "Value"},
		{"Word Count", strconv.Itoa(st.WordCount)},
		{"Sentence Count", strconv.Itoa(st.SentenceCount)},
		{"Duration (seconds)", strconv.FormatFloat(st.Duration, 'f', 2, 64)},
		{"Words Per Minute", strconv.FormatFloat(st.WordsPerMinute, 'f', 2, 64)},
		{"Characters", strconv.Itoa(st.CharacterCount)},
	}
	if st.Speakers > 0 {
		rows = append(rows, []string{}, []string{"Speaker", "Duration (s)", "Words", "WPM", "Segments"})
		for _, name := range st.SpeakerNames() {
			ss := st.SpeakerStats[name]
			rows = append(rows, []string{
				name,
				strconv.FormatFloat(ss.Duration, 'f', 2, 64),
				strconv.Itoa(ss.WordCount),
				strconv.FormatFloat(ss.WordsPerMinute, 'f', 2, 64),
				strconv.Itoa(ss.Segments),
			})
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
