package audio

import (
	"math"
	"sort"
)

// FixedChunks cuts the signal into consecutive chunks of chunkSeconds. The last
// chunk is shortened to fit. A non-positive chunk length or an empty signal
// yields a single chunk covering everything.
func FixedChunks(sig Signal, chunkSeconds float64) []Chunk {
	total := sig.Len()
	chunkLen := int(chunkSeconds * float64(sig.SampleRate))
	if chunkLen <= 0 || total == 0 {
		return []Chunk{{Index: 0, SampleStart: 0, SampleEnd: total}}
	}

	chunks := make([]Chunk, 0, (total+chunkLen-1)/chunkLen)
	for start := 0; start < total; start += chunkLen {
		end := start + chunkLen
		if end > total {
			end = total
		}
		chunks = append(chunks, Chunk{Index: len(chunks), SampleStart: start, SampleEnd: end})
	}
	return chunks
}

// MergeRanges sorts ranges by start and merges neighbours whose gap is at most
// maxGap.
func MergeRanges(ranges []TimeRange, maxGap float64) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start-last.End <= maxGap {
			last.End = math.Max(last.End, r.End)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// GroupWindows greedily groups speech ranges into windows no longer than
// maxDur. A window still shorter than minDur absorbs the next range, clamped
// to maxDur, before it closes; the remainder of that range opens the next
// window, so windows never overlap. Windows are clipped to [0, duration]. With no ranges the whole signal is one
// window.
func GroupWindows(ranges []TimeRange, duration, minDur, maxDur float64) []Window {
	if len(ranges) == 0 {
		return []Window{{Index: 0, TimeRange: TimeRange{Start: 0, End: duration}}}
	}

	var bounds []TimeRange
	current := ranges[0]
	for _, r := range ranges[1:] {
		if r.End-current.Start <= maxDur {
			current.End = r.End
			continue
		}
		if current.End-current.Start < minDur {
			current.End = math.Min(r.End, current.Start+maxDur)
		}
		bounds = append(bounds, current)
		current = TimeRange{Start: math.Max(r.Start, current.End), End: r.End}
	}
	bounds = append(bounds, current)

	windows := make([]Window, 0, len(bounds))
	for _, b := range bounds {
		s := math.Max(0, b.Start)
		e := b.End
		if duration > 0 {
			e = math.Min(duration, e)
		}
		if e <= s {
			continue
		}
		windows = append(windows, Window{Index: len(windows), TimeRange: TimeRange{Start: s, End: e}})
	}
	if len(windows) == 0 {
		return []Window{{Index: 0, TimeRange: TimeRange{Start: 0, End: duration}}}
	}
	return windows
}

// WindowOptions bounds voice-activity windowing.
type WindowOptions struct {
	MergeGap float64
	MinDur   float64
	MaxDur   float64
}

// DefaultWindowOptions merges ranges closer than half a second and groups them
// into 20 to 30 second windows.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{MergeGap: 0.5, MinDur: 20, MaxDur: 30}
}

// VADWindows merges speech ranges then groups them into windows over sig.
func VADWindows(sig Signal, speech []TimeRange, opts WindowOptions) []Window {
	return GroupWindows(MergeRanges(speech, opts.MergeGap), sig.Duration(), opts.MinDur, opts.MaxDur)
}
