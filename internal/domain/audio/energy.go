package audio

import (
	"math"
	"sort"
)

// FrameRMS computes root-mean-square energy over frames of frameLen samples
// every hop samples. With centered set, the signal is zero padded by
// frameLen/2 on both sides so frame t is centred on sample t*hop.
func FrameRMS(samples []float32, frameLen, hop int, centered bool) []float64 {
	if frameLen <= 0 || hop <= 0 || len(samples) == 0 {
		return nil
	}

	pad := 0
	if centered {
		pad = frameLen / 2
	}
	padded := len(samples) + 2*pad
	if padded < frameLen {
		return nil
	}

	at := func(i int) float64 {
		i -= pad
		if i < 0 || i >= len(samples) {
			return 0
		}
		return float64(samples[i])
	}

	n := 1 + (padded-frameLen)/hop
	out := make([]float64, n)
	for f := 0; f < n; f++ {
		start := f * hop
		var sum float64
		for i := start; i < start+frameLen; i++ {
			v := at(i)
			sum += v * v
		}
		out[f] = math.Sqrt(sum / float64(frameLen))
	}
	return out
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. Empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
