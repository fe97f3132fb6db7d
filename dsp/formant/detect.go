package formant

import "sort"

// Formant detection scans the spectral envelope for resonance peaks inside
// the vocal range and always yields exactly NumFormants ascending bins, so
// the warp-node construction stays valid even on silent or near-flat
// envelopes.
const (
	detectMinHz        = 150.0
	detectMaxHz        = 9000.0
	detectSeparationHz = 120.0
)

type peakCandidate struct {
	bin int
	mag float64
}

// detectFormants fills out with NumFormants ascending envelope peak bins.
//
// Peaks are local maxima of env inside [150 Hz, 9000 Hz], picked greedily by
// magnitude with a minimum spacing of 120 Hz, then sorted by bin. When fewer
// than NumFormants peaks exist, the tail is padded by walking forward from
// the last chosen bin in spacing-sized steps. Every output bin is clamped to
// the detection range.
func (p *Processor) detectFormants(env []float64, sampleRate float64, out *[NumFormants]float64) {
	hzPerBin := sampleRate / FFTSize
	if hzPerBin <= 0 {
		hzPerBin = 1
	}

	minBin := max(1, int(detectMinHz/hzPerBin))
	maxBin := min(NumBins-2, int(detectMaxHz/hzPerBin))
	if maxBin < minBin {
		maxBin = minBin
	}
	minDistance := max(2, int(detectSeparationHz/hzPerBin))

	p.peaks = p.peaks[:0]
	for i := minBin; i <= maxBin; i++ {
		if env[i] > env[i-1] && env[i] >= env[i+1] {
			p.peaks = append(p.peaks, peakCandidate{bin: i, mag: env[i]})
		}
	}

	sort.Slice(p.peaks, func(i, j int) bool { return p.peaks[i].mag > p.peaks[j].mag })

	p.selected = p.selected[:0]
	for _, cand := range p.peaks {
		tooClose := false
		for _, chosen := range p.selected {
			if abs(chosen-cand.bin) < minDistance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			p.selected = append(p.selected, cand.bin)
			if len(p.selected) >= NumFormants {
				break
			}
		}
	}

	sort.Ints(p.selected)

	last := minBin - minDistance
	for i := 0; i < NumFormants; i++ {
		if i < len(p.selected) {
			last = p.selected[i]
		} else {
			last = min(maxBin, last+minDistance)
		}
		out[i] = float64(clampInt(last, minBin, maxBin))
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
