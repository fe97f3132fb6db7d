// Package warp builds piecewise-linear frequency warp maps and resamples
// spectral envelopes through them.
package warp

import (
	"fmt"
	"sort"

	"github.com/ajshooting/spectralmorph/dsp/core"
)

const degenerateSegmentWidth = 1e-4

// Point is a warp control node mapping a source bin to a destination bin,
// both as fractional indices into the half-spectrum.
type Point struct {
	Src float64
	Dst float64
}

// Warper converts a set of control points into a per-output-bin map of
// fractional input bins and applies it to envelopes by linear interpolation.
//
// All scratch storage is retained between calls, so once CalculateMap has
// sized it for a bin count and a node count, later calls that need no more
// of either are allocation-free and safe to drive from an audio thread. It
// is not safe for concurrent use.
type Warper struct {
	numBins int
	nodes   []Point
	warpMap []float64
}

// New returns an empty Warper. CalculateMap must run before Process.
func New() *Warper {
	return &Warper{}
}

// NumBins returns the bin count of the last calculated map, 0 before any.
func (w *Warper) NumBins() int { return w.numBins }

// Map returns the current warp map. The slice is owned by the Warper and is
// overwritten by the next CalculateMap; callers must not mutate it.
func (w *Warper) Map() []float64 { return w.warpMap }

// CalculateMap rebuilds the warp map for numBins output bins.
//
// Anchor nodes {0,0} and {numBins-1,numBins-1} are inserted when the given
// points do not already cover the spectrum edges, so any point list —
// including an empty one — yields a fully defined map. Nodes are stably
// sorted by Dst; ties keep their given order. Every map value is clamped to
// [0, numBins-1].
func (w *Warper) CalculateMap(numBins int, points []Point) error {
	if numBins < 2 {
		return fmt.Errorf("warp: bin count must be >= 2: %d", numBins)
	}

	if cap(w.warpMap) < numBins {
		w.warpMap = make([]float64, numBins)
		w.nodes = make([]Point, 0, len(points)+2)
	}
	w.warpMap = w.warpMap[:numBins]
	w.numBins = numBins

	lastBin := float64(numBins - 1)

	w.nodes = w.nodes[:0]
	if len(points) == 0 || points[0].Dst > degenerateSegmentWidth {
		w.nodes = append(w.nodes, Point{})
	}
	w.nodes = append(w.nodes, points...)
	if w.nodes[len(w.nodes)-1].Dst < lastBin {
		w.nodes = append(w.nodes, Point{Src: lastBin, Dst: lastBin})
	}

	sort.Stable(w)

	seg := 0
	for i := range numBins {
		fi := float64(i)
		for seg < len(w.nodes)-2 && w.nodes[seg+1].Dst < fi {
			seg++
		}

		p0 := w.nodes[seg]
		p1 := w.nodes[seg+1]

		src := p0.Src
		if width := p1.Dst - p0.Dst; width >= degenerateSegmentWidth {
			src += (fi - p0.Dst) / width * (p1.Src - p0.Src)
		}

		w.warpMap[i] = core.Clamp(src, 0, lastBin)
	}

	return nil
}

// Process resamples srcEnv through the warp map into dstEnv.
// Both slices must have the map's bin count.
func (w *Warper) Process(srcEnv, dstEnv []float64) error {
	if w.numBins == 0 {
		return fmt.Errorf("warp: no map calculated")
	}
	if len(srcEnv) != w.numBins || len(dstEnv) != w.numBins {
		return fmt.Errorf("warp: envelope length must be %d: src=%d dst=%d",
			w.numBins, len(srcEnv), len(dstEnv))
	}

	for i, idx := range w.warpMap {
		lo := int(idx)
		hi := lo + 1
		if hi >= w.numBins {
			hi = w.numBins - 1
		}
		frac := idx - float64(lo)
		dstEnv[i] = srcEnv[lo] + frac*(srcEnv[hi]-srcEnv[lo])
	}

	return nil
}

// Warper is its own sort.Interface over the node scratch, ordered by
// ascending Dst.

// Len implements sort.Interface.
func (w *Warper) Len() int { return len(w.nodes) }

// Less implements sort.Interface.
func (w *Warper) Less(i, j int) bool { return w.nodes[i].Dst < w.nodes[j].Dst }

// Swap implements sort.Interface.
func (w *Warper) Swap(i, j int) { w.nodes[i], w.nodes[j] = w.nodes[j], w.nodes[i] }
