package formant

import "sync"

// VisualizationData is a copy of the latest analysis snapshot: the raw
// magnitude spectrum, the warped envelope, and the first two warp node
// destinations as fractional bins.
type VisualizationData struct {
	Spectrum []float64
	Envelope []float64
	F1Bin    float64
	F2Bin    float64
}

// visualizationSlot is the single shared slot between the audio thread
// (writer, try-lock) and a UI thread (reader, blocking lock). The writer
// drops an update when the reader holds the lock; the next hop publishes
// again, which is fine because UI refresh runs far below the hop rate.
type visualizationSlot struct {
	mu       sync.Mutex
	spectrum []float64
	envelope []float64
	f1Bin    float64
	f2Bin    float64
}

func (v *visualizationSlot) init() {
	v.spectrum = make([]float64, NumBins)
	v.envelope = make([]float64, NumBins)
}

func (p *Processor) publishVisualization(f1Bin, f2Bin float64) {
	if !p.vis.mu.TryLock() {
		return
	}
	copy(p.vis.spectrum, p.magnitude)
	copy(p.vis.envelope, p.envWarp)
	p.vis.f1Bin = f1Bin
	p.vis.f2Bin = f2Bin
	p.vis.mu.Unlock()
}

// LatestVisualizationData copies the most recent snapshot into dst, resizing
// its slices as needed. Intended for a UI thread; the call blocks only for
// the duration of one snapshot copy.
func (p *Processor) LatestVisualizationData(dst *VisualizationData) {
	if dst == nil {
		return
	}
	if len(dst.Spectrum) != NumBins {
		dst.Spectrum = make([]float64, NumBins)
	}
	if len(dst.Envelope) != NumBins {
		dst.Envelope = make([]float64, NumBins)
	}

	p.vis.mu.Lock()
	copy(dst.Spectrum, p.vis.spectrum)
	copy(dst.Envelope, p.vis.envelope)
	dst.F1Bin = p.vis.f1Bin
	dst.F2Bin = p.vis.f2Bin
	p.vis.mu.Unlock()
}
