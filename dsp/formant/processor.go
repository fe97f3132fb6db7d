package formant

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/ajshooting/spectralmorph/dsp/core"
	"github.com/ajshooting/spectralmorph/dsp/envelope"
	"github.com/ajshooting/spectralmorph/dsp/spectrum"
	"github.com/ajshooting/spectralmorph/dsp/warp"
	"github.com/ajshooting/spectralmorph/dsp/window"
)

const (
	fftOrder = 10

	// FFTSize is the fixed analysis frame length in samples.
	FFTSize = 1 << fftOrder

	// HopSize is the distance between successive analysis frames (75% overlap).
	HopSize = FFTSize / 4

	// NumBins is the half-spectrum size.
	NumBins = FFTSize/2 + 1

	// NumFormants is the number of tracked and shifted formants.
	NumFormants = 15

	envelopeFloor     = 1e-7
	warpedFloor       = 1e-9
	maxEnvelopeGainDb = 24.0

	minFormantHz           = 200.0
	minFormantSeparationHz = 20.0
)

// DefaultTargetFormantsHz returns the factory target formant frequencies.
func DefaultTargetFormantsHz() [NumFormants]float64 {
	return [NumFormants]float64{
		500, 1500, 2500, 3200, 3800,
		4400, 5000, 5600, 6200, 6800,
		7400, 8000, 8600, 9200, 9800,
	}
}

// ProcessSpec describes the host processing setup passed to Prepare.
type ProcessSpec struct {
	SampleRate   float64
	MaxBlockSize int
	NumChannels  int
}

// Processor is the streaming formant-shifting engine.
//
// Construction and Prepare allocate; Process, Reset and SetTargetFormantsHz
// never do and are safe to call from a real-time audio thread. The only
// cross-thread access point is the visualization snapshot, which a UI thread
// reads through LatestVisualizationData. All other methods must be
// externally serialized with Process.
type Processor struct {
	spec     ProcessSpec
	prepared bool

	plan         *algofft.Plan[complex128]
	windowCoeffs []float64
	extractor    *envelope.Extractor
	warper       *warp.Warper

	maxEnvelopeGain float64
	invOverlapGain  float64

	inputRing     []float64
	outputRing    []float64
	inputWritePos int
	outputReadPos int
	hopCounter    int

	frame     []float64
	fftBuf    []complex128
	timeFrame []complex128
	magnitude []float64
	envOrig   []float64
	envWarp   []float64

	points             []warp.Point
	currentFormantBins [NumFormants]float64
	targetFormantsHz   [NumFormants]float64

	peaks    []peakCandidate
	selected []int

	vis visualizationSlot
}

// New creates a Processor with default target formants.
// The processor passes audio through unchanged until Prepare is called.
func New() (*Processor, error) {
	plan, err := algofft.NewPlan64(FFTSize)
	if err != nil {
		return nil, fmt.Errorf("formant: failed to create FFT plan: %w", err)
	}

	extractor, err := envelope.New(FFTSize)
	if err != nil {
		return nil, fmt.Errorf("formant: %w", err)
	}

	coeffs := window.Generate(window.TypeHann, FFTSize, window.WithPeriodic())

	overlapGain, err := window.OverlapAddGain(coeffs, HopSize)
	if err != nil {
		return nil, fmt.Errorf("formant: %w", err)
	}

	p := &Processor{
		plan:         plan,
		windowCoeffs: coeffs,
		extractor:    extractor,
		warper:       warp.New(),

		maxEnvelopeGain: core.DBToLinear(maxEnvelopeGainDb),
		invOverlapGain:  1 / overlapGain,

		inputRing:  make([]float64, FFTSize),
		outputRing: make([]float64, FFTSize),

		frame:     make([]float64, FFTSize),
		fftBuf:    make([]complex128, FFTSize),
		timeFrame: make([]complex128, FFTSize),
		magnitude: make([]float64, NumBins),
		envOrig:   make([]float64, NumBins),
		envWarp:   make([]float64, NumBins),

		points:   make([]warp.Point, 0, NumFormants+2),
		peaks:    make([]peakCandidate, 0, NumBins),
		selected: make([]int, 0, NumFormants),
	}
	p.vis.init()

	// Size the warper once, for as many nodes as a frame builds, so per-frame
	// rebuilds stay allocation-free.
	if err := p.warper.CalculateMap(NumBins, make([]warp.Point, cap(p.points))); err != nil {
		return nil, fmt.Errorf("formant: %w", err)
	}

	p.SetTargetFormantsHz(DefaultTargetFormantsHz())

	return p, nil
}

// Prepare configures the processor for a processing run. It is idempotent
// and the only operation that may (re)allocate; afterwards the processor is
// in the running state. Prepare implies Reset.
func (p *Processor) Prepare(spec ProcessSpec) error {
	if spec.SampleRate <= 0 || math.IsNaN(spec.SampleRate) || math.IsInf(spec.SampleRate, 0) {
		return fmt.Errorf("formant: sample rate must be positive and finite: %f", spec.SampleRate)
	}
	if spec.MaxBlockSize <= 0 {
		return fmt.Errorf("formant: max block size must be > 0: %d", spec.MaxBlockSize)
	}
	if spec.NumChannels <= 0 {
		return fmt.Errorf("formant: channel count must be > 0: %d", spec.NumChannels)
	}

	p.spec = spec
	p.prepared = true
	p.Reset()

	return nil
}

// Prepared reports whether Prepare has completed.
func (p *Processor) Prepared() bool { return p.prepared }

// Spec returns the spec from the last Prepare call.
func (p *Processor) Spec() ProcessSpec { return p.spec }

// Reset flushes buffered audio: both rings and the hop counter are zeroed
// while FFT plan and window tables stay intact.
func (p *Processor) Reset() {
	for i := range p.inputRing {
		p.inputRing[i] = 0
		p.outputRing[i] = 0
	}
	p.inputWritePos = 0
	p.outputReadPos = 0
	p.hopCounter = 0
}

// SetTargetFormantsHz replaces the target formant frequencies.
//
// The stored vector is monotonized in place: the first target is floored at
// 200 Hz and each following one at its predecessor plus 20 Hz. Invalid
// requests are clamped, never rejected. The method is a single linear pass
// without locks or allocation and runs on the audio thread as part of
// per-block parameter refresh.
func (p *Processor) SetTargetFormantsHz(targetsHz [NumFormants]float64) {
	p.targetFormantsHz = targetsHz

	for i := range p.targetFormantsHz {
		minHz := minFormantHz
		if i > 0 {
			minHz = p.targetFormantsHz[i-1] + minFormantSeparationHz
		}
		if p.targetFormantsHz[i] < minHz {
			p.targetFormantsHz[i] = minHz
		}
	}
}

// TargetFormantsHz returns the stored (monotonized) target formants.
func (p *Processor) TargetFormantsHz() [NumFormants]float64 {
	return p.targetFormantsHz
}

// Process shifts formants for one block of audio.
//
// Channel 0 of input is analyzed; the processed result is written to every
// output channel. numSamples is clamped to the shortest provided channel.
// Before Prepare the call degrades to a pass-through copy.
func (p *Processor) Process(input, output [][]float64, numSamples int) {
	if len(input) == 0 || len(output) == 0 || numSamples <= 0 {
		return
	}

	src := input[0]
	if numSamples > len(src) {
		numSamples = len(src)
	}
	for _, ch := range output {
		if numSamples > len(ch) {
			numSamples = len(ch)
		}
	}
	if numSamples <= 0 {
		return
	}

	dst := output[0]

	if !p.prepared {
		copy(dst[:numSamples], src[:numSamples])
		p.mirrorChannels(output, numSamples)
		return
	}

	for i := 0; i < numSamples; i++ {
		p.inputRing[p.inputWritePos] = src[i]
		p.inputWritePos = (p.inputWritePos + 1) % FFTSize

		dst[i] = p.outputRing[p.outputReadPos]
		p.outputRing[p.outputReadPos] = 0
		p.outputReadPos = (p.outputReadPos + 1) % FFTSize

		p.hopCounter++
		if p.hopCounter >= HopSize {
			p.hopCounter = 0
			p.processFrame()
		}
	}

	p.mirrorChannels(output, numSamples)
}

func (p *Processor) mirrorChannels(output [][]float64, numSamples int) {
	dst := output[0]
	for _, ch := range output[1:] {
		copy(ch[:numSamples], dst[:numSamples])
	}
}

// processFrame runs the per-hop spectral pipeline: assemble, window,
// transform, extract, detect, warp, substitute, inverse transform, window,
// overlap-add. A failing transform drops the frame; the output ring then
// simply decays, keeping the audio path free of error propagation.
func (p *Processor) processFrame() {
	// Assemble the newest FFTSize samples, oldest first.
	for k := 0; k < FFTSize; k++ {
		p.frame[k] = p.inputRing[(p.inputWritePos+k)%FFTSize]
	}

	vecmath.MulBlockInPlace(p.frame, p.windowCoeffs)

	for i := range p.frame {
		p.fftBuf[i] = complex(p.frame[i], 0)
	}
	if err := p.plan.Forward(p.fftBuf, p.fftBuf); err != nil {
		return
	}

	for k := 0; k < NumBins; k++ {
		p.magnitude[k] = math.Hypot(real(p.fftBuf[k]), imag(p.fftBuf[k]))
	}

	if err := p.extractor.Process(p.magnitude, p.envOrig); err != nil {
		return
	}

	p.detectFormants(p.envOrig, p.spec.SampleRate, &p.currentFormantBins)

	// Warp nodes: detected bin -> target bin, kept strictly increasing in
	// Dst and pinned at both spectrum edges.
	hzPerBin := spectrum.HzPerBin(p.spec.SampleRate, FFTSize)
	p.points = p.points[:0]
	p.points = append(p.points, warp.Point{})

	lastDst := 0.0
	for i := 0; i < NumFormants; i++ {
		targetBin := p.targetFormantsHz[i] / math.Max(1, hzPerBin)
		// Leave one bin per remaining node below the top anchor.
		hi := float64(NumBins - 2 - (NumFormants - 1 - i))
		dst := core.Clamp(targetBin, lastDst+1, hi)
		p.points = append(p.points, warp.Point{Src: p.currentFormantBins[i], Dst: dst})
		lastDst = dst
	}
	p.points = append(p.points, warp.Point{Src: NumBins - 1, Dst: NumBins - 1})

	if err := p.warper.CalculateMap(NumBins, p.points); err != nil {
		return
	}
	if err := p.warper.Process(p.envOrig, p.envWarp); err != nil {
		return
	}

	p.publishVisualization(p.points[1].Dst, p.points[2].Dst)

	// Envelope substitution: scale each bin by warped/original with guarded
	// division and a gain ceiling. Real factors leave phase untouched.
	for k := 0; k < NumBins; k++ {
		orig := math.Max(p.envOrig[k], envelopeFloor)
		warped := math.Max(p.envWarp[k], warpedFloor)
		scale := core.Clamp(warped/orig, 0, p.maxEnvelopeGain)
		p.fftBuf[k] *= complex(scale, 0)
	}

	// Restore Hermitian symmetry for the real-valued inverse transform.
	p.fftBuf[0] = complex(real(p.fftBuf[0]), 0)
	p.fftBuf[FFTSize/2] = complex(real(p.fftBuf[FFTSize/2]), 0)
	for k := 1; k < FFTSize/2; k++ {
		v := p.fftBuf[k]
		p.fftBuf[FFTSize-k] = complex(real(v), -imag(v))
	}

	if err := p.plan.Inverse(p.timeFrame, p.fftBuf); err != nil {
		return
	}

	// The inverse transform already divides by N; only the Hann^2
	// overlap-add gain (1.5 at 75% overlap) remains to compensate.
	for i := range p.frame {
		p.frame[i] = real(p.timeFrame[i]) * p.invOverlapGain
	}

	vecmath.MulBlockInPlace(p.frame, p.windowCoeffs)

	for k := 0; k < FFTSize; k++ {
		p.outputRing[(p.outputReadPos+k)%FFTSize] += p.frame[k]
	}
}
