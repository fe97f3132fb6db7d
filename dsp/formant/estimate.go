package formant

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/ajshooting/spectralmorph/dsp/buffer"
	"github.com/ajshooting/spectralmorph/dsp/spectrum"
)

// ErrEmptyBuffer reports that the offline estimator received no audio.
var ErrEmptyBuffer = errors.New("formant: reference buffer is empty")

// EstimateFormantsFromBuffer analyses one analysis window centered in the
// reference buffer and returns the fifteen detected formant frequencies in
// Hz of the source sample rate. Callers typically feed the result back into
// SetTargetFormantsHz to seed targets from recorded material.
//
// On an empty buffer or invalid sample rate the current targets are returned
// together with an error. The estimator shares scratch buffers with the
// streaming path and must not run concurrently with Process.
func (p *Processor) EstimateFormantsFromBuffer(buf *buffer.Buffer, sourceSampleRate float64) ([NumFormants]float64, error) {
	estimated := p.targetFormantsHz

	if buf == nil || buf.Len() == 0 {
		return estimated, ErrEmptyBuffer
	}
	if sourceSampleRate <= 0 || math.IsNaN(sourceSampleRate) || math.IsInf(sourceSampleRate, 0) {
		return estimated, fmt.Errorf("formant: source sample rate must be positive and finite: %f", sourceSampleRate)
	}

	// One window centered at the buffer midpoint, zero-padded when the
	// reference is shorter than a frame.
	samples := buf.Samples()
	start := max(0, len(samples)/2-FFTSize/2)
	count := min(FFTSize, len(samples)-start)

	for i := range p.frame {
		p.frame[i] = 0
	}
	copy(p.frame[:count], samples[start:start+count])

	vecmath.MulBlockInPlace(p.frame, p.windowCoeffs)

	for i := range p.frame {
		p.fftBuf[i] = complex(p.frame[i], 0)
	}
	if err := p.plan.Forward(p.fftBuf, p.fftBuf); err != nil {
		return estimated, fmt.Errorf("formant: forward FFT failed: %w", err)
	}

	for k := 0; k < NumBins; k++ {
		p.magnitude[k] = math.Hypot(real(p.fftBuf[k]), imag(p.fftBuf[k]))
	}

	if err := p.extractor.Process(p.magnitude, p.envOrig); err != nil {
		return estimated, err
	}

	var bins [NumFormants]float64
	p.detectFormants(p.envOrig, sourceSampleRate, &bins)

	for i := range bins {
		estimated[i] = spectrum.BinToHz(bins[i], sourceSampleRate, FFTSize)
	}

	return estimated, nil
}
