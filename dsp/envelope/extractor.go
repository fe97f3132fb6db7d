// Package envelope extracts smooth spectral envelopes by cepstral analysis.
//
// Source-filter theory models a voice spectrum S(f) as the product of an
// excitation E(f) (vocal cords) and a vocal-tract transfer function H(f).
// In the log domain the product becomes a sum, and because H(f) varies
// slowly with frequency its energy concentrates in the low-quefrency region
// of the real cepstrum while the harmonic excitation lives above it.
// Keeping only the low-quefrency coefficients (liftering) and transforming
// back therefore isolates the envelope.
package envelope

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"

	"github.com/ajshooting/spectralmorph/dsp/core"
)

const (
	// DefaultCutoffBin is the default lifter width in quefrency bins.
	DefaultCutoffBin = 30

	logFloor = 1e-9
	logClamp = 20.0
)

// Option configures an Extractor at construction time.
type Option func(*Extractor) error

// WithCutoffBin sets the quefrency cutoff for liftering. Lower values yield
// smoother envelopes. cutoff must be in [1, fftSize/2].
func WithCutoffBin(cutoff int) Option {
	return func(e *Extractor) error {
		if cutoff < 1 || cutoff > e.fftSize/2 {
			return fmt.Errorf("envelope: cutoff bin must be in [1, %d]: %d", e.fftSize/2, cutoff)
		}
		e.cutoffBin = cutoff
		return nil
	}
}

// Extractor computes spectral envelopes from magnitude spectra.
//
// All buffers are allocated at construction; Process is allocation-free and
// may run on an audio thread. The extractor is not safe for concurrent use.
type Extractor struct {
	fftSize   int
	cutoffBin int

	plan *algofft.Plan[complex128]

	spectrum []complex128
	cepstrum []complex128
}

// New creates an Extractor for the given FFT size.
// fftSize must be a power of two and >= 64.
func New(fftSize int, opts ...Option) (*Extractor, error) {
	if fftSize < 64 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("envelope: fft size must be power-of-two and >= 64: %d", fftSize)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to create FFT plan: %w", err)
	}

	e := &Extractor{
		fftSize:   fftSize,
		cutoffBin: DefaultCutoffBin,
		plan:      plan,
		spectrum:  make([]complex128, fftSize),
		cepstrum:  make([]complex128, fftSize),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// FFTSize returns the configured FFT size.
func (e *Extractor) FFTSize() int { return e.fftSize }

// CutoffBin returns the lifter cutoff in quefrency bins.
func (e *Extractor) CutoffBin() int { return e.cutoffBin }

// Process extracts the spectral envelope of a magnitude spectrum.
//
// magnitude and env must both have length fftSize/2+1. Every output value is
// strictly positive: magnitudes are floored at 1e-9 before the log and the
// log-domain result is clamped to [-20, 20] before exponentiation, so the
// envelope stays finite for any finite input.
func (e *Extractor) Process(magnitude, env []float64) error {
	half := e.fftSize / 2
	if len(magnitude) != half+1 || len(env) != half+1 {
		return fmt.Errorf("envelope: spectrum length must be %d: magnitude=%d env=%d",
			half+1, len(magnitude), len(env))
	}

	// Log magnitude, embedded as the spectrum of a real (Hermitian) signal.
	for k := 0; k <= half; k++ {
		logMag := math.Log(math.Max(magnitude[k], logFloor))
		e.spectrum[k] = complex(logMag, 0)
		if k > 0 && k < half {
			e.spectrum[e.fftSize-k] = complex(logMag, 0)
		}
	}

	// Real cepstrum. The inverse transform divides by N, so the round trip
	// back through Forward needs no rescaling.
	if err := e.plan.Inverse(e.cepstrum, e.spectrum); err != nil {
		return fmt.Errorf("envelope: inverse FFT failed: %w", err)
	}

	// Lifter: keep the low-quefrency head and its symmetric tail.
	for i := e.cutoffBin; i < e.fftSize-e.cutoffBin; i++ {
		e.cepstrum[i] = 0
	}

	if err := e.plan.Forward(e.spectrum, e.cepstrum); err != nil {
		return fmt.Errorf("envelope: forward FFT failed: %w", err)
	}

	for k := 0; k <= half; k++ {
		logEnv := core.Clamp(real(e.spectrum[k]), -logClamp, logClamp)
		env[k] = math.Exp(logEnv)
	}

	return nil
}
