package spectrum

import (
	"math"
	"sync"

	"github.com/cwbudde/algo-vecmath"
)

// dbFloor bounds AmplitudeToDB output for zero and denormal magnitudes.
const dbFloor = -120.0

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Magnitude returns |X[k]| for each complex spectrum bin.
//
// Scratch buffers are pooled internally, so in steady state this allocates
// only the output slice. For the allocation-free path see MagnitudeFromParts.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Magnitude(out, re, im)
	putScratch(buf)
	return out
}

// MagnitudeFromParts computes |X[k]| = sqrt(re[k]^2 + im[k]^2) into dst.
//
// This is the zero-allocation fast path for callers that already have real and
// imaginary parts in separate slices. All three slices must have the same length.
func MagnitudeFromParts(dst, re, im []float64) {
	vecmath.Magnitude(dst, re, im)
}

// HzPerBin returns the frequency resolution of an FFT of the given size.
func HzPerBin(sampleRate float64, fftSize int) float64 {
	if fftSize <= 0 {
		return 0
	}
	return sampleRate / float64(fftSize)
}

// BinToHz converts a (possibly fractional) bin index to a frequency in Hz.
func BinToHz(bin, sampleRate float64, fftSize int) float64 {
	return bin * HzPerBin(sampleRate, fftSize)
}

// HzToBin converts a frequency in Hz to a fractional bin index.
func HzToBin(hz, sampleRate float64, fftSize int) float64 {
	perBin := HzPerBin(sampleRate, fftSize)
	if perBin <= 0 {
		return 0
	}
	return hz / perBin
}

// AmplitudeToDB converts linear magnitudes to dBFS into dst, flooring at
// -120 dB so that silence stays plottable. dst and in must have equal length.
func AmplitudeToDB(dst, in []float64) {
	for i, v := range in {
		if v <= 0 {
			dst[i] = dbFloor
			continue
		}
		db := 20 * math.Log10(v)
		if db < dbFloor {
			db = dbFloor
		}
		dst[i] = db
	}
}
