// Package formant implements a real-time formant shifter.
//
// The processor separates each analysis frame into excitation and spectral
// envelope (source-filter decomposition via cepstral liftering), detects the
// envelope's resonance peaks, warps the envelope so the detected formants
// land on configured target frequencies, and resynthesizes by multiplying
// the original spectrum with the warped-to-original envelope ratio. Phase
// is never touched, so pitch and fine harmonic structure pass through
// unchanged.
//
// Streaming uses an STFT with a 1024-sample Hann window at 75% overlap:
// samples enter an input ring, every 256 samples one frame is analyzed and
// overlap-added into an output ring, and one output sample leaves per input
// sample. The processing latency is therefore one full frame.
package formant
