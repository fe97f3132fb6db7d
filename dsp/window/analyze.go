package window

// OverlapAddGain returns the steady-state gain of squared-window overlap-add
// at the given hop size: the sum of w[n]^2 over all frames covering one
// output sample, evaluated at the frame center.
//
// STFT pipelines that window on both the analysis and synthesis side divide
// by this constant to make bypass processing unity-gain. For a periodic Hann
// window at 75% overlap (hop = len/4) the gain is 1.5.
func OverlapAddGain(coeffs []float64, hop int) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}
	if hop <= 0 || hop > len(coeffs) {
		return 0, errInvalidHop
	}

	center := len(coeffs) / 2

	sum := 0.0
	for offset := -len(coeffs); offset <= len(coeffs); offset += hop {
		idx := center + offset
		if idx < 0 || idx >= len(coeffs) {
			continue
		}
		sum += coeffs[idx] * coeffs[idx]
	}

	return sum, nil
}
