package window

import "errors"

var (
	errInvalidLength    = errors.New("window length must be > 0")
	errEmptyCoeffs      = errors.New("window coefficients must not be empty")
	errZeroCoherentGain = errors.New("window coherent gain is zero")
	errMismatchedLength = errors.New("sample and coefficient lengths differ")
	errInvalidHop       = errors.New("hop size must be in [1, window length]")
)

func validateLength(size int) error {
	if size <= 0 {
		return errInvalidLength
	}
	return nil
}
