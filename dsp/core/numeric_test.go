package core

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	cases := []struct {
		value, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
		{0.5, 1, 0, 0.5}, // swapped bounds
		{3, 1, 0, 1},
	}

	for _, c := range cases {
		if got := Clamp(c.value, c.min, c.max); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.value, c.min, c.max, got, c.want)
		}
	}
}

func TestNearlyEqual(t *testing.T) {
	if !NearlyEqual(1.0, 1.0+1e-13, 1e-12) {
		t.Error("values within eps should compare equal")
	}
	if NearlyEqual(1.0, 1.1, 1e-12) {
		t.Error("distant values should not compare equal")
	}
	if !NearlyEqual(0, 0, 0) {
		t.Error("zero self-comparison with default eps failed")
	}
}

func TestDBConversions(t *testing.T) {
	if got := DBToLinear(0); got != 1 {
		t.Errorf("DBToLinear(0) = %v, want 1", got)
	}
	if got := DBToLinear(20); math.Abs(got-10) > 1e-12 {
		t.Errorf("DBToLinear(20) = %v, want 10", got)
	}
	if got := LinearToDB(10); math.Abs(got-20) > 1e-12 {
		t.Errorf("LinearToDB(10) = %v, want 20", got)
	}
	if got := LinearToDB(0); !math.IsInf(got, -1) {
		t.Errorf("LinearToDB(0) = %v, want -Inf", got)
	}
}

func TestApplyProcessorOptions(t *testing.T) {
	cfg := ApplyProcessorOptions(WithSampleRate(44100), WithBlockSize(256), nil)
	if cfg.SampleRate != 44100 || cfg.BlockSize != 256 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	cfg = ApplyProcessorOptions(WithSampleRate(-1), WithBlockSize(0))
	def := DefaultProcessorConfig()
	if cfg != def {
		t.Errorf("invalid options should leave defaults: %+v", cfg)
	}
}
