package buffer

import (
	"math"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	b := New(8)
	if b.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", b.Len())
	}
	for i, v := range b.Samples() {
		if v != 0 {
			t.Fatalf("sample %d = %g, want 0", i, v)
		}
	}

	if New(-1).Len() != 0 {
		t.Error("negative length should yield empty buffer")
	}
}

func TestFromSliceShares(t *testing.T) {
	s := []float64{1, 2, 3}
	b := FromSlice(s)
	s[1] = 9
	if b.Samples()[1] != 9 {
		t.Error("FromSlice should not copy")
	}
}

func TestResizePreservesAndZeroes(t *testing.T) {
	b := FromSlice([]float64{1, 2, 3, 4})
	b.Resize(2)
	b.Resize(4)

	got := b.Samples()
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("prefix not preserved: %v", got)
	}
	if got[2] != 0 || got[3] != 0 {
		t.Errorf("re-exposed tail not zeroed: %v", got)
	}

	b.Resize(6)
	if b.Len() != 6 || b.Samples()[5] != 0 {
		t.Errorf("growing resize failed: %v", b.Samples())
	}
}

func TestCopyIndependence(t *testing.T) {
	b := FromSlice([]float64{1, 2})
	c := b.Copy()
	c.Samples()[0] = 7
	if b.Samples()[0] != 1 {
		t.Error("Copy should not share storage")
	}
}

func TestPeakAndRMS(t *testing.T) {
	b := FromSlice([]float64{0.5, -1.0, 0.25})
	if got := b.Peak(); got != 1.0 {
		t.Errorf("Peak() = %g, want 1", got)
	}

	sine := make([]float64, 4800)
	for i := range sine {
		sine[i] = math.Sin(2 * math.Pi * 100 * float64(i) / 4800)
	}
	got := FromSlice(sine).RMS()
	want := 1 / math.Sqrt2
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("sine RMS = %g, want approx %g", got, want)
	}

	if New(0).RMS() != 0 || New(0).Peak() != 0 {
		t.Error("empty buffer levels should be 0")
	}
}
