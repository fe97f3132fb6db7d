package formant

import (
	"math"
	"testing"

	"github.com/ajshooting/spectralmorph/dsp/buffer"
	"github.com/ajshooting/spectralmorph/dsp/core"
	"github.com/ajshooting/spectralmorph/dsp/signal"
)

func newPrepared(t *testing.T, sampleRate float64) *Processor {
	t.Helper()

	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := p.Prepare(ProcessSpec{SampleRate: sampleRate, MaxBlockSize: 512, NumChannels: 2}); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return p
}

func processMono(p *Processor, in []float64, blockSize int) []float64 {
	out := make([]float64, len(in))
	for pos := 0; pos < len(in); pos += blockSize {
		end := min(pos+blockSize, len(in))
		p.Process([][]float64{in[pos:end]}, [][]float64{out[pos:end]}, end-pos)
	}
	return out
}

func rms(x []float64) float64 {
	return buffer.FromSlice(x).RMS()
}

func TestPrepareValidation(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	bad := []ProcessSpec{
		{SampleRate: 0, MaxBlockSize: 512, NumChannels: 1},
		{SampleRate: math.NaN(), MaxBlockSize: 512, NumChannels: 1},
		{SampleRate: 48000, MaxBlockSize: 0, NumChannels: 1},
		{SampleRate: 48000, MaxBlockSize: 512, NumChannels: 0},
	}
	for _, spec := range bad {
		if err := p.Prepare(spec); err == nil {
			t.Errorf("Prepare(%+v) expected error", spec)
		}
	}
	if p.Prepared() {
		t.Error("failed Prepare must not mark the processor prepared")
	}

	spec := ProcessSpec{SampleRate: 48000, MaxBlockSize: 512, NumChannels: 2}
	if err := p.Prepare(spec); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !p.Prepared() || p.Spec() != spec {
		t.Errorf("prepared state not recorded: %+v", p.Spec())
	}
	// Idempotent.
	if err := p.Prepare(spec); err != nil {
		t.Fatalf("second Prepare() error = %v", err)
	}
}

func TestProcessBeforePrepareIsPassThrough(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	gen := signal.NewGenerator(core.WithSampleRate(48000))
	in, err := gen.Sine(440, 0.8, 512)
	if err != nil {
		t.Fatalf("Sine() error = %v", err)
	}

	outL := make([]float64, 512)
	outR := make([]float64, 512)
	p.Process([][]float64{in}, [][]float64{outL, outR}, 512)

	for i := range in {
		if outL[i] != in[i] || outR[i] != in[i] {
			t.Fatalf("sample %d not passed through: L=%g R=%g want %g", i, outL[i], outR[i], in[i])
		}
	}
}

func TestSilenceBypass(t *testing.T) {
	p := newPrepared(t, 48000)

	in := make([]float64, 4096)
	out := processMono(p, in, 512)

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d not finite: %g", i, v)
		}
		if math.Abs(v) > 1e-6 {
			t.Fatalf("sample %d = %g, want silence", i, v)
		}
	}
}

func TestNoiseRMSStableWithMatchedTargets(t *testing.T) {
	const sampleRate = 48000.0

	gen := signal.NewGeneratorWithOptions(nil, signal.WithSeed(7))
	in, err := gen.WhiteNoise(0.5, int(sampleRate))
	if err != nil {
		t.Fatalf("WhiteNoise() error = %v", err)
	}

	p := newPrepared(t, sampleRate)

	// Seed targets with the formants detected in the reference itself so the
	// warp is near-identity.
	targets, err := p.EstimateFormantsFromBuffer(buffer.FromSlice(in), sampleRate)
	if err != nil {
		t.Fatalf("EstimateFormantsFromBuffer() error = %v", err)
	}
	p.SetTargetFormantsHz(targets)

	out := processMono(p, in, 480)

	// Skip the FFT-length latency and windup before comparing levels.
	steady := out[4*FFTSize:]
	inDB := core.LinearToDB(rms(in))
	outDB := core.LinearToDB(rms(steady))
	if d := math.Abs(outDB - inDB); d > 3 {
		t.Errorf("output RMS %f dB deviates %f dB from input %f dB", outDB, d, inDB)
	}

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d not finite: %g", i, v)
		}
	}
}

func TestOutputLatencyIsOneFrame(t *testing.T) {
	p := newPrepared(t, 48000)

	gen := signal.NewGenerator(core.WithSampleRate(48000))
	in, err := gen.Sine(440, 0.8, 3*FFTSize)
	if err != nil {
		t.Fatalf("Sine() error = %v", err)
	}

	out := processMono(p, in, 512)

	if got := rms(out[:FFTSize-HopSize]); got > 1e-9 {
		t.Errorf("output before one frame of latency not silent: RMS %g", got)
	}
	if got := rms(out[2*FFTSize:]); got < 1e-3 {
		t.Errorf("steady-state output unexpectedly silent: RMS %g", got)
	}
}

func TestFinitenessOnExtremeInput(t *testing.T) {
	p := newPrepared(t, 48000)

	gen := signal.NewGeneratorWithOptions(nil, signal.WithSeed(3))
	in, err := gen.WhiteNoise(1, 8192)
	if err != nil {
		t.Fatalf("WhiteNoise() error = %v", err)
	}
	for i := range in {
		in[i] *= 1e12
	}

	out := processMono(p, in, 512)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d not finite: %g", i, v)
		}
	}
}

func TestSetTargetFormantsMonotonized(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var descending [NumFormants]float64
	for i := range descending {
		descending[i] = 100 - 10*float64(i)
	}
	p.SetTargetFormantsHz(descending)

	got := p.TargetFormantsHz()
	for i := range got {
		want := 200 + 20*float64(i)
		if got[i] != want {
			t.Errorf("target[%d] = %g, want %g", i, got[i], want)
		}
	}
}

func TestSetTargetFormantsKeepsValidVector(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	want := DefaultTargetFormantsHz()
	p.SetTargetFormantsHz(want)
	if got := p.TargetFormantsHz(); got != want {
		t.Errorf("valid targets mutated: %v", got)
	}

	// Any stored vector satisfies the floor and separation invariants.
	p.SetTargetFormantsHz([NumFormants]float64{500, 510, 100, 9000, 9001})
	got := p.TargetFormantsHz()
	if got[0] < 200 {
		t.Errorf("target[0] = %g below 200 Hz floor", got[0])
	}
	for i := 1; i < NumFormants; i++ {
		if got[i] < got[i-1]+20 {
			t.Errorf("target[%d] = %g closer than 20 Hz to %g", i, got[i], got[i-1])
		}
	}
}

func TestResetFlushesState(t *testing.T) {
	p := newPrepared(t, 48000)

	gen := signal.NewGenerator(core.WithSampleRate(48000))
	in, err := gen.Sine(440, 0.8, 4096)
	if err != nil {
		t.Fatalf("Sine() error = %v", err)
	}
	processMono(p, in, 512)

	p.Reset()

	silence := make([]float64, 2048)
	out := processMono(p, silence, 512)
	for i, v := range out {
		if math.Abs(v) > 1e-6 {
			t.Fatalf("sample %d = %g after reset, want silence", i, v)
		}
	}
}

func TestProcessDeterministicAcrossBlockSizes(t *testing.T) {
	gen := signal.NewGeneratorWithOptions(nil, signal.WithSeed(11))
	in, err := gen.WhiteNoise(0.3, 6144)
	if err != nil {
		t.Fatalf("WhiteNoise() error = %v", err)
	}

	a := newPrepared(t, 48000)
	b := newPrepared(t, 48000)

	outA := processMono(a, in, 512)
	outB := processMono(b, in, 160)

	for i := range outA {
		if math.Abs(outA[i]-outB[i]) > 1e-12 {
			t.Fatalf("block size changed output at %d: %g vs %g", i, outA[i], outB[i])
		}
	}
}

func TestProcessClampsToShortestChannel(t *testing.T) {
	p := newPrepared(t, 48000)

	in := make([]float64, 100)
	short := make([]float64, 60)
	full := make([]float64, 100)
	// Claiming more samples than the shortest channel holds must not panic.
	p.Process([][]float64{in}, [][]float64{full, short}, 100)
	p.Process(nil, [][]float64{full}, 100)
	p.Process([][]float64{in}, nil, 100)
	p.Process([][]float64{in}, [][]float64{full}, 0)
}

func TestVisualizationSnapshotPublished(t *testing.T) {
	p := newPrepared(t, 48000)

	gen := signal.NewGenerator(core.WithSampleRate(48000))
	in, err := gen.Sine(440, 0.8, 4096)
	if err != nil {
		t.Fatalf("Sine() error = %v", err)
	}
	processMono(p, in, 512)

	var vis VisualizationData
	p.LatestVisualizationData(&vis)

	if len(vis.Spectrum) != NumBins || len(vis.Envelope) != NumBins {
		t.Fatalf("snapshot sizes: spectrum=%d envelope=%d", len(vis.Spectrum), len(vis.Envelope))
	}

	if rms(vis.Spectrum) == 0 {
		t.Error("snapshot spectrum empty after processing")
	}
	for k, v := range vis.Envelope {
		if !(v > 0) {
			t.Fatalf("envelope bin %d not positive: %g", k, v)
		}
	}

	if vis.F1Bin <= 0 || vis.F2Bin <= vis.F1Bin || vis.F2Bin > NumBins-1 {
		t.Errorf("implausible formant bins: F1=%g F2=%g", vis.F1Bin, vis.F2Bin)
	}

	// Reads must tolerate an undersized destination.
	reuse := VisualizationData{Spectrum: make([]float64, 3)}
	p.LatestVisualizationData(&reuse)
	if len(reuse.Spectrum) != NumBins {
		t.Errorf("destination not resized: %d", len(reuse.Spectrum))
	}
	p.LatestVisualizationData(nil)
}

func BenchmarkProcessBlock(b *testing.B) {
	p, err := New()
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	if err := p.Prepare(ProcessSpec{SampleRate: 48000, MaxBlockSize: 512, NumChannels: 1}); err != nil {
		b.Fatalf("Prepare() error = %v", err)
	}

	gen := signal.NewGeneratorWithOptions(nil, signal.WithSeed(5))
	in, err := gen.WhiteNoise(0.5, 512)
	if err != nil {
		b.Fatalf("WhiteNoise() error = %v", err)
	}
	out := make([]float64, 512)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Process([][]float64{in}, [][]float64{out}, 512)
	}
}
