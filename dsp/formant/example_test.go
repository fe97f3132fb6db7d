package formant_test

import (
	"fmt"

	"github.com/ajshooting/spectralmorph/dsp/buffer"
	"github.com/ajshooting/spectralmorph/dsp/formant"
)

// A minimal host: prepare, seed targets from a reference, stream blocks.
func ExampleProcessor() {
	proc, err := formant.New()
	if err != nil {
		fmt.Println(err)
		return
	}

	spec := formant.ProcessSpec{SampleRate: 48000, MaxBlockSize: 512, NumChannels: 2}
	if err := proc.Prepare(spec); err != nil {
		fmt.Println(err)
		return
	}

	reference := buffer.New(4 * formant.FFTSize)
	if targets, err := proc.EstimateFormantsFromBuffer(reference, 48000); err == nil {
		proc.SetTargetFormantsHz(targets)
	}

	in := make([]float64, 512)
	outL := make([]float64, 512)
	outR := make([]float64, 512)
	proc.Process([][]float64{in}, [][]float64{outL, outR}, 512)
}

func ExampleProcessor_SetTargetFormantsHz() {
	proc, err := formant.New()
	if err != nil {
		fmt.Println(err)
		return
	}

	// Non-monotone requests are clamped, never rejected.
	var targets [formant.NumFormants]float64
	targets[0] = 100
	targets[1] = 90
	proc.SetTargetFormantsHz(targets)

	stored := proc.TargetFormantsHz()
	fmt.Printf("%.0f %.0f %.0f\n", stored[0], stored[1], stored[2])
	// Output:
	// 200 220 240
}
