package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/ajshooting/spectralmorph/dsp/buffer"
	"github.com/ajshooting/spectralmorph/dsp/formant"
	"github.com/ajshooting/spectralmorph/internal/config"
	"github.com/ajshooting/spectralmorph/internal/log"
)

func newEstimateCommand(flags *rootFlags) *cobra.Command {
	var writePath string

	cmd := &cobra.Command{
		Use:   "estimate <file.wav>",
		Short: "Estimate the 15 formant frequencies of a reference recording",
		Long: "estimate decodes a WAV file, analyses one window centered in the " +
			"recording, and prints the detected formant frequencies. With --write " +
			"the values are stored as target formants in a YAML configuration.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(flags, args[0], writePath)
		},
	}

	cmd.Flags().StringVarP(&writePath, "write", "w", "", "write estimated formants into this YAML config")

	return cmd
}

func runEstimate(flags *rootFlags, wavPath, writePath string) error {
	mono, sampleRate, err := decodeWavMono(wavPath)
	if err != nil {
		return err
	}
	log.Debugf("decoded %s: %d samples at %g Hz", wavPath, len(mono), sampleRate)

	proc, err := formant.New()
	if err != nil {
		return err
	}

	estimated, err := proc.EstimateFormantsFromBuffer(buffer.FromSlice(mono), sampleRate)
	if err != nil {
		return fmt.Errorf("estimating formants: %w", err)
	}

	for i, hz := range estimated {
		fmt.Printf("F%-2d  %8.1f Hz\n", i+1, hz)
	}

	if writePath == "" {
		return nil
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	cfg.Shifter.TargetFormantsHz = estimated[:]
	if err := config.Save(cfg, writePath); err != nil {
		return err
	}
	log.Infof("wrote target formants to %s", writePath)

	return nil
}

// decodeWavMono reads channel 0 of a WAV file as normalized float64 samples.
func decodeWavMono(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("%s is not a valid WAV file", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", path, err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return nil, 0, fmt.Errorf("%s contains no samples", path)
	}

	return monoFloat(pcm), float64(pcm.Format.SampleRate), nil
}

// monoFloat extracts channel 0 from an interleaved PCM buffer, scaled to
// [-1, 1] by the source bit depth.
func monoFloat(pcm *audio.IntBuffer) []float64 {
	channels := pcm.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(pcm.Data) / channels
	out := make([]float64, frames)
	for i := range out {
		out[i] = float64(pcm.Data[i*channels]) / scale
	}
	return out
}
