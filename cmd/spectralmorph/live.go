package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"

	"github.com/ajshooting/spectralmorph/dsp/core"
	"github.com/ajshooting/spectralmorph/dsp/formant"
	"github.com/ajshooting/spectralmorph/internal/config"
	"github.com/ajshooting/spectralmorph/internal/log"
	"github.com/ajshooting/spectralmorph/internal/vis"
)

func newLiveCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Run the formant shifter between a capture and a playback device",
		Long: "live opens a duplex audio stream and runs every block through the " +
			"formant shifter, applying the configured dry/wet mix and output gain. " +
			"Stop with Ctrl-C.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			return runLive(cfg)
		},
	}
}

// liveEngine adapts the processor to the portaudio callback: it owns the
// float64 scratch channels and applies the host-side mix and gain
// parameters the enclosing plugin would normally manage.
type liveEngine struct {
	proc *formant.Processor

	mix  float64 // 0..1 wet fraction
	gain float64 // linear output gain

	input  [][]float64
	output [][]float64
	dry    []float64
}

func newLiveEngine(cfg *config.Config) (*liveEngine, error) {
	proc, err := formant.New()
	if err != nil {
		return nil, err
	}

	spec := formant.ProcessSpec{
		SampleRate:   cfg.Audio.SampleRate,
		MaxBlockSize: cfg.Audio.FramesPerBuffer,
		NumChannels:  cfg.Audio.Channels,
	}
	if err := proc.Prepare(spec); err != nil {
		return nil, err
	}
	proc.SetTargetFormantsHz(cfg.TargetFormants())

	e := &liveEngine{
		proc: proc,
		mix:  cfg.Shifter.Mix / 100,
		gain: core.DBToLinear(cfg.Shifter.OutputGainDb),
		dry:  make([]float64, cfg.Audio.FramesPerBuffer),
	}
	for ch := 0; ch < cfg.Audio.Channels; ch++ {
		e.input = append(e.input, make([]float64, cfg.Audio.FramesPerBuffer))
		e.output = append(e.output, make([]float64, cfg.Audio.FramesPerBuffer))
	}

	return e, nil
}

// callback is the real-time duplex entry point. It only copies, converts
// and mixes; all allocation happened in newLiveEngine.
func (e *liveEngine) callback(in, out [][]float32) {
	if len(in) == 0 || len(out) == 0 {
		return
	}

	frames := len(out[0])
	if frames > len(e.dry) {
		frames = len(e.dry)
	}
	if frames > len(in[0]) {
		frames = len(in[0])
	}

	for ch := range e.input {
		src := in[0]
		if ch < len(in) {
			src = in[ch]
		}
		for i := 0; i < frames; i++ {
			e.input[ch][i] = float64(src[i])
		}
	}
	copy(e.dry[:frames], e.input[0][:frames])

	e.proc.Process(e.input, e.output, frames)

	for ch := range out {
		wet := e.output[0]
		if ch < len(e.output) {
			wet = e.output[ch]
		}
		for i := 0; i < frames; i++ {
			sample := e.dry[i]*(1-e.mix) + wet[i]*e.mix
			out[ch][i] = float32(sample * e.gain)
		}
	}
}

func runLive(cfg *config.Config) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	inputDevice, err := deviceByID(cfg.Audio.InputDevice, true)
	if err != nil {
		return err
	}
	outputDevice, err := deviceByID(cfg.Audio.OutputDevice, false)
	if err != nil {
		return err
	}

	engine, err := newLiveEngine(cfg)
	if err != nil {
		return err
	}

	if cfg.Vis.Enabled {
		publisher := vis.NewPublisher(cfg.Vis.Address, engine.proc, cfg.Audio.SampleRate)
		publisher.Start()
		defer publisher.Close()
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   inputDevice,
			Channels: cfg.Audio.Channels,
			Latency:  inputDevice.DefaultLowInputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   outputDevice,
			Channels: cfg.Audio.Channels,
			Latency:  outputDevice.DefaultLowOutputLatency,
		},
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, engine.callback)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	log.Infof("live: %s -> %s at %g Hz, %d frames per buffer",
		inputDevice.Name, outputDevice.Name, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	log.Infof("live: mix %.0f%%, output gain %.1f dB", cfg.Shifter.Mix, cfg.Shifter.OutputGainDb)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infof("live: stopping")
	return stream.Stop()
}

func deviceByID(id int, input bool) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if id >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", id, len(devices))
	}

	dev := devices[id]
	if input && dev.MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no inputs", id, dev.Name)
	}
	if !input && dev.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no outputs", id, dev.Name)
	}
	return dev, nil
}
