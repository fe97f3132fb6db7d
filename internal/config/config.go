// Package config loads the spectralmorph host configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajshooting/spectralmorph/dsp/formant"
)

// Defaults for the host configuration.
const (
	DefaultSampleRate      = 48000.0
	DefaultFramesPerBuffer = 512
	DefaultChannels        = 2
	DefaultDeviceID        = -1 // system default device
	DefaultVisAddress      = "127.0.0.1:8765"

	MinSampleRate   = 8000.0
	MaxSampleRate   = 192000.0
	MaxBufferFrames = 8192
)

// Config is the top-level host configuration, loaded from YAML.
type Config struct {
	LogLevel string        `yaml:"log_level"` // "debug", "info", "warn", "error"
	Audio    AudioConfig   `yaml:"audio"`     // device and stream settings
	Shifter  ShifterConfig `yaml:"shifter"`   // formant shifting parameters
	Vis      VisConfig     `yaml:"vis"`       // visualization sink settings
}

// AudioConfig holds device and stream settings for the live host.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // portaudio device index, -1 for default
	OutputDevice    int     `yaml:"output_device"`     // portaudio device index, -1 for default
	SampleRate      float64 `yaml:"sample_rate"`       // Hz
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // block size per callback
	Channels        int     `yaml:"channels"`          // 1 = mono, 2 = stereo
}

// ShifterConfig carries the parameters the plugin host would automate:
// the 15 target formants plus dry/wet mix and output gain.
type ShifterConfig struct {
	TargetFormantsHz []float64 `yaml:"target_formants_hz"` // exactly 15 ascending values
	Mix              float64   `yaml:"mix"`                // dry/wet in percent, 0..100
	OutputGainDb     float64   `yaml:"output_gain_db"`     // -24..+6
}

// VisConfig configures the websocket visualization publisher.
type VisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address, e.g. "127.0.0.1:8765"
}

// Default returns the built-in configuration.
func Default() *Config {
	targets := formant.DefaultTargetFormantsHz()

	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Channels:        DefaultChannels,
		},
		Shifter: ShifterConfig{
			TargetFormantsHz: targets[:],
			Mix:              100,
			OutputGainDb:     0,
		},
		Vis: VisConfig{
			Enabled: false,
			Address: DefaultVisAddress,
		},
	}
}

// Load reads configuration from a YAML file. An empty path returns the
// defaults. The loaded configuration is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to path.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges and counts. Target formants are checked only for
// count and positivity; the processor monotonizes the values itself.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("config: sample rate must be in [%g, %g]: %g",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("config: frames per buffer must be in [1, %d]: %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("config: channels must be > 0: %d", c.Audio.Channels)
	}
	if len(c.Shifter.TargetFormantsHz) != formant.NumFormants {
		return fmt.Errorf("config: target_formants_hz must hold %d values: %d",
			formant.NumFormants, len(c.Shifter.TargetFormantsHz))
	}
	for i, hz := range c.Shifter.TargetFormantsHz {
		if hz <= 0 {
			return fmt.Errorf("config: target formant %d must be > 0 Hz: %g", i+1, hz)
		}
	}
	if c.Shifter.Mix < 0 || c.Shifter.Mix > 100 {
		return fmt.Errorf("config: mix must be in [0, 100]: %g", c.Shifter.Mix)
	}
	if c.Shifter.OutputGainDb < -24 || c.Shifter.OutputGainDb > 6 {
		return fmt.Errorf("config: output gain must be in [-24, 6] dB: %g", c.Shifter.OutputGainDb)
	}
	if c.Vis.Enabled && c.Vis.Address == "" {
		return fmt.Errorf("config: vis address must be set when vis is enabled")
	}
	return nil
}

// TargetFormants returns the configured targets as the processor's array type.
func (c *Config) TargetFormants() [formant.NumFormants]float64 {
	var out [formant.NumFormants]float64
	copy(out[:], c.Shifter.TargetFormantsHz)
	return out
}
