// Command spectralmorph hosts the formant-shifting engine outside a plugin:
// it seeds target formants from reference recordings and runs the processor
// live between a capture and a playback device.
//
// Usage:
//
//	spectralmorph estimate voice.wav
//	spectralmorph estimate voice.wav --write config.yaml
//	spectralmorph live --config config.yaml
//	spectralmorph devices
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
