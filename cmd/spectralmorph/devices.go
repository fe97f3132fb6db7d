package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices()
		},
	}
}

func runDevices() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIN\tOUT\tDEFAULT SR")
	for i, dev := range devices {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.0f\n",
			i, dev.Name, dev.MaxInputChannels, dev.MaxOutputChannels, dev.DefaultSampleRate)
	}
	return w.Flush()
}
