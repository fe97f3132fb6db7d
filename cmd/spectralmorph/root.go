package main

import (
	"github.com/spf13/cobra"

	"github.com/ajshooting/spectralmorph/internal/config"
	"github.com/ajshooting/spectralmorph/internal/log"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "spectralmorph",
		Short:         "Real-time vocal formant shifter",
		Long:          "spectralmorph shifts vocal formants independently of pitch using cepstral envelope warping.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if level, ok := log.ParseLevel(flags.logLevel); ok {
				log.SetLevel(level)
			} else {
				log.Warnf("unknown log level %q, using info", flags.logLevel)
			}
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML configuration")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newEstimateCommand(flags))
	root.AddCommand(newLiveCommand(flags))
	root.AddCommand(newDevicesCommand())

	return root
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}
	return cfg, nil
}
