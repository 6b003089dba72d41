package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"eicr-vision/config"
	"eicr-vision/internal/container"
	"eicr-vision/internal/platform/logging"
)

// env is shared by every subcommand once the root has loaded config.
type env struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

func rootCommand() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "eicr-vision",
		Short:         "Visual analysis of electrical installations for EICR reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			e.cfg, e.logger = cfg, logger
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&e.configFile, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		botCommand(e),
		serveCommand(e),
		analyzeCommand(e),
		captureCommand(e),
		presetsCommand(e),
	)
	return rootCmd
}

func (e *env) container(opts container.Options) (*container.Container, error) {
	opts.Logger = e.logger
	return container.New(e.cfg, opts)
}
