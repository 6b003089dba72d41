package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eicr-vision/config"
)

func presetsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Print the capture presets as YAML",
		Long:  "Print the capture presets in the format accepted by presets_file, for use as a starting point.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := config.LoadPresets(e.cfg.PresetsFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{"presets": presets})
		},
	}
}
