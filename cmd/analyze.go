package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"eicr-vision/internal/container"
	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

func analyzeCommand(e *env) *cobra.Command {
	var (
		out       outputFlags
		primary   int
		threshold float64
		removeBG  bool
		focus     []string
	)

	cmd := &cobra.Command{
		Use:   "analyze [image...]",
		Short: "Analyse photos of an installation",
		Long:  "Upload the given photos, run the visual analysis and print the findings. The first photo is the primary image unless --primary says otherwise.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images := make([]entity.Image, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return apperrors.Wrap(apperrors.KindInput, "analyze", "cannot read "+path, err)
				}
				images = append(images, entity.NewImage(data, filepath.Base(path), ""))
			}

			c, err := e.container(container.Options{})
			if err != nil {
				return err
			}
			defer c.Close()

			stop, err := printNotices(c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stop()

			settings := c.InspectionService.Settings(cliSession)
			if cmd.Flags().Changed("threshold") {
				settings.ConfidenceThreshold = threshold
			}
			if cmd.Flags().Changed("remove-background") {
				settings.RemoveBackground = removeBG
			}
			if len(focus) > 0 {
				settings.FocusAreas = focus
			}
			c.InspectionService.SetSettings(cliSession, settings)

			if _, err := c.InspectionService.AnalyzeImages(cmd.Context(), cliSession, cliSession, images, primary); err != nil {
				return err
			}
			return writeResults(c, cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVar(&primary, "primary", 0, "Index of the primary image")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.7, "Minimum confidence of reported findings (0.1-1.0)")
	cmd.Flags().BoolVar(&removeBG, "remove-background", false, "Isolate the subject before upload")
	cmd.Flags().StringSliceVar(&focus, "focus", nil, "Areas to focus on, e.g. consumer unit,earthing")
	cmd.Flags().BoolVar(&out.json, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&out.pdf, "pdf", "", "Write a PDF report to this path")
	cmd.Flags().StringVar(&out.evidence, "evidence", "", "Write the primary photo with findings marked to this path")
	return cmd
}
