package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"eicr-vision/internal/container"
)

func captureCommand(e *env) *cobra.Command {
	var (
		out      outputFlags
		presetID string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Guided capture from a local camera, then analyse",
		Long: `Walk through a preset checklist using the configured camera.
Press Enter to take the photo for the current step, r to retake the last one,
f to finish and analyse, q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.container(container.Options{LiveCamera: true})
			if err != nil {
				return err
			}
			defer c.Close()

			stop, err := printNotices(c, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stop()

			ctx := cmd.Context()
			svc := c.InspectionService
			w := cmd.OutOrStdout()

			preset, err := svc.StartCapture(ctx, cliSession, cliSession, presetID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: %s\n", preset.Name, preset.Description)

			wizard := svc.Workspace(cliSession).Wizard
			in := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprintf(w, "Step %d/%d: %s\n> ", wizard.Step()+1, preset.Steps(), wizard.Instruction())
				if !in.Scan() {
					return svc.Exit(ctx, cliSession, cliSession)
				}

				switch strings.TrimSpace(strings.ToLower(in.Text())) {
				case "", "c":
					o, err := svc.CaptureFrame(ctx, cliSession)
					if err != nil {
						fmt.Fprintln(w, "capture failed:", err)
						continue
					}
					fmt.Fprintf(w, "captured photo %d (quality %.0f%%)\n", o.Index+1, o.Quality.Score*100)
					if o.CanFinish {
						fmt.Fprintln(w, "enough photos for this checklist; f to finish")
					}
				case "r":
					if err := svc.Retake(cliSession); err != nil {
						fmt.Fprintln(w, err)
					}
				case "f":
					n, err := svc.FinishCapture(ctx, cliSession, cliSession)
					if err != nil {
						fmt.Fprintln(w, err)
						continue
					}
					fmt.Fprintf(w, "analysing %d photo(s)...\n", n)
					if _, err := svc.AnalyzeCollection(ctx, cliSession, cliSession); err != nil {
						return err
					}
					return writeResults(c, w, out)
				case "q":
					return svc.Exit(ctx, cliSession, cliSession)
				default:
					fmt.Fprintln(w, "Enter: capture, r: retake, f: finish, q: quit")
				}
			}
		},
	}

	cmd.Flags().StringVarP(&presetID, "preset", "p", "consumer-unit", "Checklist to follow (see the presets command)")
	cmd.Flags().BoolVar(&out.json, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&out.pdf, "pdf", "", "Write a PDF report to this path")
	cmd.Flags().StringVar(&out.evidence, "evidence", "", "Write the primary photo with findings marked to this path")
	return cmd
}
