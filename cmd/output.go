package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	app "eicr-vision/internal/application"
	"eicr-vision/internal/container"
	"eicr-vision/internal/domain/entity"
)

// cliSession is the workspace used by one-shot CLI runs.
const cliSession = int64(1)

type outputFlags struct {
	json     bool
	pdf      string
	evidence string
}

// printNotices echoes the session's notifications until the returned func
// is called.
func printNotices(c *container.Container, w io.Writer) (func(), error) {
	return c.Notifications.Subscribe(func(n entity.Notification) {
		if n.SessionID != cliSession {
			return
		}
		if n.Message == "" {
			fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Title)
			return
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", n.Level, n.Title, n.Message)
	})
}

func writeResults(c *container.Container, w io.Writer, out outputFlags) error {
	view := c.InspectionService.View(cliSession)
	if view == nil {
		return nil
	}

	if out.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err := enc.Encode(struct {
			ID       string                 `json:"id"`
			Branch   app.Branch             `json:"branch"`
			Result   *entity.AnalysisResult `json:"result"`
			FixPacks []entity.FixPack       `json:"fix_packs"`
		}{view.Entry().ID, view.Branch(), view.Result(), view.FixPacks()})
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, view.CopySummary())
	}

	if out.pdf != "" {
		pdf, err := c.InspectionService.ExportPDF(cliSession, view.Entry().ID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out.pdf, pdf, 0o644); err != nil {
			return err
		}
	}
	if out.evidence != "" {
		img, err := c.InspectionService.RenderEvidence(cliSession, view.Entry().ID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out.evidence, img.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
