package telegram

import (
	"fmt"
	"strings"

	app "eicr-vision/internal/application"
	"eicr-vision/internal/domain/entity"
)

var codeIcons = map[entity.EICRCode]string{
	entity.CodeC1: "🔴",
	entity.CodeC2: "🟠",
	entity.CodeC3: "🔵",
	entity.CodeFI: "🟣",
}

func noticeText(n entity.Notification) string {
	icon := "ℹ️"
	switch n.Level {
	case entity.NoticeWarning:
		icon = "⚠️"
	case entity.NoticeError:
		icon = "❌"
	}
	if n.Message == "" {
		return icon + " " + n.Title
	}
	return fmt.Sprintf("%s %s\n%s", icon, n.Title, n.Message)
}

func captureStartText(p entity.CapturePreset) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🧭 %s\n%s\n\n", p.Name, p.Description)
	if len(p.ExampleShots) > 0 {
		sb.WriteString("Examples:\n")
		for _, s := range p.ExampleShots {
			fmt.Fprintf(&sb, "• %s\n", s)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "📸 Step 1/%d: %s", p.Steps(), p.Instruction(0))
	return sb.String()
}

func (b *Bot) frameText(userID int64, o app.FrameOutcome) string {
	preset, _ := b.inspection.Workspace(userID).Wizard.Preset()

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Step %d/%d captured (quality %.0f%%).", o.Step+1, preset.Steps(), o.Quality.Score*100)
	if o.NextStep != o.Step {
		fmt.Fprintf(&sb, "\n📸 Step %d/%d: %s", o.NextStep+1, preset.Steps(), preset.Instruction(o.NextStep))
	}
	if o.CanFinish {
		sb.WriteString("\n\nSend /finish to analyse, or keep adding photos.")
	}
	return sb.String()
}

func collectionText(images []entity.Image, primary int) string {
	if len(images) == 0 {
		return msgCollectionEmpty
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🖼 %d photo(s):\n", len(images))
	for i, img := range images {
		mark := ""
		if i == primary {
			mark = " ⭐ primary"
		}
		fmt.Fprintf(&sb, "%d. %s (%d KB)%s\n", i+1, img.Filename, len(img.Data)/1024, mark)
	}
	sb.WriteString("\n/primary N, /remove N, /analyze")
	return sb.String()
}

func resultsText(view *app.ResultsView) string {
	res := view.Result()
	var sb strings.Builder

	switch view.Branch() {
	case app.BranchDegraded:
		sb.WriteString("⚠️ Analysis incomplete\nThe service returned no usable findings. This usually means:\n")
		for _, h := range view.RecoveryHints() {
			fmt.Fprintf(&sb, "• %s\n", h)
		}
		sb.WriteString("\n/retry to run the analysis again on the same photos.")
		return sb.String()

	case app.BranchNoFaults:
		fmt.Fprintf(&sb, "✅ No Faults Detected\nSafety rating %d/%d", res.ComplianceSummary.SafetyRating, entity.MaxSafetyRating)
		if res.Summary != "" {
			sb.WriteString("\n\n" + res.Summary)
		}
		return sb.String()
	}

	s := res.ComplianceSummary
	fmt.Fprintf(&sb, "📋 %s | Safety rating %d/%d\n", strings.ToUpper(string(s.OverallAssessment)), s.SafetyRating, entity.MaxSafetyRating)
	fmt.Fprintf(&sb, "C1: %d  C2: %d  C3: %d  FI: %d\n", s.C1Count, s.C2Count, s.C3Count, s.FICount)
	if res.Summary != "" {
		sb.WriteString(res.Summary + "\n")
	}

	if f := view.Filter(); f != app.FilterAll {
		fmt.Fprintf(&sb, "\nShowing %s only\n", f)
	}
	sb.WriteString("\n")
	for _, v := range view.VisibleFindings() {
		fmt.Fprintf(&sb, "%d. %s [%s] %s (%.0f%%)", v.Index+1, codeIcons[v.Finding.EICRCode], v.Finding.EICRCode, v.Finding.Description, v.Finding.Confidence*100)
		if v.Finding.Location != "" {
			fmt.Fprintf(&sb, "\n   📍 %s", v.Finding.Location)
		}
		sb.WriteString("\n")
	}

	filters := make([]string, 0, len(view.AvailableFilters()))
	for _, f := range view.AvailableFilters() {
		filters = append(filters, string(f))
	}
	fmt.Fprintf(&sb, "\n/details N, /filter %s\n/export, /evidence, /eicr N REPORT", strings.Join(filters, "|"))
	return sb.String()
}

func fixPackText(i int, f entity.Finding, p entity.FixPack) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d. [%s] %s\n", codeIcons[f.EICRCode], i+1, f.EICRCode, f.Description)
	fmt.Fprintf(&sb, "%s | %s | urgency %s\n", f.EICRCode.Label(), p.SafetyPriority, p.Urgency)
	fmt.Fprintf(&sb, "⏱ %s  💷 %s  🛠 %s\n", p.EstimatedTime, p.EstimatedCost, p.Difficulty)
	if len(f.BS7671Clauses) > 0 {
		fmt.Fprintf(&sb, "📖 BS 7671: %s\n", strings.Join(f.BS7671Clauses, ", "))
	}

	sb.WriteString("\nSteps:\n")
	for n, step := range p.Steps {
		fmt.Fprintf(&sb, "%d. %s: %s", n+1, step.Title, step.Instruction)
		if step.Regulation != "" {
			fmt.Fprintf(&sb, " (%s)", step.Regulation)
		}
		sb.WriteString("\n")
		if step.SafetyWarning != "" {
			fmt.Fprintf(&sb, "   ⚠️ %s\n", step.SafetyWarning)
		}
	}
	if len(p.Materials) > 0 {
		sb.WriteString("\nMaterials:\n")
		for _, m := range p.Materials {
			fmt.Fprintf(&sb, "• %s\n", m)
		}
	}
	if len(p.VerificationSteps) > 0 {
		sb.WriteString("\nVerify:\n")
		for _, v := range p.VerificationSteps {
			fmt.Fprintf(&sb, "• %s\n", v)
		}
	}
	if p.ComplianceNotes != "" {
		sb.WriteString("\n" + p.ComplianceNotes)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func historyText(entries []entity.AnalysisHistoryEntry) string {
	if len(entries) == 0 {
		return msgNoResults
	}
	var sb strings.Builder
	sb.WriteString("🗂 Recent analyses:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s  %d finding(s)\n", e.ID, e.CapturedAt.Format("02 Jan 15:04"), len(e.Result.Findings))
	}
	sb.WriteString("\n/open ID")
	return sb.String()
}

func observationsText(reportID string, list []entity.Observation) string {
	if len(list) == 0 {
		return fmt.Sprintf("📭 Report %s has no observations yet.", reportID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Report %s:\n", reportID)
	for i, o := range list {
		fmt.Fprintf(&sb, "%d. [%s] %s", i+1, o.EICRCode, o.Description)
		if o.Location != "" {
			fmt.Fprintf(&sb, " (%s)", o.Location)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func settingsText(s entity.AnalysisSettings) string {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	areas := "all"
	if len(s.FocusAreas) > 0 {
		areas = strings.Join(s.FocusAreas, ", ")
	}
	return fmt.Sprintf("⚙️ Settings\nConfidence threshold: %.2f\nBounding boxes: %s\nBackground removal: %s\nBS 7671 references: %s\nFocus areas: %s",
		s.ConfidenceThreshold, onOff(s.EnableBoundingBoxes), onOff(s.RemoveBackground), onOff(s.BS7671Compliance), areas)
}
