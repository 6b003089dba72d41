// Package report renders analysis results as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

// Column sets of the two tables. Other tooling reads these headers.
var (
	FindingColumns        = []string{"Finding", "EICR Code", "Confidence%", "BS7671 Clauses"}
	RecommendationColumns = []string{"Action", "Priority", "Reference", "Cost Estimate"}
)

const (
	margin     = 15.0
	lineHeight = 5.0
)

// PDFExporter writes an A4 report with a title block and two tables.
type PDFExporter struct {
	Title    string
	Compress bool
}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{Title: "EICR Visual Analysis Report", Compress: true}
}

// Export renders result. Failures are export errors and never touch the result.
func (e *PDFExporter) Export(result *entity.AnalysisResult, generatedAt time.Time) ([]byte, error) {
	const op = "report.export"
	if result == nil {
		return nil, apperrors.New(apperrors.KindExport, op, "no analysis to export")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(e.Compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(e.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(e.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated: "+generatedAt.Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")

	s := result.ComplianceSummary
	pdf.CellFormat(0, 6, fmt.Sprintf("Safety rating: %d/%d", s.SafetyRating, entity.MaxSafetyRating), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Overall assessment: %s", strings.ToUpper(string(s.OverallAssessment))), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("C1: %d   C2: %d   C3: %d   FI: %d", s.C1Count, s.C2Count, s.C3Count, s.FICount), "", 1, "L", false, 0, "")
	if result.Summary != "" {
		pdf.Ln(2)
		pdf.MultiCell(0, lineHeight, tr(result.Summary), "", "L", false)
	}

	pdf.Ln(4)
	t := &table{pdf: pdf, tr: tr}
	t.section("Findings", FindingColumns, []float64{80, 22, 25, 53})
	if len(result.Findings) == 0 {
		t.row([]string{"No Faults Detected", "", "", ""})
	}
	for _, f := range result.Findings {
		t.row([]string{
			f.Description,
			string(f.EICRCode),
			fmt.Sprintf("%d%%", f.ConfidencePercent()),
			strings.Join(f.BS7671Clauses, ", "),
		})
	}

	pdf.Ln(6)
	t.section("Recommendations", RecommendationColumns, []float64{80, 28, 37, 35})
	for _, r := range result.Recommendations {
		t.row([]string{r.Action, string(r.Priority), r.BS7671Reference, r.CostEstimate})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindExport, op, "render pdf", err)
	}
	return buf.Bytes(), nil
}

// table draws bordered rows whose height follows the tallest wrapped cell.
type table struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	columns []string
	widths  []float64
}

func (t *table) section(title string, columns []string, widths []float64) {
	t.columns, t.widths = columns, widths
	t.ensureSpace(8 + lineHeight + 2)
	t.pdf.SetFont("Helvetica", "B", 13)
	t.pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	t.header()
}

func (t *table) header() {
	t.pdf.SetFont("Helvetica", "B", 9)
	t.pdf.SetFillColor(230, 230, 230)
	for i, col := range t.columns {
		t.pdf.CellFormat(t.widths[i], lineHeight+2, col, "1", 0, "L", true, 0, "")
	}
	t.pdf.Ln(-1)
	t.pdf.SetFont("Helvetica", "", 9)
}

func (t *table) row(cells []string) {
	lines := make([][][]byte, len(cells))
	height := 0
	for i, c := range cells {
		lines[i] = t.pdf.SplitLines([]byte(t.tr(c)), t.widths[i]-2)
		if len(lines[i]) == 0 {
			lines[i] = [][]byte{nil}
		}
		height = max(height, len(lines[i]))
	}
	h := float64(height)*lineHeight + 2

	if t.ensureSpace(h) {
		t.header()
	}

	x, y := t.pdf.GetXY()
	for i, cellLines := range lines {
		t.pdf.Rect(x, y, t.widths[i], h, "D")
		for j, line := range cellLines {
			t.pdf.SetXY(x+1, y+1+float64(j)*lineHeight)
			t.pdf.CellFormat(t.widths[i]-2, lineHeight, string(line), "", 0, "L", false, 0, "")
		}
		x += t.widths[i]
	}
	t.pdf.SetXY(margin, y+h)
}

// ensureSpace starts a new page when h does not fit; it reports whether it did.
func (t *table) ensureSpace(h float64) bool {
	_, pageHeight := t.pdf.GetPageSize()
	if t.pdf.GetY()+h <= pageHeight-margin {
		return false
	}
	t.pdf.AddPage()
	return true
}

var _ port.ReportExporter = (*PDFExporter)(nil)
