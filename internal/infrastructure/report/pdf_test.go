package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

func sampleResult() *entity.AnalysisResult {
	return &entity.AnalysisResult{
		Findings: []entity.Finding{
			{Description: "Exposed live conductor at damaged accessory", EICRCode: entity.CodeC1, Confidence: 0.93, BS7671Clauses: []string{"416.1", "134.1.1"}},
		},
		Recommendations: []entity.Recommendation{
			{Action: "Replace accessory", Priority: entity.PriorityImmediate, BS7671Reference: "416.1", CostEstimate: "£50-200", EICRCode: entity.CodeC1},
		},
		ComplianceSummary: entity.Summarize([]entity.Finding{{EICRCode: entity.CodeC1}}, 3),
		Summary:           "Danger present.",
	}
}

func TestPDFExporter_Tables(t *testing.T) {
	e := NewPDFExporter()
	e.Compress = false

	out, err := e.Export(sampleResult(), time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	for _, col := range append(append([]string{}, FindingColumns...), RecommendationColumns...) {
		assert.Contains(t, string(out), col)
	}
	assert.Contains(t, string(out), "Safety rating: 3/10")
	assert.Contains(t, string(out), "93%")
	assert.Contains(t, string(out), "01 Mar 2024")
}

func TestPDFExporter_ManyRowsPaginate(t *testing.T) {
	res := sampleResult()
	for i := 0; i < 80; i++ {
		res.Findings = append(res.Findings, entity.Finding{
			Description: fmt.Sprintf("Observation %d with a long enough description to wrap over more than one line in the table", i),
			EICRCode:    entity.CodeC3,
		})
	}

	out, err := NewPDFExporter().Export(res, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPDFExporter_NoFindings(t *testing.T) {
	e := NewPDFExporter()
	e.Compress = false

	out, err := e.Export(&entity.AnalysisResult{ComplianceSummary: entity.Summarize(nil, 10)}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(out), "No Faults Detected")
}

func TestPDFExporter_NilResult(t *testing.T) {
	_, err := NewPDFExporter().Export(nil, time.Now())
	require.True(t, apperrors.IsKind(err, apperrors.KindExport))
}
