package entity

import (
	"fmt"
	"strings"
)

// Assessment is the overall outcome of an inspection.
type Assessment string

const (
	AssessmentSatisfactory   Assessment = "satisfactory"
	AssessmentUnsatisfactory Assessment = "unsatisfactory"
)

// MaxSafetyRating is the top of the safety rating scale.
const MaxSafetyRating = 10

// ComplianceSummary aggregates the findings of one analysis.
type ComplianceSummary struct {
	OverallAssessment Assessment `json:"overall_assessment"`
	C1Count           int        `json:"c1_count"`
	C2Count           int        `json:"c2_count"`
	C3Count           int        `json:"c3_count"`
	FICount           int        `json:"fi_count"`
	SafetyRating      int        `json:"safety_rating"`
}

// Consistent reports whether the assessment is unsatisfactory exactly when
// there is at least one C1 or C2.
func (s ComplianceSummary) Consistent() bool {
	dangerous := s.C1Count+s.C2Count > 0
	return dangerous == (s.OverallAssessment == AssessmentUnsatisfactory)
}

// Normalize derives the assessment from the counts and clamps the rating.
func (s ComplianceSummary) Normalize() ComplianceSummary {
	if s.C1Count+s.C2Count > 0 {
		s.OverallAssessment = AssessmentUnsatisfactory
	} else {
		s.OverallAssessment = AssessmentSatisfactory
	}
	if s.SafetyRating < 0 {
		s.SafetyRating = 0
	}
	if s.SafetyRating > MaxSafetyRating {
		s.SafetyRating = MaxSafetyRating
	}
	return s
}

// Count returns the number of findings with the given code.
func (s ComplianceSummary) Count(code EICRCode) int {
	switch code {
	case CodeC1:
		return s.C1Count
	case CodeC2:
		return s.C2Count
	case CodeC3:
		return s.C3Count
	case CodeFI:
		return s.FICount
	}
	return 0
}

// Summarize counts findings per code and builds a normalized summary.
func Summarize(findings []Finding, safetyRating int) ComplianceSummary {
	s := ComplianceSummary{SafetyRating: safetyRating}
	for _, f := range findings {
		switch f.EICRCode {
		case CodeC1:
			s.C1Count++
		case CodeC2:
			s.C2Count++
		case CodeC3:
			s.C3Count++
		case CodeFI:
			s.FICount++
		}
	}
	return s.Normalize()
}

// AnalysisResult is the structured response of the analysis service.
type AnalysisResult struct {
	Findings          []Finding         `json:"findings"`
	Recommendations   []Recommendation  `json:"recommendations"`
	ComplianceSummary ComplianceSummary `json:"compliance_summary"`
	Summary           string            `json:"summary"`
}

// degradedMarkers are phrases the service writes into a finding when it
// could not structure its own output.
var degradedMarkers = []string{
	"unable to complete",
	"format was invalid",
	"could not be parsed",
	"invalid format",
}

// IsDegraded reports whether any finding signals that the service could not
// produce a structured analysis.
func (r *AnalysisResult) IsDegraded() bool {
	if r == nil {
		return false
	}
	for _, f := range r.Findings {
		desc := strings.ToLower(f.Description)
		for _, marker := range degradedMarkers {
			if strings.Contains(desc, marker) {
				return true
			}
		}
	}
	return false
}

// Sanitize resolves values the service sent outside the closed sets. Unknown
// finding codes become FI, unknown priorities become recommended and
// recommendations without a C1, C2 or C3 code are dropped. It returns one
// note per change.
func (r *AnalysisResult) Sanitize() []string {
	var notes []string
	for i := range r.Findings {
		f := &r.Findings[i]
		if !f.EICRCode.IsValid() {
			notes = append(notes, fmt.Sprintf("finding %d: code %q read as FI", i+1, f.EICRCode))
			f.EICRCode = CodeFI
		}
		if b := f.BoundingBox; b != nil && b.EICRCode != nil && !b.EICRCode.IsValid() {
			b.EICRCode = nil
		}
	}

	kept := make([]Recommendation, 0, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		if !rec.Priority.IsValid() {
			notes = append(notes, fmt.Sprintf("recommendation %d: priority %q read as %s", i+1, rec.Priority, PriorityRecommended))
			rec.Priority = PriorityRecommended
		}
		if !rec.Valid() {
			notes = append(notes, fmt.Sprintf("recommendation %d: code %q dropped", i+1, rec.EICRCode))
			continue
		}
		kept = append(kept, rec)
	}
	r.Recommendations = kept
	return notes
}

// HasFindings reports whether at least one finding was returned.
func (r *AnalysisResult) HasFindings() bool {
	return r != nil && len(r.Findings) > 0
}

// AnalysisSettings are the options sent with every analysis request.
type AnalysisSettings struct {
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	EnableBoundingBoxes bool     `json:"enable_bounding_boxes"`
	FocusAreas          []string `json:"focus_areas"`
	RemoveBackground    bool     `json:"remove_background"`
	BS7671Compliance    bool     `json:"bs7671_compliance"`
}

const (
	MinConfidenceThreshold     = 0.1
	MaxConfidenceThreshold     = 1.0
	DefaultConfidenceThreshold = 0.7
)

// DefaultAnalysisSettings returns the settings used when the caller sets none.
func DefaultAnalysisSettings() AnalysisSettings {
	return AnalysisSettings{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		EnableBoundingBoxes: true,
		FocusAreas:          []string{},
		RemoveBackground:    false,
		BS7671Compliance:    true,
	}
}

// Normalize clamps the threshold and cleans the focus areas. A zero
// threshold means "not set" and becomes the default.
func (s AnalysisSettings) Normalize() AnalysisSettings {
	switch {
	case s.ConfidenceThreshold == 0:
		s.ConfidenceThreshold = DefaultConfidenceThreshold
	case s.ConfidenceThreshold < MinConfidenceThreshold:
		s.ConfidenceThreshold = MinConfidenceThreshold
	case s.ConfidenceThreshold > MaxConfidenceThreshold:
		s.ConfidenceThreshold = MaxConfidenceThreshold
	}

	areas := make([]string, 0, len(s.FocusAreas))
	seen := make(map[string]bool, len(s.FocusAreas))
	for _, a := range s.FocusAreas {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		areas = append(areas, a)
	}
	s.FocusAreas = areas
	return s
}

// AnalysisRequest is the body sent to the analysis service.
type AnalysisRequest struct {
	PrimaryImage     string           `json:"primary_image"`
	AdditionalImages []string         `json:"additional_images"`
	Settings         AnalysisSettings `json:"analysis_settings"`
}

// ImageURLs returns the primary URL followed by the additional ones.
func (r AnalysisRequest) ImageURLs() []string {
	urls := make([]string, 0, 1+len(r.AdditionalImages))
	urls = append(urls, r.PrimaryImage)
	return append(urls, r.AdditionalImages...)
}
