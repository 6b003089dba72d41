package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"eicr-vision/internal/domain/entity"
	apperrors "eicr-vision/internal/platform/errors"
)

// Branch selects which results screen is shown.
type Branch string

const (
	BranchDegraded Branch = "degraded"  // service could not structure its output
	BranchNoFaults Branch = "no_faults" // "No Faults Detected"
	BranchFindings Branch = "findings"
)

// Filter is the active severity tab.
type Filter string

const FilterAll Filter = "all"

// ParseFilter accepts "all" or an EICR code in any casing.
func ParseFilter(s string) (Filter, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(FilterAll)) || strings.TrimSpace(s) == "" {
		return FilterAll, nil
	}
	code, err := entity.ParseEICRCode(s)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInput, "results.filter", "unknown filter", err)
	}
	return Filter(code), nil
}

// VisibleFinding pairs a finding with its fix pack and original position.
type VisibleFinding struct {
	Index    int
	Finding  entity.Finding
	FixPack  entity.FixPack
	Expanded bool
}

// RetryFunc re-runs the analysis for a degraded result.
type RetryFunc func(ctx context.Context) error

// ResultsView holds UI-only state over one analysis result.
type ResultsView struct {
	entry    entity.AnalysisHistoryEntry
	fixPacks []entity.FixPack
	retry    RetryFunc

	mu       sync.Mutex
	filter   Filter
	expanded map[int]bool
}

func NewResultsView(entry entity.AnalysisHistoryEntry, fixPacks []entity.FixPack, retry RetryFunc) *ResultsView {
	if entry.Result == nil {
		entry.Result = &entity.AnalysisResult{}
	}
	if len(fixPacks) != len(entry.Result.Findings) {
		fixPacks = entity.DeriveFixPacks(entry.Result.Findings)
	}
	return &ResultsView{
		entry:    entry,
		fixPacks: fixPacks,
		retry:    retry,
		filter:   FilterAll,
		expanded: make(map[int]bool),
	}
}

func (v *ResultsView) Entry() entity.AnalysisHistoryEntry { return v.entry }

func (v *ResultsView) Result() *entity.AnalysisResult { return v.entry.Result }

func (v *ResultsView) FixPacks() []entity.FixPack {
	out := make([]entity.FixPack, len(v.fixPacks))
	copy(out, v.fixPacks)
	return out
}

// Branch picks the screen. A degraded result never shows the findings list
// and an empty result is always "No Faults Detected".
func (v *ResultsView) Branch() Branch {
	r := v.entry.Result
	switch {
	case r.IsDegraded():
		return BranchDegraded
	case !r.HasFindings():
		return BranchNoFaults
	}
	return BranchFindings
}

// AvailableFilters returns "all" plus every code with at least one finding.
func (v *ResultsView) AvailableFilters() []Filter {
	counts := v.counts()
	filters := []Filter{FilterAll}
	for _, code := range entity.AllCodes {
		if counts[code] > 0 {
			filters = append(filters, Filter(code))
		}
	}
	return filters
}

// Counts returns the number of findings per code in the list itself.
func (v *ResultsView) counts() map[entity.EICRCode]int {
	counts := make(map[entity.EICRCode]int, len(entity.AllCodes))
	for _, f := range v.entry.Result.Findings {
		counts[f.EICRCode]++
	}
	return counts
}

// SetFilter switches the tab. Hidden tabs cannot be selected.
func (v *ResultsView) SetFilter(f Filter) error {
	for _, available := range v.AvailableFilters() {
		if available == f {
			v.mu.Lock()
			v.filter = f
			v.mu.Unlock()
			return nil
		}
	}
	return apperrors.New(apperrors.KindInput, "results.filter", fmt.Sprintf("no %s findings to show", f))
}

func (v *ResultsView) Filter() Filter {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// VisibleFindings applies the active filter.
func (v *ResultsView) VisibleFindings() []VisibleFinding {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]VisibleFinding, 0, len(v.entry.Result.Findings))
	for i, f := range v.entry.Result.Findings {
		if v.filter != FilterAll && Filter(f.EICRCode) != v.filter {
			continue
		}
		out = append(out, VisibleFinding{Index: i, Finding: f, FixPack: v.fixPacks[i], Expanded: v.expanded[i]})
	}
	return out
}

// Finding returns one finding by its position in the result.
func (v *ResultsView) Finding(i int) (entity.Finding, entity.FixPack, error) {
	if i < 0 || i >= len(v.entry.Result.Findings) {
		return entity.Finding{}, entity.FixPack{}, apperrors.New(apperrors.KindInput, "results.finding", fmt.Sprintf("no finding %d", i+1))
	}
	return v.entry.Result.Findings[i], v.fixPacks[i], nil
}

// Toggle flips the expanded flag of finding i and returns the new value.
func (v *ResultsView) Toggle(i int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expanded[i] = !v.expanded[i]
	return v.expanded[i]
}

func (v *ResultsView) Expanded(i int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded[i]
}

// SetAllExpanded expands or collapses every finding.
func (v *ResultsView) SetAllExpanded(expanded bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.entry.Result.Findings {
		v.expanded[i] = expanded
	}
}

// CopySummary formats the result as plain text for the clipboard.
func (v *ResultsView) CopySummary() string {
	r := v.entry.Result
	s := r.ComplianceSummary

	var b strings.Builder
	b.WriteString("EICR Visual Analysis\n")
	fmt.Fprintf(&b, "Overall: %s | Safety rating: %d/%d\n", strings.ToUpper(string(s.OverallAssessment)), s.SafetyRating, entity.MaxSafetyRating)
	fmt.Fprintf(&b, "C1: %d  C2: %d  C3: %d  FI: %d\n", s.C1Count, s.C2Count, s.C3Count, s.FICount)
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Summary)
	}

	if !r.HasFindings() {
		b.WriteString("\nNo Faults Detected\n")
		return b.String()
	}

	b.WriteString("\nFindings:\n")
	for i, f := range r.Findings {
		fmt.Fprintf(&b, "%d. [%s] %s (%d%%)", i+1, f.EICRCode, f.Description, f.ConfidencePercent())
		if f.Location != "" {
			fmt.Fprintf(&b, " - %s", f.Location)
		}
		if len(f.BS7671Clauses) > 0 {
			fmt.Fprintf(&b, " | BS 7671: %s", strings.Join(f.BS7671Clauses, ", "))
		}
		b.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- [%s] %s", rec.Priority, rec.Action)
			if rec.CostEstimate != "" {
				fmt.Fprintf(&b, " (%s)", rec.CostEstimate)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RecoveryHints lists likely causes shown with a degraded result.
func (v *ResultsView) RecoveryHints() []string {
	return []string{
		"Photos may be too dark, blurred or taken at a steep angle.",
		"The installation may be partly hidden; remove covers only if safe to do so.",
		"Too many unrelated items in frame; focus on one board or accessory.",
		"The analysis service may be busy; try again in a moment.",
	}
}

// CanRetry reports whether a retry callback is wired.
func (v *ResultsView) CanRetry() bool { return v.retry != nil }

// Retry calls the retry callback supplied by the owner of the view.
func (v *ResultsView) Retry(ctx context.Context) error {
	if v.retry == nil {
		return apperrors.New(apperrors.KindInput, "results.retry", "retry is not available")
	}
	return v.retry(ctx)
}
