package entity

// DefaultQualityThreshold is the score below which a capture is flagged.
const DefaultQualityThreshold = 0.7

// QualityResult is the advisory score of a single capture.
type QualityResult struct {
	Score  float64  // 0..1, higher is better
	Issues []string // e.g. "too dark", "blurry"
}

// PassingQuality is used whenever evaluation cannot run.
func PassingQuality() QualityResult {
	return QualityResult{Score: 1}
}

// Acceptable reports whether the score reaches the threshold.
func (q QualityResult) Acceptable(threshold float64) bool {
	return q.Score >= threshold
}
