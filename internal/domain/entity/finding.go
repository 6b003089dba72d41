package entity

import (
	"image"
	"math"
)

// BoundingBox is a region of the analysed image in relative coordinates,
// so it stays valid at any display zoom or pan.
type BoundingBox struct {
	X           float64   `json:"x"`      // left edge, fraction of image width
	Y           float64   `json:"y"`      // top edge, fraction of image height
	Width       float64   `json:"width"`  // fraction of image width
	Height      float64   `json:"height"` // fraction of image height
	Confidence  float64   `json:"confidence"`
	Label       string    `json:"label"`
	EICRCode    *EICRCode `json:"eicr_code,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Valid reports whether every coordinate and the confidence lie in [0,1].
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height, b.Confidence} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Center returns the centre of the box in relative coordinates.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// PixelRect maps the box onto an image of the given pixel size. The result
// is clipped to the image bounds.
func (b BoundingBox) PixelRect(width, height int) image.Rectangle {
	clamp := func(v float64) float64 { return math.Max(0, math.Min(1, v)) }

	x0 := clamp(b.X)
	y0 := clamp(b.Y)
	x1 := clamp(b.X + b.Width)
	y1 := clamp(b.Y + b.Height)

	return image.Rect(
		int(math.Round(x0*float64(width))),
		int(math.Round(y0*float64(height))),
		int(math.Round(x1*float64(width))),
		int(math.Round(y1*float64(height))),
	)
}

// Finding is one observation returned by the analysis service.
type Finding struct {
	Description   string       `json:"description"`
	EICRCode      EICRCode     `json:"eicr_code"`
	Confidence    float64      `json:"confidence"`
	BS7671Clauses []string     `json:"bs7671_clauses"`
	Location      string       `json:"location,omitempty"`
	FixGuidance   string       `json:"fix_guidance"`
	BoundingBox   *BoundingBox `json:"bounding_box,omitempty"`
}

// ConfidencePercent returns the confidence rounded to a whole percentage.
func (f Finding) ConfidencePercent() int {
	return int(math.Round(f.Confidence * 100))
}

// Recommendation is an action derived by the analysis service from its findings.
type Recommendation struct {
	Action          string   `json:"action"`
	Priority        Priority `json:"priority"`
	BS7671Reference string   `json:"bs7671_reference,omitempty"`
	CostEstimate    string   `json:"cost_estimate,omitempty"`
	EICRCode        EICRCode `json:"eicr_code"`
}

// Valid reports whether the recommendation carries a C1, C2 or C3 code.
func (r Recommendation) Valid() bool {
	return r.Priority.IsValid() && r.EICRCode.IsValid() && r.EICRCode != CodeFI
}
