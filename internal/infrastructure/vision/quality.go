package vision

import (
	"context"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
)

// Issue labels reported by the quality gate.
const (
	IssueTooDark       = "too dark"
	IssueOverexposed   = "overexposed"
	IssueGlare         = "glare"
	IssueBlurry        = "blurry"
	IssueLowResolution = "low resolution"
	IssuePoorFraming   = "poor framing"
)

// QualityGate scores captures with luminance heuristics. It is pure Go so
// it runs in every build.
type QualityGate struct {
	AnalysisSide         int     // long side of the working copy
	MinImageSide         int     // below this the source is "low resolution"
	MinMeanLuminance     float64 // 0..255
	MaxUnderexposedRatio float64
	MaxOverexposedRatio  float64
	MaxGlareRatio        float64
	MinSharpness         float64 // variance of the Laplacian
	MinCenterEdgeRatio   float64 // centre edge energy / whole frame
}

// NewQualityGate returns a gate with field-tested thresholds.
func NewQualityGate() *QualityGate {
	return &QualityGate{
		AnalysisSide:         256,
		MinImageSide:         400,
		MinMeanLuminance:     50,
		MaxUnderexposedRatio: 0.45,
		MaxOverexposedRatio:  0.35,
		MaxGlareRatio:        0.08,
		MinSharpness:         100,
		MinCenterEdgeRatio:   0.25,
	}
}

var penalties = map[string]float64{
	IssueTooDark:       0.35,
	IssueOverexposed:   0.3,
	IssueBlurry:        0.3,
	IssueGlare:         0.15,
	IssueLowResolution: 0.15,
	IssuePoorFraming:   0.1,
}

// Evaluate scores the image. When the image cannot be decoded it returns a
// passing result together with the error.
func (g *QualityGate) Evaluate(ctx context.Context, img entity.Image) (entity.QualityResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.PassingQuality(), err
	}

	src, err := decode(img.Data)
	if err != nil {
		return entity.PassingQuality(), err
	}

	var issues []string
	b := src.Bounds()
	if b.Dx() < g.MinImageSide || b.Dy() < g.MinImageSide {
		issues = append(issues, IssueLowResolution)
	}

	gray := g.workingCopy(src)
	lum := make([]float64, 0, len(gray.Pix))
	var dark, bright, glare int
	for _, p := range gray.Pix {
		v := float64(p)
		lum = append(lum, v)
		switch {
		case p < 20:
			dark++
		case p > 250:
			bright++
		}
		if p >= 245 {
			glare++
		}
	}
	total := float64(len(lum))

	mean := stat.Mean(lum, nil)
	overexposed := float64(bright)/total > g.MaxOverexposedRatio
	if mean < g.MinMeanLuminance || float64(dark)/total > g.MaxUnderexposedRatio {
		issues = append(issues, IssueTooDark)
	}
	if overexposed {
		issues = append(issues, IssueOverexposed)
	} else if float64(glare)/total > g.MaxGlareRatio {
		issues = append(issues, IssueGlare)
	}

	lap, centre := laplacian(gray)
	if len(lap) == 0 || stat.Variance(lap, nil) < g.MinSharpness {
		issues = append(issues, IssueBlurry)
	}
	if whole := meanAbs(lap); whole > 0 && len(centre) > 0 {
		if meanAbs(centre)/whole < g.MinCenterEdgeRatio {
			issues = append(issues, IssuePoorFraming)
		}
	}

	score := 1.0
	for _, issue := range issues {
		score -= penalties[issue]
	}
	return entity.QualityResult{Score: math.Max(0, math.Min(1, score)), Issues: issues}, nil
}

// workingCopy downsamples to AnalysisSide on the long edge and converts to gray.
func (g *QualityGate) workingCopy(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if long := max(w, h); g.AnalysisSide > 0 && long > g.AnalysisSide {
		scale := float64(g.AnalysisSide) / float64(long)
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// laplacian returns the 4-neighbour Laplacian response of every interior
// pixel, and separately the responses inside the central third.
func laplacian(g *image.Gray) (all, centre []float64) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < 3 || h < 3 {
		return nil, nil
	}
	at := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }

	all = make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			all = append(all, v)
			if x >= w/3 && x < 2*w/3 && y >= h/3 && y < 2*h/3 {
				centre = append(centre, v)
			}
		}
	}
	return all, centre
}

func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Abs(x)
	}
	return sum / float64(len(xs))
}

var _ port.QualityGate = (*QualityGate)(nil)
