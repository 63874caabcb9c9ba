// Package refine nudges a placed contour by a few pixels and a few percent of
// scale to sit on the strongest intensity step in the image.
package refine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/pkg/geometry"
)

// Params configures the refinement grid and scoring.
type Params struct {
	MaxShift          int       // dx, dy in [-MaxShift, MaxShift]
	Scales            []float64 // multipliers about the centroid
	StepPx            float64   // perimeter sampling step
	OffsetPx          float64   // straddle distance on each side of the contour
	InlierThreshold   float64   // gray levels
	ReferenceResponse float64   // response treated as a full-strength edge
	MinSamples        int
	Strategy          Strategy
}

// DefaultParams returns refinement defaults.
func DefaultParams() Params {
	return Params{
		MaxShift:          3,
		Scales:            []float64{0.98, 0.99, 1.0, 1.01, 1.02},
		StepPx:            2,
		OffsetPx:          1.5,
		InlierThreshold:   12,
		ReferenceResponse: 40,
		MinSamples:        20,
		Strategy:          InlierMedian,
	}
}

// WithStrategy returns a copy of params using s.
func (p Params) WithStrategy(s Strategy) Params {
	p.Strategy = s
	return p
}

// Candidate is one perturbation of the placement and its score.
type Candidate struct {
	DX, DY   int
	Scale    float64
	Samples  int
	Coverage float64
	Score    float64
	Response float64 // mean straddle response, gray levels
}

// IsIdentity reports whether c leaves the placement unchanged.
func (c Candidate) IsIdentity() bool {
	return c.DX == 0 && c.DY == 0 && c.Scale == 1
}

// Result holds the winning candidate, its contour and every candidate scored.
type Result struct {
	Best       Candidate
	Points     []geometry.Point2D
	Candidates []Candidate
}

// Refine scores the identity and every grid perturbation of placed and
// returns the best. Only samples inside roi, and below cutoffY when given,
// are scored, and a candidate with fewer than MinSamples samples is never
// selected. The identity is scored first and only a strictly better
// candidate replaces it.
func Refine(img *gray.Image, roi geometry.RectInt, placed []geometry.Point2D, cutoffY *float64, p Params) (*Result, error) {
	roi = roi.Intersect(img.Bounds())
	scorer := p.Strategy.Scorer(p.InlierThreshold, p.ReferenceResponse)
	center := geometry.Centroid(placed)

	identity := evaluate(img, roi, placed, center, Candidate{Scale: 1}, cutoffY, scorer, p)
	if identity.Samples < p.MinSamples {
		return nil, failure.New(failure.KindInsufficientSignal, "refine",
			"%d usable samples, need %d", identity.Samples, p.MinSamples)
	}

	best := identity
	candidates := []Candidate{identity}
	for _, s := range p.Scales {
		for dy := -p.MaxShift; dy <= p.MaxShift; dy++ {
			for dx := -p.MaxShift; dx <= p.MaxShift; dx++ {
				c := Candidate{DX: dx, DY: dy, Scale: s}
				if c.IsIdentity() {
					continue
				}
				c = evaluate(img, roi, placed, center, c, cutoffY, scorer, p)
				candidates = append(candidates, c)
				if c.Samples >= p.MinSamples && better(c, best) {
					best = c
				}
			}
		}
	}

	return &Result{
		Best:       best,
		Points:     apply(placed, center, best),
		Candidates: candidates,
	}, nil
}

func evaluate(img *gray.Image, roi geometry.RectInt, placed []geometry.Point2D, center geometry.Point2D,
	c Candidate, cutoffY *float64, scorer Scorer, p Params) Candidate {
	responses := sampleResponses(img, roi, apply(placed, center, c), cutoffY, p)
	c.Samples = len(responses)
	c.Coverage, c.Score = scorer.Score(responses)
	if len(responses) > 0 {
		c.Response = stat.Mean(responses, nil)
	}
	return c
}

// better orders candidates by score, then by mean response, which keeps
// growing after the score saturates, then by the smaller perturbation. The
// identity has no perturbation, so it survives every exact tie.
func better(c, best Candidate) bool {
	if c.Score != best.Score {
		return c.Score > best.Score
	}
	if c.Response != best.Response {
		return c.Response > best.Response
	}
	if d, bd := shift(c), shift(best); d != bd {
		return d < bd
	}
	return math.Abs(c.Scale-1) < math.Abs(best.Scale-1)
}

func shift(c Candidate) int {
	return max(c.DX, -c.DX) + max(c.DY, -c.DY)
}

// apply scales the contour about center and shifts it by the candidate offset.
func apply(points []geometry.Point2D, center geometry.Point2D, c Candidate) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	shift := geometry.Point2D{X: float64(c.DX), Y: float64(c.DY)}
	for i, pt := range points {
		out[i] = center.Add(pt.Sub(center).Scale(c.Scale)).Add(shift)
	}
	return out
}

// sampleResponses walks the contour and returns |I(p+n·o) − I(p−n·o)| for
// every sample whose straddle points both lie in roi.
func sampleResponses(img *gray.Image, roi geometry.RectInt, contour []geometry.Point2D, cutoffY *float64, p Params) []float64 {
	var out []float64
	for _, s := range geometry.WalkPerimeter(contour, p.StepPx) {
		if cutoffY != nil && s.Point.Y <= *cutoffY {
			continue
		}
		a := s.Point.Add(s.Normal.Scale(p.OffsetPx))
		b := s.Point.Sub(s.Normal.Scale(p.OffsetPx))
		if !roi.ContainsPoint(a) || !roi.ContainsPoint(b) {
			continue
		}
		out = append(out, math.Abs(img.Bilinear(a.X, a.Y)-img.Bilinear(b.X, b.Y)))
	}
	return out
}
