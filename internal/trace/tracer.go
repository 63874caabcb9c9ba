// Package trace recovers the polar contour of a lens photographed inside a
// calibration ring of known diameter.
//
// The ring fixes the origin: rays are cast from just inside the ring toward
// its center and the first edge hit on each ray is the lens boundary. When too
// few rays hit, the best external contour of the interior edge map is used
// instead.
package trace

import (
	"fmt"
	"math"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/internal/polar"
	"lens-tracer/pkg/geometry"
)

// Result is a traced lens contour.
type Result struct {
	Contour     polar.Contour // millimeters, clockwise, origin at the ring center
	Ring        Ring
	Coverage    float64 // fraction of rays with a direct hit, before filling
	Fallback    bool    // contour came from the external-contour path
	RingPxPerMm float64 // scale implied by the detected ring diameter
	Edges       *edges.Map
}

// Trace detects the calibration ring in img and traces the lens inside it.
// pxPerMm is the caller's scale; every millimeter parameter is converted with it.
func Trace(img *gray.Image, pxPerMm float64, p Params) (*Result, error) {
	if pxPerMm <= 0 {
		panic(fmt.Sprintf("trace: invalid scale %v px/mm", pxPerMm))
	}
	if p.Samples < 8 || p.Oversample < 1 {
		panic(fmt.Sprintf("trace: invalid sampling %d x %d", p.Samples, p.Oversample))
	}

	g := edges.ComputeGradient(img)
	em, err := edges.BuildFromGradient(g, p.Edges)
	if err != nil {
		return nil, err
	}

	expected := p.RingDiameterMm * pxPerMm / 2
	ring, ok := detectRing(em, expected, p)
	if !ok {
		return nil, failure.New(failure.KindInsufficientSignal, "trace",
			"no ring near radius %.1f px", expected)
	}

	inner := ring.Radius - (p.RingBandMm+p.InteriorMarginMm)*pxPerMm
	if inner < 4 {
		return nil, failure.New(failure.KindOutOfBounds, "trace",
			"interior radius %.1f px is too small", inner)
	}

	m := p.Samples * p.Oversample
	raw, hits := castRays(em, ring.Center, inner, m, p.RayStepPx)
	coverage := float64(hits) / float64(m)

	res := &Result{
		Ring:        ring,
		Coverage:    coverage,
		RingPxPerMm: 2 * ring.Radius / p.RingDiameterMm,
		Edges:       em,
	}

	if coverage < p.MinCoverage {
		raw, err = contourRadii(em, ring.Center, inner, m, p)
		if err != nil {
			return nil, err
		}
		res.Fallback = true
	}

	radii := smoothRadii(raw, p.MedianWindow, p.SmoothWindow, p.MaxJumpMm*pxPerMm)
	radii = downsample(radii, p.Oversample)
	for i := range radii {
		radii[i] /= pxPerMm
	}

	contour, err := polar.New(radii, polar.Millimeters, polar.Clockwise)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	contour.Origin = ring.Center
	res.Contour = contour
	return res, nil
}

// castRays marches m rays inward from radius start and returns the first
// edge hit per ray in pixels (NaN on a miss) and the number of hits.
// Ray k points along (cos θ, sin θ) in image coordinates, θ = 2πk/m.
func castRays(em *edges.Map, center geometry.Point2D, start float64, m int, step float64) ([]float64, int) {
	if step <= 0 {
		step = 0.5
	}
	radii := make([]float64, m)
	hits := 0
	for k := range radii {
		theta := 2 * math.Pi * float64(k) / float64(m)
		dx, dy := math.Cos(theta), math.Sin(theta)
		radii[k] = math.NaN()
		for r := start; r >= 1; r -= step {
			x := int(math.Round(center.X + r*dx))
			y := int(math.Round(center.Y + r*dy))
			if em.On(x, y) {
				radii[k] = r
				hits++
				break
			}
		}
	}
	return radii, hits
}
