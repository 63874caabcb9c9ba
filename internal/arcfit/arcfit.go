// Package arcfit places a known reference lens contour on the rim edges of an
// eye region by solving scale, rotation and translation from per-angle ray
// correspondences.
package arcfit

import (
	"fmt"
	"math"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/internal/polar"
	"lens-tracer/pkg/geometry"
)

// Request describes one fit. Pixel coordinates are in the edge map's space.
type Request struct {
	Reference        polar.Contour // millimeters
	ROI              geometry.RectInt
	Origin           geometry.Point2D // seed position of the reference origin
	MidlineX         float64
	ScaleGuess       float64 // px/mm
	RotationGuessDeg float64
	IndependentScale float64  // px/mm observed by other means, 0 when absent
	FixedScale       float64  // px/mm; 0 solves the scale
	BottomAnchorY    *float64 // lowest placed point is moved onto this row
}

// Result is an accepted placement of the reference contour.
type Result struct {
	Points          []geometry.Point2D // placed reference contour, px
	Scale           float64            // px/mm
	RotationDeg     float64            // positive turns +X toward image +Y
	Origin          geometry.Point2D
	ResidualRMS     float64 // px
	Correspondences int
	Iteration       int
}

// Transform returns the model (mm) to image (px) transform of the placement.
func (r *Result) Transform() geometry.AffineTransform {
	return geometry.Similarity(r.Scale, r.RotationDeg*math.Pi/180, r.Origin.X, r.Origin.Y)
}

// Fit runs up to p.Iterations solves, each seeded by the previous solve, and
// returns the accepted iteration with the lowest residual. An iteration whose
// placement is rejected still seeds the next one; a divergent solve (too few
// correspondences or an implausible rotation) ends the loop. Earlier accepted
// results are returned even when a later iteration fails.
func Fit(em *edges.Map, req Request, p Params) (*Result, error) {
	if req.Reference.Unit != polar.Millimeters {
		panic(fmt.Sprintf("arcfit: reference contour is in %s", req.Reference.Unit))
	}
	if req.ScaleGuess <= 0 && req.FixedScale <= 0 {
		panic("arcfit: a scale guess is required")
	}

	roi := req.ROI.Intersect(geometry.RectInt{Width: em.Width, Height: em.Height})
	if roi.Empty() {
		return nil, failure.New(failure.KindOutOfBounds, "arcfit", "roi %v outside the edge map", req.ROI)
	}

	reference := req.Reference.Points()
	inner := shrink(reference, p.InnerMarginMm)
	f := fitter{
		em:        em,
		req:       req,
		p:         p,
		roi:       roi,
		reference: reference,
		profile:   newProfile(inner, profileSamples),
		mirrored:  req.Origin.X < req.MidlineX,
	}

	guess := similarity{
		Scale:       req.ScaleGuess,
		Rotation:    req.RotationGuessDeg * math.Pi / 180,
		Translation: req.Origin,
	}
	if req.FixedScale > 0 {
		guess.Scale = req.FixedScale
	}

	var best *Result
	var lastErr error
	for it := 0; it < max(1, p.Iterations); it++ {
		solved, pairs, err := f.solve(guess)
		if err != nil {
			lastErr = err
			break
		}
		res, err := f.accept(solved, pairs, it)
		if err != nil {
			lastErr = err
		} else if best == nil || res.ResidualRMS < best.ResidualRMS {
			best = res
		}
		guess = solved
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

type fitter struct {
	em        *edges.Map
	req       Request
	p         Params
	roi       geometry.RectInt
	reference []geometry.Point2D
	profile   profile
	mirrored  bool
}

// solve collects correspondences around the guess and solves the similarity.
func (f *fitter) solve(guess similarity) (similarity, []pair, error) {
	rays := f.castRays(guess)
	if len(rays) < f.p.MinCorrespondences {
		return guess, nil, failure.New(failure.KindInsufficientSignal, "arcfit",
			"%d correspondences, need %d", len(rays), f.p.MinCorrespondences)
	}

	delta := f.align(rays, guess)
	pairs := make([]pair, len(rays))
	for i, r := range rays {
		phi := r.angle - guess.Rotation - delta
		pairs[i] = pair{
			model:  f.profile.point(phi),
			image:  guess.Translation.Add(unit(r.angle).Scale(r.radius)),
			weight: r.weight,
		}
	}

	solved := solveProcrustes(pairs, f.req.FixedScale)
	solved.Rotation = normalizeAngle(solved.Rotation)
	if rotDeg := solved.Rotation * 180 / math.Pi; math.Abs(rotDeg) > f.p.MaxRotationDeg {
		return guess, nil, failure.New(failure.KindOutOfTolerance, "arcfit",
			"rotation %.1f° exceeds %.1f°", rotDeg, f.p.MaxRotationDeg)
	}
	return solved, pairs, nil
}

// accept validates a solve and places the reference contour.
func (f *fitter) accept(solved similarity, pairs []pair, it int) (*Result, error) {
	rms := residualRMS(pairs, solved)
	if rms > f.p.MaxResidualPx {
		return nil, failure.New(failure.KindOutOfTolerance, "arcfit",
			"residual %.2f px exceeds %.2f px", rms, f.p.MaxResidualPx)
	}
	if ind := f.req.IndependentScale; ind > 0 {
		if rel := math.Abs(solved.Scale/ind - 1); rel > f.p.ScaleTolerance {
			return nil, failure.New(failure.KindOutOfTolerance, "arcfit",
				"scale %.3f px/mm disagrees with %.3f px/mm by %.1f%%", solved.Scale, ind, 100*rel)
		}
	}

	placed := solved.transform().ApplyAll(f.reference)
	origin := solved.Translation
	if f.req.BottomAnchorY != nil {
		dy := f.anchorShift(placed, *f.req.BottomAnchorY)
		for i := range placed {
			placed[i].Y += dy
		}
		origin.Y += dy
	}
	for _, pt := range placed {
		if !f.roi.ContainsPoint(pt) {
			return nil, failure.New(failure.KindOutOfBounds, "arcfit",
				"placed contour leaves roi at (%.1f, %.1f)", pt.X, pt.Y)
		}
	}

	return &Result{
		Points:          placed,
		Scale:           solved.Scale,
		RotationDeg:     solved.Rotation * 180 / math.Pi,
		Origin:          origin,
		ResidualRMS:     rms,
		Correspondences: len(pairs),
		Iteration:       it,
	}, nil
}

// anchorShift returns the vertical shift putting the lowest placed point on
// anchorY, clamped so that the contour stays inside the ROI when it fits.
func (f *fitter) anchorShift(placed []geometry.Point2D, anchorY float64) float64 {
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, pt := range placed {
		minY = math.Min(minY, pt.Y)
		maxY = math.Max(maxY, pt.Y)
	}
	dy := anchorY - maxY
	lo := float64(f.roi.Y) - minY
	hi := float64(f.roi.Bottom()-1) - maxY
	if lo <= hi {
		dy = math.Max(lo, math.Min(hi, dy))
	}
	return dy
}

// shrink scales the contour about its box center so that the box loses
// margin on every side. Width and height shrink independently.
func shrink(points []geometry.Point2D, margin float64) []geometry.Point2D {
	if margin <= 0 {
		return append([]geometry.Point2D(nil), points...)
	}
	box := geometry.BoundingBox(points)
	c := box.Center()
	fx := math.Max(0.1, (box.Width-2*margin)/box.Width)
	fy := math.Max(0.1, (box.Height-2*margin)/box.Height)
	out := make([]geometry.Point2D, len(points))
	for i, pt := range points {
		out[i] = geometry.Point2D{X: c.X + (pt.X-c.X)*fx, Y: c.Y + (pt.Y-c.Y)*fy}
	}
	return out
}

func unit(angle float64) geometry.Point2D {
	return geometry.Point2D{X: math.Cos(angle), Y: math.Sin(angle)}
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
