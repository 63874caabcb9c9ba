package arcfit

import (
	"math"

	"lens-tracer/pkg/geometry"
)

const profileSamples = 3600

// profile is the inner model contour sampled as radius per angle around the
// model origin.
type profile struct {
	radii []float64 // NaN where the ray misses
}

func newProfile(polygon []geometry.Point2D, n int) profile {
	radii := make([]float64, n)
	for i := range radii {
		a := 2 * math.Pi * float64(i) / float64(n)
		if t, ok := geometry.RayIntersect(geometry.Point2D{}, unit(a), polygon); ok {
			radii[i] = t
		} else {
			radii[i] = math.NaN()
		}
	}
	return profile{radii: radii}
}

// at returns the interpolated model radius at angle a (radians).
func (p profile) at(a float64) float64 {
	n := len(p.radii)
	pos := math.Mod(a/(2*math.Pi), 1)
	if pos < 0 {
		pos++
	}
	pos *= float64(n)
	i0 := int(pos) % n
	f := pos - math.Floor(pos)
	r0, r1 := p.radii[i0], p.radii[(i0+1)%n]
	return r0 + (r1-r0)*f
}

func (p profile) point(a float64) geometry.Point2D {
	return unit(a).Scale(p.at(a))
}

// ray is one image ray with its accepted edge hit.
type ray struct {
	angle  float64 // image angle, radians
	radius float64 // px from the guessed origin
	weight float64
}

// castRays samples the model at AngularSamples angles, predicts each image
// radius from the guess and searches the image ray for the edge hit nearest
// to the prediction inside the relative search window.
func (f *fitter) castRays(g similarity) []ray {
	k := f.p.AngularSamples
	step := f.p.RayStepPx
	if step <= 0 {
		step = 0.5
	}
	var rays []ray
	for i := 0; i < k; i++ {
		phi := 2 * math.Pi * float64(i) / float64(k)
		psi := phi + g.Rotation
		if f.excluded(psi) {
			continue
		}
		rm := f.profile.at(phi)
		if math.IsNaN(rm) {
			continue
		}
		pred := g.Scale * rm
		dir := unit(psi)

		bestR, bestD := 0.0, math.Inf(1)
		var bestX, bestY int
		for r := f.p.SearchMin * pred; r <= f.p.SearchMax*pred; r += step {
			x := int(math.Round(g.Translation.X + r*dir.X))
			y := int(math.Round(g.Translation.Y + r*dir.Y))
			if !f.roi.ContainsPixel(x, y) || !f.em.On(x, y) {
				continue
			}
			if d := math.Abs(r - pred); d < bestD {
				bestR, bestD, bestX, bestY = r, d, x, y
			}
		}
		if math.IsInf(bestD, 1) {
			continue
		}
		rays = append(rays, ray{angle: psi, radius: bestR, weight: f.edgeWeight(bestX, bestY)})
	}
	return rays
}

// edgeWeight favours hits on well supported edges: (1 + edge neighbours) / 9.
func (f *fitter) edgeWeight(x, y int) float64 {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && f.em.On(x+dx, y+dy) {
				n++
			}
		}
	}
	return float64(1+n) / 9
}

// excluded reports whether an image angle falls in the exclusion range. The
// range is given for an eye right of the midline and mirrored otherwise.
func (f *fitter) excluded(angle float64) bool {
	from, to := f.p.ExcludeFromDeg, f.p.ExcludeToDeg
	if from == to {
		return false
	}
	deg := angle * 180 / math.Pi
	if f.mirrored {
		deg = 180 - deg
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if from <= to {
		return deg >= from && deg <= to
	}
	return deg >= from || deg <= to
}

// align finds the angular offset that best matches the measured radial
// profile to the model profile under a per-offset least-squares scale.
// Rays from the origin only measure radii; rotation enters the solve through
// the aligned model angles.
func (f *fitter) align(rays []ray, g similarity) float64 {
	span := f.p.MaxAlignDeg * math.Pi / 180
	step := f.p.AlignStepDeg * math.Pi / 180
	if span <= 0 || step <= 0 {
		return 0
	}
	bestDelta, bestCost := 0.0, math.Inf(1)
	n := int(math.Round(span / step))
	for i := -n; i <= n; i++ {
		delta := float64(i) * step
		var srr, sr, s2 float64
		ok := true
		for _, r := range rays {
			rm := f.profile.at(r.angle - g.Rotation - delta)
			if math.IsNaN(rm) {
				ok = false
				break
			}
			srr += r.weight * r.radius * r.radius
			sr += r.weight * r.radius * rm
			s2 += r.weight * rm * rm
		}
		if !ok || s2 == 0 {
			continue
		}
		scale := sr / s2
		if f.req.FixedScale > 0 {
			scale = f.req.FixedScale
		}
		cost := srr - 2*scale*sr + scale*scale*s2
		// prefer the smallest offset among equal costs
		if cost < bestCost-1e-9 || (math.Abs(cost-bestCost) <= 1e-9 && math.Abs(delta) < math.Abs(bestDelta)) {
			bestDelta, bestCost = delta, cost
		}
	}
	return bestDelta
}
