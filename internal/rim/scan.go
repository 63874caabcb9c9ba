package rim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"lens-tracer/internal/edges"
	"lens-tracer/pkg/geometry"
)

// sides holds inner and outer boundary columns found on each side of a seed.
type sides struct {
	innerLeft, innerRight int
	outerLeft, outerRight int
}

func (s sides) width() int { return s.innerRight - s.innerLeft }

// bandHit reports whether column x has an edge pixel in rows y0..y1.
func bandHit(em *edges.Map, x, y0, y1 int) bool {
	for y := y0; y <= y1; y++ {
		if em.On(x, y) {
			return true
		}
	}
	return false
}

// scanSide walks from start in direction dir (±1) until limit (exclusive),
// returning the first column whose band holds an edge and, beyond the end of
// that run and within window columns, the next one. found is false when no
// inner edge exists; outer is -1 when no paired edge was seen.
func scanSide(em *edges.Map, start, dir, limit, y0, y1, window int) (inner, outer int, found bool) {
	x := start
	for ; x != limit; x += dir {
		if bandHit(em, x, y0, y1) {
			break
		}
	}
	if x == limit {
		return 0, -1, false
	}
	inner = x

	// skip the rest of the inner run
	for x += dir; x != limit && bandHit(em, x, y0, y1); x += dir {
	}
	for steps := 0; x != limit && steps < window; x, steps = x+dir, steps+1 {
		if bandHit(em, x, y0, y1) {
			return inner, x, true
		}
	}
	return inner, -1, true
}

// bandScan finds the rim on both sides of seed along the band centered at
// row y. The skip region around the seed covers the eye itself.
func bandScan(em *edges.Map, roi geometry.RectInt, seed float64, skip float64, y, bandHalf, window int) (sides, bool) {
	y0, y1 := max(roi.Y, y-bandHalf), min(roi.Bottom()-1, y+bandHalf)
	leftStart := int(math.Floor(seed - skip))
	rightStart := int(math.Ceil(seed + skip))
	if leftStart < roi.X || rightStart >= roi.Right() {
		return sides{}, false
	}

	il, ol, okL := scanSide(em, leftStart, -1, roi.X-1, y0, y1, window)
	ir, or, okR := scanSide(em, rightStart, 1, roi.Right(), y0, y1, window)
	if !okL || !okR {
		return sides{}, false
	}
	return sides{innerLeft: il, innerRight: ir, outerLeft: ol, outerRight: or}, true
}

// columnEnergy sums edge pixels per ROI column over rows y0..y1.
func columnEnergy(em *edges.Map, roi geometry.RectInt, y0, y1 int) []float64 {
	energy := make([]float64, roi.Width)
	for i := range energy {
		x := roi.X + i
		for y := y0; y <= y1; y++ {
			if em.On(x, y) {
				energy[i]++
			}
		}
	}
	return energy
}

// peakSide walks the column energy from start toward limit and returns the
// first run above threshold (its strongest column), then the next such run
// within window columns.
func peakSide(energy []float64, roiX, start, dir, limit int, threshold float64, window int) (inner, outer int, found bool) {
	at := func(x int) float64 { return energy[x-roiX] }
	x := start
	for ; x != limit; x += dir {
		if at(x) >= threshold {
			break
		}
	}
	if x == limit {
		return 0, -1, false
	}
	inner = x
	for x += dir; x != limit && at(x) >= threshold; x += dir {
		if at(x) > at(inner) {
			inner = x
		}
	}
	for steps := 0; x != limit && steps < window; x, steps = x+dir, steps+1 {
		if at(x) >= threshold {
			return inner, x, true
		}
	}
	return inner, -1, true
}

// peakScan is the fallback for bandScan: the rim's vertical sides show up
// as peaks in the column-summed edge energy of the rows around the scan row.
func peakScan(em *edges.Map, roi geometry.RectInt, seed, skip float64, y0, y1 int, threshold float64, window int) (sides, bool) {
	leftStart := int(math.Floor(seed - skip))
	rightStart := int(math.Ceil(seed + skip))
	if leftStart < roi.X || rightStart >= roi.Right() || y1 <= y0 {
		return sides{}, false
	}
	energy := columnEnergy(em, roi, y0, y1)

	sideMax := func(from, to int) float64 {
		m := 0.0
		for x := from; x < to; x++ {
			m = math.Max(m, energy[x-roi.X])
		}
		return m
	}
	maxL := sideMax(roi.X, leftStart+1)
	maxR := sideMax(rightStart, roi.Right())
	if maxL == 0 || maxR == 0 {
		return sides{}, false
	}

	il, ol, okL := peakSide(energy, roi.X, leftStart, -1, roi.X-1, threshold*maxL, window)
	ir, or, okR := peakSide(energy, roi.X, rightStart, 1, roi.Right(), threshold*maxR, window)
	if !okL || !okR {
		return sides{}, false
	}
	return sides{innerLeft: il, innerRight: ir, outerLeft: ol, outerRight: or}, true
}

// rowCoverage returns the fraction of columns x0..x1 with an edge pixel
// within ±halfBand rows of y.
func rowCoverage(em *edges.Map, y, x0, x1, halfBand int) float64 {
	if x1 < x0 {
		return 0
	}
	hit := 0
	for x := x0; x <= x1; x++ {
		if bandHit(em, x, y-halfBand, y+halfBand) {
			hit++
		}
	}
	return float64(hit) / float64(x1-x0+1)
}

// findLine scans rows from y0 toward y1 (either direction) and returns the
// center of the first run of rows whose coverage reaches threshold times the
// best coverage in the range, plus that run's coverage.
func findLine(em *edges.Map, y0, y1, x0, x1, halfBand int, threshold float64) (int, float64, bool) {
	if y0 == y1 {
		return 0, 0, false
	}
	dir := 1
	if y1 < y0 {
		dir = -1
	}
	var cov []float64
	for y := y0; y != y1+dir; y += dir {
		cov = append(cov, rowCoverage(em, y, x0, x1, halfBand))
	}
	best := 0.0
	for _, c := range cov {
		best = math.Max(best, c)
	}
	if best == 0 {
		return 0, 0, false
	}

	limit := threshold * best
	for i := 0; i < len(cov); i++ {
		if cov[i] < limit {
			continue
		}
		j, peak := i, cov[i]
		for j+1 < len(cov) && cov[j+1] >= limit {
			j++
			peak = math.Max(peak, cov[j])
		}
		return y0 + dir*(i+j)/2, peak, true
	}
	return 0, 0, false
}

// bestRowNear returns the row in y0..y1 with the highest coverage; ties go
// to the row closest to prefer.
func bestRowNear(em *edges.Map, y0, y1, prefer, x0, x1, halfBand int) (int, float64) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	bestY, best := y0, -1.0
	for y := y0; y <= y1; y++ {
		c := rowCoverage(em, y, x0, x1, halfBand)
		if c > best || (c == best && abs(y-prefer) < abs(bestY-prefer)) {
			bestY, best = y, c
		}
	}
	return bestY, best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// polyline follows the edge nearest to row y in each column of x0..x1 within
// ±tol rows. It returns the fraction of columns followed and the tilt of the
// fitted line in degrees.
func polyline(em *edges.Map, y, x0, x1, tol int) (coverage, tiltDeg float64) {
	var xs, ys []float64
	for x := x0; x <= x1; x++ {
		for d := 0; d <= tol; d++ {
			if em.On(x, y+d) {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y+d))
				break
			}
			if d > 0 && em.On(x, y-d) {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y-d))
				break
			}
		}
	}
	if x1 < x0 || len(xs) < 2 {
		return 0, 0
	}
	coverage = float64(len(xs)) / float64(x1-x0+1)
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return coverage, math.Atan(slope) * 180 / math.Pi
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}
