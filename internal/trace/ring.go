package trace

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"lens-tracer/internal/edges"
	"lens-tracer/pkg/geometry"
)

// Ring is a detected calibration ring in image pixels.
type Ring struct {
	Center geometry.Point2D
	Radius float64
	Score  float64
}

// ringHypothesis is one scored center/radius pair.
type ringHypothesis struct {
	center  geometry.Point2D
	radius  float64
	support float64
	score   float64
}

// detectRing finds the ring of the expected radius. A gradient Hough
// transform over the edge map proposes centers for radii inside the tolerance
// band; each is scored by radius support, closeness to the expected radius
// and closeness to the image center. The winner is refined by a
// least-squares circle fit.
func detectRing(em *edges.Map, expected float64, p Params) (Ring, bool) {
	rMin := expected * (1 - p.RingRadiusTolerance)
	rMax := expected * (1 + p.RingRadiusTolerance)
	if rMin < 3 {
		rMin = 3
	}

	peaks := ringCandidates(em, rMin, rMax, p.RingCandidates, math.Max(5, 0.05*expected))
	if len(peaks) == 0 {
		return Ring{}, false
	}

	imgCenter := geometry.Point2D{X: float64(em.Width-1) / 2, Y: float64(em.Height-1) / 2}
	halfDiag := math.Hypot(float64(em.Width), float64(em.Height)) / 2

	var hyps []ringHypothesis
	for _, c := range peaks {
		r, support := radiusSupport(em, c, rMin, rMax)
		if support <= 0 {
			continue
		}
		radiusClose := 1 - 0.5*math.Abs(r-expected)/(p.RingRadiusTolerance*expected)
		centerClose := 1 - 0.5*c.Distance(imgCenter)/halfDiag
		hyps = append(hyps, ringHypothesis{
			center:  c,
			radius:  r,
			support: support,
			score:   math.Min(support, 1) * radiusClose * centerClose,
		})
	}
	if len(hyps) == 0 {
		return Ring{}, false
	}
	sort.SliceStable(hyps, func(i, j int) bool { return hyps[i].score > hyps[j].score })
	best := hyps[0]
	if best.support < 0.25 {
		return Ring{}, false
	}

	center, radius, ok := fitCircle(em, best.center, best.radius, math.Max(4, 0.04*best.radius))
	if !ok {
		center, radius = best.center, best.radius
	}
	return Ring{Center: center, Radius: radius, Score: best.score}, true
}

// ringCandidates runs OpenCV's gradient Hough transform on a blurred copy of
// the edge map and returns up to k circle centers, strongest first. The
// image itself is never consulted.
func ringCandidates(em *edges.Map, rMin, rMax float64, k int, minDist float64) []geometry.Point2D {
	buf := make([]byte, em.Width*em.Height)
	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if em.On(x, y) {
				buf[y*em.Width+x] = 255
			}
		}
	}
	mask, err := gocv.NewMatFromBytes(em.Height, em.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		return nil
	}
	defer mask.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(mask, &blurred, image.Point{X: 7, Y: 7}, 1.5, 1.5, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	votes := math.Max(20, 0.1*2*math.Pi*rMin)
	gocv.HoughCirclesWithParams(blurred, &circles, gocv.HoughGradient, 2, minDist,
		60, votes, int(math.Floor(rMin)), int(math.Ceil(rMax)))
	if circles.Empty() || circles.Cols() == 0 {
		return nil
	}

	n := min(k, circles.Cols())
	peaks := make([]geometry.Point2D, 0, n)
	for i := 0; i < n; i++ {
		peaks = append(peaks, geometry.Point2D{
			X: float64(circles.GetFloatAt(0, i*3)),
			Y: float64(circles.GetFloatAt(0, i*3+1)),
		})
	}
	return peaks
}

// radiusSupport histograms edge distances from c and returns the best radius
// and the fraction of its circumference covered by edge pixels.
func radiusSupport(em *edges.Map, c geometry.Point2D, rMin, rMax float64) (float64, float64) {
	lo := int(math.Floor(rMin))
	hi := int(math.Ceil(rMax))
	hist := make([]float64, hi-lo+3)
	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if !em.On(x, y) {
				continue
			}
			d := math.Hypot(float64(x)-c.X, float64(y)-c.Y)
			if d < rMin || d > rMax {
				continue
			}
			hist[int(math.Round(d))-lo+1]++
		}
	}

	bestR, bestSum := 0.0, 0.0
	for i := 1; i < len(hist)-1; i++ {
		s := hist[i-1] + hist[i] + hist[i+1]
		if s > bestSum {
			bestSum = s
			bestR = float64(i - 1 + lo)
		}
	}
	if bestR == 0 {
		return 0, 0
	}
	return bestR, bestSum / (2 * math.Pi * bestR)
}

// fitCircle refines a circle with the algebraic (Kasa) least-squares fit over
// the edge pixels within band of the initial estimate.
func fitCircle(em *edges.Map, c geometry.Point2D, r, band float64) (geometry.Point2D, float64, bool) {
	var rows []float64
	var rhs []float64
	for y := 0; y < em.Height; y++ {
		for x := 0; x < em.Width; x++ {
			if !em.On(x, y) {
				continue
			}
			// local coordinates keep the system well conditioned
			u, v := float64(x)-c.X, float64(y)-c.Y
			if math.Abs(math.Hypot(u, v)-r) > band {
				continue
			}
			rows = append(rows, u, v, 1)
			rhs = append(rhs, -(u*u + v*v))
		}
	}
	n := len(rhs)
	if n < 8 {
		return c, r, false
	}

	a := mat.NewDense(n, 3, rows)
	b := mat.NewVecDense(n, rhs)
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return c, r, false
	}
	d, e, f := sol.AtVec(0), sol.AtVec(1), sol.AtVec(2)
	cx, cy := -d/2, -e/2
	rr := cx*cx + cy*cy - f
	if rr <= 0 {
		return c, r, false
	}
	return geometry.Point2D{X: c.X + cx, Y: c.Y + cy}, math.Sqrt(rr), true
}
