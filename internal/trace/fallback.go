package trace

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/pkg/geometry"
)

// contourRadii is the low-coverage path. The edge pixels inside the interior
// disk are closed morphologically, their external contours extracted, and the
// contour with the best circularity × centering × area score is converted to
// m polar radii around center by ray intersection.
func contourRadii(em *edges.Map, center geometry.Point2D, inner float64, m int, p Params) ([]float64, error) {
	buf := make([]byte, em.Width*em.Height)
	r2 := inner * inner
	for y := 0; y < em.Height; y++ {
		dy := float64(y) - center.Y
		for x := 0; x < em.Width; x++ {
			dx := float64(x) - center.X
			if dx*dx+dy*dy <= r2 && em.On(x, y) {
				buf[y*em.Width+x] = 255
			}
		}
	}

	mask, err := gocv.NewMatFromBytes(em.Height, em.Width, gocv.MatTypeCV8U, buf)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	for i := 0; i < p.CloseIterations; i++ {
		gocv.MorphologyEx(mask, &mask, gocv.MorphClose, kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	diskArea := math.Pi * r2
	bestScore := 0.0
	var best []geometry.Point2D
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < p.MinAreaFraction*diskArea {
			continue
		}
		perim := gocv.ArcLength(c, true)
		if perim <= 0 {
			continue
		}

		pts := c.ToPoints()
		poly := make([]geometry.Point2D, len(pts))
		for j, pt := range pts {
			poly[j] = geometry.Point2D{X: float64(pt.X), Y: float64(pt.Y)}
		}

		circularity := math.Min(1, 4*math.Pi*area/(perim*perim))
		centering := math.Max(0, 1-geometry.Centroid(poly).Distance(center)/inner)
		share := math.Min(1, area/diskArea)
		score := circularity * centering * math.Sqrt(share)
		if score > bestScore {
			bestScore = score
			best = poly
		}
	}
	if best == nil {
		return nil, failure.New(failure.KindLowCoverage, "trace",
			"no usable contour inside %.1f px", inner)
	}

	radii := make([]float64, m)
	for k := range radii {
		theta := 2 * math.Pi * float64(k) / float64(m)
		dir := geometry.Point2D{X: math.Cos(theta), Y: math.Sin(theta)}
		if t, ok := geometry.RayIntersect(center, dir, best); ok {
			radii[k] = t
		} else {
			radii[k] = math.NaN()
		}
	}
	if !fillGaps(radii) {
		return nil, failure.New(failure.KindLowCoverage, "trace", "contour does not surround the ring center")
	}
	return radii, nil
}
