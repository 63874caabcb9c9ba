package arcfit

import (
	"math"

	"lens-tracer/pkg/geometry"
)

// pair is one model/image correspondence.
type pair struct {
	model  geometry.Point2D // mm, model frame
	image  geometry.Point2D // px
	weight float64
}

// similarity is q = Scale·R(Rotation)·m + Translation.
type similarity struct {
	Scale       float64
	Rotation    float64 // radians, positive turns +X toward image +Y
	Translation geometry.Point2D
}

func (s similarity) transform() geometry.AffineTransform {
	return geometry.Similarity(s.Scale, s.Rotation, s.Translation.X, s.Translation.Y)
}

// solveProcrustes computes the weighted 2-D similarity mapping model points
// onto image points. Rotation comes from the weighted cross and dot sums about
// the weighted centroids; the scale is the closed-form least-squares value
// unless fixedScale > 0.
func solveProcrustes(pairs []pair, fixedScale float64) similarity {
	var wSum float64
	var mc, qc geometry.Point2D
	for _, p := range pairs {
		wSum += p.weight
		mc = mc.Add(p.model.Scale(p.weight))
		qc = qc.Add(p.image.Scale(p.weight))
	}
	mc = mc.Scale(1 / wSum)
	qc = qc.Scale(1 / wSum)

	var dotSum, crossSum, normSum float64
	for _, p := range pairs {
		a := p.model.Sub(mc)
		b := p.image.Sub(qc)
		dotSum += p.weight * a.Dot(b)
		crossSum += p.weight * a.Cross(b)
		normSum += p.weight * a.Dot(a)
	}
	theta := math.Atan2(crossSum, dotSum)

	scale := fixedScale
	if scale <= 0 {
		scale = math.Hypot(dotSum, crossSum) / normSum
	}

	t := qc.Sub(mc.Rotate(theta).Scale(scale))
	return similarity{Scale: scale, Rotation: theta, Translation: t}
}

// residualRMS returns the weighted RMS distance of the solved placement.
func residualRMS(pairs []pair, s similarity) float64 {
	tr := s.transform()
	var sum, wSum float64
	for _, p := range pairs {
		d := tr.Apply(p.model).Distance(p.image)
		sum += p.weight * d * d
		wSum += p.weight
	}
	return math.Sqrt(sum / wSum)
}
