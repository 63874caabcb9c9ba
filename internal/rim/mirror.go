package rim

import (
	"math"

	"lens-tracer/pkg/geometry"
)

// Mirror reflects a fellow-eye estimate across the facial midline into dstROI.
// The result is marked Mirrored and its confidence is scaled down, so it is
// normally only good enough to seed a fit.
func Mirror(src Estimate, srcROI, dstROI geometry.RectInt, midlineX float64, p Params) Estimate {
	reflect := func(localX int) int {
		global := float64(srcROI.X + localX)
		return int(math.Round(2*midlineX-global)) - dstROI.X
	}
	moveY := func(localY int) int {
		return srcROI.Y + localY - dstROI.Y
	}

	out := src
	// left and right swap under reflection
	out.InnerLeftX = reflect(src.InnerRightX)
	out.InnerRightX = reflect(src.InnerLeftX)
	out.OuterLeftX = reflect(src.OuterRightX)
	out.OuterRightX = reflect(src.OuterLeftX)
	out.TopY = moveY(src.TopY)
	out.BottomY = moveY(src.BottomY)
	out.Confidence = src.Confidence * p.MirrorConfidenceScale
	out.OK = out.Confidence >= p.MinConfidence
	out.Mirrored = true
	return out
}
