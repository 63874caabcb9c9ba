package trace

import "lens-tracer/internal/edges"

// Params configures the radial contour tracer.
// Lengths in millimeters are converted with the caller's px/mm scale.
type Params struct {
	Samples    int // output radii per contour
	Oversample int // rays cast per output sample

	// Reference ring
	RingDiameterMm      float64
	RingRadiusTolerance float64 // accepted radius deviation, fraction of expected
	RingCandidates      int     // center hypotheses examined
	RingBandMm          float64 // excluded band inside the ring
	InteriorMarginMm    float64 // additional margin inside the band

	// Ray casting and smoothing, in oversampled steps
	RayStepPx    float64
	MedianWindow int
	SmoothWindow int
	MaxJumpMm    float64 // per oversampled step

	MinCoverage float64 // hit fraction below which the contour fallback runs

	// Contour fallback
	CloseIterations int
	MinAreaFraction float64 // of the interior disk

	Edges edges.Params
}

// DefaultParams returns tracer defaults for the 70 mm calibration ring.
func DefaultParams() Params {
	return Params{
		Samples:    800,
		Oversample: 3,

		RingDiameterMm:      70.0,
		RingRadiusTolerance: 0.15,
		RingCandidates:      5,
		RingBandMm:          2.0,
		InteriorMarginMm:    0.5,

		RayStepPx:    0.5,
		MedianWindow: 7,
		SmoothWindow: 5,
		MaxJumpMm:    0.15,

		MinCoverage: 0.60,

		CloseIterations: 2,
		MinAreaFraction: 0.02,

		Edges: edges.DefaultParams(),
	}
}

// WithRing returns a copy of params for a ring of the given diameter and
// exclusion band.
func (p Params) WithRing(diameterMm, bandMm, marginMm float64) Params {
	p.RingDiameterMm = diameterMm
	p.RingBandMm = bandMm
	p.InteriorMarginMm = marginMm
	return p
}

// WithSamples returns a copy of params producing n output radii.
func (p Params) WithSamples(n int) Params {
	p.Samples = n
	return p
}
