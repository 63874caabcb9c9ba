package arcfit

// Params configures the arc fitter.
type Params struct {
	InnerMarginMm float64 // removed from each side of the reference box

	AngularSamples int
	// Angles (degrees, image orientation, +Y down) skipped for an eye to the
	// right of the midline; mirrored for the other eye. Equal bounds disable.
	ExcludeFromDeg float64
	ExcludeToDeg   float64

	SearchMin float64 // radial search window, fraction of the predicted radius
	SearchMax float64
	RayStepPx float64

	MaxAlignDeg  float64 // angular profile alignment range per iteration
	AlignStepDeg float64

	MinCorrespondences int
	MaxRotationDeg     float64
	ScaleTolerance     float64 // relative, against an independent scale
	MaxResidualPx      float64
	Iterations         int
}

// DefaultParams returns arc fitting defaults.
func DefaultParams() Params {
	return Params{
		InnerMarginMm: 0.5,

		AngularSamples: 360,
		ExcludeFromDeg: 115, // nasal pad, lower inner quadrant
		ExcludeToDeg:   155,

		SearchMin: 0.70,
		SearchMax: 1.35,
		RayStepPx: 0.5,

		MaxAlignDeg:  10,
		AlignStepDeg: 0.05,

		MinCorrespondences: 50,
		MaxRotationDeg:     25,
		ScaleTolerance:     0.08,
		MaxResidualPx:      3.0,
		Iterations:         3,
	}
}

// WithIterations returns a copy of params running n iterations.
func (p Params) WithIterations(n int) Params {
	p.Iterations = n
	return p
}

// WithoutExclusion returns a copy of params sampling every angle.
func (p Params) WithoutExclusion() Params {
	p.ExcludeFromDeg, p.ExcludeToDeg = 0, 0
	return p
}
