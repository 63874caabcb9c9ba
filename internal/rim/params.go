package rim

// Params configures rim detection.
type Params struct {
	// Scale hypotheses, as multiples of the caller's px/mm guess
	ScaleMin  float64
	ScaleMax  float64
	ScaleStep float64

	BridgeGapMm    float64 // assumed distance between inner rims at the bridge
	BandHalfHeight int     // half height of the horizontal scan band, px
	CenterSkip     float64 // fraction of the expected width skipped around the seed

	MinWidthRatio float64 // measured / expected inner width
	MaxWidthRatio float64

	DefaultThicknessMm float64
	ThicknessWindowMm  float64 // max rim thickness searched on the scan row
	DefaultAspect      float64 // height / width when the height is unknown
	TopWindowMm        float64 // refinement window around a predicted top

	LineThreshold float64 // row coverage relative to the best row
	PeakThreshold float64 // column energy relative to the best column
	MaxTiltDeg    float64

	WidthWeight    float64
	HeightWeight   float64
	LineWeight     float64
	PolylineWeight float64

	MinEdgePixels         int
	MinConfidence         float64
	MirrorConfidenceScale float64
}

// DefaultParams returns rim detection defaults.
func DefaultParams() Params {
	return Params{
		ScaleMin:  0.75,
		ScaleMax:  1.20,
		ScaleStep: 0.05,

		BridgeGapMm:    18,
		BandHalfHeight: 3,
		CenterSkip:     0.35,

		MinWidthRatio: 0.90,
		MaxWidthRatio: 1.25,

		DefaultThicknessMm: 2.0,
		ThicknessWindowMm:  6.0,
		DefaultAspect:      0.6,
		TopWindowMm:        3.0,

		LineThreshold: 0.6,
		PeakThreshold: 0.5,
		MaxTiltDeg:    10,

		// weights sum to one so the score is a confidence
		WidthWeight:    0.35,
		HeightWeight:   0.20,
		LineWeight:     0.25,
		PolylineWeight: 0.20,

		MinEdgePixels:         50,
		MinConfidence:         0.45,
		MirrorConfidenceScale: 0.5,
	}
}

// WithScaleRange returns a copy of params searching scales lo..hi.
func (p Params) WithScaleRange(lo, hi, step float64) Params {
	p.ScaleMin, p.ScaleMax, p.ScaleStep = lo, hi, step
	return p
}

func (p Params) scales() []float64 {
	var out []float64
	step := p.ScaleStep
	if step <= 0 {
		step = 0.05
	}
	// integer stepping avoids accumulating float error past ScaleMax
	n := int((p.ScaleMax-p.ScaleMin)/step + 1e-9)
	for i := 0; i <= n; i++ {
		out = append(out, p.ScaleMin+float64(i)*step)
	}
	return out
}
