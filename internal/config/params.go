package config

import (
	"lens-tracer/internal/arcfit"
	"lens-tracer/internal/edges"
	"lens-tracer/internal/refine"
	"lens-tracer/internal/regularize"
	"lens-tracer/internal/rim"
	"lens-tracer/internal/trace"
)

func getFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func getInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

// GetSamples returns the contour sample count.
func (c *TuningConfig) GetSamples() int {
	return getInt(c.Samples, trace.DefaultParams().Samples)
}

// GetRingDiameterMm returns the calibration ring diameter.
func (c *TuningConfig) GetRingDiameterMm() float64 {
	return getFloat(c.RingDiameterMm, trace.DefaultParams().RingDiameterMm)
}

// GetCalibrationPath returns the bias table path, empty for none.
func (c *TuningConfig) GetCalibrationPath() string {
	if c.CalibrationPath != nil {
		return *c.CalibrationPath
	}
	return ""
}

// GetRefineStrategy returns the refinement scoring strategy.
func (c *TuningConfig) GetRefineStrategy() refine.Strategy {
	if c.RefineStrategy != nil {
		if s, ok := refine.ParseStrategy(*c.RefineStrategy); ok {
			return s
		}
	}
	return refine.DefaultParams().Strategy
}

// EdgeParams returns the edge map parameters.
func (c *TuningConfig) EdgeParams() edges.Params {
	p := edges.DefaultParams()
	p.DirectionalBias = getFloat(c.DirectionalBias, p.DirectionalBias)
	p.HighFraction = getFloat(c.HighFraction, p.HighFraction)
	p.PercentileGain = getFloat(c.PercentileGain, p.PercentileGain)
	p.LowRatio = getFloat(c.LowRatio, p.LowRatio)
	p.Border = getInt(c.EdgeBorder, p.Border)
	return p
}

// TraceParams returns the tracer parameters.
func (c *TuningConfig) TraceParams() trace.Params {
	p := trace.DefaultParams()
	p.Samples = c.GetSamples()
	p.Oversample = getInt(c.Oversample, p.Oversample)
	p.RingDiameterMm = c.GetRingDiameterMm()
	p.RingBandMm = getFloat(c.RingBandMm, p.RingBandMm)
	p.InteriorMarginMm = getFloat(c.InteriorMarginMm, p.InteriorMarginMm)
	p.MaxJumpMm = getFloat(c.MaxJumpMm, p.MaxJumpMm)
	p.MinCoverage = getFloat(c.MinCoverage, p.MinCoverage)
	p.Edges = c.EdgeParams()
	return p
}

// RegularizeParams returns the regularizer parameters.
func (c *TuningConfig) RegularizeParams() regularize.Params {
	p := regularize.DefaultParams()
	p.ClampK = getFloat(c.ClampK, p.ClampK)
	p.MinClamp = getInt(c.MinClamp, p.MinClamp)
	return p
}

// RimParams returns the rim detector parameters.
func (c *TuningConfig) RimParams() rim.Params {
	p := rim.DefaultParams()
	p.BridgeGapMm = getFloat(c.BridgeGapMm, p.BridgeGapMm)
	p.MinConfidence = getFloat(c.MinConfidence, p.MinConfidence)
	return p
}

// ArcFitParams returns the arc fitter parameters.
func (c *TuningConfig) ArcFitParams() arcfit.Params {
	p := arcfit.DefaultParams()
	p.Iterations = getInt(c.Iterations, p.Iterations)
	p.MaxResidualPx = getFloat(c.MaxResidualPx, p.MaxResidualPx)
	p.ScaleTolerance = getFloat(c.ScaleTolerance, p.ScaleTolerance)
	p.MaxRotationDeg = getFloat(c.MaxRotationDeg, p.MaxRotationDeg)
	return p
}

// RefineParams returns the refiner parameters.
func (c *TuningConfig) RefineParams() refine.Params {
	p := refine.DefaultParams().WithStrategy(c.GetRefineStrategy())
	p.InlierThreshold = getFloat(c.InlierThreshold, p.InlierThreshold)
	p.ReferenceResponse = getFloat(c.ReferenceResponse, p.ReferenceResponse)
	return p
}
