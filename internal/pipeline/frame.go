// Package pipeline chains the measurement stages: tracing a lens on the
// calibration ring into a regularized contour, and fitting a known contour to
// both eyes of a face photograph.
package pipeline

import (
	"fmt"

	"lens-tracer/internal/gray"
	"lens-tracer/internal/polar"
	"lens-tracer/internal/regularize"
	"lens-tracer/internal/trace"
)

// FrameOptions configures TraceFrame.
type FrameOptions struct {
	PxPerMm     float64
	Trace       trace.Params
	Regularize  regularize.Params
	Calibration *regularize.Calibration // nil for none
}

// DefaultFrameOptions returns stage defaults at the given scale.
func DefaultFrameOptions(pxPerMm float64) FrameOptions {
	return FrameOptions{
		PxPerMm:    pxPerMm,
		Trace:      trace.DefaultParams(),
		Regularize: regularize.DefaultParams(),
	}
}

// FrameResult is a traced and regularized lens.
type FrameResult struct {
	Trace       *trace.Result
	Raw         []int         // hundredths of mm, clockwise, as traced
	Regularized []int         // hundredths of mm, clockwise
	Contour     polar.Contour // millimeters, counter-clockwise, ready for FIL
}

// TraceFrame traces the lens in img and regularizes the radii. The bias
// table is indexed in the tracer's clockwise convention and applied before the
// conversion to the counter-clockwise output.
func TraceFrame(img *gray.Image, opts FrameOptions) (*FrameResult, error) {
	if opts.Calibration != nil && opts.Calibration.Len() != opts.Trace.Samples {
		return nil, fmt.Errorf("calibration has %d entries, tracing %d samples",
			opts.Calibration.Len(), opts.Trace.Samples)
	}

	tr, err := trace.Trace(img, opts.PxPerMm, opts.Trace)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}

	raw := tr.Contour.Hundredths()
	reg := regularize.Regularize(raw, opts.Calibration, opts.Regularize)
	cw, err := polar.FromHundredths(reg, polar.Clockwise)
	if err != nil {
		return nil, fmt.Errorf("regularized contour: %w", err)
	}
	cw.Origin = tr.Contour.Origin

	return &FrameResult{
		Trace:       tr,
		Raw:         raw,
		Regularized: reg,
		Contour:     cw.ToConvention(polar.CounterClockwise),
	}, nil
}
