package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lens-tracer/internal/arcfit"
	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/internal/polar"
	"lens-tracer/internal/refine"
	"lens-tracer/internal/rim"
	"lens-tracer/pkg/geometry"
)

// Side names an eye by where it appears in the image.
type Side int

const (
	ImageLeft Side = iota
	ImageRight
)

func (s Side) String() string {
	if s == ImageRight {
		return "image-right"
	}
	return "image-left"
}

// EyeInput locates one eye. Every coordinate is in full-image pixels.
type EyeInput struct {
	ROI        geometry.RectInt
	Pupil      geometry.Point2D
	BrowY      *float64 // bottom of the eyebrow; rows above are ignored
	BridgeRowY *float64
}

// FaceInput is one face photograph with its landmarks.
type FaceInput struct {
	Image            *gray.Image
	MidlineX         float64
	PxPerMmGuess     float64
	IndependentScale float64 // px/mm from other means, 0 when absent
	// Reference is the lens contour in millimeters as seen on the eye right
	// of the midline; it is mirrored for the other eye.
	Reference polar.Contour
	Eyes      [2]EyeInput // indexed by Side
}

// FaceOptions configures RunFace.
type FaceOptions struct {
	Edges  edges.Params
	Rim    rim.Params
	ArcFit arcfit.Params
	Refine refine.Params

	AnnulusBandFactor  float64 // annulus band in rim thicknesses; 0 uses the full-frame map
	AnchorBottom       bool    // anchor the placed contour on the rim bottom
	RefineBelowPupil   bool    // refine on the lower arc only
	MirrorWhenRejected bool    // seed a rejected eye from its fellow
}

// DefaultFaceOptions returns stage defaults.
func DefaultFaceOptions() FaceOptions {
	return FaceOptions{
		Edges:              edges.DefaultParams(),
		Rim:                rim.DefaultParams(),
		ArcFit:             arcfit.DefaultParams(),
		Refine:             refine.DefaultParams(),
		AnnulusBandFactor:  2,
		RefineBelowPupil:   true,
		MirrorWhenRejected: true,
	}
}

// EyeResult is the outcome for one eye. Rim is ROI-local; Fit, Refined and
// Points are in full-image pixels.
type EyeResult struct {
	Side    Side
	ROI     geometry.RectInt
	Rim     *rim.Estimate
	Fit     *arcfit.Result
	Refined *refine.Result
	Points  []geometry.Point2D // final placed contour
	Err     error
}

// OK reports whether the eye produced a placed contour.
func (e *EyeResult) OK() bool { return e.Err == nil && len(e.Points) > 0 }

// FaceResult holds both eyes.
type FaceResult struct {
	Eyes [2]*EyeResult
}

// eyeRun carries per-eye working state between the two concurrent phases.
type eyeRun struct {
	side   Side
	in     EyeInput
	roi    geometry.RectInt // clipped, full-image
	img    *gray.Image      // ROI crop
	grad   *edges.Gradient
	em     *edges.Map
	ref    polar.Contour
	est    *rim.Estimate
	err    error
	result *EyeResult
}

// RunFace detects both rims concurrently, lets a confident eye seed a rejected
// fellow eye by mirroring across the midline, then fits and refines both eyes
// concurrently. Per-eye failures are reported in EyeResult.Err; the returned
// error is for invalid input and cancellation only.
func RunFace(ctx context.Context, in FaceInput, opts FaceOptions, log zerolog.Logger) (*FaceResult, error) {
	if in.Image == nil {
		return nil, errors.New("face input has no image")
	}
	if in.Reference.Unit != polar.Millimeters {
		return nil, fmt.Errorf("reference contour is in %s, need millimeters", in.Reference.Unit)
	}
	if in.PxPerMmGuess <= 0 {
		return nil, fmt.Errorf("invalid scale guess %v px/mm", in.PxPerMmGuess)
	}

	var runs [2]*eyeRun
	for s := range runs {
		runs[s] = &eyeRun{side: Side(s), in: in.Eyes[s], result: &EyeResult{Side: Side(s)}}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.detect(in, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if opts.MirrorWhenRejected {
		for s, r := range runs {
			mirrorFromFellow(r, runs[1-s], in.MidlineX, opts, log)
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, r := range runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.fit(in, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &FaceResult{}
	for s, r := range runs {
		out.Eyes[s] = r.result
		ev := log.Info()
		if r.result.Err != nil {
			ev = log.Warn().Err(r.result.Err).Str("kind", failure.KindOf(r.result.Err).String())
		}
		ev = ev.Str("eye", r.side.String())
		if r.est != nil {
			ev = ev.Float64("rim_confidence", r.est.Confidence).Bool("mirrored", r.est.Mirrored)
		}
		if r.result.Fit != nil {
			ev = ev.Float64("scale", r.result.Fit.Scale).Float64("residual_px", r.result.Fit.ResidualRMS)
		}
		ev.Msg("eye fitted")
	}
	return out, nil
}

// detect crops the eye region, builds its edge map below the brow and runs
// the rim detector.
func (r *eyeRun) detect(in FaceInput, opts FaceOptions) {
	r.roi = r.in.ROI.Intersect(in.Image.Bounds())
	r.result.ROI = r.roi
	if r.roi.Empty() {
		r.err = failure.New(failure.KindOutOfBounds, "pipeline", "%s roi %v outside the image", r.side, r.in.ROI)
		return
	}
	crop, err := in.Image.Crop(r.roi)
	if err != nil {
		r.err = fmt.Errorf("crop %s: %w", r.side, err)
		return
	}
	r.img = crop

	off := r.roi.Origin()
	r.ref = in.Reference
	if off.X+float64(r.roi.Width)/2 < in.MidlineX {
		r.ref = in.Reference.Mirror()
	}

	ep := opts.Edges
	browY := localY(r.in.BrowY, off)
	if browY != nil {
		ep = ep.WithKillLine(int(math.Ceil(*browY)))
	}
	r.grad = edges.ComputeGradient(crop)
	r.em, err = edges.BuildFromGradient(r.grad, ep)
	if err != nil {
		r.err = err
		return
	}

	w, h := r.ref.Box()
	r.est, r.err = rim.Detect(r.em, rim.Request{
		ROI:              crop.Bounds(),
		MidlineX:         in.MidlineX - off.X,
		BrowY:            browY,
		ExpectedWidthMm:  w,
		ExpectedHeightMm: h,
		PxPerMmGuess:     in.PxPerMmGuess,
		BridgeRowY:       localY(r.in.BridgeRowY, off),
	}, opts.Rim)
}

// mirrorFromFellow replaces a missing or rejected estimate with the fellow
// eye's estimate reflected across the midline, when that is more confident.
func mirrorFromFellow(r, fellow *eyeRun, midlineX float64, opts FaceOptions, log zerolog.Logger) {
	if r.img == nil || fellow.est == nil || !fellow.est.OK || fellow.est.Mirrored {
		return
	}
	if r.est != nil && r.est.OK {
		return
	}
	m := rim.Mirror(*fellow.est, fellow.roi, r.roi, midlineX, opts.Rim)
	if r.est != nil && r.est.Confidence >= m.Confidence {
		return
	}
	log.Info().Str("eye", r.side.String()).Float64("confidence", m.Confidence).Msg("rim mirrored from fellow eye")
	r.est, r.err = &m, nil
}

// fit places the reference on the rim edges and refines it on the image.
func (r *eyeRun) fit(in FaceInput, opts FaceOptions) {
	res := r.result
	res.Rim = r.est
	if r.err != nil {
		res.Err = r.err
		return
	}
	off := r.roi.Origin()
	est := r.est

	scale := est.Scale
	if scale <= 0 {
		scale = in.PxPerMmGuess
	}
	// seed the reference origin so that its box center lands on the rim center
	origin := est.Center().Sub(r.ref.BoxCenter().Scale(scale))

	em := r.em
	if opts.AnnulusBandFactor > 0 && est.Thickness > 0 {
		box := geometry.Rect{
			X:      float64(est.OuterLeftX),
			Y:      float64(est.TopY) - est.Thickness,
			Width:  float64(est.OuterRightX - est.OuterLeftX),
			Height: float64(est.InnerHeight()) + 2*est.Thickness,
		}
		if am, err := edges.BuildAnnulus(r.grad, edges.Annulus{
			Box:       box,
			Thickness: est.Thickness,
			Band:      opts.AnnulusBandFactor * est.Thickness,
		}, opts.Edges); err == nil {
			em = am
		}
	}

	req := arcfit.Request{
		Reference:        r.ref,
		ROI:              r.img.Bounds(),
		Origin:           origin,
		MidlineX:         in.MidlineX - off.X,
		ScaleGuess:       scale,
		IndependentScale: in.IndependentScale,
	}
	if opts.AnchorBottom {
		bottom := float64(est.BottomY) + opts.ArcFit.InnerMarginMm*scale
		req.BottomAnchorY = &bottom
	}
	fit, err := arcfit.Fit(em, req, opts.ArcFit)
	if err != nil {
		res.Err = fmt.Errorf("fit %s: %w", r.side, err)
		return
	}

	points := fit.Points
	var cutoff *float64
	if opts.RefineBelowPupil {
		cutoff = localY(&r.in.Pupil.Y, off)
	}
	refined, err := refine.Refine(r.img, r.img.Bounds(), fit.Points, cutoff, opts.Refine)
	if err == nil {
		points = refined.Points
		refined.Points = translate(refined.Points, off)
		res.Refined = refined
	}

	global := *fit
	global.Points = translate(fit.Points, off)
	global.Origin = fit.Origin.Add(off)
	res.Fit = &global
	res.Points = translate(points, off)
}

func localY(y *float64, off geometry.Point2D) *float64 {
	if y == nil {
		return nil
	}
	v := *y - off.Y
	return &v
}

func translate(points []geometry.Point2D, off geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		out[i] = p.Add(off)
	}
	return out
}
