// Package rim locates the inner boundary of a spectacle rim in an eye region
// using only geometric expectations: the frame's nominal width and height in
// millimeters and an approximate image scale.
package rim

import (
	"fmt"
	"math"

	"lens-tracer/internal/edges"
	"lens-tracer/internal/failure"
	"lens-tracer/pkg/geometry"
)

// Request describes one eye region. Coordinates are in the edge map's space.
type Request struct {
	ROI              geometry.RectInt
	MidlineX         float64
	BrowY            *float64 // rows above are never used
	ExpectedWidthMm  float64
	ExpectedHeightMm float64 // 0 when unknown
	PxPerMmGuess     float64
	BridgeRowY       *float64 // scan row; ROI center when nil
	SeedX            *float64 // scan start; derived from the midline when nil
}

// Estimate is a rim box in ROI-local pixels.
type Estimate struct {
	InnerLeftX  int
	InnerRightX int
	TopY        int
	BottomY     int
	OuterLeftX  int
	OuterRightX int
	Thickness   float64 // px
	Scale       float64 // px/mm implied by the inner width
	Confidence  float64
	OK          bool
	Mirrored    bool
}

// InnerWidth returns the inner rim width in pixels.
func (e Estimate) InnerWidth() int { return e.InnerRightX - e.InnerLeftX }

// InnerHeight returns the inner rim height in pixels.
func (e Estimate) InnerHeight() int { return e.BottomY - e.TopY }

// Center returns the center of the inner box, ROI-local.
func (e Estimate) Center() geometry.Point2D {
	return geometry.Point2D{
		X: float64(e.InnerLeftX+e.InnerRightX) / 2,
		Y: float64(e.TopY+e.BottomY) / 2,
	}
}

// Detect searches the scale hypotheses and returns the best rim estimate.
// An estimate below MinConfidence is still returned with OK=false.
func Detect(em *edges.Map, req Request, p Params) (*Estimate, error) {
	if req.PxPerMmGuess <= 0 || req.ExpectedWidthMm <= 0 {
		panic(fmt.Sprintf("rim: invalid expectations %v px/mm, width %v mm", req.PxPerMmGuess, req.ExpectedWidthMm))
	}
	roi := req.ROI.Intersect(geometry.RectInt{Width: em.Width, Height: em.Height})
	if roi.Empty() {
		return nil, failure.New(failure.KindOutOfBounds, "rim", "roi %v outside the edge map", req.ROI)
	}
	if n := em.CountIn(roi); n < p.MinEdgePixels {
		return nil, failure.New(failure.KindInsufficientSignal, "rim", "%d edge pixels in roi", n)
	}

	browRow := roi.Y
	if req.BrowY != nil {
		browRow = max(browRow, int(math.Ceil(*req.BrowY)))
	}
	scanY := roi.Y + roi.Height/2
	if req.BridgeRowY != nil {
		scanY = int(math.Round(*req.BridgeRowY))
	}
	// anti-eyebrow: the whole scan band stays below the brow row
	scanY = max(scanY, browRow+p.BandHalfHeight+1)
	if scanY >= roi.Bottom()-p.BandHalfHeight {
		return nil, failure.New(failure.KindOutOfBounds, "rim", "scan row %d below roi", scanY)
	}

	side := 1.0
	if float64(roi.X)+float64(roi.Width)/2 < req.MidlineX {
		side = -1
	}

	d := detector{em: em, req: req, p: p, roi: roi, browRow: browRow, scanY: scanY, side: side}
	d.thickness = d.measureThickness()

	var best *Estimate
	bestScore := -1.0
	for _, h := range p.scales() {
		est, score, ok := d.hypothesis(h)
		if ok && score > bestScore {
			best, bestScore = est, score
		}
	}
	if best == nil {
		return nil, failure.New(failure.KindOutOfTolerance, "rim",
			"no scale hypothesis matched the expected width of %.1f mm", req.ExpectedWidthMm)
	}
	best.Confidence = clamp01(bestScore)
	best.OK = best.Confidence >= p.MinConfidence
	return best, nil
}

type detector struct {
	em        *edges.Map
	req       Request
	p         Params
	roi       geometry.RectInt
	browRow   int
	scanY     int
	side      float64
	thickness float64
}

// seed returns the expected lens center column for a scale.
func (d *detector) seed(scale float64) float64 {
	if d.req.SeedX != nil {
		return *d.req.SeedX
	}
	offset := (d.p.BridgeGapMm + d.req.ExpectedWidthMm) / 2 * scale
	return d.req.MidlineX + d.side*offset
}

// measureThickness measures the inner/outer gap at the guessed scale on the
// scan band. The default thickness is used when no pair is found.
func (d *detector) measureThickness() float64 {
	scale := d.req.PxPerMmGuess
	window := int(math.Ceil(d.p.ThicknessWindowMm * scale))
	skip := d.p.CenterSkip * d.req.ExpectedWidthMm * scale
	s, ok := bandScan(d.em, d.roi, d.seed(scale), skip, d.scanY, d.p.BandHalfHeight, window)
	if !ok {
		return d.p.DefaultThicknessMm * scale
	}
	var gaps []float64
	if s.outerLeft >= 0 {
		gaps = append(gaps, float64(s.innerLeft-s.outerLeft))
	}
	if s.outerRight >= 0 {
		gaps = append(gaps, float64(s.outerRight-s.innerRight))
	}
	if len(gaps) == 0 {
		return d.p.DefaultThicknessMm * scale
	}
	return median(gaps)
}

// hypothesis evaluates one scale multiplier and returns the ROI-local
// estimate with its score.
func (d *detector) hypothesis(h float64) (*Estimate, float64, bool) {
	scale := h * d.req.PxPerMmGuess
	expW := d.req.ExpectedWidthMm * scale
	seed := d.seed(scale)
	skip := d.p.CenterSkip * expW
	window := int(math.Ceil(2*d.thickness)) + 2

	s, ok := bandScan(d.em, d.roi, seed, skip, d.scanY, d.p.BandHalfHeight, window)
	if !ok {
		expH := d.expectedHeight(scale, expW)
		y0 := max(d.browRow, d.scanY-int(expH/2))
		y1 := min(d.roi.Bottom()-1, d.scanY+int(expH/2))
		s, ok = peakScan(d.em, d.roi, seed, skip, y0, y1, d.p.PeakThreshold, window)
		if !ok {
			return nil, 0, false
		}
	}
	ratio := float64(s.width()) / expW
	if ratio < d.p.MinWidthRatio || ratio > d.p.MaxWidthRatio {
		return nil, 0, false
	}

	// central columns of the inner box carry the flattest part of the rim
	inset := s.width() / 5
	x0, x1 := s.innerLeft+inset, s.innerRight-inset
	lineBand := 2
	measuredW := float64(s.width())
	expH := d.expectedHeight(scale, measuredW)
	// rows skipped around the eye, sized from the width since the height
	// may be missing or wrong
	minOffset := max(d.p.BandHalfHeight+1, int(0.25*measuredW*d.p.DefaultAspect))

	ok = false
	var bottom int
	var bottomCov float64
	if d.scanY+minOffset < d.roi.Bottom()-1 {
		bottom, bottomCov, ok = findLine(d.em, d.scanY+minOffset, d.roi.Bottom()-1, x0, x1, lineBand, d.p.LineThreshold)
	}
	if !ok {
		bottom, bottomCov = min(d.roi.Bottom()-1, d.scanY+int(expH/2)), 0
	}

	var top int
	var topCov float64
	if d.req.ExpectedHeightMm > 0 {
		aspect := d.req.ExpectedHeightMm / d.req.ExpectedWidthMm
		predicted := bottom - int(math.Round(measuredW*aspect))
		win := int(math.Ceil(d.p.TopWindowMm * scale))
		lo := max(d.browRow, predicted-win)
		hi := min(d.scanY-d.p.BandHalfHeight-1, predicted+win)
		if hi >= lo {
			top, topCov = bestRowNear(d.em, lo, hi, predicted, x0, x1, lineBand)
		}
		if hi < lo || topCov < d.p.LineThreshold*bottomCov {
			top, topCov = max(d.browRow, min(predicted, d.scanY-1)), 0
		}
	} else {
		ok = false
		if d.scanY-minOffset > d.browRow {
			top, topCov, ok = findLine(d.em, d.scanY-minOffset, d.browRow, x0, x1, lineBand, d.p.LineThreshold)
		}
		if !ok {
			top = max(d.browRow, bottom-int(math.Round(expH)))
		}
	}
	top = max(top, d.browRow)

	tol := max(3, int(0.05*expH))
	polyCov, tilt := polyline(d.em, bottom, x0, x1, tol)

	widthScore := clamp01(1 - math.Abs(ratio-1)/0.25)
	heightScore := 0.5
	if d.req.ExpectedHeightMm > 0 {
		hr := float64(bottom-top) / (d.req.ExpectedHeightMm * scale)
		heightScore = clamp01(1 - math.Abs(hr-1)/0.3)
	}
	lineScore := (bottomCov + topCov) / 2
	polyScore := polyCov * clamp01(1-math.Abs(tilt)/d.p.MaxTiltDeg)

	score := d.p.WidthWeight*widthScore +
		d.p.HeightWeight*heightScore +
		d.p.LineWeight*lineScore +
		d.p.PolylineWeight*polyScore

	outerL, outerR := s.outerLeft, s.outerRight
	if outerL < 0 {
		outerL = s.innerLeft - int(math.Round(d.thickness))
	}
	if outerR < 0 {
		outerR = s.innerRight + int(math.Round(d.thickness))
	}

	est := &Estimate{
		InnerLeftX:  s.innerLeft - d.roi.X,
		InnerRightX: s.innerRight - d.roi.X,
		TopY:        top - d.roi.Y,
		BottomY:     bottom - d.roi.Y,
		OuterLeftX:  outerL - d.roi.X,
		OuterRightX: outerR - d.roi.X,
		Thickness:   d.thickness,
		Scale:       measuredW / d.req.ExpectedWidthMm,
	}
	return est, score, true
}

func (d *detector) expectedHeight(scale, width float64) float64 {
	if d.req.ExpectedHeightMm > 0 {
		return d.req.ExpectedHeightMm * scale
	}
	return width * d.p.DefaultAspect
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
