// Package edges builds binary edge maps from grayscale images.
//
// The detector is a Canny variant: a signed Scharr gradient, a directionally
// biased score favouring horizontal and vertical structure, four-bin
// non-maximum suppression, an adaptive percentile threshold and 8-neighbour
// hysteresis. Two modes share that core: full-frame (border, kill line and
// mask flattening) and annulus (candidates restricted to a band around an
// expected elliptical rim).
package edges

import (
	"fmt"
	"math"

	"lens-tracer/internal/failure"
	"lens-tracer/internal/gray"
	"lens-tracer/pkg/geometry"
)

const histogramBins = 1024

// Map is a binary edge map: 255 on edge pixels, 0 elsewhere.
// It shares the indexing of the image or ROI crop it was built from.
type Map struct {
	Width  int
	Height int
	Pix    []uint8

	High float64 // strong threshold used
	Low  float64 // weak threshold used
}

// NewMap returns an empty map.
func NewMap(width, height int) *Map {
	return &Map{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// On reports whether (x, y) is an edge pixel. Out-of-range queries are false.
func (m *Map) On(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks (x, y) as an edge pixel. Used when composing synthetic maps.
func (m *Map) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = 255
}

// Count returns the number of edge pixels.
func (m *Map) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// CountIn returns the number of edge pixels inside r.
func (m *Map) CountIn(r geometry.RectInt) int {
	r = r.Intersect(geometry.RectInt{Width: m.Width, Height: m.Height})
	n := 0
	for y := r.Y; y < r.Bottom(); y++ {
		row := m.Pix[y*m.Width:]
		for x := r.X; x < r.Right(); x++ {
			if row[x] != 0 {
				n++
			}
		}
	}
	return n
}

// Empty reports whether the map holds no edge pixel.
func (m *Map) Empty() bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// Gradient is a signed gradient field.
type Gradient struct {
	Width  int
	Height int
	GX     []float64
	GY     []float64
}

// At returns the gradient vector at (x, y).
func (g *Gradient) At(x, y int) (gx, gy float64) {
	i := y*g.Width + x
	return g.GX[i], g.GY[i]
}

// ComputeGradient returns the signed 3×3 Scharr gradient of img, normalized so
// that a step of Δ gray levels yields a response of Δ/2 on each side.
func ComputeGradient(img *gray.Image) *Gradient {
	src := make([]float64, len(img.Pix))
	for i, v := range img.Pix {
		src[i] = float64(v)
	}
	return scharr(src, img.Width, img.Height)
}

// Build runs full-frame edge detection on img.
//
// On insufficient signal the returned map is all zero and the error matches
// failure.ErrInsufficientSignal.
func Build(img *gray.Image, p Params) (*Map, error) {
	if p.Mask != nil && len(p.Mask) != len(img.Pix) {
		panic(fmt.Sprintf("edges: mask has %d entries, image has %d pixels", len(p.Mask), len(img.Pix)))
	}
	src := make([]float64, len(img.Pix))
	for i, v := range img.Pix {
		src[i] = float64(v)
	}
	if p.Mask != nil {
		flatten(src, img, p.Mask)
	}
	return BuildFromGradient(scharr(src, img.Width, img.Height), p)
}

// BuildFromGradient runs full-frame edge detection on a precomputed gradient.
// Params.Mask is ignored here; flattening happens before the gradient.
func BuildFromGradient(g *Gradient, p Params) (*Map, error) {
	valid := func(x, y int) bool {
		if x < p.Border || y < p.Border || x >= g.Width-p.Border || y >= g.Height-p.Border {
			return false
		}
		return y >= p.KillAboveY
	}
	return detect(g, valid, p)
}

// Annulus describes the expected rim region for annulus-mode detection.
type Annulus struct {
	Box                geometry.Rect // approximate outer bounding box of the rim, gradient coordinates
	Thickness          float64       // estimated rim thickness (px)
	Band               float64       // max distance from the mid-rim ellipse (px); 0 uses Thickness
	NormalToleranceDeg float64       // max angle between gradient and ellipse normal; 0 disables
}

// BuildAnnulus runs edge detection restricted to a band around the ellipse
// inscribed in a.Box, inset by half the rim thickness.
func BuildAnnulus(g *Gradient, a Annulus, p Params) (*Map, error) {
	c := a.Box.Center()
	ea := a.Box.Width/2 - a.Thickness/2
	eb := a.Box.Height/2 - a.Thickness/2
	if ea <= 1 || eb <= 1 {
		return NewMap(g.Width, g.Height), failure.New(failure.KindInsufficientSignal, "edges",
			"annulus %.1fx%.1f too small for thickness %.1f", a.Box.Width, a.Box.Height, a.Thickness)
	}
	band := a.Band
	if band <= 0 {
		band = a.Thickness
	}
	cosTol := -1.0
	if a.NormalToleranceDeg > 0 {
		cosTol = math.Cos(a.NormalToleranceDeg * math.Pi / 180)
	}

	valid := func(x, y int) bool {
		if x < p.Border || y < p.Border || x >= g.Width-p.Border || y >= g.Height-p.Border {
			return false
		}
		dx := float64(x) - c.X
		dy := float64(y) - c.Y
		rho := math.Hypot(dx, dy)
		var re float64
		if rho < 1e-9 {
			re = math.Min(ea, eb)
		} else {
			cs, sn := dx/rho, dy/rho
			re = ea * eb / math.Hypot(eb*cs, ea*sn)
		}
		if math.Abs(rho-re) > band {
			return false
		}
		if cosTol > -1 {
			gx, gy := g.At(x, y)
			nx, ny := dx/(ea*ea), dy/(eb*eb)
			gn := math.Hypot(gx, gy) * math.Hypot(nx, ny)
			if gn < 1e-12 || math.Abs(gx*nx+gy*ny)/gn < cosTol {
				return false
			}
		}
		return true
	}
	return detect(g, valid, p)
}

// flatten replaces masked pixels with the 3×3 box mean of the source so the
// mask boundary does not itself produce an edge.
func flatten(dst []float64, img *gray.Image, mask []bool) {
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			if !mask[y*img.Width+x] {
				continue
			}
			var sum float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sum += float64(img.At(x+dx, y+dy))
				}
			}
			dst[y*img.Width+x] = sum / 9
		}
	}
}

func scharr(src []float64, w, h int) *Gradient {
	at := func(x, y int) float64 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return src[y*w+x]
	}
	g := &Gradient{Width: w, Height: h, GX: make([]float64, w*h), GY: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := 3*(at(x+1, y-1)-at(x-1, y-1)) +
				10*(at(x+1, y)-at(x-1, y)) +
				3*(at(x+1, y+1)-at(x-1, y+1))
			gy := 3*(at(x-1, y+1)-at(x-1, y-1)) +
				10*(at(x, y+1)-at(x, y-1)) +
				3*(at(x+1, y+1)-at(x+1, y-1))
			g.GX[y*w+x] = gx / 32
			g.GY[y*w+x] = gy / 32
		}
	}
	return g
}
