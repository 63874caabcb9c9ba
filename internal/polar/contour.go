// Package polar provides the polar contour shared by the tracer, the FIL codec
// and the arc fitter.
//
// A Contour holds N radii at a fixed angular step of 2π/N around an origin.
// Two angular conventions exist and are never unified:
//
//   - Clockwise: produced by the tracer. Index 0 lies on image +X and the index
//     increases clockwise as displayed (image +Y points down), so sample i sits
//     at origin + r·(cos θ, sin θ) in pixel coordinates, θ = 2πi/N.
//   - CounterClockwise: the reference/FIL convention. Index 0 lies on +X and
//     index N/4 on +Y with +Y pointing up, so on screen sample i sits at
//     origin + r·(cos θ, −sin θ).
//
// Radii carry a Unit; converting between pixels and millimeters requires an
// explicit scale.
package polar

import (
	"fmt"
	"math"

	"lens-tracer/pkg/geometry"
)

// DefaultSamples is the standard number of radii per contour.
const DefaultSamples = 800

// Unit identifies what a radius measures.
type Unit int

const (
	Pixels Unit = iota
	Millimeters
)

func (u Unit) String() string {
	switch u {
	case Pixels:
		return "px"
	case Millimeters:
		return "mm"
	default:
		return "unknown"
	}
}

// Convention identifies the angular ordering of the samples.
type Convention int

const (
	Clockwise Convention = iota
	CounterClockwise
)

func (c Convention) String() string {
	if c == CounterClockwise {
		return "ccw"
	}
	return "cw"
}

// Contour is an immutable polar contour. Methods return new contours.
type Contour struct {
	Radii      []float64
	Unit       Unit
	Convention Convention
	Origin     geometry.Point2D // pixel position of the origin, when known
}

// New validates and copies radii into a contour.
func New(radii []float64, unit Unit, conv Convention) (Contour, error) {
	if len(radii) < 8 {
		return Contour{}, fmt.Errorf("contour needs at least 8 samples, got %d", len(radii))
	}
	out := make([]float64, len(radii))
	for i, r := range radii {
		if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
			return Contour{}, fmt.Errorf("radius %d is invalid: %v", i, r)
		}
		out[i] = r
	}
	return Contour{Radii: out, Unit: unit, Convention: conv}, nil
}

// FromHundredths builds a millimeter contour from hundredths-of-mm integers.
func FromHundredths(values []int, conv Convention) (Contour, error) {
	radii := make([]float64, len(values))
	for i, v := range values {
		radii[i] = float64(v) / 100
	}
	return New(radii, Millimeters, conv)
}

// N returns the number of samples.
func (c Contour) N() int { return len(c.Radii) }

// Step returns the angular step in radians.
func (c Contour) Step() float64 { return 2 * math.Pi / float64(len(c.Radii)) }

// Hundredths returns the radii rounded to hundredths of a millimeter.
// Panics if the contour is not in millimeters.
func (c Contour) Hundredths() []int {
	if c.Unit != Millimeters {
		panic(fmt.Sprintf("polar: Hundredths on a %s contour", c.Unit))
	}
	out := make([]int, len(c.Radii))
	for i, r := range c.Radii {
		out[i] = int(math.Round(r * 100))
	}
	return out
}

// ToMillimeters converts a pixel contour using pxPerMm.
func (c Contour) ToMillimeters(pxPerMm float64) Contour {
	if c.Unit == Millimeters {
		return c.clone()
	}
	out := c.scaled(1 / pxPerMm)
	out.Unit = Millimeters
	return out
}

// ToPixels converts a millimeter contour using pxPerMm.
func (c Contour) ToPixels(pxPerMm float64) Contour {
	if c.Unit == Pixels {
		return c.clone()
	}
	out := c.scaled(pxPerMm)
	out.Unit = Pixels
	return out
}

// ToConvention reorders the samples into conv. Sample 0 stays on +X; the
// remaining samples are reversed.
func (c Contour) ToConvention(conv Convention) Contour {
	if c.Convention == conv {
		return c.clone()
	}
	out := c.clone()
	n := c.N()
	for i := range out.Radii {
		out.Radii[i] = c.Radii[(n-i)%n]
	}
	out.Convention = conv
	return out
}

// Mirror reflects the contour about the vertical axis through its origin,
// turning a right lens into a left lens while keeping the convention.
func (c Contour) Mirror() Contour {
	out := c.clone()
	n := c.N()
	half := n / 2
	for i := range out.Radii {
		out.Radii[i] = c.Radii[((half-i)%n+n)%n]
	}
	return out
}

// Resample returns the contour with n samples using circular linear interpolation.
func (c Contour) Resample(n int) Contour {
	out := Contour{Radii: make([]float64, n), Unit: c.Unit, Convention: c.Convention, Origin: c.Origin}
	src := float64(c.N())
	for i := 0; i < n; i++ {
		pos := float64(i) * src / float64(n)
		i0 := int(math.Floor(pos))
		f := pos - float64(i0)
		a := c.Radii[i0%c.N()]
		b := c.Radii[(i0+1)%c.N()]
		out.Radii[i] = a + (b-a)*f
	}
	return out
}

// Angle returns the on-screen angle (radians, +X toward image +Y) of sample i.
func (c Contour) Angle(i int) float64 {
	theta := float64(i) * c.Step()
	if c.Convention == CounterClockwise {
		return -theta
	}
	return theta
}

// Points returns the samples as on-screen offsets from the origin
// (image orientation, +Y down), in the contour's unit.
func (c Contour) Points() []geometry.Point2D {
	pts := make([]geometry.Point2D, c.N())
	for i, r := range c.Radii {
		a := c.Angle(i)
		pts[i] = geometry.Point2D{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	return pts
}

// ImagePoints returns Points translated to the origin. Only meaningful for
// pixel contours.
func (c Contour) ImagePoints() []geometry.Point2D {
	pts := c.Points()
	for i := range pts {
		pts[i] = pts[i].Add(c.Origin)
	}
	return pts
}

// Box returns the bounding box width (HBOX) and height (VBOX).
func (c Contour) Box() (width, height float64) {
	b := geometry.BoundingBox(c.Points())
	return b.Width, b.Height
}

// BoxCenter returns the bounding-box center relative to the origin.
func (c Contour) BoxCenter() geometry.Point2D {
	return geometry.BoundingBox(c.Points()).Center()
}

// Perimeter returns the closed polygon length (CIRC).
func (c Contour) Perimeter() float64 {
	return geometry.Perimeter(c.Points())
}

// MaxRadius returns the largest radius; twice this is the effective diameter (FED).
func (c Contour) MaxRadius() float64 {
	m := 0.0
	for _, r := range c.Radii {
		m = math.Max(m, r)
	}
	return m
}

// MeanRadius returns the mean radius.
func (c Contour) MeanRadius() float64 {
	var s float64
	for _, r := range c.Radii {
		s += r
	}
	return s / float64(c.N())
}

func (c Contour) clone() Contour {
	out := c
	out.Radii = append([]float64(nil), c.Radii...)
	return out
}

func (c Contour) scaled(f float64) Contour {
	out := c.clone()
	for i := range out.Radii {
		out.Radii[i] *= f
	}
	return out
}
