// Package debugplot renders diagnostic plots of radius series and placed
// contours.
package debugplot

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"lens-tracer/pkg/geometry"
)

// Series is one named line of a radius plot.
type Series struct {
	Name   string
	Values []float64
}

// Ints converts a hundredths series for plotting in millimeters.
func Ints(name string, hundredths []int) Series {
	v := make([]float64, len(hundredths))
	for i, h := range hundredths {
		v[i] = float64(h) / 100
	}
	return Series{Name: name, Values: v}
}

// Outline is one named closed contour in image pixels.
type Outline struct {
	Name   string
	Points []geometry.Point2D
}

var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
}

// Radii plots each series against its sample index and saves the plot to
// path; the format follows the extension.
func Radii(path, title string, series ...Series) error {
	if len(series) == 0 {
		return errors.New("no series to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Radius (mm)"

	for i, s := range series {
		pts := make(plotter.XYs, len(s.Values))
		for j, v := range s.Values {
			pts[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	return p.Save(12*vg.Inch, 5*vg.Inch, path)
}

// Contours plots closed outlines with image Y pointing down.
func Contours(path, title string, outlines ...Outline) error {
	if len(outlines) == 0 {
		return errors.New("no contours to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "-y (px)"

	for i, o := range outlines {
		pts := make(plotter.XYs, 0, len(o.Points)+1)
		for _, pt := range o.Points {
			pts = append(pts, plotter.XY{X: pt.X, Y: -pt.Y})
		}
		if len(o.Points) > 0 {
			pts = append(pts, plotter.XY{X: o.Points[0].X, Y: -o.Points[0].Y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("outline %q: %w", o.Name, err)
		}
		line.Color = palette[i%len(palette)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(o.Name, line)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}
