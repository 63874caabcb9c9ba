// Package fil reads and writes the FIL frame-tracing text format: key=value
// lines with the radii in hundredths of a millimeter, Latin-1 encoded.
package fil

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"lens-tracer/internal/polar"
)

// ValuesPerLine is the number of radii written on each R= line.
const ValuesPerLine = 10

// hundredthsThreshold separates the two radius representations found in the
// wild: a record whose largest radius reaches it is in hundredths of a
// millimeter, otherwise the values are millimeters.
const hundredthsThreshold = 200

// Record is one FIL job. Radii are hundredths of a millimeter in the
// counter-clockwise convention; the box fields are millimeters.
type Record struct {
	Job          string
	Status       int
	Radii        []int
	Circ         float64
	FED          float64
	HBox         float64
	VBox         float64
	Manufacturer string
	Frame        string
	EyeSize      float64
}

// FromContour builds a record from a millimeter contour, converting it to the
// counter-clockwise convention. An empty job gets a random id.
func FromContour(job string, c polar.Contour, manufacturer string) (*Record, error) {
	if c.Unit != polar.Millimeters {
		return nil, fmt.Errorf("fil: contour is in %s, need millimeters", c.Unit)
	}
	if job == "" {
		job = uuid.NewString()
	}
	if err := checkJob(job); err != nil {
		return nil, err
	}
	ccw := c.ToConvention(polar.CounterClockwise)
	w, h := ccw.Box()
	fed := 2 * ccw.MaxRadius()
	return &Record{
		Job:          job,
		Radii:        ccw.Hundredths(),
		Circ:         round2(ccw.Perimeter()),
		FED:          round2(fed),
		HBox:         round2(w),
		VBox:         round2(h),
		Manufacturer: manufacturer,
		Frame:        job,
		EyeSize:      round2(fed),
	}, nil
}

// Contour returns the radii as a millimeter contour in the counter-clockwise
// convention.
func (r *Record) Contour() (polar.Contour, error) {
	return polar.FromHundredths(r.Radii, polar.CounterClockwise)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
