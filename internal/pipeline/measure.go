package pipeline

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"lens-tracer/pkg/geometry"
)

// EyeMeasurements are per-eye values in millimeters.
type EyeMeasurements struct {
	MonoPD        float64 // pupil to midline
	FittingHeight float64 // pupil to the lowest contour point
	BoxWidth      float64
	BoxHeight     float64
	Valid         bool
}

// Measurements derived from a fitted face. Binocular values are only set
// when both eyes fitted.
type Measurements struct {
	Scale     float64 // px/mm used for every conversion
	PD        float64 // pupil to pupil
	Bridge    float64 // gap between the nasal edges of the two contours (DBL)
	Binocular bool
	Eyes      [2]EyeMeasurements
}

// Measure converts the fitted contours and pupils into millimeters using the
// mean fitted scale of the eyes that fitted.
func Measure(in FaceInput, face *FaceResult) (*Measurements, error) {
	var scales []float64
	for _, e := range face.Eyes {
		if e != nil && e.OK() && e.Fit != nil {
			scales = append(scales, e.Fit.Scale)
		}
	}
	if len(scales) == 0 {
		return nil, errors.New("no eye was fitted")
	}

	m := &Measurements{Scale: floats.Sum(scales) / float64(len(scales))}

	for s, e := range face.Eyes {
		if e == nil || !e.OK() {
			continue
		}
		pupil := in.Eyes[s].Pupil
		box := geometry.BoundingBox(e.Points)
		m.Eyes[s] = EyeMeasurements{
			MonoPD:        math.Abs(pupil.X-in.MidlineX) / m.Scale,
			FittingHeight: (box.Y + box.Height - pupil.Y) / m.Scale,
			BoxWidth:      box.Width / m.Scale,
			BoxHeight:     box.Height / m.Scale,
			Valid:         true,
		}
	}

	left, right := face.Eyes[ImageLeft], face.Eyes[ImageRight]
	if left != nil && right != nil && left.OK() && right.OK() {
		m.Binocular = true
		m.PD = in.Eyes[ImageLeft].Pupil.Distance(in.Eyes[ImageRight].Pupil) / m.Scale
		lb := geometry.BoundingBox(left.Points)
		rb := geometry.BoundingBox(right.Points)
		m.Bridge = (rb.X - (lb.X + lb.Width)) / m.Scale
	}
	return m, nil
}
