package geometry

import "math"

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Perimeter returns the length of the closed polygon.
func Perimeter(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		total += polygon[i].Distance(polygon[(i+1)%n])
	}
	return total
}

// RayIntersect casts a ray from origin along dir (need not be normalized) and
// returns the largest ray parameter t > 0 at which it crosses the closed polygon.
// The farthest crossing is used so that small concavities near the origin do not
// shorten the radius. Returns false if the ray misses.
func RayIntersect(origin, dir Point2D, polygon []Point2D) (float64, bool) {
	n := len(polygon)
	if n < 2 {
		return 0, false
	}
	best := -1.0
	for i := 0; i < n; i++ {
		a := polygon[i]
		b := polygon[(i+1)%n]
		e := b.Sub(a)
		denom := dir.Cross(e)
		if math.Abs(denom) < 1e-12 {
			continue
		}
		w := a.Sub(origin)
		t := w.Cross(e) / denom
		u := w.Cross(dir) / denom
		if t > 0 && u >= 0 && u <= 1 && t > best {
			best = t
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// PerimeterSample is a point walked along a closed polygon with its unit
// outward-agnostic normal (the left-hand perpendicular of the local tangent).
type PerimeterSample struct {
	Point  Point2D
	Normal Point2D
}

// WalkPerimeter samples the closed polygon every step units of arc length.
func WalkPerimeter(polygon []Point2D, step float64) []PerimeterSample {
	n := len(polygon)
	if n < 3 || step <= 0 {
		return nil
	}
	var samples []PerimeterSample
	carry := 0.0
	for i := 0; i < n; i++ {
		a := polygon[i]
		b := polygon[(i+1)%n]
		seg := b.Sub(a)
		length := seg.Norm()
		if length < 1e-9 {
			continue
		}
		if carry >= length {
			carry -= length
			continue
		}
		tangent := seg.Scale(1 / length)
		normal := Point2D{X: -tangent.Y, Y: tangent.X}
		for d := carry; d < length; d += step {
			samples = append(samples, PerimeterSample{
				Point:  a.Add(tangent.Scale(d)),
				Normal: normal,
			})
		}
		// distance already consumed past the last sample on this segment
		consumed := length - carry
		rem := math.Mod(consumed, step)
		if rem == 0 {
			carry = 0
		} else {
			carry = step - rem
		}
	}
	return samples
}
