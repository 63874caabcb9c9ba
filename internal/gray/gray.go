// Package gray provides the immutable 8-bit grayscale buffer every engine stage reads.
package gray

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"lens-tracer/pkg/geometry"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Image is a row-major single-channel 8-bit buffer.
//
// An Image is treated as immutable once built: stages borrow it read-only and
// never write to Pix. Set exists for constructing synthetic images before the
// buffer is handed to the engine.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns a width×height image filled with value.
func New(width, height int, value uint8) *Image {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("gray: invalid size %dx%d", width, height))
	}
	pix := make([]uint8, width*height)
	if value != 0 {
		for i := range pix {
			pix[i] = value
		}
	}
	return &Image{Width: width, Height: height, Pix: pix}
}

// FromPix wraps an existing buffer. The length must equal width*height.
func FromPix(width, height int, pix []uint8) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("buffer holds %d bytes, want %d for %dx%d", len(pix), width*height, width, height)
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any decoded image to grayscale using the standard luma weights.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	out := New(b.Dx(), b.Dy(), 0)
	for y := 0; y < out.Height; y++ {
		copy(out.Pix[y*out.Width:(y+1)*out.Width], dst.Pix[y*dst.Stride:y*dst.Stride+out.Width])
	}
	return out
}

// Load decodes a JPEG, PNG, TIFF or BMP file into a grayscale image.
func Load(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// Bounds returns the full-image rectangle.
func (m *Image) Bounds() geometry.RectInt {
	return geometry.RectInt{Width: m.Width, Height: m.Height}
}

// At returns the intensity at (x, y). Coordinates outside the image are clamped
// to the nearest border pixel.
func (m *Image) At(x, y int) uint8 {
	x = min(max(x, 0), m.Width-1)
	y = min(max(y, 0), m.Height-1)
	return m.Pix[y*m.Width+x]
}

// Set writes one pixel. Only for building images before use.
func (m *Image) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Bilinear samples the image at a sub-pixel position with border clamping.
func (m *Image) Bilinear(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := float64(m.At(x0, y0))
	p10 := float64(m.At(x0+1, y0))
	p01 := float64(m.At(x0, y0+1))
	p11 := float64(m.At(x0+1, y0+1))

	top := p00 + (p10-p00)*fx
	bottom := p01 + (p11-p01)*fx
	return top + (bottom-top)*fy
}

// Crop copies the region r (clipped to the image) into a new image whose
// origin is r's top-left corner.
func (m *Image) Crop(r geometry.RectInt) (*Image, error) {
	clipped := r.Intersect(m.Bounds())
	if clipped.Empty() || clipped != r {
		return nil, fmt.Errorf("crop %+v outside %dx%d image", r, m.Width, m.Height)
	}
	out := New(r.Width, r.Height, 0)
	for y := 0; y < r.Height; y++ {
		src := (r.Y+y)*m.Width + r.X
		copy(out.Pix[y*r.Width:(y+1)*r.Width], m.Pix[src:src+r.Width])
	}
	return out, nil
}

// Resize returns a copy scaled to width×height with bilinear filtering.
// Used to bring oversized camera frames into the working resolution; callers
// must scale any pixel-denominated inputs by the same factor.
func (m *Image) Resize(width, height int) *Image {
	src := &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: image.Rect(0, 0, m.Width, m.Height)}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	out := New(width, height, 0)
	copy(out.Pix, dst.Pix)
	return out
}

// Mean returns the mean intensity.
func (m *Image) Mean() float64 {
	var sum int
	for _, v := range m.Pix {
		sum += int(v)
	}
	return float64(sum) / float64(len(m.Pix))
}
