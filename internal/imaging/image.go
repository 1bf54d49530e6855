// Package imaging provides the floating-point image grid shared by the
// registration and stain separation algorithms, plus loading, saving and
// compositing helpers.
package imaging

import (
	"fmt"
	"math"
)

// Image is a 2D grid of float intensities with one or more channels.
//
// Interleaved images (Planar == false) store pixel (x, y) channel c at
// Pix[(y*Width+x)*Channels+c]; planar images store it at
// Pix[(c*Height+y)*Width+x]. Algorithms assume intensities already
// normalized to [0, 255].
type Image struct {
	Width    int
	Height   int
	Channels int
	Planar   bool
	Pix      []float64
}

// New allocates a zeroed interleaved image.
func New(width, height, channels int) Image {
	return Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

// NewPlanar allocates a zeroed planar (channel-first) image.
func NewPlanar(width, height, channels int) Image {
	im := New(width, height, channels)
	im.Planar = true
	return im
}

// Empty reports whether the image holds no pixels.
func (im Image) Empty() bool {
	return im.Width <= 0 || im.Height <= 0 || im.Channels <= 0 || len(im.Pix) == 0
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (im Image) Validate() error {
	if im.Width <= 0 || im.Height <= 0 || im.Channels <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%dx%d", im.Width, im.Height, im.Channels)
	}
	if want := im.Width * im.Height * im.Channels; len(im.Pix) != want {
		return fmt.Errorf("pixel buffer has %d values, want %d for %dx%dx%d",
			len(im.Pix), want, im.Width, im.Height, im.Channels)
	}
	return nil
}

func (im Image) index(x, y, c int) int {
	if im.Planar {
		return (c*im.Height+y)*im.Width + x
	}
	return (y*im.Width+x)*im.Channels + c
}

// At returns channel c of pixel (x, y).
func (im Image) At(x, y, c int) float64 {
	return im.Pix[im.index(x, y, c)]
}

// Set stores channel c of pixel (x, y).
func (im Image) Set(x, y, c int, v float64) {
	im.Pix[im.index(x, y, c)] = v
}

// Clone returns a deep copy.
func (im Image) Clone() Image {
	out := im
	out.Pix = append([]float64(nil), im.Pix...)
	return out
}

// Interleaved returns the image in channel-last layout, copying only when a
// transpose is needed.
func (im Image) Interleaved() Image {
	if !im.Planar {
		return im
	}
	out := New(im.Width, im.Height, im.Channels)
	for c := 0; c < im.Channels; c++ {
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.Set(x, y, c, im.At(x, y, c))
			}
		}
	}
	return out
}

// ToPlanar returns the image in channel-first layout.
func (im Image) ToPlanar() Image {
	if im.Planar {
		return im
	}
	out := NewPlanar(im.Width, im.Height, im.Channels)
	for c := 0; c < im.Channels; c++ {
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.Set(x, y, c, im.At(x, y, c))
			}
		}
	}
	return out
}

// Channel extracts one channel as a single-channel image.
func (im Image) Channel(c int) (Image, error) {
	if c < 0 || c >= im.Channels {
		return Image{}, fmt.Errorf("channel %d out of range for %d-channel image", c, im.Channels)
	}
	if im.Channels == 1 {
		return im.Interleaved(), nil
	}
	out := New(im.Width, im.Height, 1)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			out.Pix[y*im.Width+x] = im.At(x, y, c)
		}
	}
	return out, nil
}

// MinMax returns the smallest and largest value over all channels.
func (im Image) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range im.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Bilinear samples a single-channel image at a sub-pixel position where pixel
// centers sit on integer coordinates. It reports false outside the grid.
func (im Image) Bilinear(x, y float64) (float64, bool) {
	if x < 0 || y < 0 || x > float64(im.Width-1) || y > float64(im.Height-1) {
		return 0, false
	}
	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, im.Width-1)
	y1 := min(y0+1, im.Height-1)
	fx := x - float64(x0)
	fy := y - float64(y0)

	row0 := y0 * im.Width
	row1 := y1 * im.Width
	top := im.Pix[row0+x0]*(1-fx) + im.Pix[row0+x1]*fx
	bottom := im.Pix[row1+x0]*(1-fx) + im.Pix[row1+x1]*fx
	return top*(1-fy) + bottom*fy, true
}

// SingleChannel returns im unchanged when it already has one channel and
// channel c otherwise.
func (im Image) SingleChannel(c int) (Image, error) {
	if im.Channels == 1 {
		return im.Interleaved(), nil
	}
	return im.Channel(c)
}
