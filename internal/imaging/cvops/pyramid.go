// Package cvops implements the image primitives of the registration pipeline
// (smoothing, shrinking and resampling) on top of OpenCV.
package cvops

import (
	"fmt"
	"image"
	"image/color"

	"histokit/internal/imaging"
	"histokit/pkg/geometry"

	"gocv.io/x/gocv"
)

// Pyramid builds resolution levels and resamples images with OpenCV.
// It only handles single-channel images.
type Pyramid struct{}

// NewPyramid returns an OpenCV-backed pyramid.
func NewPyramid() *Pyramid {
	return &Pyramid{}
}

// Downsample smooths img with a Gaussian of the given sigma (in full
// resolution pixels, 0 disables smoothing) and then shrinks it by an integer
// factor using area averaging.
func (p *Pyramid) Downsample(img imaging.Image, factor int, sigma float64) (imaging.Image, error) {
	if factor < 1 {
		return imaging.Image{}, fmt.Errorf("invalid shrink factor %d", factor)
	}
	if factor == 1 && sigma <= 0 {
		return img.Clone(), nil
	}

	src, err := toMat(img)
	if err != nil {
		return imaging.Image{}, err
	}
	defer src.Close()

	smoothed := src
	if sigma > 0 {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(src, &blurred, image.Point{}, sigma, sigma, gocv.BorderReflect101)
		smoothed = blurred
	}

	if factor == 1 {
		return fromMat(smoothed), nil
	}

	w, h := img.Width/factor, img.Height/factor
	if w < 1 || h < 1 {
		return imaging.Image{}, fmt.Errorf("shrink factor %d too large for %dx%d image", factor, img.Width, img.Height)
	}

	shrunk := gocv.NewMat()
	defer shrunk.Close()
	gocv.Resize(smoothed, &shrunk, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationArea)

	return fromMat(shrunk), nil
}

// Resample warps moving into the pixel grid of reference with linear
// interpolation. t maps moving coordinates onto reference coordinates; pixels
// that fall outside moving are 0.
func (p *Pyramid) Resample(moving, reference imaging.Image, t geometry.Similarity) (imaging.Image, error) {
	src, err := toMat(moving)
	if err != nil {
		return imaging.Image{}, err
	}
	defer src.Close()

	transformMat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	for r, row := range t.Affine().ToMatrix() {
		for c, v := range row {
			transformMat.SetDoubleAt(r, c, v)
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpAffineWithParams(src, &dst, transformMat, image.Point{X: reference.Width, Y: reference.Height},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	return fromMat(dst), nil
}

func toMat(img imaging.Image) (gocv.Mat, error) {
	if img.Channels != 1 {
		return gocv.Mat{}, fmt.Errorf("expected single-channel image, got %d channels", img.Channels)
	}
	if err := img.Validate(); err != nil {
		return gocv.Mat{}, err
	}

	m := gocv.NewMatWithSize(img.Height, img.Width, gocv.MatTypeCV32F)
	for y := 0; y < img.Height; y++ {
		row := y * img.Width
		for x := 0; x < img.Width; x++ {
			m.SetFloatAt(y, x, float32(img.Pix[row+x]))
		}
	}
	return m, nil
}

func fromMat(m gocv.Mat) imaging.Image {
	out := imaging.New(m.Cols(), m.Rows(), 1)
	for y := 0; y < out.Height; y++ {
		row := y * out.Width
		for x := 0; x < out.Width; x++ {
			out.Pix[row+x] = float64(m.GetFloatAt(y, x))
		}
	}
	return out
}
