package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// ErrUnsupportedFormat is returned for output paths whose extension has no encoder.
var ErrUnsupportedFormat = errors.New("imaging: unsupported output format")

// Load decodes an image file and normalizes it so its brightest value is 255.
// Grayscale files load as one channel, everything else as RGB.
func Load(path string) (Image, error) {
	out, err := Read(path)
	if err != nil {
		return Image{}, err
	}
	Normalize(out)
	return out, nil
}

// Read decodes an image file keeping its 0-255 values as stored.
func Read(path string) (Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return FromGoImage(img), nil
}

// Normalize rescales an image in place so that its maximum becomes 255.
// An all-zero image is left untouched.
func Normalize(im Image) {
	_, hi := im.MinMax()
	if hi <= 0 || math.IsInf(hi, 0) {
		return
	}
	k := 255 / hi
	for i := range im.Pix {
		im.Pix[i] *= k
	}
}

// FromGoImage converts a decoded image into an interleaved float image in the
// 0-255 range.
func FromGoImage(img image.Image) Image {
	b := img.Bounds()
	gray := isGray(img)

	channels := 3
	if gray {
		channels = 1
	}
	out := New(b.Dx(), b.Dy(), channels)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			px, py := x-b.Min.X, y-b.Min.Y
			if gray {
				out.Set(px, py, 0, float64(r)/257)
				continue
			}
			out.Set(px, py, 0, float64(r)/257)
			out.Set(px, py, 1, float64(g)/257)
			out.Set(px, py, 2, float64(bl)/257)
		}
	}
	return out
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// ToGoImage converts a one- or three-channel image to an 8-bit image,
// clamping values into 0-255.
func ToGoImage(im Image) (image.Image, error) {
	im = im.Interleaved()
	switch im.Channels {
	case 1:
		out := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.SetGray(x, y, color.Gray{Y: to8(im.At(x, y, 0))})
			}
		}
		return out, nil
	case 3:
		out := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.SetRGBA(x, y, color.RGBA{
					R: to8(im.At(x, y, 0)),
					G: to8(im.At(x, y, 1)),
					B: to8(im.At(x, y, 2)),
					A: 255,
				})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %d-channel image", im.Channels)
}

func to8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// Save encodes an image to path; the format follows the file extension.
func Save(path string, im Image) error {
	if err := CheckOutput(path); err != nil {
		return err
	}
	img, err := ToGoImage(im)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 95})
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// CheckOutput reports whether Save can encode to path, so callers can reject
// a bad output name before doing any work.
func CheckOutput(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return nil
	}
	return fmt.Errorf("%w: %q (use .png, .jpg, .jpeg, .tif or .tiff)", ErrUnsupportedFormat, filepath.Base(path))
}
