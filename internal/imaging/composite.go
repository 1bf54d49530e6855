package imaging

import "fmt"

// DefaultCheckerPattern is the number of tiles along each axis of a
// comparison checkerboard.
var DefaultCheckerPattern = [2]int{20, 20}

// Checkerboard interleaves two same-sized images in alternating tiles.
// pattern gives the number of tiles along x and y; tile (0, 0) shows first.
// Used to eyeball a registration: edges that line up across tile borders mean
// the images agree.
func Checkerboard(first, second Image, pattern [2]int) (Image, error) {
	if first.Width != second.Width || first.Height != second.Height || first.Channels != second.Channels {
		return Image{}, fmt.Errorf("checkerboard size mismatch: %dx%dx%d vs %dx%dx%d",
			first.Width, first.Height, first.Channels, second.Width, second.Height, second.Channels)
	}
	if pattern[0] <= 0 || pattern[1] <= 0 {
		return Image{}, fmt.Errorf("invalid checker pattern %v", pattern)
	}

	a := first.Interleaved()
	b := second.Interleaved()
	out := New(a.Width, a.Height, a.Channels)

	for y := 0; y < a.Height; y++ {
		ty := y * pattern[1] / a.Height
		for x := 0; x < a.Width; x++ {
			tx := x * pattern[0] / a.Width
			src := a
			if (tx+ty)%2 == 1 {
				src = b
			}
			for c := 0; c < a.Channels; c++ {
				out.Set(x, y, c, src.At(x, y, c))
			}
		}
	}
	return out, nil
}
