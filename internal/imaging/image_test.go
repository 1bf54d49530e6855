package imaging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func ramp(width, height, channels int) Image {
	im := New(width, height, channels)
	for i := range im.Pix {
		im.Pix[i] = float64(i % 256)
	}
	return im
}

func TestLayoutRoundTrip(t *testing.T) {
	im := ramp(5, 4, 3)

	planar := im.ToPlanar()
	require.True(t, planar.Planar)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			for c := 0; c < 3; c++ {
				require.Equal(t, im.At(x, y, c), planar.At(x, y, c))
			}
		}
	}
	// channel-first buffer keeps each plane contiguous
	require.Equal(t, im.At(1, 0, 2), planar.Pix[2*4*5+1])

	require.Equal(t, im, planar.Interleaved())
}

func TestChannel(t *testing.T) {
	im := ramp(3, 2, 3)

	g, err := im.Channel(1)
	require.NoError(t, err)
	require.Equal(t, 1, g.Channels)
	require.Equal(t, im.At(2, 1, 1), g.At(2, 1, 0))

	_, err = im.Channel(3)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, New(2, 2, 1).Validate())
	require.Error(t, Image{Width: 2, Height: 2, Channels: 1, Pix: make([]float64, 3)}.Validate())
	require.Error(t, Image{}.Validate())
	require.True(t, Image{}.Empty())
}

func TestBilinear(t *testing.T) {
	im := New(2, 2, 1)
	copy(im.Pix, []float64{0, 10, 20, 30})

	v, ok := im.Bilinear(0.5, 0.5)
	require.True(t, ok)
	require.InDelta(t, 15.0, v, 1e-12)

	v, ok = im.Bilinear(1, 1)
	require.True(t, ok)
	require.InDelta(t, 30.0, v, 1e-12)

	_, ok = im.Bilinear(-0.1, 0)
	require.False(t, ok)
	_, ok = im.Bilinear(0, 1.01)
	require.False(t, ok)
}

func TestCheckerboard(t *testing.T) {
	a := New(4, 4, 1)
	b := New(4, 4, 1)
	for i := range a.Pix {
		a.Pix[i] = 1
		b.Pix[i] = 2
	}

	out, err := Checkerboard(a, b, [2]int{2, 2})
	require.NoError(t, err)
	require.Equal(t, 1.0, out.At(0, 0, 0))
	require.Equal(t, 1.0, out.At(1, 1, 0))
	require.Equal(t, 2.0, out.At(2, 0, 0))
	require.Equal(t, 2.0, out.At(0, 3, 0))
	require.Equal(t, 1.0, out.At(3, 3, 0))

	_, err = Checkerboard(a, New(3, 4, 1), [2]int{2, 2})
	require.Error(t, err)
	_, err = Checkerboard(a, b, [2]int{0, 2})
	require.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	im := New(6, 3, 3)
	for i := range im.Pix {
		im.Pix[i] = float64((i * 37) % 256)
	}
	im.Pix[0] = 255

	for _, ext := range []string{".png", ".tif"} {
		path := filepath.Join(t.TempDir(), "rgb"+ext)
		require.NoError(t, Save(path, im))

		got, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 3, got.Channels)
		require.InDeltaSlice(t, im.Pix, got.Pix, 1e-9)
	}

	gray := New(4, 4, 1)
	gray.Pix[5] = 128
	path := filepath.Join(t.TempDir(), "gray.png")
	require.NoError(t, Save(path, gray))
	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, got.Channels)
	// brightest value is stretched to 255
	require.InDelta(t, 255.0, got.Pix[5], 1e-9)

	raw, err := Read(path)
	require.NoError(t, err)
	require.InDelta(t, 128.0, raw.Pix[5], 1e-9)

	bmp := filepath.Join(t.TempDir(), "x.bmp")
	require.ErrorIs(t, Save(bmp, gray), ErrUnsupportedFormat)
	_, err = os.Stat(bmp)
	require.True(t, os.IsNotExist(err), "rejected output must not be created")
	require.ErrorIs(t, CheckOutput("x.bmp"), ErrUnsupportedFormat)
	require.ErrorIs(t, CheckOutput("noext"), ErrUnsupportedFormat)
	require.NoError(t, CheckOutput("X.TIF"))
	require.NoError(t, CheckOutput("dir/out.jpeg"))
}
