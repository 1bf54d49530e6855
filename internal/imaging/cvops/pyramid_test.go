package cvops

import (
	"testing"

	"histokit/internal/imaging"
	"histokit/pkg/geometry"

	"github.com/stretchr/testify/require"
)

func constant(w, h int, v float64) imaging.Image {
	im := imaging.New(w, h, 1)
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im
}

func TestDownsampleShapes(t *testing.T) {
	p := NewPyramid()
	img := constant(40, 30, 100)

	out, err := p.Downsample(img, 4, 2)
	require.NoError(t, err)
	require.Equal(t, 10, out.Width)
	require.Equal(t, 7, out.Height)
	for _, v := range out.Pix {
		require.InDelta(t, 100.0, v, 1e-3)
	}

	same, err := p.Downsample(img, 1, 0)
	require.NoError(t, err)
	require.Equal(t, img, same)

	_, err = p.Downsample(img, 0, 0)
	require.Error(t, err)
	_, err = p.Downsample(img, 64, 0)
	require.Error(t, err)
	_, err = p.Downsample(imaging.New(4, 4, 3), 2, 0)
	require.Error(t, err)
}

func TestResampleTranslation(t *testing.T) {
	p := NewPyramid()
	moving := imaging.New(8, 8, 1)
	moving.Set(2, 3, 0, 200)

	out, err := p.Resample(moving, imaging.New(8, 8, 1), geometry.Similarity{Scale: 1, TX: 3, TY: 1})
	require.NoError(t, err)
	require.InDelta(t, 200.0, out.At(5, 4, 0), 1e-3)
	require.InDelta(t, 0.0, out.At(2, 3, 0), 1e-3)
}
