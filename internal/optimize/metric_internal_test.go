package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"histokit/pkg/geometry"
)

func TestCubicBSplinePartitionOfUnity(t *testing.T) {
	for _, c := range []float64{2, 2.25, 2.5, 3.999, 7} {
		var sum float64
		for j := -3; j <= 12; j++ {
			sum += cubicBSpline(float64(j) - c)
		}
		require.InDelta(t, 1, sum, 1e-12, "c=%v", c)
	}
	require.Zero(t, cubicBSpline(2))
}

func TestFrameRoundTrip(t *testing.T) {
	fr := frame{center: geometry.Point2D{X: 31.5, Y: 31.5}, w: []float64{90, 90, 1, 1}}
	u := []float64{90, 9, 3, -4}
	s := fr.fromScaled(u)
	require.InDelta(t, 1, s.Scale, 1e-12)
	require.InDelta(t, 0.1, s.Angle, 1e-12)
	require.InDeltaSlice(t, u, fr.toScaled(s), 1e-12)

	// The center moves by the centered translation alone.
	c := s.Apply(fr.center)
	require.InDelta(t, 31.5+3, c.X, 1e-9)
	require.InDelta(t, 31.5-4, c.Y, 1e-9)
}

func TestFrameDecouplesRotation(t *testing.T) {
	fr := newFrame(geometry.IdentitySimilarity(), 64, 64)
	require.InDelta(t, 1, fr.w[2], 1e-6)
	require.InDelta(t, 1, fr.w[3], 1e-6)
	// Corners sit about 44.5 pixels from the center.
	require.InDelta(t, math.Hypot(31.5, 31.5), fr.w[1], 1e-2)

	// Rotating and scaling with zero centered translation leaves the center put.
	c := fr.similarity([]float64{1.1, 0.2, 0, 0}).Apply(fr.center)
	require.InDelta(t, fr.center.X, c.X, 1e-9)
	require.InDelta(t, fr.center.Y, c.Y, 1e-9)
}
