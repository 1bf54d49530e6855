package optimize_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"histokit/internal/imaging"
	"histokit/internal/optimize"
	"histokit/internal/registration"
	"histokit/pkg/geometry"
)

// blob renders a smooth, non-symmetric test scene shifted by (dx, dy):
// the returned image m satisfies m(x, y) = scene(x+dx, y+dy).
func blob(width, height int, dx, dy float64) imaging.Image {
	img := imaging.New(width, height, 1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx := float64(x) + dx
			fy := float64(y) + dy
			r2 := (fx-30)*(fx-30) + (fy-34)*(fy-34)
			img.Set(x, y, 0, 200*math.Exp(-r2/(2*12*12))+0.5*fx+0.3*fy)
		}
	}
	return img
}

func settings() registration.Settings {
	return registration.Settings{
		LearningRate:      1,
		MinStep:           0.01,
		MaxIterations:     200,
		GradientTolerance: 1e-8,
		RelaxationFactor:  0.5,
		HistogramBins:     32,
		SamplingRate:      0.5,
		Seed:              7,
	}
}

func TestMutualInformationPeaksAtAlignment(t *testing.T) {
	img := blob(64, 64, 0, 0)
	m, err := optimize.NewMutualInformation(img, img, 32, 0.5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, 2048, m.Samples())

	aligned, err := m.Value(geometry.IdentitySimilarity())
	require.NoError(t, err)
	shifted, err := m.Value(geometry.Similarity{Scale: 1, TX: 4, TY: -3})
	require.NoError(t, err)
	require.Less(t, aligned, shifted)
	require.Less(t, aligned, 0.0)
}

func TestMutualInformationErrors(t *testing.T) {
	img := blob(32, 32, 0, 0)
	flat := imaging.New(32, 32, 1)
	rng := rand.New(rand.NewSource(1))

	_, err := optimize.NewMutualInformation(flat, img, 32, 0.5, rng)
	require.ErrorIs(t, err, registration.ErrSingularMetric)

	_, err = optimize.NewMutualInformation(img, img, 32, 0, rng)
	require.ErrorIs(t, err, registration.ErrSingularMetric)

	_, err = optimize.NewMutualInformation(imaging.New(8, 8, 3), img, 32, 0.5, rng)
	require.ErrorIs(t, err, registration.ErrDimensionMismatch)

	m, err := optimize.NewMutualInformation(img, img, 32, 0.5, rng)
	require.NoError(t, err)
	_, err = m.Value(geometry.Similarity{Scale: 1, TX: 500})
	require.ErrorIs(t, err, registration.ErrSingularMetric)
	_, err = m.Value(geometry.Similarity{})
	require.ErrorIs(t, err, registration.ErrSingularMetric)
}

func TestDescentRecoversTranslation(t *testing.T) {
	fixed := blob(64, 64, 0, 0)
	// moving(x) = fixed(x + d): a feature at x in moving sits at x + d in
	// fixed, so the moving-to-fixed transform is a translation by d.
	moving := blob(64, 64, 2.5, -2)

	for _, seed := range []int64{1, 7, 42} {
		s := settings()
		s.Seed = seed
		p := registration.Problem{Fixed: fixed, Moving: moving, ShrinkFactor: 1, Settings: s}

		var seen []registration.Iteration
		res, err := optimize.NewDescent().Optimize(context.Background(), p, geometry.IdentitySimilarity(),
			func(it registration.Iteration) error {
				seen = append(seen, it)
				return nil
			})
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, seen, res.Iterations)
		for i, it := range seen {
			require.Equal(t, i, it.Index)
		}
		require.True(t, res.Reason.Converged(), "seed %d stopped on %v", seed, res.Reason)
		require.InDelta(t, 2.5, res.Transform.TX, 0.5, "seed %d: %v", seed, res.Transform)
		require.InDelta(t, -2, res.Transform.TY, 0.5, "seed %d: %v", seed, res.Transform)
		require.InDelta(t, 1, res.Transform.Scale, 0.01, "seed %d: %v", seed, res.Transform)
		require.InDelta(t, 0, res.Transform.Angle, 0.01, "seed %d: %v", seed, res.Transform)
	}
}

func TestDescentIterationCap(t *testing.T) {
	s := settings()
	s.MaxIterations = 3
	s.MinStep = 0
	p := registration.Problem{Fixed: blob(48, 48, 0, 0), Moving: blob(48, 48, 3, 3), Settings: s}

	calls := 0
	res, err := optimize.NewDescent().Optimize(context.Background(), p, geometry.IdentitySimilarity(),
		func(registration.Iteration) error {
			calls++
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, registration.StopMaxIterations, res.Reason)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, res.Iterations)
}

func TestDescentStopsWhenObserverFails(t *testing.T) {
	p := registration.Problem{Fixed: blob(48, 48, 0, 0), Moving: blob(48, 48, 3, 3), Settings: settings()}
	stop := errors.New("stop")

	calls := 0
	_, err := optimize.NewDescent().Optimize(context.Background(), p, geometry.IdentitySimilarity(),
		func(registration.Iteration) error {
			calls++
			if calls == 2 {
				return stop
			}
			return nil
		})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, calls)
}

func TestDescentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := registration.Problem{Fixed: blob(48, 48, 0, 0), Moving: blob(48, 48, 0, 0), Settings: settings()}

	_, err := optimize.NewDescent().Optimize(ctx, p, geometry.IdentitySimilarity(),
		func(registration.Iteration) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
