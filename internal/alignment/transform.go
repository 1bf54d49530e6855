package alignment

import (
	"fmt"
	"math"

	"histokit/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// maxCondition is the largest condition number of the design matrix accepted
// as a well-posed fit.
const maxCondition = 1e12

// Fit is the result of fitting a similarity transform to correspondences.
type Fit struct {
	Similarity geometry.Similarity
	Affine     geometry.AffineTransform // unconstrained least-squares affine
	Mirrored   bool                     // a*d < 0 in the affine fit
	MeanError  float64                  // mean residual of the similarity, in pixels
}

// EstimateSimilarity fits the similarity transform mapping moving points onto
// fixed points.
func EstimateSimilarity(moving, fixed []geometry.Point2D) (geometry.Similarity, error) {
	fit, err := FitSimilarity(moving, fixed)
	if err != nil {
		return geometry.Similarity{}, err
	}
	return fit.Similarity, nil
}

// FitSimilarity solves the full affine least-squares problem for the
// correspondences and reduces it to scale, rotation and translation.
//
// A reflected fit (a*d < 0) only flips the sign used when extracting the
// angle; the returned transform never mirrors.
// TODO: apply a horizontal flip of the moving image when Mirrored is set once
// the resampler can take a reflected transform.
func FitSimilarity(moving, fixed []geometry.Point2D) (*Fit, error) {
	if len(moving) != len(fixed) {
		return nil, fmt.Errorf("%w: point count mismatch %d vs %d", ErrUnderdetermined, len(moving), len(fixed))
	}
	if len(moving) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrUnderdetermined, len(moving))
	}

	affine, err := computeAffineLeastSquares(moving, fixed)
	if err != nil {
		return nil, err
	}

	a, b, c, d := affine.A, affine.B, affine.C, affine.D
	scale := math.Sqrt(math.Abs(a*d - b*c))
	if scale == 0 || math.IsNaN(scale) {
		return nil, fmt.Errorf("%w: zero scale", ErrSingularSystem)
	}

	mirror := 1.0
	if a*d < 0 {
		mirror = -1
	}
	cosTheta := 0.5 * (a/mirror + d) / scale
	sinTheta := 0.5 * (c - b) / scale

	sim := geometry.Similarity{
		Scale: scale,
		Angle: math.Atan2(sinTheta, cosTheta),
		TX:    affine.TX,
		TY:    affine.TY,
	}

	return &Fit{
		Similarity: sim,
		Affine:     affine,
		Mirrored:   mirror < 0,
		MeanError:  CalculateAlignmentError(moving, fixed, sim.Affine()),
	}, nil
}

// computeAffineLeastSquares computes an affine transform using least squares.
func computeAffineLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)

	// Build overdetermined system
	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	// Solve using QR decomposition
	var qr mat.QR
	qr.Factorize(A)
	if cond := qr.Cond(); cond > maxCondition || math.IsNaN(cond) {
		return geometry.AffineTransform{}, fmt.Errorf("%w: condition number %.3g", ErrSingularSystem, cond)
	}

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}

// CalculateAlignmentError calculates the mean alignment error after transformation.
func CalculateAlignmentError(srcPoints, dstPoints []geometry.Point2D, transform geometry.AffineTransform) float64 {
	if len(srcPoints) != len(dstPoints) || len(srcPoints) == 0 {
		return math.Inf(1)
	}

	var totalError float64
	for i := range srcPoints {
		transformed := transform.Apply(srcPoints[i])
		totalError += transformed.Distance(dstPoints[i])
	}

	return totalError / float64(len(srcPoints))
}
