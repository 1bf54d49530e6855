// Package stain separates hematoxylin and eosin contributions of an H&E
// stained RGB image by SVD in optical density space (Macenko et al., "A method
// for normalizing histology slides for quantitative analysis", 2009).
package stain

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"histokit/internal/imaging"
	"histokit/internal/param"
)

// Algorithm is the name the deconvolver's config reports.
const Algorithm = "ColorDeconvSvd"

// Parameter names.
const (
	ParamODThreshold    = "od_threshold"
	ParamAngleThreshold = "angle_threshold"
	ParamSampling       = "sampling"
)

// rankTolerance is the smallest ratio of the second to the first singular
// value accepted as a two-dimensional basis.
const rankTolerance = 1e-10

// Schema returns the deconvolver parameter table.
func Schema() param.Schema {
	return param.Schema{
		{
			Name:        ParamODThreshold,
			Kind:        param.KindFloat,
			Range:       param.Between(0, 1),
			Description: "lower limit of optical density to participate in singular value decomposition for stability reason",
			Default:     0.1,
		},
		{
			Name:        ParamAngleThreshold,
			Kind:        param.KindFloat,
			Range:       param.Between(0, 100),
			Description: "percentile of angle of color vector to decide two base color vectors",
			Default:     1.0,
		},
		{
			Name:        ParamSampling,
			Kind:        param.KindInt,
			Range:       param.AtLeast(1),
			Description: "pixel sampling rate for singular value decomposition",
			Default:     3,
		},
	}
}

// Result holds the per-stain RGB images, in optical transmission (0, 1], and
// the unit stain vectors in optical density space.
type Result struct {
	Hematoxylin       imaging.Image
	Eosin             imaging.Image
	HematoxylinVector [3]float64
	EosinVector       [3]float64
}

// Option configures a Deconvolver.
type Option func(*Deconvolver)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Deconvolver) {
		d.logger = l.With().Str("component", "stain").Logger()
	}
}

// Deconvolver splits RGB images into hematoxylin and eosin images.
type Deconvolver struct {
	config *param.Config
	logger zerolog.Logger
}

// New returns a deconvolver with a fresh copy of the default config.
func New(opts ...Option) *Deconvolver {
	d := &Deconvolver{
		config: param.NewConfig(Algorithm, Schema()),
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Config returns the deconvolver's parameters.
func (d *Deconvolver) Config() *param.Config {
	return d.config
}

// Deconvolve separates img, an 8-bit range RGB image in either layout.
// Values are mapped to transmission as (v+1)/256.
func (d *Deconvolver) Deconvolve(img imaging.Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("stain: %w", err)
	}
	if img.Channels != 3 {
		return nil, fmt.Errorf("%w: got %d", ErrChannelCount, img.Channels)
	}
	img = img.Interleaved()

	od, err := opticalDensity(img.Pix)
	if err != nil {
		return nil, err
	}
	n := img.Width * img.Height

	threshold := d.config.Float(ParamODThreshold)
	var masked []int
	for i := 0; i < n; i++ {
		row := od[3*i : 3*i+3]
		if row[0] > threshold || row[1] > threshold || row[2] > threshold {
			masked = append(masked, i)
		}
	}
	if len(masked) == 0 {
		return nil, fmt.Errorf("%w: threshold %g", ErrEmptyMask, threshold)
	}

	vh0, vh1, err := d.basis(od, masked)
	if err != nil {
		return nil, err
	}

	angles := make([]float64, 0, len(masked))
	for _, i := range masked {
		row := od[3*i : 3*i+3]
		a := math.Atan(floats.Dot(row, vh1) / floats.Dot(row, vh0))
		if !math.IsNaN(a) {
			angles = append(angles, a)
		}
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("%w: no pixel has a defined color angle", ErrDegenerateBasis)
	}

	q := d.config.Float(ParamAngleThreshold)
	angleMin := percentile(angles, q)
	angleMax := percentile(angles, 100-q)
	v1 := direction(vh0, vh1, angleMin)
	v2 := direction(vh0, vh1, angleMax)

	d.logger.Debug().
		Int("pixels", n).
		Int("masked", len(masked)).
		Float64("angle_min", angleMin).
		Float64("angle_max", angleMax).
		Floats64("v1", v1[:]).
		Floats64("v2", v2[:]).
		Msg("stain basis")

	conc, err := concentrations(v1, v2, od, n)
	if err != nil {
		return nil, err
	}

	hIdx, eIdx := assign(v1, v2)
	vecs := [2][3]float64{v1, v2}
	hVec, eVec := vecs[hIdx], vecs[eIdx]

	return &Result{
		Hematoxylin:       reconstruct(img.Width, img.Height, hVec, conc.RawRowView(hIdx)),
		Eosin:             reconstruct(img.Width, img.Height, eVec, conc.RawRowView(eIdx)),
		HematoxylinVector: hVec,
		EosinVector:       eVec,
	}, nil
}

// assign returns the indices of the hematoxylin and eosin vectors among
// {v1, v2}: v1 is hematoxylin when its first component is strictly smaller,
// otherwise v2 is, ties included.
func assign(v1, v2 [3]float64) (h, e int) {
	if v1[0] < v2[0] {
		return 0, 1
	}
	return 1, 0
}

func opticalDensity(pix []float64) ([]float64, error) {
	od := make([]float64, len(pix))
	for i, v := range pix {
		if v <= -1 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: value %g at index %d", ErrIntensity, v, i)
		}
		od[i] = -math.Log((v + 1) / 256)
	}
	return od, nil
}

// basis returns the top two right singular vectors of every sampling-th
// masked OD row. The first is oriented to a positive component sum.
func (d *Deconvolver) basis(od []float64, masked []int) ([]float64, []float64, error) {
	stride := d.config.Int(ParamSampling)
	rows := (len(masked) + stride - 1) / stride
	if rows < 2 {
		return nil, nil, fmt.Errorf("%w: %d sampled pixels", ErrDegenerateBasis, rows)
	}

	sub := mat.NewDense(rows, 3, nil)
	for r := 0; r < rows; r++ {
		i := masked[r*stride]
		sub.SetRow(r, od[3*i:3*i+3])
	}

	var svd mat.SVD
	if !svd.Factorize(sub, mat.SVDThin) {
		return nil, nil, fmt.Errorf("%w: SVD did not converge", ErrDegenerateBasis)
	}
	values := svd.Values(nil)
	if len(values) < 2 || values[0] == 0 || values[1] <= rankTolerance*values[0] {
		return nil, nil, fmt.Errorf("%w: singular values %v", ErrDegenerateBasis, values)
	}

	var v mat.Dense
	svd.VTo(&v)
	vh0 := mat.Col(nil, 0, &v)
	vh1 := mat.Col(nil, 1, &v)
	if floats.Sum(vh0) < 0 {
		floats.Scale(-1, vh0)
	}
	return vh0, vh1, nil
}

func direction(vh0, vh1 []float64, angle float64) [3]float64 {
	c, s := math.Cos(angle), math.Sin(angle)
	return [3]float64{
		c*vh0[0] + s*vh1[0],
		c*vh0[1] + s*vh1[1],
		c*vh0[2] + s*vh1[2],
	}
}

// concentrations solves [v1 v2] X = OD^T in the least squares sense for every
// pixel. Row k of the result holds the concentration of stain k.
func concentrations(v1, v2 [3]float64, od []float64, n int) (*mat.Dense, error) {
	basis := mat.NewDense(3, 2, []float64{
		v1[0], v2[0],
		v1[1], v2[1],
		v1[2], v2[2],
	})
	rhs := mat.NewDense(n, 3, od).T()

	var x mat.Dense
	if err := x.Solve(basis, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateBasis, err)
	}
	return &x, nil
}

func reconstruct(width, height int, vec [3]float64, conc []float64) imaging.Image {
	out := imaging.New(width, height, 3)
	for i, c := range conc {
		for ch := 0; ch < 3; ch++ {
			out.Pix[3*i+ch] = math.Exp(-vec[ch] * c)
		}
	}
	return out
}
