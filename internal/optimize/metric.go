package optimize

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"histokit/internal/imaging"
	"histokit/internal/registration"
	"histokit/pkg/geometry"
)

// histogramPadding is the number of empty bins kept at each end of the
// moving histogram so the cubic Parzen window never falls off the table.
const histogramPadding = 2

type sample struct {
	x, y float64
	bin  int
}

// MutualInformation is a Mattes-style mutual information metric between a
// fixed and a moving image over a random subset of fixed pixels. Fixed values
// go into hard bins; moving values are spread over neighbouring bins with a
// cubic B-spline window, which keeps the metric smooth in the transform.
type MutualInformation struct {
	moving  imaging.Image
	samples []sample
	bins    int
	pad     int

	movingMin float64
	movingBin float64

	joint []float64
}

// NewMutualInformation draws round(rate * pixels) fixed samples with rng.
// Both images must be single-channel.
func NewMutualInformation(fixed, moving imaging.Image, bins int, rate float64, rng *rand.Rand) (*MutualInformation, error) {
	if fixed.Channels != 1 || moving.Channels != 1 {
		return nil, fmt.Errorf("%w: metric needs single-channel images", registration.ErrDimensionMismatch)
	}
	n := fixed.Width * fixed.Height
	count := int(math.Round(rate * float64(n)))
	if count < 1 {
		return nil, fmt.Errorf("%w: sampling rate %g selects no pixels of %d", registration.ErrSingularMetric, rate, n)
	}
	count = min(count, n)

	pad := histogramPadding
	if bins <= 2*histogramPadding {
		pad = 0
	}

	fixedMin, fixedMax := fixed.MinMax()
	movingMin, movingMax := moving.MinMax()
	if fixedMax == fixedMin || movingMax == movingMin {
		return nil, fmt.Errorf("%w: constant image", registration.ErrSingularMetric)
	}
	fixedBin := (fixedMax - fixedMin) / float64(bins-2*pad)

	m := &MutualInformation{
		moving:    moving,
		samples:   make([]sample, count),
		bins:      bins,
		pad:       pad,
		movingMin: movingMin,
		movingBin: (movingMax - movingMin) / float64(bins-2*pad),
		joint:     make([]float64, bins*bins),
	}

	perm := rng.Perm(n)
	for i := range m.samples {
		idx := perm[i]
		v := fixed.Pix[idx]
		bin := int((v-fixedMin)/fixedBin) + pad
		bin = max(pad, min(bins-pad-1, bin))
		m.samples[i] = sample{x: float64(idx % fixed.Width), y: float64(idx / fixed.Width), bin: bin}
	}
	return m, nil
}

// Samples returns the number of fixed pixels the metric uses.
func (m *MutualInformation) Samples() int {
	return len(m.samples)
}

// Value returns the negated mutual information for t, which maps moving
// coordinates onto fixed coordinates. Lower is better.
func (m *MutualInformation) Value(t geometry.Similarity) (float64, error) {
	inv, ok := t.Inverse()
	if !ok {
		return 0, fmt.Errorf("%w: transform %v is not invertible", registration.ErrSingularMetric, t)
	}
	a := inv.Affine()

	clear(m.joint)
	valid := 0
	for _, s := range m.samples {
		p := a.Apply(geometry.Point2D{X: s.x, Y: s.y})
		v, inside := m.moving.Bilinear(p.X, p.Y)
		if !inside {
			continue
		}
		valid++

		c := (v-m.movingMin)/m.movingBin + float64(m.pad)
		c = math.Max(float64(m.pad), math.Min(float64(m.bins-m.pad)-1, c))
		base := int(math.Floor(c))
		row := m.joint[s.bin*m.bins : (s.bin+1)*m.bins]
		for j := base - 1; j <= base+2; j++ {
			if j < 0 || j >= m.bins {
				continue
			}
			row[j] += cubicBSpline(float64(j) - c)
		}
	}

	if valid == 0 || valid < len(m.samples)/4 {
		return 0, fmt.Errorf("%w: only %d of %d samples map inside the moving image",
			registration.ErrSingularMetric, valid, len(m.samples))
	}

	var total float64
	for _, w := range m.joint {
		total += w
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: empty joint histogram", registration.ErrSingularMetric)
	}

	fixedPDF := make([]float64, m.bins)
	movingPDF := make([]float64, m.bins)
	for i := 0; i < m.bins; i++ {
		for j := 0; j < m.bins; j++ {
			p := m.joint[i*m.bins+j] / total
			m.joint[i*m.bins+j] = p
			fixedPDF[i] += p
			movingPDF[j] += p
		}
	}

	mi := stat.Entropy(fixedPDF) + stat.Entropy(movingPDF) - stat.Entropy(m.joint)
	if math.IsNaN(mi) {
		return 0, fmt.Errorf("%w: mutual information is NaN", registration.ErrSingularMetric)
	}
	return -mi, nil
}

// cubicBSpline is the centered cubic B-spline kernel; its integer shifts sum
// to one everywhere.
func cubicBSpline(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 1:
		return (4 - 6*x*x + 3*x*x*x) / 6
	case x < 2:
		d := 2 - x
		return d * d * d / 6
	default:
		return 0
	}
}
