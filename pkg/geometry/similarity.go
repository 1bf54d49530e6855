package geometry

import (
	"fmt"
	"math"
)

// Similarity is a uniform scale + rotation + translation mapping moving-image
// coordinates onto fixed-image coordinates:
//
//	p' = Scale * R(Angle) * p + (TX, TY)
//
// Angle is in radians. A Similarity is a value; every method returns a new one.
type Similarity struct {
	Scale float64 `json:"scale"`
	Angle float64 `json:"angle"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
}

// IdentitySimilarity returns the transform that maps every point onto itself.
func IdentitySimilarity() Similarity {
	return Similarity{Scale: 1}
}

func (s Similarity) String() string {
	return fmt.Sprintf("Similarity[scale=%.6f angle=%.4fdeg t=(%.2f,%.2f)]",
		s.Scale, s.Angle*180/math.Pi, s.TX, s.TY)
}

// Affine returns the equivalent 2x3 affine matrix.
func (s Similarity) Affine() AffineTransform {
	cos := s.Scale * math.Cos(s.Angle)
	sin := s.Scale * math.Sin(s.Angle)
	return AffineTransform{
		A: cos, B: -sin, TX: s.TX,
		C: sin, D: cos, TY: s.TY,
	}
}

// Apply maps a moving-image point into fixed-image coordinates.
func (s Similarity) Apply(p Point2D) Point2D {
	return s.Affine().Apply(p)
}

// Inverse returns the transform mapping fixed-image points back into the
// moving image. It reports false for a zero scale.
func (s Similarity) Inverse() (Similarity, bool) {
	if s.Scale == 0 || math.IsNaN(s.Scale) {
		return Similarity{}, false
	}
	inv := Similarity{Scale: 1 / s.Scale, Angle: -s.Angle}
	t := inv.Affine().Apply(Point2D{X: -s.TX, Y: -s.TY})
	inv.TX, inv.TY = t.X, t.Y
	return inv, true
}

// AtLevel expresses the transform in the pixel grid of an image shrunk by an
// integer factor, where level pixel i covers full-resolution pixels
// [f*i, f*i+f) and its center sits at f*i + (f-1)/2.
func (s Similarity) AtLevel(factor int) Similarity {
	if factor <= 1 {
		return s
	}
	f := float64(factor)
	c := (f - 1) / 2
	rc := s.rotateScale(Point2D{X: c, Y: c})
	return Similarity{
		Scale: s.Scale,
		Angle: s.Angle,
		TX:    (rc.X + s.TX - c) / f,
		TY:    (rc.Y + s.TY - c) / f,
	}
}

// FromLevel is the inverse of AtLevel: it lifts a transform estimated on a
// shrunk grid back to full-resolution coordinates.
func (s Similarity) FromLevel(factor int) Similarity {
	if factor <= 1 {
		return s
	}
	f := float64(factor)
	c := (f - 1) / 2
	rc := s.rotateScale(Point2D{X: c, Y: c})
	return Similarity{
		Scale: s.Scale,
		Angle: s.Angle,
		TX:    f*s.TX + c - rc.X,
		TY:    f*s.TY + c - rc.Y,
	}
}

func (s Similarity) rotateScale(p Point2D) Point2D {
	a := s.Affine()
	a.TX, a.TY = 0, 0
	return a.Apply(p)
}
