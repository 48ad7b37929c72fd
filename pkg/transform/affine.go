package transform

import (
	"math"

	"golang.org/x/image/math/f64"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Affine is a 2D affine transformation:
//
//	| a  b  c |
//	| d  e  f |
//	| 0  0  1 |
type Affine struct {
	a, b, c float64
	d, e, f float64
}

// IdentityAffine returns the transformation that changes nothing
func IdentityAffine() Affine {
	return Affine{a: 1, e: 1}
}

// Translate shifts points by (tx, ty)
func Translate(tx, ty float64) Affine {
	return Affine{a: 1, c: tx, e: 1, f: ty}
}

// Scale scales about the origin
func Scale(sx, sy float64) Affine {
	return Affine{a: sx, e: sy}
}

// Multiply returns m * o: o is applied first, then m.
func (m Affine) Multiply(o Affine) Affine {
	return Affine{
		a: m.a*o.a + m.b*o.d,
		b: m.a*o.b + m.b*o.e,
		c: m.a*o.c + m.b*o.f + m.c,
		d: m.d*o.a + m.e*o.d,
		e: m.d*o.b + m.e*o.e,
		f: m.d*o.c + m.e*o.f + m.f,
	}
}

// Apply maps p through m
func (m Affine) Apply(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: m.a*p.X + m.b*p.Y + m.c,
		Y: m.d*p.X + m.e*p.Y + m.f,
	}
}

// Invert returns the inverse transform. ok is false for singular matrices.
func (m Affine) Invert() (Affine, bool) {
	det := m.a*m.e - m.b*m.d
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}
	inv := 1 / det
	return Affine{
		a: m.e * inv,
		b: -m.b * inv,
		c: (m.b*m.f - m.e*m.c) * inv,
		d: -m.d * inv,
		e: m.a * inv,
		f: (m.d*m.c - m.a*m.f) * inv,
	}, true
}

// Aff3 converts m into the matrix form x/image/draw expects
func (m Affine) Aff3() f64.Aff3 {
	return f64.Aff3{m.a, m.b, m.c, m.d, m.e, m.f}
}

// integerTranslation reports whether m only moves pixels by whole amounts
func (m Affine) integerTranslation() (int, int, bool) {
	const tol = 1e-9
	if math.Abs(m.a-1) > tol || math.Abs(m.e-1) > tol || math.Abs(m.b) > tol || math.Abs(m.d) > tol {
		return 0, 0, false
	}
	tx, ty := math.Round(m.c), math.Round(m.f)
	if math.Abs(m.c-tx) > tol || math.Abs(m.f-ty) > tol {
		return 0, 0, false
	}
	return int(tx), int(ty), true
}
