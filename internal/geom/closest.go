package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the general-purpose geometric tolerance.
const Epsilon = 1e-9

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClosestPointOnSegment returns the point of segment ab nearest to p.
func ClosestPointOnSegment(a, b, p mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den < Epsilon {
		return a
	}
	t := Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t))
}

// ClosestPointsSegments returns the closest points c1 on p1q1 and c2 on p2q2
// together with their segment parameters.
func ClosestPointsSegments(p1, q1, p2, q2 mgl64.Vec3) (c1, c2 mgl64.Vec3, s, t float64) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	switch {
	case a <= Epsilon && e <= Epsilon:
		return p1, p2, 0, 0
	case a <= Epsilon:
		s = 0
		t = Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= Epsilon {
			t = 0
			s = Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > Epsilon {
				s = Clamp((b*f-c*e)/denom, 0, 1)
			} else {
				s = 0
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = Clamp((b-c)/a, 0, 1)
			}
		}
	}

	c1 = p1.Add(d1.Mul(s))
	c2 = p2.Add(d2.Mul(t))
	return c1, c2, s, t
}

// OrthonormalBasis returns two unit vectors that complete n to a right-handed
// basis. The result depends only on n, so tangents are stable across frames.
func OrthonormalBasis(n mgl64.Vec3) (t1, t2 mgl64.Vec3) {
	sign := math.Copysign(1, n[2])
	a := -1 / (sign + n[2])
	b := n[0] * n[1] * a
	t1 = mgl64.Vec3{1 + sign*n[0]*n[0]*a, sign * b, -sign * n[0]}
	t2 = mgl64.Vec3{b, sign + n[1]*n[1]*a, -n[1]}
	return t1, t2
}

// AnyPerpendicular returns a unit vector orthogonal to v.
func AnyPerpendicular(v mgl64.Vec3) mgl64.Vec3 {
	t1, _ := OrthonormalBasis(SafeNormalize(v, mgl64.Vec3{0, 1, 0}))
	return t1
}

// SafeNormalize normalizes v or returns fallback when v is too short.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < Epsilon {
		return fallback
	}
	return v.Mul(1 / l)
}

// Skew returns the cross-product matrix [v]x so that Skew(v).Mul3x1(w) == v.Cross(w).
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(
		mgl64.Vec3{0, v[2], -v[1]},
		mgl64.Vec3{-v[2], 0, v[0]},
		mgl64.Vec3{v[1], -v[0], 0},
	)
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// TriangleNormal returns the unnormalized counter-clockwise normal of abc.
func TriangleNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	return b.Sub(a).Cross(c.Sub(a))
}
