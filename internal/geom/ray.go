package geom

import "github.com/go-gl/mathgl/mgl64"

// Ray is the segment From→To; hits are reported as a fraction of it.
type Ray struct {
	From        mgl64.Vec3
	To          mgl64.Vec3
	MaxFraction float64
}

// NewRay returns a ray over the whole segment.
func NewRay(from, to mgl64.Vec3) Ray {
	return Ray{From: from, To: to, MaxFraction: 1}
}

// At returns the point at fraction f.
func (r Ray) At(f float64) mgl64.Vec3 {
	return r.From.Add(r.To.Sub(r.From).Mul(f))
}

// Transformed maps the ray into the frame where t is the identity.
func (r Ray) Transformed(t Transform) Ray {
	return Ray{From: t.InverseApply(r.From), To: t.InverseApply(r.To), MaxFraction: r.MaxFraction}
}

// RayHit is a shape-local or world ray intersection.
type RayHit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Fraction float64
	// Feature is the triangle index for concave shapes, -1 otherwise.
	Feature int
}
