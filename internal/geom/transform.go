package geom

import "github.com/go-gl/mathgl/mgl64"

// Transform is a rigid placement: rotate by Orientation, then translate by Position.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Identity is the transform that leaves points in place.
func Identity() Transform {
	return Transform{Orientation: mgl64.QuatIdent()}
}

// NewTransform builds a transform from a position and an orientation.
func NewTransform(p mgl64.Vec3, q mgl64.Quat) Transform {
	return Transform{Position: p, Orientation: q.Normalize()}
}

// Translation builds an unrotated transform at p.
func Translation(p mgl64.Vec3) Transform {
	return Transform{Position: p, Orientation: mgl64.QuatIdent()}
}

// Apply maps a local point to the parent frame.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Rotate(p).Add(t.Position)
}

// ApplyDir rotates a local direction into the parent frame.
func (t Transform) ApplyDir(d mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Rotate(d)
}

// InverseApply maps a parent-frame point to the local frame.
func (t Transform) InverseApply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Conjugate().Rotate(p.Sub(t.Position))
}

// InverseApplyDir rotates a parent-frame direction into the local frame.
func (t Transform) InverseApplyDir(d mgl64.Vec3) mgl64.Vec3 {
	return t.Orientation.Conjugate().Rotate(d)
}

// Mul composes t with o so that t.Mul(o).Apply(p) == t.Apply(o.Apply(p)).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Position:    t.Apply(o.Position),
		Orientation: t.Orientation.Mul(o.Orientation).Normalize(),
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() Transform {
	inv := t.Orientation.Conjugate()
	return Transform{
		Position:    inv.Rotate(t.Position.Mul(-1)),
		Orientation: inv,
	}
}

// Rotation returns the orientation as a 3x3 matrix.
func (t Transform) Rotation() mgl64.Mat3 {
	return t.Orientation.Mat4().Mat3()
}

// ApproxEqual compares positions and orientations (q and -q are equal).
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	if !t.Position.ApproxEqualThreshold(o.Position, eps) {
		return false
	}
	d := t.Orientation.Dot(o.Orientation)
	if d < 0 {
		d = -d
	}
	return 1-d <= eps
}
