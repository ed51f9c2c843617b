package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// MassProperties accumulates the mass, center and inertia of a body from
// its parts. Inertia is about Center in body space.
type MassProperties struct {
	Mass    float64
	Center  mgl64.Vec3
	Inertia mgl64.Mat3

	// running first moment and inertia about the body origin
	moment       mgl64.Vec3
	originTensor mgl64.Mat3
}

// Add merges a part of mass m whose center is c and whose inertia about c,
// already rotated into body space, is inertia.
func (mp *MassProperties) Add(m float64, c mgl64.Vec3, inertia mgl64.Mat3) {
	if m <= 0 {
		return
	}
	mp.Mass += m
	mp.moment = mp.moment.Add(c.Mul(m))
	mp.originTensor = mp.originTensor.Add(inertia.Add(ParallelAxis(m, c)))

	mp.Center = mp.moment.Mul(1 / mp.Mass)
	mp.Inertia = mp.originTensor.Sub(ParallelAxis(mp.Mass, mp.Center))
}

// Inverse returns the inverse mass and inverse inertia. A massless body has
// zero inverses. Singular inertia is inverted per diagonal.
func (mp *MassProperties) Inverse() (float64, mgl64.Mat3) {
	if mp.Mass <= 0 {
		return 0, mgl64.Mat3{}
	}
	if det := mp.Inertia.Det(); det > 1e-18 {
		return 1 / mp.Mass, mp.Inertia.Inv()
	}
	var inv mgl64.Mat3
	for i := 0; i < 3; i++ {
		if d := mp.Inertia.At(i, i); d > 0 {
			inv.Set(i, i, 1/d)
		}
	}
	return 1 / mp.Mass, inv
}

// ParallelAxis is the inertia of a point mass m at offset d:
// m·(|d|²·E − d·dᵀ).
func ParallelAxis(m float64, d mgl64.Vec3) mgl64.Mat3 {
	dd := d.Dot(d)
	outer := d.OuterProd3(d)
	return mgl64.Diag3(mgl64.Vec3{dd, dd, dd}).Sub(outer).Mul(m)
}

// RotateInertia expresses a tensor given in a rotated frame in the parent
// frame: R·I·Rᵀ.
func RotateInertia(q mgl64.Quat, inertia mgl64.Mat3) mgl64.Mat3 {
	r := q.Normalize().Mat4().Mat3()
	return r.Mul3(inertia).Mul3(r.Transpose())
}
