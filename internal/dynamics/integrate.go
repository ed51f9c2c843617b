package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// IntegrateVelocity applies gravity, accumulated forces and damping to a
// dynamic body:
//
//	v += dt·(g·gravityScale + F/m)
//	ω += dt·I⁻¹τ
//	v *= 1/(1 + dt·c)
func IntegrateVelocity(s *State, gravity mgl64.Vec3, dt float64) {
	if s.Kind != Dynamic {
		return
	}
	accel := gravity.Mul(s.GravityScale).Add(s.Force.Mul(s.InvMass))
	s.LinearVelocity = s.LinearVelocity.Add(accel.Mul(dt))
	s.AngularVelocity = s.AngularVelocity.Add(s.InvInertiaWorld.Mul3x1(s.Torque).Mul(dt))

	if s.LinearDamping > 0 {
		s.LinearVelocity = s.LinearVelocity.Mul(1 / (1 + dt*s.LinearDamping))
	}
	if s.AngularDamping > 0 {
		s.AngularVelocity = s.AngularVelocity.Mul(1 / (1 + dt*s.AngularDamping))
	}
}

// IntegratePosition advances position and orientation by the real plus the
// split velocities, then clears the split velocities:
//
//	x += dt·(v + v_split)
//	q = exp(dt·(ω + ω_split)) ⊗ q
//
// Static bodies never move.
func IntegratePosition(s *State, dt float64) {
	if s.Kind == Static {
		return
	}
	v := s.LinearVelocity.Add(s.SplitLinear)
	w := s.AngularVelocity.Add(s.SplitAngular)
	s.Position = s.Position.Add(v.Mul(dt))
	s.Orientation = ExpRotation(w, dt).Mul(s.Orientation).Normalize()
	s.SplitLinear = mgl64.Vec3{}
	s.SplitAngular = mgl64.Vec3{}
	s.UpdateInertia()
}

// ExpRotation is the rotation by angular velocity w held for dt.
func ExpRotation(w mgl64.Vec3, dt float64) mgl64.Quat {
	speed := w.Len()
	angle := speed * dt
	if angle < 1e-12 {
		// First order; exact enough below float precision of the angle.
		return mgl64.Quat{W: 1, V: w.Mul(0.5 * dt)}.Normalize()
	}
	half := 0.5 * angle
	return mgl64.Quat{W: math.Cos(half), V: w.Mul(math.Sin(half) / speed)}
}
