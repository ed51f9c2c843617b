// Package dynamics holds the per-body motion state and the semi-implicit
// Euler integrator that advances it.
package dynamics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

type Kind uint8

const (
	Static Kind = iota
	Kinematic
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "static":
		return Static, nil
	case "kinematic":
		return Kinematic, nil
	case "dynamic", "":
		return Dynamic, nil
	}
	return 0, fmt.Errorf("unknown body kind %q", s)
}

// State is the part of a body read and written by the solver and the
// integrator. Position is the world center of mass; LocalCenter is the
// center of mass in body space, relative to the body origin.
type State struct {
	Kind            Kind
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LocalCenter     mgl64.Vec3
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Force           mgl64.Vec3
	Torque          mgl64.Vec3

	InvMass         float64
	InvInertiaLocal mgl64.Mat3
	InvInertiaWorld mgl64.Mat3

	LinearDamping  float64
	AngularDamping float64
	GravityScale   float64

	// Pseudo velocities from position correction. They move the body but
	// never feed back into the real velocities.
	SplitLinear  mgl64.Vec3
	SplitAngular mgl64.Vec3
}

// IsDynamic reports whether the body responds to forces and impulses.
func (s *State) IsDynamic() bool { return s.Kind == Dynamic }

// ClearForces zeroes the accumulated force and torque.
func (s *State) ClearForces() {
	s.Force = mgl64.Vec3{}
	s.Torque = mgl64.Vec3{}
}

// UpdateInertia refreshes the world inverse inertia from the orientation.
func (s *State) UpdateInertia() {
	s.InvInertiaWorld = WorldInverseInertia(s.Orientation, s.InvInertiaLocal)
}

// KineticEnergy is 0.5·m·v² + 0.5·ω·Iω. Non-dynamic bodies have none.
func (s *State) KineticEnergy() float64 {
	if s.Kind != Dynamic || s.InvMass == 0 {
		return 0
	}
	linear := 0.5 * s.LinearVelocity.LenSqr() / s.InvMass
	inertia := s.InvInertiaWorld.Inv()
	angular := 0.5 * s.AngularVelocity.Dot(inertia.Mul3x1(s.AngularVelocity))
	return linear + angular
}

// VelocityAt is the velocity of the world point p moving with the body.
func (s *State) VelocityAt(p mgl64.Vec3) mgl64.Vec3 {
	return s.LinearVelocity.Add(s.AngularVelocity.Cross(p.Sub(s.Position)))
}

// ApplyImpulse changes the velocities by an impulse at world point p.
func (s *State) ApplyImpulse(impulse, p mgl64.Vec3) {
	if s.Kind != Dynamic {
		return
	}
	s.LinearVelocity = s.LinearVelocity.Add(impulse.Mul(s.InvMass))
	r := p.Sub(s.Position)
	s.AngularVelocity = s.AngularVelocity.Add(s.InvInertiaWorld.Mul3x1(r.Cross(impulse)))
}

// Origin is the world position of the body origin.
func (s *State) Origin() mgl64.Vec3 {
	return s.Position.Sub(s.Orientation.Rotate(s.LocalCenter))
}

// LocalPoint converts a world point to body space, relative to the origin.
func (s *State) LocalPoint(p mgl64.Vec3) mgl64.Vec3 {
	return s.Orientation.Conjugate().Rotate(p.Sub(s.Position)).Add(s.LocalCenter)
}

// Arm is the world offset from the center of mass to a body-space point.
func (s *State) Arm(local mgl64.Vec3) mgl64.Vec3 {
	return s.Orientation.Rotate(local.Sub(s.LocalCenter))
}

// WorldInverseInertia rotates a body-space inverse inertia into world space:
// R · I⁻¹ · Rᵀ.
func WorldInverseInertia(q mgl64.Quat, invLocal mgl64.Mat3) mgl64.Mat3 {
	r := q.Normalize().Mat4().Mat3()
	return r.Mul3(invLocal).Mul3(r.Transpose())
}
