package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
)

// HingeOptions configure the free rotation of a hinge. Angles in radians.
type HingeOptions struct {
	EnableLimit    bool
	Lower, Upper   float64
	EnableMotor    bool
	MotorSpeed     float64
	MaxMotorTorque float64
}

// Hinge leaves one relative rotation about a shared axis.
type Hinge struct {
	a, b  *dynamics.State
	opts  HingeOptions
	point pointLock

	// body-space axis and zero-angle references
	axisA, axisB mgl64.Vec3
	refA, refB   mgl64.Vec3

	axis  mgl64.Vec3
	swing mgl64.Vec3
	angle float64
	perp  [2]row
	lower row
	upper row
	motor row
}

// NewHinge joins a and b at a world anchor, free to turn about a world
// axis. The current relative angle is zero.
func NewHinge(a, b *dynamics.State, anchor, axis mgl64.Vec3, opts HingeOptions) (*Hinge, error) {
	if err := checkBodies(a, b); err != nil {
		return nil, err
	}
	axis, err := checkAxis(axis)
	if err != nil {
		return nil, err
	}
	if err := checkLimits(opts.EnableLimit, opts.Lower, opts.Upper); err != nil {
		return nil, err
	}
	ref, _ := geom.OrthonormalBasis(axis)
	qa, qb := a.Orientation.Conjugate(), b.Orientation.Conjugate()
	return &Hinge{
		a:     a,
		b:     b,
		opts:  opts,
		point: newPointLock(a, b, anchor),
		axisA: qa.Rotate(axis),
		axisB: qb.Rotate(axis),
		refA:  qa.Rotate(ref),
		refB:  qb.Rotate(ref),
	}, nil
}

func (j *Hinge) Bodies() (a, b *dynamics.State) { return j.a, j.b }

func (j *Hinge) Options() HingeOptions { return j.opts }

// SetMotor changes the motor target speed and torque cap.
func (j *Hinge) SetMotor(enable bool, speed, maxTorque float64) {
	j.opts.EnableMotor = enable
	j.opts.MotorSpeed = speed
	j.opts.MaxMotorTorque = maxTorque
}

// Axis returns the hinge axis in world space, as carried by A.
func (j *Hinge) Axis() mgl64.Vec3 { return j.a.Orientation.Rotate(j.axisA) }

// Angle is the rotation of B relative to A about the axis, in (-π, π].
func (j *Hinge) Angle() float64 {
	axis := j.Axis()
	ra := j.a.Orientation.Rotate(j.refA)
	rb := j.b.Orientation.Rotate(j.refB)
	return math.Atan2(axis.Dot(ra.Cross(rb)), ra.Dot(rb))
}

// Misalignment is the angle between the axis as carried by A and by B.
func (j *Hinge) Misalignment() float64 {
	ab := j.b.Orientation.Rotate(j.axisB)
	return math.Acos(mgl64.Clamp(j.Axis().Dot(ab), -1, 1))
}

func (j *Hinge) prepare(s *step) {
	a, b := j.a, j.b
	j.point.prepare(a, b, s)

	j.axis = j.Axis()
	j.swing = j.axis.Cross(b.Orientation.Rotate(j.axisB))
	j.angle = j.Angle()

	b1, b2 := geom.OrthonormalBasis(j.axis)
	for i, d := range [2]mgl64.Vec3{b1, b2} {
		j.perp[i].angA = d.Mul(-1)
		j.perp[i].angB = d
		j.perp[i].setup(a, b)
	}
	for _, r := range []*row{&j.lower, &j.upper, &j.motor} {
		r.angA = j.axis.Mul(-1)
		r.angB = j.axis
		r.setup(a, b)
	}
	j.upper.negate()

	if !s.WarmStarting {
		j.perp[0].impulse, j.perp[1].impulse = 0, 0
		j.lower.impulse, j.upper.impulse, j.motor.impulse = 0, 0, 0
	}
	if !j.opts.EnableLimit {
		j.lower.impulse, j.upper.impulse = 0, 0
	}
	if !j.opts.EnableMotor {
		j.motor.impulse = 0
	}
}

func (j *Hinge) warmStart() {
	a, b := j.a, j.b
	j.point.warmStart(a, b)
	for _, r := range []*row{&j.perp[0], &j.perp[1], &j.lower, &j.upper, &j.motor} {
		r.apply(a, b, r.impulse)
	}
}

func (j *Hinge) solveVelocity(s *step) float64 {
	a, b := j.a, j.b
	var residual float64
	if j.opts.EnableMotor {
		residual += j.motor.solveBounded(a, b, j.opts.MotorSpeed, j.opts.MaxMotorTorque*s.dt)
	}
	if j.opts.EnableLimit {
		residual += j.lower.solveInequality(a, b, limitTarget(j.angle-j.opts.Lower, s))
		residual += j.upper.solveInequality(a, b, limitTarget(j.opts.Upper-j.angle, s))
	}
	residual += j.perp[0].solveEquality(a, b, 0)
	residual += j.perp[1].solveEquality(a, b, 0)
	residual += j.point.solveVelocity(a, b)
	return residual
}

func (j *Hinge) solvePosition(s *step) {
	a, b := j.a, j.b
	if j.opts.EnableLimit {
		j.lower.splitInequality(a, b, s, j.angle-j.opts.Lower)
		j.upper.splitInequality(a, b, s, j.opts.Upper-j.angle)
	}
	j.perp[0].splitEquality(a, b, s, j.perp[0].angB.Dot(j.swing))
	j.perp[1].splitEquality(a, b, s, j.perp[1].angB.Dot(j.swing))
	j.point.solvePosition(a, b, s)
}

// limitTarget is the lowest allowed approach velocity for a limit that is
// c away: a positive gap may close within the step.
func limitTarget(c float64, s *step) float64 {
	if c > 0 {
		return -c * s.invDt
	}
	return 0
}
