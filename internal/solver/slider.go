package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
)

// SliderOptions configure the free translation of a slider, in meters.
type SliderOptions struct {
	EnableLimit   bool
	Lower, Upper  float64
	EnableMotor   bool
	MotorSpeed    float64
	MaxMotorForce float64
}

// Slider leaves one relative translation along an axis fixed in A.
type Slider struct {
	a, b     *dynamics.State
	opts     SliderOptions
	rotation rotationLock

	localA, localB mgl64.Vec3
	axisA          mgl64.Vec3

	d           mgl64.Vec3
	translation float64
	perp        [2]row
	lower       row
	upper       row
	motor       row
}

// NewSlider joins a and b along a world axis through a world anchor. The
// current translation is zero.
func NewSlider(a, b *dynamics.State, anchor, axis mgl64.Vec3, opts SliderOptions) (*Slider, error) {
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
	return &Slider{
		a:        a,
		b:        b,
		opts:     opts,
		rotation: newRotationLock(a, b),
		localA:   a.LocalPoint(anchor),
		localB:   b.LocalPoint(anchor),
		axisA:    a.Orientation.Conjugate().Rotate(axis),
	}, nil
}

func (j *Slider) Bodies() (a, b *dynamics.State) { return j.a, j.b }

func (j *Slider) Options() SliderOptions { return j.opts }

// SetMotor changes the motor target speed and force cap.
func (j *Slider) SetMotor(enable bool, speed, maxForce float64) {
	j.opts.EnableMotor = enable
	j.opts.MotorSpeed = speed
	j.opts.MaxMotorForce = maxForce
}

// Axis returns the slide axis in world space.
func (j *Slider) Axis() mgl64.Vec3 { return j.a.Orientation.Rotate(j.axisA) }

func (j *Slider) offset() (rA, rB, d mgl64.Vec3) {
	rA = j.a.Arm(j.localA)
	rB = j.b.Arm(j.localB)
	d = j.b.Position.Add(rB).Sub(j.a.Position.Add(rA))
	return rA, rB, d
}

// Translation is the displacement of B's anchor from A's along the axis.
func (j *Slider) Translation() float64 {
	_, _, d := j.offset()
	return j.Axis().Dot(d)
}

func (j *Slider) prepare(s *step) {
	a, b := j.a, j.b
	j.rotation.prepare(a, b, s)

	rA, rB, d := j.offset()
	j.d = d
	axis := j.Axis()
	j.translation = axis.Dot(d)

	arm := d.Add(rA)
	set := func(r *row, v mgl64.Vec3) {
		r.linA = v.Mul(-1)
		r.angA = arm.Cross(v).Mul(-1)
		r.linB = v
		r.angB = rB.Cross(v)
		r.setup(a, b)
	}
	b1, b2 := geom.OrthonormalBasis(axis)
	set(&j.perp[0], b1)
	set(&j.perp[1], b2)
	set(&j.lower, axis)
	set(&j.upper, axis)
	set(&j.motor, axis)
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

func (j *Slider) warmStart() {
	a, b := j.a, j.b
	j.rotation.warmStart(a, b)
	for _, r := range []*row{&j.perp[0], &j.perp[1], &j.lower, &j.upper, &j.motor} {
		r.apply(a, b, r.impulse)
	}
}

func (j *Slider) solveVelocity(s *step) float64 {
	a, b := j.a, j.b
	var residual float64
	if j.opts.EnableMotor {
		residual += j.motor.solveBounded(a, b, j.opts.MotorSpeed, j.opts.MaxMotorForce*s.dt)
	}
	if j.opts.EnableLimit {
		residual += j.lower.solveInequality(a, b, limitTarget(j.translation-j.opts.Lower, s))
		residual += j.upper.solveInequality(a, b, limitTarget(j.opts.Upper-j.translation, s))
	}
	residual += j.rotation.solveVelocity(a, b)
	residual += j.perp[0].solveEquality(a, b, 0)
	residual += j.perp[1].solveEquality(a, b, 0)
	return residual
}

func (j *Slider) solvePosition(s *step) {
	a, b := j.a, j.b
	if j.opts.EnableLimit {
		j.lower.splitInequality(a, b, s, j.translation-j.opts.Lower)
		j.upper.splitInequality(a, b, s, j.opts.Upper-j.translation)
	}
	j.rotation.solvePosition(a, b, s)
	j.perp[0].splitEquality(a, b, s, j.perp[0].linB.Dot(j.d))
	j.perp[1].splitEquality(a, b, s, j.perp[1].linB.Dot(j.d))
}
