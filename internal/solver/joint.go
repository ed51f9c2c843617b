package solver

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Joint is a constraint between two bodies. The set of joints is closed:
// BallSocket, Hinge, Slider and Fixed.
type Joint interface {
	Bodies() (a, b *dynamics.State)

	prepare(s *step)
	warmStart()
	solveVelocity(s *step) float64
	solvePosition(s *step)
}

func checkBodies(a, b *dynamics.State) error {
	if a == nil || b == nil || a == b {
		return fmt.Errorf("joint needs two distinct bodies: %w", dynamo.ErrInvalidJoint)
	}
	if !a.IsDynamic() && !b.IsDynamic() {
		return fmt.Errorf("joint needs a dynamic body: %w", dynamo.ErrInvalidJoint)
	}
	return nil
}

func checkAxis(axis mgl64.Vec3) (mgl64.Vec3, error) {
	l := axis.Len()
	if l < 1e-9 || !geom.IsFinite(axis) {
		return mgl64.Vec3{}, fmt.Errorf("joint axis %v: %w", axis, dynamo.ErrInvalidJoint)
	}
	return axis.Mul(1 / l), nil
}

func checkLimits(enabled bool, lower, upper float64) error {
	if enabled && lower > upper {
		return fmt.Errorf("joint limits [%g, %g]: %w", lower, upper, dynamo.ErrInvalidJoint)
	}
	return nil
}

// pointLock keeps one anchor of A and one anchor of B together. Anchors are
// body-space points relative to the body origin.
type pointLock struct {
	localA, localB mgl64.Vec3

	rA, rB  mgl64.Vec3
	mass    mgl64.Mat3
	impulse mgl64.Vec3
}

func newPointLock(a, b *dynamics.State, anchor mgl64.Vec3) pointLock {
	return pointLock{localA: a.LocalPoint(anchor), localB: b.LocalPoint(anchor)}
}

func (p *pointLock) prepare(a, b *dynamics.State, s *step) {
	p.rA = a.Arm(p.localA)
	p.rB = b.Arm(p.localB)

	m := a.InvMass + b.InvMass
	sa, sb := geom.Skew(p.rA), geom.Skew(p.rB)
	k := mgl64.Diag3(mgl64.Vec3{m, m, m}).
		Sub(sa.Mul3(a.InvInertiaWorld).Mul3(sa)).
		Sub(sb.Mul3(b.InvInertiaWorld).Mul3(sb))
	p.mass = invert3(k)
	if !s.WarmStarting {
		p.impulse = mgl64.Vec3{}
	}
}

func (p *pointLock) apply(a, b *dynamics.State, imp mgl64.Vec3) {
	applyImpulse(a, imp.Mul(-1), p.rA.Cross(imp).Mul(-1))
	applyImpulse(b, imp, p.rB.Cross(imp))
}

func (p *pointLock) warmStart(a, b *dynamics.State) {
	p.apply(a, b, p.impulse)
}

func (p *pointLock) solveVelocity(a, b *dynamics.State) float64 {
	cdot := b.VelocityAt(b.Position.Add(p.rB)).Sub(a.VelocityAt(a.Position.Add(p.rA)))
	lambda := p.mass.Mul3x1(cdot.Mul(-1))
	p.impulse = p.impulse.Add(lambda)
	p.apply(a, b, lambda)
	return lambda.Len()
}

// drift is the world separation of the anchors.
func (p *pointLock) drift(a, b *dynamics.State) mgl64.Vec3 {
	return b.Position.Add(p.rB).Sub(a.Position.Add(p.rA))
}

func (p *pointLock) solvePosition(a, b *dynamics.State, s *step) {
	c := p.drift(a, b)
	vA := a.SplitLinear.Add(a.SplitAngular.Cross(p.rA))
	vB := b.SplitLinear.Add(b.SplitAngular.Cross(p.rB))
	bias := mgl64.Vec3{s.correction(c[0]), s.correction(c[1]), s.correction(c[2])}
	lambda := p.mass.Mul3x1(vB.Sub(vA).Add(bias).Mul(-1))
	applySplit(a, lambda.Mul(-1), p.rA.Cross(lambda).Mul(-1))
	applySplit(b, lambda, p.rB.Cross(lambda))
}

// rotationLock keeps the relative orientation of B to A at its value at
// creation.
type rotationLock struct {
	rel mgl64.Quat

	mass    mgl64.Mat3
	impulse mgl64.Vec3
}

func newRotationLock(a, b *dynamics.State) rotationLock {
	return rotationLock{rel: a.Orientation.Conjugate().Mul(b.Orientation).Normalize()}
}

func (r *rotationLock) prepare(a, b *dynamics.State, s *step) {
	r.mass = invert3(a.InvInertiaWorld.Add(b.InvInertiaWorld))
	if !s.WarmStarting {
		r.impulse = mgl64.Vec3{}
	}
}

func (r *rotationLock) warmStart(a, b *dynamics.State) {
	applyImpulse(a, mgl64.Vec3{}, r.impulse.Mul(-1))
	applyImpulse(b, mgl64.Vec3{}, r.impulse)
}

func (r *rotationLock) solveVelocity(a, b *dynamics.State) float64 {
	cdot := b.AngularVelocity.Sub(a.AngularVelocity)
	lambda := r.mass.Mul3x1(cdot.Mul(-1))
	r.impulse = r.impulse.Add(lambda)
	applyImpulse(a, mgl64.Vec3{}, lambda.Mul(-1))
	applyImpulse(b, mgl64.Vec3{}, lambda)
	return lambda.Len()
}

// drift is the small rotation taking the target orientation of B to its
// current one, as a rotation vector.
func (r *rotationLock) drift(a, b *dynamics.State) mgl64.Vec3 {
	target := a.Orientation.Mul(r.rel)
	q := b.Orientation.Mul(target.Conjugate())
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return q.V.Mul(2)
}

func (r *rotationLock) solvePosition(a, b *dynamics.State, s *step) {
	c := r.drift(a, b)
	bias := mgl64.Vec3{s.correction(c[0]), s.correction(c[1]), s.correction(c[2])}
	cdot := b.SplitAngular.Sub(a.SplitAngular)
	lambda := r.mass.Mul3x1(cdot.Add(bias).Mul(-1))
	applySplit(a, mgl64.Vec3{}, lambda.Mul(-1))
	applySplit(b, mgl64.Vec3{}, lambda)
}

// invert3 inverts k, or returns zero when k is singular.
func invert3(k mgl64.Mat3) mgl64.Mat3 {
	if d := k.Det(); d > -1e-18 && d < 1e-18 {
		return mgl64.Mat3{}
	}
	return k.Inv()
}

// BallSocket removes the three relative translations at an anchor.
type BallSocket struct {
	a, b  *dynamics.State
	point pointLock
}

// NewBallSocket joins a and b at a world anchor.
func NewBallSocket(a, b *dynamics.State, anchor mgl64.Vec3) (*BallSocket, error) {
	if err := checkBodies(a, b); err != nil {
		return nil, err
	}
	return &BallSocket{a: a, b: b, point: newPointLock(a, b, anchor)}, nil
}

func (j *BallSocket) Bodies() (a, b *dynamics.State) { return j.a, j.b }

// Anchors returns the world anchor positions on A and B.
func (j *BallSocket) Anchors() (mgl64.Vec3, mgl64.Vec3) {
	return j.a.Position.Add(j.a.Arm(j.point.localA)), j.b.Position.Add(j.b.Arm(j.point.localB))
}

func (j *BallSocket) prepare(s *step) { j.point.prepare(j.a, j.b, s) }

func (j *BallSocket) warmStart() { j.point.warmStart(j.a, j.b) }

func (j *BallSocket) solveVelocity(_ *step) float64 { return j.point.solveVelocity(j.a, j.b) }

func (j *BallSocket) solvePosition(s *step) { j.point.solvePosition(j.a, j.b, s) }

// Fixed removes all six relative degrees of freedom.
type Fixed struct {
	a, b     *dynamics.State
	point    pointLock
	rotation rotationLock
}

// NewFixed welds a and b at a world anchor in their current orientations.
func NewFixed(a, b *dynamics.State, anchor mgl64.Vec3) (*Fixed, error) {
	if err := checkBodies(a, b); err != nil {
		return nil, err
	}
	return &Fixed{
		a:        a,
		b:        b,
		point:    newPointLock(a, b, anchor),
		rotation: newRotationLock(a, b),
	}, nil
}

func (j *Fixed) Bodies() (a, b *dynamics.State) { return j.a, j.b }

func (j *Fixed) prepare(s *step) {
	j.point.prepare(j.a, j.b, s)
	j.rotation.prepare(j.a, j.b, s)
}

func (j *Fixed) warmStart() {
	j.point.warmStart(j.a, j.b)
	j.rotation.warmStart(j.a, j.b)
}

func (j *Fixed) solveVelocity(_ *step) float64 {
	return j.rotation.solveVelocity(j.a, j.b) + j.point.solveVelocity(j.a, j.b)
}

func (j *Fixed) solvePosition(s *step) {
	j.rotation.solvePosition(j.a, j.b, s)
	j.point.solvePosition(j.a, j.b, s)
}
