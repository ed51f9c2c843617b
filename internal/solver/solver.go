// Package solver resolves contacts and joints with sequential impulses.
//
// Each island is solved in three passes: warm start from the impulses
// accumulated last step, velocity iterations (joints first, then contacts,
// each in input order) and position iterations that push penetrating or
// drifting bodies apart through split velocities. Split velocities move
// bodies during the next position integration but never touch the real
// velocities, so position correction adds no energy.
//
// Only dynamic bodies are written. Static and kinematic bodies may be shared
// between islands solved in parallel.
package solver

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
)

// Config tunes the solver. The zero value is not useful; start from
// DefaultConfig.
type Config struct {
	WarmStarting bool
	// Approach speed above which restitution applies, m/s.
	RestitutionThreshold float64
	// Fraction of position error removed per step.
	Baumgarte float64
	// Allowed penetration, m.
	LinearSlop float64
	// Cap on the split velocity of one constraint, m/s.
	MaxCorrectionVelocity float64
}

func DefaultConfig() Config {
	return Config{
		WarmStarting:          true,
		RestitutionThreshold:  1,
		Baumgarte:             0.2,
		LinearSlop:            0.005,
		MaxCorrectionVelocity: 4,
	}
}

// Stats reports one Solve call. Residuals[i] is the sum of |Δλ| applied in
// velocity iteration i.
type Stats struct {
	Residuals []float64
	Contacts  int
	Joints    int
}

// Island is the constraint set of one island.
type Island struct {
	Contacts []*Contact
	Joints   []Joint
}

type Solver struct {
	Config Config
}

func New(cfg Config) *Solver {
	return &Solver{Config: cfg}
}

// Solve runs the velocity and position passes over an island. Accumulated
// contact impulses are written back to the manifolds.
func (s *Solver) Solve(is *Island, dt float64, velocityIterations, positionIterations int) Stats {
	stats := Stats{
		Residuals: make([]float64, velocityIterations),
		Contacts:  len(is.Contacts),
		Joints:    len(is.Joints),
	}
	if dt <= 0 {
		return stats
	}
	step := &step{Config: &s.Config, dt: dt, invDt: 1 / dt}

	for _, j := range is.Joints {
		j.prepare(step)
	}
	for _, c := range is.Contacts {
		c.prepare(step)
	}
	if s.Config.WarmStarting {
		for _, j := range is.Joints {
			j.warmStart()
		}
		for _, c := range is.Contacts {
			c.warmStart()
		}
	}

	for it := range velocityIterations {
		var residual float64
		for _, j := range is.Joints {
			residual += j.solveVelocity(step)
		}
		for _, c := range is.Contacts {
			residual += c.solveVelocity()
		}
		stats.Residuals[it] = residual
	}
	for _, c := range is.Contacts {
		c.store()
	}

	for range positionIterations {
		for _, j := range is.Joints {
			j.solvePosition(step)
		}
		for _, c := range is.Contacts {
			c.solvePosition(step)
		}
	}
	return stats
}

type step struct {
	*Config
	dt    float64
	invDt float64
}

// correction turns a position error into a split velocity target.
func (s *step) correction(c float64) float64 {
	v := s.Baumgarte * s.invDt * c
	return mgl64.Clamp(v, -s.MaxCorrectionVelocity, s.MaxCorrectionVelocity)
}

func applyImpulse(s *dynamics.State, lin, ang mgl64.Vec3) {
	if s.Kind != dynamics.Dynamic {
		return
	}
	s.LinearVelocity = s.LinearVelocity.Add(lin.Mul(s.InvMass))
	s.AngularVelocity = s.AngularVelocity.Add(s.InvInertiaWorld.Mul3x1(ang))
}

func applySplit(s *dynamics.State, lin, ang mgl64.Vec3) {
	if s.Kind != dynamics.Dynamic {
		return
	}
	s.SplitLinear = s.SplitLinear.Add(lin.Mul(s.InvMass))
	s.SplitAngular = s.SplitAngular.Add(s.InvInertiaWorld.Mul3x1(ang))
}

// row is one scalar constraint J·v with J = [linA angA linB angB].
type row struct {
	linA, angA, linB, angB mgl64.Vec3

	mass    float64
	impulse float64
	split   float64
}

func (r *row) setup(a, b *dynamics.State) {
	k := a.InvMass*r.linA.LenSqr() + r.angA.Dot(a.InvInertiaWorld.Mul3x1(r.angA)) +
		b.InvMass*r.linB.LenSqr() + r.angB.Dot(b.InvInertiaWorld.Mul3x1(r.angB))
	r.mass = 0
	if k > 1e-12 {
		r.mass = 1 / k
	}
	r.split = 0
}

func (r *row) velocity(a, b *dynamics.State) float64 {
	return r.linA.Dot(a.LinearVelocity) + r.angA.Dot(a.AngularVelocity) +
		r.linB.Dot(b.LinearVelocity) + r.angB.Dot(b.AngularVelocity)
}

func (r *row) splitVelocity(a, b *dynamics.State) float64 {
	return r.linA.Dot(a.SplitLinear) + r.angA.Dot(a.SplitAngular) +
		r.linB.Dot(b.SplitLinear) + r.angB.Dot(b.SplitAngular)
}

func (r *row) apply(a, b *dynamics.State, lambda float64) {
	applyImpulse(a, r.linA.Mul(lambda), r.angA.Mul(lambda))
	applyImpulse(b, r.linB.Mul(lambda), r.angB.Mul(lambda))
}

func (r *row) applySplit(a, b *dynamics.State, lambda float64) {
	applySplit(a, r.linA.Mul(lambda), r.angA.Mul(lambda))
	applySplit(b, r.linB.Mul(lambda), r.angB.Mul(lambda))
}

// negate flips the row direction, for upper limits.
func (r *row) negate() {
	r.linA = r.linA.Mul(-1)
	r.angA = r.angA.Mul(-1)
	r.linB = r.linB.Mul(-1)
	r.angB = r.angB.Mul(-1)
}

// solveEquality drives J·v to target with an unbounded impulse.
func (r *row) solveEquality(a, b *dynamics.State, target float64) float64 {
	lambda := -r.mass * (r.velocity(a, b) - target)
	r.impulse += lambda
	r.apply(a, b, lambda)
	return abs(lambda)
}

// solveInequality keeps J·v >= target with a non-negative accumulated
// impulse.
func (r *row) solveInequality(a, b *dynamics.State, target float64) float64 {
	lambda := -r.mass * (r.velocity(a, b) - target)
	old := r.impulse
	r.impulse = max(old+lambda, 0)
	lambda = r.impulse - old
	r.apply(a, b, lambda)
	return abs(lambda)
}

// solveBounded drives J·v to target with the accumulated impulse clamped to
// [-limit, limit].
func (r *row) solveBounded(a, b *dynamics.State, target, limit float64) float64 {
	lambda := -r.mass * (r.velocity(a, b) - target)
	old := r.impulse
	r.impulse = mgl64.Clamp(old+lambda, -limit, limit)
	lambda = r.impulse - old
	r.apply(a, b, lambda)
	return abs(lambda)
}

// splitEquality removes position error c through split velocities.
func (r *row) splitEquality(a, b *dynamics.State, s *step, c float64) {
	lambda := -r.mass * (r.splitVelocity(a, b) + s.correction(c))
	r.applySplit(a, b, lambda)
}

// splitInequality pushes c back to zero when negative.
func (r *row) splitInequality(a, b *dynamics.State, s *step, c float64) {
	target := -s.correction(min(c, 0))
	if target <= 0 && r.split == 0 {
		return
	}
	lambda := -r.mass * (r.splitVelocity(a, b) - target)
	old := r.split
	r.split = max(old+lambda, 0)
	r.applySplit(a, b, r.split-old)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
