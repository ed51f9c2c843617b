package solver

import (
	"math"

	"github.com/san-kum/rigidsim/internal/contact"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/narrowphase"
)

// Contact is the constraint built from one cached manifold. The manifold
// normal points from A to B.
type Contact struct {
	A, B     *dynamics.State
	Manifold *contact.Manifold

	points [narrowphase.MaxPoints]contactPoint
}

type contactPoint struct {
	normal     row
	tangent    [2]row
	target     float64
	separation float64
}

func NewContact(a, b *dynamics.State, m *contact.Manifold) *Contact {
	return &Contact{A: a, B: b, Manifold: m}
}

func (c *Contact) prepare(s *step) {
	a, b := c.A, c.B
	for i := range c.Manifold.Slice() {
		mp := &c.Manifold.Points[i]
		cp := &c.points[i]

		p := mp.PositionA.Add(mp.PositionB).Mul(0.5)
		rA := p.Sub(a.Position)
		rB := p.Sub(b.Position)
		n := mp.Normal
		t1, t2 := geom.OrthonormalBasis(n)

		cp.normal = row{linA: n.Mul(-1), angA: rA.Cross(n).Mul(-1), linB: n, angB: rB.Cross(n)}
		cp.tangent[0] = row{linA: t1.Mul(-1), angA: rA.Cross(t1).Mul(-1), linB: t1, angB: rB.Cross(t1)}
		cp.tangent[1] = row{linA: t2.Mul(-1), angA: rA.Cross(t2).Mul(-1), linB: t2, angB: rB.Cross(t2)}
		cp.normal.setup(a, b)
		cp.tangent[0].setup(a, b)
		cp.tangent[1].setup(a, b)

		if s.WarmStarting {
			cp.normal.impulse = mp.NormalImpulse
			cp.tangent[0].impulse = mp.TangentImpulse[0]
			cp.tangent[1].impulse = mp.TangentImpulse[1]
		}

		cp.separation = mp.Separation
		vn := cp.normal.velocity(a, b)
		switch {
		case mp.Separation > 0:
			// Speculative: allow closing the gap within this step.
			cp.target = -mp.Separation * s.invDt
		case vn < -s.RestitutionThreshold:
			cp.target = -c.Manifold.Restitution * vn
		default:
			cp.target = 0
		}
	}
}

func (c *Contact) warmStart() {
	for i := range c.Manifold.Count {
		cp := &c.points[i]
		cp.normal.apply(c.A, c.B, cp.normal.impulse)
		cp.tangent[0].apply(c.A, c.B, cp.tangent[0].impulse)
		cp.tangent[1].apply(c.A, c.B, cp.tangent[1].impulse)
	}
}

func (c *Contact) solveVelocity() float64 {
	a, b := c.A, c.B
	var residual float64
	for i := range c.Manifold.Count {
		cp := &c.points[i]

		// Friction inside a circular cone bounded by the current normal
		// impulse.
		limit := c.Manifold.Friction * cp.normal.impulse
		t0, t1 := &cp.tangent[0], &cp.tangent[1]
		old0, old1 := t0.impulse, t1.impulse
		new0 := old0 - t0.mass*t0.velocity(a, b)
		new1 := old1 - t1.mass*t1.velocity(a, b)
		if l := math.Hypot(new0, new1); l > limit {
			scale := 0.0
			if l > 0 {
				scale = limit / l
			}
			new0 *= scale
			new1 *= scale
		}
		t0.impulse, t1.impulse = new0, new1
		t0.apply(a, b, new0-old0)
		t1.apply(a, b, new1-old1)
		residual += abs(new0-old0) + abs(new1-old1)

		residual += cp.normal.solveInequality(a, b, cp.target)
	}
	return residual
}

func (c *Contact) store() {
	for i := range c.Manifold.Count {
		mp := &c.Manifold.Points[i]
		cp := &c.points[i]
		mp.NormalImpulse = cp.normal.impulse
		mp.TangentImpulse = [2]float64{cp.tangent[0].impulse, cp.tangent[1].impulse}
	}
}

func (c *Contact) solvePosition(s *step) {
	for i := range c.Manifold.Count {
		cp := &c.points[i]
		cp.normal.splitInequality(c.A, c.B, s, cp.separation+s.LinearSlop)
	}
}
