package narrowphase

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

var up = mgl64.Vec3{0, 1, 0}

// spherePoint is the contact between two spheres, or false when they are
// farther apart than slop.
func spherePoint(ca mgl64.Vec3, ra float64, cb mgl64.Vec3, rb float64, fallback mgl64.Vec3, slop float64, id uint64) (Point, bool) {
	delta := cb.Sub(ca)
	if delta.Len()-ra-rb > slop {
		return Point{}, false
	}
	n := geom.SafeNormalize(delta, fallback)
	return makePoint(ca.Add(n.Mul(ra)), cb.Sub(n.Mul(rb)), n, id), true
}

func capsuleSegment(in Input) (mgl64.Vec3, mgl64.Vec3, float64) {
	c := in.Shape.(*shape.Capsule)
	p, q := c.Segment()
	return in.Transform.Apply(p), in.Transform.Apply(q), c.Radius
}

func sphereSphere(d *Dispatcher, a, b Input, _ *PairCache, out []Point) []Point {
	ra := a.Shape.(*shape.Sphere).Radius
	rb := b.Shape.(*shape.Sphere).Radius
	if p, ok := spherePoint(a.Transform.Position, ra, b.Transform.Position, rb, up, d.TouchSlop, featureID(tagSphere)); ok {
		out = append(out, p)
	}
	return out
}

func sphereCapsule(d *Dispatcher, a, b Input, _ *PairCache, out []Point) []Point {
	ra := a.Shape.(*shape.Sphere).Radius
	p, q, rb := capsuleSegment(b)
	center := a.Transform.Position
	closest := geom.ClosestPointOnSegment(p, q, center)
	fallback := geom.AnyPerpendicular(q.Sub(p))
	if pt, ok := spherePoint(center, ra, closest, rb, fallback, d.TouchSlop, featureID(tagCapsule)); ok {
		out = append(out, pt)
	}
	return out
}

// capsuleCapsule reports two points when the segments are parallel and
// overlap along their length, one point otherwise.
func capsuleCapsule(d *Dispatcher, a, b Input, _ *PairCache, out []Point) []Point {
	p1, q1, ra := capsuleSegment(a)
	p2, q2, rb := capsuleSegment(b)
	dA, dB := q1.Sub(p1), q2.Sub(p2)
	cross := dA.Cross(dB)

	fallback := geom.SafeNormalize(cross, geom.AnyPerpendicular(dA))
	if fallback.Dot(b.Transform.Position.Sub(a.Transform.Position)) < 0 {
		fallback = fallback.Mul(-1)
	}

	lenA := dA.LenSqr()
	if cross.LenSqr() < 1e-6*lenA*dB.LenSqr() {
		t0 := p2.Sub(p1).Dot(dA) / lenA
		t1 := q2.Sub(p1).Dot(dA) / lenA
		lo := max(0, min(t0, t1))
		hi := min(1, max(t0, t1))
		if hi-lo > 1e-6 {
			n := len(out)
			for k, t := range [2]float64{lo, hi} {
				pa := p1.Add(dA.Mul(t))
				pb := geom.ClosestPointOnSegment(p2, q2, pa)
				if pt, ok := spherePoint(pa, ra, pb, rb, fallback, d.TouchSlop, featureID(tagCapsule, uint32(k))); ok {
					out = append(out, pt)
				}
			}
			if len(out) > n {
				return out
			}
		}
	}

	c1, c2, _, _ := geom.ClosestPointsSegments(p1, q1, p2, q2)
	if pt, ok := spherePoint(c1, ra, c2, rb, fallback, d.TouchSlop, featureID(tagCapsule, 2)); ok {
		out = append(out, pt)
	}
	return out
}
