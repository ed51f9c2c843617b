package narrowphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// convexPolyhedron collides a sphere or capsule (a) with a polyhedron (b)
// through GJK on their cores, falling back to EPA when the cores overlap.
func convexPolyhedron(d *Dispatcher, a, b Input, cache *PairCache, out []Point) []Point {
	ca, cb := newCore(a), newCore(b)
	var dir mgl64.Vec3
	if cache != nil {
		dir = cache.Dir
	}
	r := gjk(&ca, &cb, dir)
	if !r.converged {
		d.stats.gjkFallbacks.Add(1)
	}

	mA, mB := ca.margin(), cb.margin()
	var n, pA, pB mgl64.Vec3
	if !r.overlap {
		if cache != nil {
			cache.Dir = r.pointA.Sub(r.pointB)
		}
		if r.distance-mA-mB > d.TouchSlop {
			return out
		}
		n = r.normal
		pA = r.pointA.Add(n.Mul(mA))
		pB = r.pointB.Sub(n.Mul(mB))
	} else {
		e, ok := epa(&ca, &cb, &r.simplex)
		if ok {
			n = e.normal
			pA = e.pointA.Add(n.Mul(mA))
			pB = e.pointB.Sub(n.Mul(mB))
		} else {
			d.stats.epaFallbacks.Add(1)
			n, pA, pB = projectedContact(&ca, &cb)
		}
		if cache != nil {
			cache.Dir = mgl64.Vec3{}
		}
	}

	if _, ok := a.Shape.(*shape.Capsule); ok {
		if pts := capsuleFace(d, a, b, n, out); len(pts) > len(out) {
			return pts
		}
	}
	return append(out, makePoint(pA, pB, n, featureID(tagGJK)))
}

// projectedContact is the best-effort contact along the line of centers.
func projectedContact(a, b *core) (n, pA, pB mgl64.Vec3) {
	n = geom.SafeNormalize(b.t.Position.Sub(a.t.Position), up)
	pA = a.support(n).Add(n.Mul(a.margin()))
	sB := b.support(n.Mul(-1)).Sub(n.Mul(b.margin()))
	pB = pA.Add(n.Mul(sB.Sub(pA).Dot(n)))
	return n, pA, pB
}

// capsuleFace clips a capsule lying flat on a polyhedron face to the face
// and returns up to two points appended to out.
func capsuleFace(d *Dispatcher, a, b Input, n mgl64.Vec3, out []Point) []Point {
	const parallel = 0.02
	p, q, r := capsuleSegment(a)
	hull := b.Shape.(shape.Polyhedron).Hull()

	fi := hull.MostAlignedFace(b.Transform.InverseApplyDir(n.Mul(-1)))
	face := hull.Faces[fi]
	fn := b.Transform.ApplyDir(face.Normal)
	if fn.Dot(n.Mul(-1)) < 1-parallel {
		return out
	}
	axis := q.Sub(p)
	if math.Abs(axis.Dot(fn)) > parallel*axis.Len() {
		return out
	}

	poly := hull.FacePolygon(fi)
	for i := range poly {
		poly[i] = b.Transform.Apply(poly[i])
	}
	for i := range poly {
		vi, vj := poly[i], poly[(i+1)%len(poly)]
		side := vj.Sub(vi).Cross(fn)
		off := side.Dot(vi)
		dp, dq := side.Dot(p)-off, side.Dot(q)-off
		if dp > 0 && dq > 0 {
			return out
		}
		switch {
		case dp > 0:
			p = p.Add(q.Sub(p).Mul(dp / (dp - dq)))
		case dq > 0:
			q = q.Add(p.Sub(q).Mul(dq / (dq - dp)))
		}
	}

	offset := fn.Dot(poly[0])
	for k, e := range [2]mgl64.Vec3{p, q} {
		dist := fn.Dot(e) - offset
		if dist-r > d.TouchSlop {
			continue
		}
		pA := e.Sub(fn.Mul(r))
		pB := e.Sub(fn.Mul(dist))
		out = append(out, makePoint(pA, pB, fn.Mul(-1), featureID(tagCapsuleFace, uint32(fi), uint32(k))))
	}
	return out
}
