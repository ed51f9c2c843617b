package narrowphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Face axes win ties against edge axes, and faces of A against faces of B,
// unless the other is clearly better.
const (
	satRelTolerance = 0.98
	satAbsTolerance = 0.001
)

type axisKind uint8

const (
	axisNone axisKind = iota
	axisFaceA
	axisFaceB
	axisEdge
)

// satAxis is the last separating axis found for a pair.
type satAxis struct {
	kind axisKind
	i, j int
}

// polyView is a hull placed in the world.
type polyView struct {
	hull    *shape.Hull
	t       geom.Transform
	verts   []mgl64.Vec3
	normals []mgl64.Vec3
	offsets []float64
	center  mgl64.Vec3
	flat    bool
}

func newPolyView(in Input) polyView {
	h := in.Shape.(shape.Polyhedron).Hull()
	v := polyView{
		hull:    h,
		t:       in.Transform,
		verts:   make([]mgl64.Vec3, len(h.Vertices)),
		normals: make([]mgl64.Vec3, len(h.Faces)),
		offsets: make([]float64, len(h.Faces)),
		center:  in.Transform.Apply(h.Center),
		flat:    len(h.Faces) == 2,
	}
	for i, p := range h.Vertices {
		v.verts[i] = in.Transform.Apply(p)
	}
	for i, f := range h.Faces {
		n := in.Transform.ApplyDir(f.Normal)
		v.normals[i] = n
		v.offsets[i] = n.Dot(v.verts[f.Vertices[0]])
	}
	return v
}

func (p *polyView) project(axis mgl64.Vec3) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range p.verts {
		d := v.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

func (p *polyView) faceSeparation(i int, q *polyView) float64 {
	lo, _ := q.project(p.normals[i])
	return lo - p.offsets[i]
}

// faceQuery returns the face of p with the largest separation from q.
func faceQuery(p, q *polyView) (float64, int) {
	best, bestSep := 0, math.Inf(-1)
	for i := range p.normals {
		if s := p.faceSeparation(i, q); s > bestSep {
			best, bestSep = i, s
		}
	}
	return bestSep, best
}

// edgeAxis returns the cross axis of edge i of p and edge j of q oriented
// away from p, or false for parallel edges.
func edgeAxis(p, q *polyView, i, j int) (mgl64.Vec3, bool) {
	ea, eb := p.hull.Edges[i], q.hull.Edges[j]
	u := p.verts[ea.B].Sub(p.verts[ea.A])
	v := q.verts[eb.B].Sub(q.verts[eb.A])
	axis := u.Cross(v)
	l := axis.Len()
	if l < 1e-6*u.Len()*v.Len() {
		return mgl64.Vec3{}, false
	}
	axis = axis.Mul(1 / l)
	if axis.Dot(p.verts[ea.A].Sub(p.center)) < 0 {
		axis = axis.Mul(-1)
	}
	return axis, true
}

func edgeSeparation(p, q *polyView, axis mgl64.Vec3) float64 {
	lo, _ := q.project(axis)
	_, hi := p.project(axis)
	return lo - hi
}

// isMinkowskiFace tests whether the arcs ab and cd intersect on the Gauss
// map, meaning the two edges build a face of the Minkowski difference.
func isMinkowskiFace(a, b, c, d mgl64.Vec3) bool {
	bxa := b.Cross(a)
	dxc := d.Cross(c)
	cba := c.Dot(bxa)
	dba := d.Dot(bxa)
	adc := a.Dot(dxc)
	bdc := b.Dot(dxc)
	return cba*dba < 0 && adc*bdc < 0 && cba*bdc > 0
}

func edgeQuery(p, q *polyView) (sep float64, i, j int, axis mgl64.Vec3) {
	sep, i, j = math.Inf(-1), -1, -1
	for ei, ea := range p.hull.Edges {
		a, b := p.normals[ea.Faces[0]], p.normals[ea.Faces[1]]
		for ej, eb := range q.hull.Edges {
			if !p.flat && !q.flat {
				c, d := q.normals[eb.Faces[0]].Mul(-1), q.normals[eb.Faces[1]].Mul(-1)
				if !isMinkowskiFace(a, b, c, d) {
					continue
				}
			}
			ax, ok := edgeAxis(p, q, ei, ej)
			if !ok {
				continue
			}
			if s := edgeSeparation(p, q, ax); s > sep {
				sep, i, j, axis = s, ei, ej, ax
			}
		}
	}
	return sep, i, j, axis
}

func (c *satAxis) separation(pa, pb *polyView) (float64, bool) {
	switch c.kind {
	case axisFaceA:
		if c.i < len(pa.normals) {
			return pa.faceSeparation(c.i, pb), true
		}
	case axisFaceB:
		if c.i < len(pb.normals) {
			return pb.faceSeparation(c.i, pa), true
		}
	case axisEdge:
		if c.i < len(pa.hull.Edges) && c.j < len(pb.hull.Edges) {
			if ax, ok := edgeAxis(pa, pb, c.i, c.j); ok {
				return edgeSeparation(pa, pb, ax), true
			}
		}
	}
	return 0, false
}

// polyhedronPolyhedron runs a GJK distance early-out and then SAT over the
// face normals of both hulls and the cross products of their edges.
func polyhedronPolyhedron(d *Dispatcher, a, b Input, cache *PairCache, out []Point) []Point {
	pa, pb := newPolyView(a), newPolyView(b)
	slop := d.TouchSlop

	if cache != nil && cache.Axis.kind != axisNone {
		if s, ok := cache.Axis.separation(&pa, &pb); ok && s > slop {
			return out
		}
	}

	ca, cb := newCore(a), newCore(b)
	var dir mgl64.Vec3
	if cache != nil {
		dir = cache.Dir
	}
	r := gjk(&ca, &cb, dir)
	if !r.converged {
		d.stats.gjkFallbacks.Add(1)
	}
	if !r.overlap {
		if cache != nil {
			cache.Dir = r.pointA.Sub(r.pointB)
		}
		if r.distance > slop {
			return out
		}
	}

	remember := func(kind axisKind, i, j int) {
		if cache != nil {
			cache.Axis = satAxis{kind: kind, i: i, j: j}
		}
	}

	sepA, fa := faceQuery(&pa, &pb)
	if sepA > slop {
		remember(axisFaceA, fa, 0)
		return out
	}
	sepB, fb := faceQuery(&pb, &pa)
	if sepB > slop {
		remember(axisFaceB, fb, 0)
		return out
	}
	sepE, ea, eb, axis := edgeQuery(&pa, &pb)
	if sepE > slop {
		remember(axisEdge, ea, eb)
		return out
	}
	remember(axisNone, 0, 0)

	faceMax := math.Max(sepA, sepB)
	if ea >= 0 && sepE > satRelTolerance*faceMax+satAbsTolerance {
		eA, eB := pa.hull.Edges[ea], pb.hull.Edges[eb]
		c1, c2, _, _ := geom.ClosestPointsSegments(pa.verts[eA.A], pa.verts[eA.B], pb.verts[eB.A], pb.verts[eB.B])
		return append(out, makePoint(c1, c2, axis, featureID(tagEdge, uint32(ea), uint32(eb))))
	}
	if sepB > satRelTolerance*sepA+satAbsTolerance {
		return clipFaces(&pb, &pa, fb, false, slop, out)
	}
	return clipFaces(&pa, &pb, fa, true, slop, out)
}

type clipVertex struct {
	p   mgl64.Vec3
	tag uint32
}

const clipTagIntersection = 1 << 31

// clipPolygon keeps the part of in behind the plane n·x = off.
func clipPolygon(in []clipVertex, n mgl64.Vec3, off float64, edge uint32, out []clipVertex) []clipVertex {
	out = out[:0]
	if len(in) == 0 {
		return out
	}
	prev := in[len(in)-1]
	dPrev := n.Dot(prev.p) - off
	for _, cur := range in {
		dCur := n.Dot(cur.p) - off
		if (dPrev > 0) != (dCur > 0) {
			t := dPrev / (dPrev - dCur)
			out = append(out, clipVertex{
				p:   prev.p.Add(cur.p.Sub(prev.p).Mul(t)),
				tag: clipTagIntersection | edge<<16 | (prev.tag&0xff)<<8 | cur.tag&0xff,
			})
		}
		if dCur <= 0 {
			out = append(out, cur)
		}
		prev, dPrev = cur, dCur
	}
	return out
}

// clipFaces clips the incident face of inc against the side planes of the
// reference face fi of ref.
func clipFaces(ref, inc *polyView, fi int, refIsA bool, slop float64, out []Point) []Point {
	nRef := ref.normals[fi]
	offRef := ref.offsets[fi]
	incFace := inc.hull.MostAlignedFace(inc.t.InverseApplyDir(nRef.Mul(-1)))

	refVerts := ref.hull.Faces[fi].Vertices
	incVerts := inc.hull.Faces[incFace].Vertices

	poly := make([]clipVertex, 0, 2*len(incVerts)+len(refVerts))
	for _, vi := range incVerts {
		poly = append(poly, clipVertex{p: inc.verts[vi], tag: uint32(vi)})
	}
	scratch := make([]clipVertex, 0, cap(poly))
	for e := range refVerts {
		vi, vj := ref.verts[refVerts[e]], ref.verts[refVerts[(e+1)%len(refVerts)]]
		side := vj.Sub(vi).Cross(nRef)
		scratch = clipPolygon(poly, side, side.Dot(vi), uint32(e), scratch)
		poly, scratch = scratch, poly
	}

	side := uint32(0)
	n := nRef
	if !refIsA {
		side = 1
		n = nRef.Mul(-1)
	}
	for _, cv := range poly {
		sep := nRef.Dot(cv.p) - offRef
		if sep > slop {
			continue
		}
		onRef := cv.p.Sub(nRef.Mul(sep))
		id := featureID(tagFace, side, uint32(fi), uint32(incFace), cv.tag)
		if refIsA {
			out = append(out, makePoint(onRef, cv.p, n, id))
		} else {
			out = append(out, makePoint(cv.p, onRef, n, id))
		}
	}
	return out
}
