package narrowphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

const (
	gjkMaxIterations = 64
	gjkRelTolerance  = 1e-10
	// Cores closer than this are treated as overlapping.
	gjkOverlapTolerance = 1e-7
)

// core is the world-space support mapping of a convex shape without margin.
type core struct {
	convex shape.Convex
	hull   *shape.Hull
	t      geom.Transform
}

func newCore(in Input) core {
	c := core{convex: in.Shape.(shape.Convex), t: in.Transform}
	if p, ok := in.Shape.(shape.Polyhedron); ok {
		c.hull = p.Hull()
	}
	return c
}

func (c *core) support(dir mgl64.Vec3) mgl64.Vec3 {
	local := c.t.InverseApplyDir(dir)
	if c.hull != nil {
		p, _ := c.hull.Support(local)
		return c.t.Apply(p)
	}
	return c.t.Apply(c.convex.SupportCore(local))
}

func (c *core) margin() float64 { return c.convex.Margin() }

type simplexVertex struct {
	a, b, w mgl64.Vec3
}

type simplex struct {
	v    [4]simplexVertex
	bary [4]float64
	n    int
}

func (s *simplex) contains(w mgl64.Vec3) bool {
	for i := 0; i < s.n; i++ {
		if s.v[i].w.Sub(w).LenSqr() < 1e-20 {
			return true
		}
	}
	return false
}

func (s *simplex) set(bary []float64, vs ...simplexVertex) mgl64.Vec3 {
	s.n = len(vs)
	var p mgl64.Vec3
	for i, v := range vs {
		s.v[i] = v
		s.bary[i] = bary[i]
		p = p.Add(v.w.Mul(bary[i]))
	}
	return p
}

// witnesses returns the closest points on A and B.
func (s *simplex) witnesses() (mgl64.Vec3, mgl64.Vec3) {
	var pa, pb mgl64.Vec3
	for i := 0; i < s.n; i++ {
		pa = pa.Add(s.v[i].a.Mul(s.bary[i]))
		pb = pb.Add(s.v[i].b.Mul(s.bary[i]))
	}
	return pa, pb
}

// reduce shrinks the simplex to the feature closest to the origin and
// returns that closest point. A full tetrahedron remains only when it
// contains the origin.
func (s *simplex) reduce() mgl64.Vec3 {
	switch s.n {
	case 1:
		s.bary[0] = 1
		return s.v[0].w
	case 2:
		return s.reduceSegment(s.v[0], s.v[1])
	case 3:
		return s.reduceTriangle(s.v[0], s.v[1], s.v[2])
	default:
		return s.reduceTetrahedron()
	}
}

func (s *simplex) reduceSegment(a, b simplexVertex) mgl64.Vec3 {
	ab := b.w.Sub(a.w)
	den := ab.LenSqr()
	if den < geom.Epsilon*geom.Epsilon {
		return s.set([]float64{1}, a)
	}
	t := -a.w.Dot(ab) / den
	switch {
	case t <= 0:
		return s.set([]float64{1}, a)
	case t >= 1:
		return s.set([]float64{1}, b)
	}
	return s.set([]float64{1 - t, t}, a, b)
}

func (s *simplex) reduceTriangle(a, b, c simplexVertex) mgl64.Vec3 {
	ab, ac := b.w.Sub(a.w), c.w.Sub(a.w)
	ap := a.w.Mul(-1)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return s.set([]float64{1}, a)
	}
	bp := b.w.Mul(-1)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return s.set([]float64{1}, b)
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return s.set([]float64{1 - v, v}, a, b)
	}
	cp := c.w.Mul(-1)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return s.set([]float64{1}, c)
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return s.set([]float64{1 - w, w}, a, c)
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return s.set([]float64{1 - w, w}, b, c)
	}
	den := va + vb + vc
	if den < geom.Epsilon*geom.Epsilon {
		// Collinear: keep the best edge.
		best, bestD := mgl64.Vec3{}, math.Inf(1)
		var keep simplex
		for _, e := range [3][2]simplexVertex{{a, b}, {b, c}, {a, c}} {
			var t simplex
			p := t.reduceSegment(e[0], e[1])
			if d := p.LenSqr(); d < bestD {
				best, bestD, keep = p, d, t
			}
		}
		*s = keep
		return best
	}
	v, w := vb/den, vc/den
	return s.set([]float64{1 - v - w, v, w}, a, b, c)
}

func outsideFace(a, b, c, d mgl64.Vec3) bool {
	n := b.Sub(a).Cross(c.Sub(a))
	sp := a.Mul(-1).Dot(n)
	sd := d.Sub(a).Dot(n)
	if sd*sd < 1e-24 {
		return true
	}
	return sp*sd < 0
}

func (s *simplex) reduceTetrahedron() mgl64.Vec3 {
	a, b, c, d := s.v[0], s.v[1], s.v[2], s.v[3]
	faces := [4][4]simplexVertex{{a, b, c, d}, {a, c, d, b}, {a, d, b, c}, {b, d, c, a}}

	inside := true
	best, bestD := mgl64.Vec3{}, math.Inf(1)
	var keep simplex
	for _, f := range faces {
		if !outsideFace(f[0].w, f[1].w, f[2].w, f[3].w) {
			continue
		}
		inside = false
		var t simplex
		p := t.reduceTriangle(f[0], f[1], f[2])
		if dd := p.LenSqr(); dd < bestD {
			best, bestD, keep = p, dd, t
		}
	}
	if inside {
		s.bary = [4]float64{0.25, 0.25, 0.25, 0.25}
		return mgl64.Vec3{}
	}
	*s = keep
	return best
}

type gjkResult struct {
	// distance between the cores, zero when they overlap.
	distance float64
	pointA   mgl64.Vec3
	pointB   mgl64.Vec3
	// normal from A to B, valid when !overlap.
	normal    mgl64.Vec3
	overlap   bool
	converged bool
	simplex   simplex
}

func minkowski(a, b *core, dir mgl64.Vec3) simplexVertex {
	pa := a.support(dir)
	pb := b.support(dir.Mul(-1))
	return simplexVertex{a: pa, b: pb, w: pa.Sub(pb)}
}

// gjk computes the distance between the cores of a and b. dir seeds the
// search with the previous separating vector when available.
func gjk(a, b *core, dir mgl64.Vec3) gjkResult {
	if dir.LenSqr() < geom.Epsilon {
		dir = b.t.Position.Sub(a.t.Position).Mul(-1)
		if dir.LenSqr() < geom.Epsilon {
			dir = mgl64.Vec3{1, 0, 0}
		}
	}
	var r gjkResult
	s := &r.simplex
	s.v[0] = minkowski(a, b, dir.Mul(-1))
	s.bary[0] = 1
	s.n = 1
	v := s.v[0].w

	for iter := 0; iter < gjkMaxIterations; iter++ {
		vv := v.LenSqr()
		if vv < gjkOverlapTolerance*gjkOverlapTolerance {
			r.overlap, r.converged = true, true
			return r
		}
		w := minkowski(a, b, v.Mul(-1))
		if vv-v.Dot(w.w) <= gjkRelTolerance*vv || s.contains(w.w) {
			r.converged = true
			break
		}
		s.v[s.n] = w
		s.n++
		next := s.reduce()
		if s.n == 4 {
			r.overlap, r.converged = true, true
			return r
		}
		progress := next.LenSqr() < vv
		v = next
		if !progress {
			r.converged = true
			break
		}
	}

	r.distance = v.Len()
	if r.distance < gjkOverlapTolerance {
		r.overlap = true
		return r
	}
	r.pointA, r.pointB = s.witnesses()
	r.normal = v.Mul(-1 / r.distance)
	return r
}
