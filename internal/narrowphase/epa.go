package narrowphase

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

const (
	epaMaxIterations = 64
	epaMaxVertices   = 128
	epaTolerance     = 1e-6
)

type epaFace struct {
	v     [3]int
	n     mgl64.Vec3
	d     float64
	alive bool
}

type polytope struct {
	verts  []simplexVertex
	faces  []epaFace
	center mgl64.Vec3
}

// addFace appends the face i,j,k oriented away from the polytope center.
func (p *polytope) addFace(i, j, k int) bool {
	a, b, c := p.verts[i].w, p.verts[j].w, p.verts[k].w
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Len()
	if l < geom.Epsilon*geom.Epsilon {
		return false
	}
	n = n.Mul(1 / l)
	if n.Dot(a.Sub(p.center)) < 0 {
		j, k = k, j
		n = n.Mul(-1)
	}
	p.faces = append(p.faces, epaFace{v: [3]int{i, j, k}, n: n, d: n.Dot(a), alive: true})
	return true
}

// completeTetrahedron grows a GJK simplex that ended with fewer than four
// vertices, which happens when the origin lies on its boundary.
func completeTetrahedron(a, b *core, verts []simplexVertex) ([]simplexVertex, bool) {
	const eps = 1e-9
	if len(verts) == 1 {
		for _, d := range [6]mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
			v := minkowski(a, b, d)
			if v.w.Sub(verts[0].w).Len() > eps {
				verts = append(verts, v)
				break
			}
		}
	}
	if len(verts) == 2 {
		axis := verts[1].w.Sub(verts[0].w)
		t1, t2 := geom.OrthonormalBasis(geom.SafeNormalize(axis, mgl64.Vec3{1, 0, 0}))
		for _, d := range [4]mgl64.Vec3{t1, t1.Mul(-1), t2, t2.Mul(-1)} {
			v := minkowski(a, b, d)
			if v.w.Sub(verts[0].w).Cross(axis).Len() > eps*axis.Len() {
				verts = append(verts, v)
				break
			}
		}
	}
	if len(verts) == 3 {
		n := geom.SafeNormalize(verts[1].w.Sub(verts[0].w).Cross(verts[2].w.Sub(verts[0].w)), mgl64.Vec3{})
		if n.LenSqr() == 0 {
			return verts, false
		}
		for _, d := range [2]mgl64.Vec3{n, n.Mul(-1)} {
			v := minkowski(a, b, d)
			if math.Abs(v.w.Sub(verts[0].w).Dot(n)) > eps {
				verts = append(verts, v)
				break
			}
		}
	}
	return verts, len(verts) == 4
}

type epaResult struct {
	normal mgl64.Vec3
	depth  float64
	pointA mgl64.Vec3
	pointB mgl64.Vec3
}

// epa expands the final GJK simplex into the polytope face closest to the
// origin. The normal points from A to B and depth is positive.
func epa(a, b *core, s *simplex) (epaResult, bool) {
	verts := make([]simplexVertex, s.n, 32)
	copy(verts, s.v[:s.n])
	verts, ok := completeTetrahedron(a, b, verts)
	if !ok {
		return epaResult{}, false
	}

	p := &polytope{verts: verts, faces: make([]epaFace, 0, 64)}
	for _, v := range verts {
		p.center = p.center.Add(v.w)
	}
	p.center = p.center.Mul(0.25)
	for _, f := range [4][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}} {
		if !p.addFace(f[0], f[1], f[2]) {
			return epaResult{}, false
		}
	}

	var best int
	for iter := 0; iter < epaMaxIterations; iter++ {
		best = -1
		for i := range p.faces {
			if p.faces[i].alive && (best == -1 || p.faces[i].d < p.faces[best].d) {
				best = i
			}
		}
		if best == -1 {
			return epaResult{}, false
		}
		f := p.faces[best]
		sup := minkowski(a, b, f.n)
		if sup.w.Dot(f.n)-f.d < epaTolerance*math.Max(1, math.Abs(f.d)) || len(p.verts) >= epaMaxVertices {
			break
		}

		idx := len(p.verts)
		p.verts = append(p.verts, sup)
		var horizon [][2]int
		for i := range p.faces {
			g := &p.faces[i]
			if !g.alive || g.n.Dot(sup.w.Sub(p.verts[g.v[0]].w)) <= 0 {
				continue
			}
			g.alive = false
			for e := 0; e < 3; e++ {
				edge := [2]int{g.v[e], g.v[(e+1)%3]}
				shared := false
				for h, other := range horizon {
					if other[0] == edge[1] && other[1] == edge[0] {
						horizon = append(horizon[:h], horizon[h+1:]...)
						shared = true
						break
					}
				}
				if !shared {
					horizon = append(horizon, edge)
				}
			}
		}
		for _, e := range horizon {
			p.addFace(e[0], e[1], idx)
		}
	}

	f := p.faces[best]
	va, vb, vc := p.verts[f.v[0]], p.verts[f.v[1]], p.verts[f.v[2]]
	u, v, w := barycentric(f.n.Mul(f.d), va.w, vb.w, vc.w)
	return epaResult{
		normal: f.n,
		depth:  math.Max(f.d, 0),
		pointA: va.a.Mul(u).Add(vb.a.Mul(v)).Add(vc.a.Mul(w)),
		pointB: va.b.Mul(u).Add(vb.b.Mul(v)).Add(vc.b.Mul(w)),
	}, true
}

// barycentric returns the weights of p with respect to triangle abc.
func barycentric(p, a, b, c mgl64.Vec3) (u, v, w float64) {
	v0, v1, v2 := b.Sub(a), c.Sub(a), p.Sub(a)
	d00, d01, d11 := v0.Dot(v0), v0.Dot(v1), v1.Dot(v1)
	d20, d21 := v2.Dot(v0), v2.Dot(v1)
	den := d00*d11 - d01*d01
	if math.Abs(den) < geom.Epsilon*geom.Epsilon {
		return 1, 0, 0
	}
	v = (d11*d20 - d01*d21) / den
	w = (d00*d21 - d01*d20) / den
	return 1 - v - w, v, w
}
