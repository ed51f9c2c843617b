package narrowphase

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// DefaultTouchSlop is the separation below which shapes are in contact.
const DefaultTouchSlop = 0.005

// Input is a shape placed in the world.
type Input struct {
	Shape     shape.Shape
	Transform geom.Transform
}

// PairCache carries per-pair state between steps. The zero value is ready.
type PairCache struct {
	// Dir is the last separating vector A-B found by GJK.
	Dir  mgl64.Vec3
	Axis satAxis
}

// Stats counts numerical fallbacks since the last Reset.
type Stats struct {
	GJKFallbacks int64
	EPAFallbacks int64
}

type counters struct {
	gjkFallbacks atomic.Int64
	epaFallbacks atomic.Int64
}

type collideFunc func(d *Dispatcher, a, b Input, cache *PairCache, out []Point) []Point

type algorithm struct {
	fn   collideFunc
	swap bool
}

// Dispatcher is safe for concurrent use by pair workers as long as each
// PairCache is owned by one worker.
type Dispatcher struct {
	TouchSlop float64
	table     [shape.KindCount][shape.KindCount]algorithm
	stats     counters
}

func NewDispatcher(touchSlop float64) *Dispatcher {
	d := &Dispatcher{TouchSlop: touchSlop}

	set := func(ka, kb shape.Kind, fn collideFunc) {
		d.table[ka][kb] = algorithm{fn: fn}
		if ka != kb {
			d.table[kb][ka] = algorithm{fn: fn, swap: true}
		}
	}

	set(shape.KindSphere, shape.KindSphere, sphereSphere)
	set(shape.KindSphere, shape.KindCapsule, sphereCapsule)
	set(shape.KindCapsule, shape.KindCapsule, capsuleCapsule)

	polys := []shape.Kind{shape.KindBox, shape.KindConvexMesh, shape.KindTriangle}
	for _, p := range polys {
		set(shape.KindSphere, p, convexPolyhedron)
		set(shape.KindCapsule, p, convexPolyhedron)
		for _, q := range polys {
			if q >= p {
				set(p, q, polyhedronPolyhedron)
			}
		}
	}

	for _, c := range []shape.Kind{shape.KindTriangleMesh, shape.KindHeightField} {
		for k := shape.Kind(0); k < shape.KindCount; k++ {
			if k.IsConvex() {
				set(c, k, concaveConvex)
			}
		}
	}
	return d
}

// Supports reports whether the dispatcher has an algorithm for the pair.
func (d *Dispatcher) Supports(a, b shape.Kind) bool {
	return d.table[a][b].fn != nil
}

func (d *Dispatcher) collide(a, b Input, cache *PairCache, out []Point) []Point {
	alg := d.table[a.Shape.Kind()][b.Shape.Kind()]
	if alg.fn == nil {
		return out
	}
	if !alg.swap {
		return alg.fn(d, a, b, cache, out)
	}
	// The separating vector is stored as A-B of the order the algorithm sees.
	if cache != nil {
		cache.Dir = cache.Dir.Mul(-1)
		defer func() { cache.Dir = cache.Dir.Mul(-1) }()
	}
	n := len(out)
	out = alg.fn(d, b, a, cache, out)
	for i := n; i < len(out); i++ {
		p := &out[i]
		p.PositionA, p.PositionB = p.PositionB, p.PositionA
		p.Normal = p.Normal.Mul(-1)
	}
	return out
}

// TestPair computes the manifold between a and b. It reports false when
// the shapes are farther apart than TouchSlop or the pair is not collided.
func (d *Dispatcher) TestPair(a, b Input, cache *PairCache) (Manifold, bool) {
	var buf [16]Point
	pts := d.collide(a, b, cache, buf[:0])

	var m Manifold
	if len(pts) == 0 {
		return m, false
	}
	deepest := 0
	for i := range pts {
		if pts[i].Separation < pts[deepest].Separation {
			deepest = i
		}
	}
	reduce(pts, pts[deepest].Normal, &m)
	for i := range m.Slice() {
		p := &m.Points[i]
		p.LocalA = a.Transform.InverseApply(p.PositionA)
		p.LocalB = b.Transform.InverseApply(p.PositionB)
	}
	return m, true
}

// Stats returns the fallback counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		GJKFallbacks: d.stats.gjkFallbacks.Load(),
		EPAFallbacks: d.stats.epaFallbacks.Load(),
	}
}

// ResetStats zeroes the fallback counters.
func (d *Dispatcher) ResetStats() {
	d.stats.gjkFallbacks.Store(0)
	d.stats.epaFallbacks.Store(0)
}
