package narrowphase

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

func at(s shape.Shape, p mgl64.Vec3) Input {
	return Input{Shape: s, Transform: geom.Translation(p)}
}

func rotated(s shape.Shape, p mgl64.Vec3, angle float64, axis mgl64.Vec3) Input {
	return Input{Shape: s, Transform: geom.NewTransform(p, mgl64.QuatRotate(angle, axis))}
}

func mustSphere(t *testing.T, r float64) *shape.Sphere {
	t.Helper()
	s, err := shape.NewSphere(r)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustBox(t *testing.T, h mgl64.Vec3) *shape.Box {
	t.Helper()
	b, err := shape.NewBox(h)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func mustCapsule(t *testing.T, r, h float64) *shape.Capsule {
	t.Helper()
	c, err := shape.NewCapsule(r, h)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func checkPoints(t *testing.T, m Manifold, sep float64, normal mgl64.Vec3, tol float64) {
	t.Helper()
	for i, p := range m.Slice() {
		if math.Abs(p.Separation-sep) > tol {
			t.Errorf("point %d: expected separation %v, got %v", i, sep, p.Separation)
		}
		if !p.Normal.ApproxEqualThreshold(normal, tol) {
			t.Errorf("point %d: expected normal %v, got %v", i, normal, p.Normal)
		}
	}
}

func TestSphereSphere(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	unit := mustSphere(t, 1)

	m, ok := d.TestPair(at(unit, mgl64.Vec3{}), at(unit, mgl64.Vec3{1.9, 0, 0}), nil)
	if !ok || m.Count != 1 {
		t.Fatalf("expected one contact, got ok=%v count=%d", ok, m.Count)
	}
	p := m.Points[0]
	if math.Abs(p.Separation+0.1) > 1e-12 {
		t.Errorf("expected separation -0.1, got %v", p.Separation)
	}
	if !p.Normal.ApproxEqual(mgl64.Vec3{1, 0, 0}) {
		t.Errorf("expected normal along the centers, got %v", p.Normal)
	}
	if !p.PositionA.ApproxEqual(mgl64.Vec3{1, 0, 0}) || !p.PositionB.ApproxEqual(mgl64.Vec3{0.9, 0, 0}) {
		t.Errorf("unexpected positions %v %v", p.PositionA, p.PositionB)
	}
	if !p.LocalB.ApproxEqual(mgl64.Vec3{-1, 0, 0}) {
		t.Errorf("expected local point on B's surface, got %v", p.LocalB)
	}

	if _, ok := d.TestPair(at(unit, mgl64.Vec3{}), at(unit, mgl64.Vec3{2.5, 0, 0}), nil); ok {
		t.Error("separated spheres should not touch")
	}

	m, ok = d.TestPair(at(unit, mgl64.Vec3{}), at(unit, mgl64.Vec3{2.003, 0, 0}), nil)
	if !ok || m.Points[0].Separation <= 0 {
		t.Errorf("expected a speculative contact inside the slop, got ok=%v %+v", ok, m.Points[0])
	}
}

func TestSphereCapsule(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	s := mustSphere(t, 0.5)
	c := mustCapsule(t, 0.5, 1)

	m, ok := d.TestPair(at(c, mgl64.Vec3{}), at(s, mgl64.Vec3{0.9, 0.5, 0}), nil)
	if !ok || m.Count != 1 {
		t.Fatalf("expected one contact, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.1, mgl64.Vec3{1, 0, 0}, 1e-9)
}

func TestCapsuleCapsuleParallel(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	c := mustCapsule(t, 0.5, 1)

	m, ok := d.TestPair(at(c, mgl64.Vec3{}), at(c, mgl64.Vec3{0.95, 0.5, 0}), nil)
	if !ok || m.Count != 2 {
		t.Fatalf("expected two contacts for parallel capsules, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.05, mgl64.Vec3{1, 0, 0}, 1e-9)
	if m.Points[0].ID == m.Points[1].ID {
		t.Error("expected distinct feature ids")
	}

	crossed := rotated(c, mgl64.Vec3{0, 0, 0.9}, math.Pi/2, mgl64.Vec3{0, 0, 1})
	m, ok = d.TestPair(at(c, mgl64.Vec3{}), crossed, nil)
	if !ok || m.Count != 1 {
		t.Fatalf("expected one contact for crossed capsules, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.1, mgl64.Vec3{0, 0, 1}, 1e-9)
}

func TestSphereBox(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	box := mustBox(t, mgl64.Vec3{1, 1, 1})
	s := mustSphere(t, 0.5)

	tests := []struct {
		name   string
		center mgl64.Vec3
		sep    float64
	}{
		{"shallow", mgl64.Vec3{0.2, 1.4, -0.3}, -0.1},
		{"deep", mgl64.Vec3{0, 0.8, 0}, -0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := d.TestPair(at(box, mgl64.Vec3{}), at(s, tt.center), &PairCache{})
			if !ok || m.Count != 1 {
				t.Fatalf("expected one contact, got ok=%v count=%d", ok, m.Count)
			}
			checkPoints(t, m, tt.sep, mgl64.Vec3{0, 1, 0}, 1e-6)
		})
	}

	if _, ok := d.TestPair(at(s, mgl64.Vec3{0, 3, 0}), at(box, mgl64.Vec3{}), &PairCache{}); ok {
		t.Error("sphere above the box should not touch")
	}
}

func TestCapsuleOnBoxFace(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	box := mustBox(t, mgl64.Vec3{2, 0.5, 2})
	lying := rotated(mustCapsule(t, 0.25, 0.5), mgl64.Vec3{0, 0.74, 0}, math.Pi/2, mgl64.Vec3{0, 0, 1})

	m, ok := d.TestPair(lying, at(box, mgl64.Vec3{}), nil)
	if !ok || m.Count != 2 {
		t.Fatalf("expected two contacts for a lying capsule, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.01, mgl64.Vec3{0, -1, 0}, 1e-9)
}

func TestBoxOnBox(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	ground := mustBox(t, mgl64.Vec3{5, 0.5, 5})
	cube := mustBox(t, mgl64.Vec3{0.5, 0.5, 0.5})

	cache := &PairCache{}
	m, ok := d.TestPair(at(ground, mgl64.Vec3{}), at(cube, mgl64.Vec3{0, 0.98, 0}), cache)
	if !ok || m.Count != 4 {
		t.Fatalf("expected four contacts, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.02, mgl64.Vec3{0, 1, 0}, 1e-9)

	again, _ := d.TestPair(at(ground, mgl64.Vec3{}), at(cube, mgl64.Vec3{0, 0.981, 0}), cache)
	ids := map[uint64]bool{}
	for _, p := range m.Slice() {
		ids[p.ID] = true
	}
	for _, p := range again.Slice() {
		if !ids[p.ID] {
			t.Errorf("feature id %x changed between frames", p.ID)
		}
	}

	flipped, ok := d.TestPair(at(cube, mgl64.Vec3{0, 0.98, 0}), at(ground, mgl64.Vec3{}), nil)
	if !ok || flipped.Count != 4 {
		t.Fatalf("expected four contacts with swapped order, got %d", flipped.Count)
	}
	checkPoints(t, flipped, -0.02, mgl64.Vec3{0, -1, 0}, 1e-9)
}

func TestBoxEdgeEdge(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	cube := mustBox(t, mgl64.Vec3{1, 1, 1})
	a := rotated(cube, mgl64.Vec3{}, math.Pi/4, mgl64.Vec3{0, 0, 1})
	b := rotated(cube, mgl64.Vec3{0, 2*math.Sqrt2 - 0.1, 0}, math.Pi/4, mgl64.Vec3{1, 0, 0})

	m, ok := d.TestPair(a, b, nil)
	if !ok || m.Count != 1 {
		t.Fatalf("expected a single edge contact, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.1, mgl64.Vec3{0, 1, 0}, 1e-9)
	if !m.Points[0].PositionA.ApproxEqualThreshold(mgl64.Vec3{0, math.Sqrt2, 0}, 1e-9) {
		t.Errorf("expected contact on the top edge of A, got %v", m.Points[0].PositionA)
	}
}

func TestSeparatedBoxesCacheAxis(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	cube := mustBox(t, mgl64.Vec3{0.5, 0.5, 0.5})
	cache := &PairCache{}
	if _, ok := d.TestPair(at(cube, mgl64.Vec3{}), at(cube, mgl64.Vec3{1.2, 0, 0}), cache); ok {
		t.Fatal("boxes are apart")
	}
	if cache.Dir.Len() < 0.1 {
		t.Errorf("expected the separating vector to be cached, got %v", cache.Dir)
	}
	if _, ok := d.TestPair(at(cube, mgl64.Vec3{}), at(cube, mgl64.Vec3{1.2, 0, 0}), cache); ok {
		t.Fatal("boxes are still apart")
	}
}

func TestSphereOnTriangleMesh(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	verts := []mgl64.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}}
	mesh, err := shape.NewTriangleMesh(verts, [][3]int{{0, 2, 1}, {0, 3, 2}})
	if err != nil {
		t.Fatal(err)
	}
	s := mustSphere(t, 0.5)

	m, ok := d.TestPair(at(mesh, mgl64.Vec3{}), at(s, mgl64.Vec3{0.3, 0.45, -0.5}), nil)
	if !ok || m.Count != 1 {
		t.Fatalf("expected one contact, got ok=%v count=%d", ok, m.Count)
	}
	checkPoints(t, m, -0.05, mgl64.Vec3{0, 1, 0}, 1e-6)

	m, ok = d.TestPair(at(s, mgl64.Vec3{0.3, 0.45, -0.5}), at(mesh, mgl64.Vec3{}), nil)
	if !ok {
		t.Fatal("expected contact with swapped order")
	}
	checkPoints(t, m, -0.05, mgl64.Vec3{0, -1, 0}, 1e-6)
}

func TestBoxOnHeightField(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	field, err := shape.NewHeightField(5, 5, 1, make([]float64, 25))
	if err != nil {
		t.Fatal(err)
	}
	cube := mustBox(t, mgl64.Vec3{0.4, 0.4, 0.4})

	m, ok := d.TestPair(at(field, mgl64.Vec3{}), at(cube, mgl64.Vec3{0.5, 0.39, 0.5}), nil)
	if !ok || m.Count == 0 {
		t.Fatalf("expected contacts, got ok=%v", ok)
	}
	if m.Count > MaxPoints {
		t.Errorf("manifold exceeds capacity: %d", m.Count)
	}
	if math.Abs(m.Deepest()+0.01) > 1e-6 {
		t.Errorf("expected deepest separation -0.01, got %v", m.Deepest())
	}
	if !m.Normal.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-6) {
		t.Errorf("expected up normal, got %v", m.Normal)
	}
}

func TestConcavePairsAreSkipped(t *testing.T) {
	d := NewDispatcher(DefaultTouchSlop)
	if d.Supports(shape.KindTriangleMesh, shape.KindHeightField) {
		t.Error("concave pairs must not be collided")
	}
	if !d.Supports(shape.KindHeightField, shape.KindCapsule) || !d.Supports(shape.KindCapsule, shape.KindHeightField) {
		t.Error("expected concave vs convex in both orders")
	}
}

func TestReduceKeepsCorners(t *testing.T) {
	n := mgl64.Vec3{0, 1, 0}
	var pts []Point
	for _, xz := range [][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {0, 0}, {0.5, 0}, {0, -0.5}} {
		p := mgl64.Vec3{xz[0], 0, xz[1]}
		pts = append(pts, makePoint(p, p.Sub(n.Mul(0.01)), n, featureID(uint32(len(pts)))))
	}
	pts[4].Separation = -0.5

	var m Manifold
	reduce(pts, n, &m)
	if m.Count != 4 {
		t.Fatalf("expected 4 points, got %d", m.Count)
	}
	if m.Points[0].Separation != -0.5 {
		t.Error("expected the deepest point first")
	}
	corners := 0
	for _, p := range m.Slice()[1:] {
		if math.Abs(p.PositionA[0]) == 1 && math.Abs(p.PositionA[2]) == 1 {
			corners++
		}
	}
	if corners != 3 {
		t.Errorf("expected three corners besides the deepest point, got %d", corners)
	}
}

func TestGJKDistance(t *testing.T) {
	box := mustBox(t, mgl64.Vec3{1, 1, 1})
	ca := newCore(at(box, mgl64.Vec3{}))
	cb := newCore(rotated(box, mgl64.Vec3{4, 0.3, 0}, math.Pi/4, mgl64.Vec3{0, 1, 0}))
	r := gjk(&ca, &cb, mgl64.Vec3{})
	if r.overlap || !r.converged {
		t.Fatalf("expected separated result, got %+v", r)
	}
	want := 4 - 1 - math.Sqrt2
	if math.Abs(r.distance-want) > 1e-9 {
		t.Errorf("expected distance %v, got %v", want, r.distance)
	}
	if !r.normal.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("expected normal +X, got %v", r.normal)
	}
}
