package shape

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

var tetraVerts = []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
var tetraFaces = [][]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestInvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"zero sphere", func() error { _, err := NewSphere(0); return err }},
		{"nan sphere", func() error { _, err := NewSphere(math.NaN()); return err }},
		{"negative capsule height", func() error { _, err := NewCapsule(1, -1); return err }},
		{"flat box", func() error { _, err := NewBox(mgl64.Vec3{1, 0, 1}); return err }},
		{"degenerate triangle", func() error { _, err := NewTriangle(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}); return err }},
		{"open hull", func() error { _, err := NewConvexMesh(tetraVerts, tetraFaces[:3]); return err }},
		{"inward hull", func() error {
			inward := [][]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}}
			_, err := NewConvexMesh(tetraVerts, inward)
			return err
		}},
		{"mesh index out of range", func() error { _, err := NewTriangleMesh(tetraVerts, [][3]int{{0, 1, 9}}); return err }},
		{"height field sample count", func() error { _, err := NewHeightField(3, 3, 1, []float64{0, 0}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, dynamo.ErrInvalidShape) {
				t.Errorf("expected ErrInvalidShape, got %v", err)
			}
		})
	}
}

func TestMassProperties(t *testing.T) {
	s, _ := NewSphere(2)
	if !near(s.Volume(), 4.0/3.0*math.Pi*8) {
		t.Errorf("sphere volume %v", s.Volume())
	}
	if i := s.Inertia(5); !near(i.At(0, 0), 0.4*5*4) || i.At(0, 1) != 0 {
		t.Errorf("sphere inertia %v", i)
	}

	b, _ := NewBox(mgl64.Vec3{1, 2, 3})
	if !near(b.Volume(), 48) {
		t.Errorf("box volume %v", b.Volume())
	}
	bi := b.Inertia(12)
	// m/12 * (h² + d²) with full extents 2, 4, 6.
	want := mgl64.Vec3{(16 + 36), (4 + 36), (4 + 16)}
	for k := 0; k < 3; k++ {
		if !near(bi.At(k, k), want[k]) {
			t.Errorf("box inertia[%d] = %v, want %v", k, bi.At(k, k), want[k])
		}
	}

	c, _ := NewCapsule(1, 1e-9)
	ci := c.Inertia(3)
	if math.Abs(ci.At(0, 0)-0.4*3) > 1e-6 || math.Abs(ci.At(1, 1)-0.4*3) > 1e-6 {
		t.Errorf("short capsule should match a sphere, got %v", ci)
	}
	long, _ := NewCapsule(0.5, 2)
	li := long.Inertia(1)
	if li.At(0, 0) <= li.At(1, 1) {
		t.Errorf("long capsule should resist tumbling more than spinning: %v", li)
	}

	m, err := NewConvexMesh(tetraVerts, tetraFaces)
	if err != nil {
		t.Fatal(err)
	}
	if !near(m.Volume(), 1.0/6.0) {
		t.Errorf("tetra volume %v", m.Volume())
	}
	if !m.Centroid().ApproxEqualThreshold(mgl64.Vec3{0.25, 0.25, 0.25}, 1e-9) {
		t.Errorf("tetra centroid %v", m.Centroid())
	}
}

func TestHullTopology(t *testing.T) {
	b, _ := NewBox(mgl64.Vec3{1, 1, 1})
	h := b.Hull()
	if len(h.Vertices) != 8 || len(h.Faces) != 6 || len(h.Edges) != 12 {
		t.Fatalf("box hull has %d vertices %d faces %d edges", len(h.Vertices), len(h.Faces), len(h.Edges))
	}
	for i, f := range h.Faces {
		if !near(f.Offset, 1) {
			t.Errorf("face %d offset %v", i, f.Offset)
		}
	}
	if fi := h.MostAlignedFace(mgl64.Vec3{0, 1, 0}); !h.Faces[fi].Normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("expected +Y face, got normal %v", h.Faces[fi].Normal)
	}
	p, _ := h.Support(mgl64.Vec3{1, -1, 1})
	if p != b.SupportCore(mgl64.Vec3{1, -1, 1}) {
		t.Errorf("hull support %v differs from box support", p)
	}

	tri := MakeTriangle(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, -1}, 3)
	if !tri.Normal().ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("triangle normal %v", tri.Normal())
	}
	if len(tri.Hull().Faces) != 2 || len(tri.Hull().Edges) != 3 {
		t.Errorf("triangle hull topology")
	}
}

func TestSupportWithMargin(t *testing.T) {
	c, _ := NewCapsule(0.5, 1)
	p := Support(c, mgl64.Vec3{0, 2, 0})
	if !p.ApproxEqual(mgl64.Vec3{0, 1.5, 0}) {
		t.Errorf("capsule support %v", p)
	}
	s, _ := NewSphere(1)
	if p := Support(s, mgl64.Vec3{}); !near(p.Len(), 1) {
		t.Errorf("zero direction should still land on the surface, got %v", p)
	}
}

func TestRaycast(t *testing.T) {
	sphere, _ := NewSphere(1)
	capsule, _ := NewCapsule(0.5, 1)
	box, _ := NewBox(mgl64.Vec3{1, 1, 1})
	tetra, _ := NewConvexMesh(tetraVerts, tetraFaces)
	tri, _ := NewTriangle(mgl64.Vec3{-1, 0, -1}, mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, -1})

	tests := []struct {
		name     string
		s        Shape
		ray      geom.Ray
		hit      bool
		fraction float64
		normal   mgl64.Vec3
	}{
		{"sphere from above", sphere, geom.NewRay(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -5, 0}), true, 0.4, mgl64.Vec3{0, 1, 0}},
		{"sphere miss", sphere, geom.NewRay(mgl64.Vec3{2, 5, 0}, mgl64.Vec3{2, -5, 0}), false, 0, mgl64.Vec3{}},
		{"sphere from inside", sphere, geom.NewRay(mgl64.Vec3{}, mgl64.Vec3{0, 5, 0}), false, 0, mgl64.Vec3{}},
		{"capsule side", capsule, geom.NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0}), true, 0.45, mgl64.Vec3{-1, 0, 0}},
		{"capsule cap", capsule, geom.NewRay(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -5, 0}), true, 0.35, mgl64.Vec3{0, 1, 0}},
		{"box face", box, geom.NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0}), true, 0.4, mgl64.Vec3{-1, 0, 0}},
		{"box too short", box, geom.Ray{From: mgl64.Vec3{-5, 0, 0}, To: mgl64.Vec3{5, 0, 0}, MaxFraction: 0.3}, false, 0, mgl64.Vec3{}},
		{"tetra slanted face", tetra, geom.NewRay(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{0, 0, 0}), true, 2.0 / 3.0, mgl64.Vec3{1, 1, 1}.Normalize()},
		{"triangle from below", tri, geom.NewRay(mgl64.Vec3{0, -1, 0}, mgl64.Vec3{0, 1, 0}), true, 0.5, mgl64.Vec3{0, -1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := tt.s.Raycast(tt.ray)
			if ok != tt.hit {
				t.Fatalf("expected hit=%v, got %v", tt.hit, ok)
			}
			if !ok {
				return
			}
			if math.Abs(hit.Fraction-tt.fraction) > 1e-9 {
				t.Errorf("expected fraction %v, got %v", tt.fraction, hit.Fraction)
			}
			if !hit.Normal.ApproxEqualThreshold(tt.normal, 1e-9) {
				t.Errorf("expected normal %v, got %v", tt.normal, hit.Normal)
			}
		})
	}
}

func TestTriangleMesh(t *testing.T) {
	verts := []mgl64.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}, {5, 0, 5}, {6, 0, 5}, {5, 0, 6}}
	m, err := NewTriangleMesh(verts, [][3]int{{0, 2, 1}, {0, 3, 2}, {4, 6, 5}})
	if err != nil {
		t.Fatal(err)
	}
	var found []int
	m.QueryTriangles(geom.FromCenterHalf(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5}), func(i int, a, b, c mgl64.Vec3) bool {
		found = append(found, i)
		return true
	})
	if len(found) != 2 {
		t.Errorf("expected the two floor triangles, got %v", found)
	}

	hit, ok := m.Raycast(geom.NewRay(mgl64.Vec3{5.2, 1, 5.2}, mgl64.Vec3{5.2, -1, 5.2}))
	if !ok || hit.Feature != 2 || !near(hit.Fraction, 0.5) {
		t.Errorf("expected hit on triangle 2 at 0.5, got %+v ok=%v", hit, ok)
	}
	if !hit.Normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("normal %v", hit.Normal)
	}
}

func TestHeightField(t *testing.T) {
	h, err := NewHeightField(3, 3, 1, make([]float64, 9))
	if err != nil {
		t.Fatal(err)
	}
	b := h.LocalBounds()
	if !b.Min.ApproxEqual(mgl64.Vec3{-1, 0, -1}) || !b.Max.ApproxEqual(mgl64.Vec3{1, 0, 1}) {
		t.Errorf("bounds %v", b)
	}

	n := 0
	h.QueryTriangles(geom.NewAABB(mgl64.Vec3{-2, -1, -2}, mgl64.Vec3{2, 1, 2}), func(_ int, a, b, c mgl64.Vec3) bool {
		if geom.TriangleNormal(a, b, c)[1] <= 0 {
			t.Errorf("triangle %v %v %v faces down", a, b, c)
		}
		n++
		return true
	})
	if n != 8 {
		t.Errorf("expected 8 triangles, got %d", n)
	}

	n = 0
	h.QueryTriangles(geom.NewAABB(mgl64.Vec3{0.2, -1, 0.2}, mgl64.Vec3{0.4, 1, 0.4}), func(int, mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) bool {
		n++
		return true
	})
	if n == 0 || n > 2 {
		t.Errorf("expected one cell, got %d triangles", n)
	}

	hit, ok := h.Raycast(geom.NewRay(mgl64.Vec3{0.3, 5, 0.2}, mgl64.Vec3{0.3, -5, 0.2}))
	if !ok || !near(hit.Fraction, 0.5) || !hit.Normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("height field ray %+v ok=%v", hit, ok)
	}
}

func TestKinds(t *testing.T) {
	if !KindBox.IsPolyhedron() || KindSphere.IsPolyhedron() {
		t.Error("polyhedron kinds")
	}
	if !KindHeightField.IsConcave() || KindTriangle.IsConcave() {
		t.Error("concave kinds")
	}
	tri, _ := NewTriangle(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 1})
	s, _ := NewSphere(1)
	if HasMass(tri) || !HasMass(s) {
		t.Error("mass eligibility")
	}
	if KindConvexMesh.String() != "convex_mesh" {
		t.Errorf("got %q", KindConvexMesh.String())
	}
}
