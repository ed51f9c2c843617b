package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Triangle is a flat, two-sided polyhedron. Concave shapes are collided one
// triangle at a time.
type Triangle struct {
	Points [3]mgl64.Vec3
	// Index is the triangle index inside its parent mesh, or -1.
	Index int
	hull  Hull
}

var triangleFaceIndices = [2][]int{{0, 1, 2}, {0, 2, 1}}

// NewTriangle rejects triangles with (nearly) zero area.
func NewTriangle(a, b, c mgl64.Vec3) (*Triangle, error) {
	if !geom.IsFinite(a) || !geom.IsFinite(b) || !geom.IsFinite(c) {
		return nil, fmt.Errorf("%w: triangle vertex is not finite", dynamo.ErrInvalidShape)
	}
	if b.Sub(a).Cross(c.Sub(a)).Len() < geom.Epsilon {
		return nil, fmt.Errorf("%w: degenerate triangle", dynamo.ErrInvalidShape)
	}
	return MakeTriangle(a, b, c, -1), nil
}

// MakeTriangle builds a triangle without validation.
func MakeTriangle(a, b, c mgl64.Vec3, index int) *Triangle {
	t := &Triangle{Points: [3]mgl64.Vec3{a, b, c}, Index: index}
	n := geom.SafeNormalize(geom.TriangleNormal(a, b, c), mgl64.Vec3{0, 1, 0})
	t.hull = Hull{
		Vertices: []mgl64.Vec3{a, b, c},
		Faces: []Face{
			{Vertices: triangleFaceIndices[0], Normal: n, Offset: n.Dot(a)},
			{Vertices: triangleFaceIndices[1], Normal: n.Mul(-1), Offset: -n.Dot(a)},
		},
		Edges: []Edge{
			{A: 0, B: 1, Faces: [2]int{0, 1}},
			{A: 1, B: 2, Faces: [2]int{0, 1}},
			{A: 2, B: 0, Faces: [2]int{0, 1}},
		},
		Center: a.Add(b).Add(c).Mul(1.0 / 3.0),
		bounds: geom.FromPoints(a, b, c),
	}
	return t
}

func (t *Triangle) Kind() Kind { return KindTriangle }

func (t *Triangle) Hull() *Hull { return &t.hull }

// Normal is the front face normal (counter-clockwise winding).
func (t *Triangle) Normal() mgl64.Vec3 { return t.hull.Faces[0].Normal }

func (t *Triangle) LocalBounds() geom.AABB { return t.hull.bounds }

func (t *Triangle) Volume() float64 { return 0 }

func (t *Triangle) Centroid() mgl64.Vec3 { return t.hull.Center }

func (t *Triangle) Inertia(float64) mgl64.Mat3 { return mgl64.Mat3{} }

func (t *Triangle) SupportCore(dir mgl64.Vec3) mgl64.Vec3 {
	p, _ := t.hull.Support(dir)
	return p
}

func (t *Triangle) Margin() float64 { return 0 }

// Raycast is two-sided; the reported normal faces the ray origin.
func (t *Triangle) Raycast(ray geom.Ray) (geom.RayHit, bool) {
	return rayTriangle(ray, t.Points[0], t.Points[1], t.Points[2])
}

func rayTriangle(ray geom.Ray, a, b, c mgl64.Vec3) (geom.RayHit, bool) {
	d := ray.To.Sub(ray.From)
	e1, e2 := b.Sub(a), c.Sub(a)
	p := d.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < geom.Epsilon {
		return geom.RayHit{}, false
	}
	inv := 1 / det
	s := ray.From.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return geom.RayHit{}, false
	}
	q := s.Cross(e1)
	v := d.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return geom.RayHit{}, false
	}
	f := e2.Dot(q) * inv
	if f < 0 || f > ray.MaxFraction {
		return geom.RayHit{}, false
	}
	n := e1.Cross(e2).Normalize()
	if n.Dot(d) > 0 {
		n = n.Mul(-1)
	}
	return geom.RayHit{Point: ray.At(f), Normal: n, Fraction: f, Feature: -1}, true
}
