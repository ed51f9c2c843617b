// Package shape defines the closed set of collision shapes: sphere, capsule,
// box, convex mesh, triangle, triangle mesh and height field.
//
// Shapes are immutable once built and live in their own local frame. Convex
// shapes expose a core support function plus a margin, so spheres and capsules
// are a point and a segment inflated by their radius. Polyhedra additionally
// expose a [Hull] with faces and edges for separating-axis tests.
package shape

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

// Kind tags a shape. The narrow phase dispatches on pairs of kinds.
type Kind uint8

const (
	KindSphere Kind = iota
	KindCapsule
	KindBox
	KindConvexMesh
	KindTriangle
	KindTriangleMesh
	KindHeightField

	KindCount
)

var kindNames = [KindCount]string{
	"sphere", "capsule", "box", "convex_mesh", "triangle", "triangle_mesh", "height_field",
}

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return "unknown"
}

// IsConvex reports whether the kind has a support function.
func (k Kind) IsConvex() bool { return k <= KindTriangle }

// IsPolyhedron reports whether the kind carries a Hull.
func (k Kind) IsPolyhedron() bool {
	return k == KindBox || k == KindConvexMesh || k == KindTriangle
}

// IsConcave reports whether the kind must be decomposed into triangles.
func (k Kind) IsConcave() bool { return k == KindTriangleMesh || k == KindHeightField }

// Shape is implemented by every shape.
type Shape interface {
	Kind() Kind
	// LocalBounds is the tight box in the shape frame.
	LocalBounds() geom.AABB
	// Volume is zero for shapes that cannot carry mass.
	Volume() float64
	// Centroid is the center of mass in the shape frame.
	Centroid() mgl64.Vec3
	// Inertia is the inertia tensor about Centroid for the given mass.
	Inertia(mass float64) mgl64.Mat3
	// Raycast intersects a shape-local ray.
	Raycast(ray geom.Ray) (geom.RayHit, bool)
}

// Convex shapes are a core (point, segment or polyhedron) inflated by a margin.
type Convex interface {
	Shape
	// SupportCore returns the core point farthest along dir.
	SupportCore(dir mgl64.Vec3) mgl64.Vec3
	// Margin is the inflation radius of the core.
	Margin() float64
}

// Polyhedron is a convex shape with explicit faces and edges.
type Polyhedron interface {
	Convex
	Hull() *Hull
}

// Support returns the point of the full convex shape farthest along dir.
func Support(c Convex, dir mgl64.Vec3) mgl64.Vec3 {
	p := c.SupportCore(dir)
	if m := c.Margin(); m > 0 {
		p = p.Add(geom.SafeNormalize(dir, mgl64.Vec3{1, 0, 0}).Mul(m))
	}
	return p
}

// HasMass reports whether s can be attached to a dynamic body.
func HasMass(s Shape) bool {
	return !s.Kind().IsConcave() && s.Kind() != KindTriangle
}
