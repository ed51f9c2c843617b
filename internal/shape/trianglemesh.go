package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// meshTreeMargin keeps flat triangles from producing empty boxes.
const meshTreeMargin = 1e-3

// TriangleMesh is a static concave mesh. Triangles are indexed by an AABB
// tree built once at construction.
type TriangleMesh struct {
	vertices  []mgl64.Vec3
	triangles [][3]int
	tree      *broadphase.Tree
	bounds    geom.AABB
}

func NewTriangleMesh(vertices []mgl64.Vec3, triangles [][3]int) (*TriangleMesh, error) {
	if len(vertices) < 3 || len(triangles) == 0 {
		return nil, fmt.Errorf("%w: triangle mesh needs vertices and triangles", dynamo.ErrInvalidShape)
	}
	m := &TriangleMesh{
		vertices:  append([]mgl64.Vec3(nil), vertices...),
		triangles: append([][3]int(nil), triangles...),
		tree:      broadphase.NewTree(meshTreeMargin, 0),
	}
	for i, tri := range m.triangles {
		for _, vi := range tri {
			if vi < 0 || vi >= len(vertices) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d", dynamo.ErrInvalidShape, i, vi)
			}
		}
		a, b, c := m.Triangle(i)
		if !geom.IsFinite(a) || !geom.IsFinite(b) || !geom.IsFinite(c) {
			return nil, fmt.Errorf("%w: triangle %d is not finite", dynamo.ErrInvalidShape, i)
		}
		if geom.TriangleNormal(a, b, c).Len() < geom.Epsilon {
			return nil, fmt.Errorf("%w: triangle %d is degenerate", dynamo.ErrInvalidShape, i)
		}
		box := geom.FromPoints(a, b, c)
		if _, err := m.tree.Insert(box, i); err != nil {
			return nil, fmt.Errorf("triangle %d: %w", i, err)
		}
		if i == 0 {
			m.bounds = box
		} else {
			m.bounds = m.bounds.Merge(box)
		}
	}
	return m, nil
}

func (m *TriangleMesh) Kind() Kind { return KindTriangleMesh }

// TriangleCount is the number of triangles.
func (m *TriangleMesh) TriangleCount() int { return len(m.triangles) }

// Triangle returns the corners of triangle i.
func (m *TriangleMesh) Triangle(i int) (a, b, c mgl64.Vec3) {
	t := m.triangles[i]
	return m.vertices[t[0]], m.vertices[t[1]], m.vertices[t[2]]
}

// QueryTriangles calls fn for every triangle whose box overlaps aabb until fn
// returns false.
func (m *TriangleMesh) QueryTriangles(aabb geom.AABB, fn func(index int, a, b, c mgl64.Vec3) bool) {
	m.tree.Query(aabb, func(id int) bool {
		i := m.tree.UserData(id)
		a, b, c := m.Triangle(i)
		return fn(i, a, b, c)
	})
}

func (m *TriangleMesh) LocalBounds() geom.AABB { return m.bounds }

func (m *TriangleMesh) Volume() float64 { return 0 }

func (m *TriangleMesh) Centroid() mgl64.Vec3 { return m.bounds.Center() }

func (m *TriangleMesh) Inertia(float64) mgl64.Mat3 { return mgl64.Mat3{} }

// Raycast returns the nearest triangle hit; Feature holds the triangle index.
func (m *TriangleMesh) Raycast(ray geom.Ray) (geom.RayHit, bool) {
	best := geom.RayHit{Fraction: math.Inf(1)}
	m.tree.RayCast(ray, func(id int, r geom.Ray) float64 {
		i := m.tree.UserData(id)
		a, b, c := m.Triangle(i)
		hit, ok := rayTriangle(r, a, b, c)
		if !ok {
			return -1
		}
		if hit.Fraction < best.Fraction {
			best = hit
			best.Feature = i
		}
		return hit.Fraction
	})
	if math.IsInf(best.Fraction, 1) {
		return geom.RayHit{}, false
	}
	return best, true
}
