package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// ConvexMesh is a user supplied convex polyhedron.
type ConvexMesh struct {
	hull     *Hull
	volume   float64
	centroid mgl64.Vec3
}

// NewConvexMesh builds a convex mesh from vertices and faces wound
// counter-clockwise seen from outside.
func NewConvexMesh(vertices []mgl64.Vec3, faces [][]int) (*ConvexMesh, error) {
	hull, err := NewHull(vertices, faces)
	if err != nil {
		return nil, err
	}
	m := &ConvexMesh{hull: hull}

	// Fan every face into tetrahedra around the vertex average.
	o := hull.Center
	var weighted mgl64.Vec3
	for _, f := range hull.Faces {
		a := hull.Vertices[f.Vertices[0]]
		for i := 1; i+1 < len(f.Vertices); i++ {
			b, c := hull.Vertices[f.Vertices[i]], hull.Vertices[f.Vertices[i+1]]
			v := a.Sub(o).Dot(b.Sub(o).Cross(c.Sub(o))) / 6
			m.volume += v
			weighted = weighted.Add(o.Add(a).Add(b).Add(c).Mul(v / 4))
		}
	}
	if m.volume < geom.Epsilon || math.IsNaN(m.volume) {
		return nil, fmt.Errorf("%w: convex mesh has no volume", dynamo.ErrInvalidShape)
	}
	m.centroid = weighted.Mul(1 / m.volume)
	return m, nil
}

func (m *ConvexMesh) Kind() Kind { return KindConvexMesh }

func (m *ConvexMesh) Hull() *Hull { return m.hull }

func (m *ConvexMesh) LocalBounds() geom.AABB { return m.hull.Bounds() }

func (m *ConvexMesh) Volume() float64 { return m.volume }

func (m *ConvexMesh) Centroid() mgl64.Vec3 { return m.centroid }

// Inertia approximates the mesh by its bounding box.
func (m *ConvexMesh) Inertia(mass float64) mgl64.Mat3 {
	return boxInertia(mass, m.hull.Bounds().HalfExtents())
}

func (m *ConvexMesh) SupportCore(dir mgl64.Vec3) mgl64.Vec3 {
	p, _ := m.hull.Support(dir)
	return p
}

func (m *ConvexMesh) Margin() float64 { return 0 }

func (m *ConvexMesh) Raycast(ray geom.Ray) (geom.RayHit, bool) { return m.hull.raycast(ray) }
