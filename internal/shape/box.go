package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Box is an axis-aligned box centered on the local origin.
type Box struct {
	HalfExtents mgl64.Vec3
	hull        *Hull
}

var boxFaces = [][]int{
	{0, 4, 6, 2}, // -X
	{1, 3, 7, 5}, // +X
	{0, 1, 5, 4}, // -Y
	{2, 6, 7, 3}, // +Y
	{0, 2, 3, 1}, // -Z
	{4, 5, 7, 6}, // +Z
}

func NewBox(halfExtents mgl64.Vec3) (*Box, error) {
	for i := 0; i < 3; i++ {
		if !(halfExtents[i] > 0) || math.IsInf(halfExtents[i], 0) {
			return nil, fmt.Errorf("%w: box half extents %v", dynamo.ErrInvalidShape, halfExtents)
		}
	}
	// Vertex i has bit 0 for +X, bit 1 for +Y, bit 2 for +Z.
	verts := make([]mgl64.Vec3, 8)
	for i := range verts {
		v := halfExtents.Mul(-1)
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				v[axis] = halfExtents[axis]
			}
		}
		verts[i] = v
	}
	hull, err := NewHull(verts, boxFaces)
	if err != nil {
		return nil, err
	}
	return &Box{HalfExtents: halfExtents, hull: hull}, nil
}

func (b *Box) Kind() Kind { return KindBox }

func (b *Box) Hull() *Hull { return b.hull }

func (b *Box) LocalBounds() geom.AABB {
	return geom.FromCenterHalf(mgl64.Vec3{}, b.HalfExtents)
}

func (b *Box) Volume() float64 {
	h := b.HalfExtents
	return 8 * h[0] * h[1] * h[2]
}

func (b *Box) Centroid() mgl64.Vec3 { return mgl64.Vec3{} }

func (b *Box) Inertia(mass float64) mgl64.Mat3 { return boxInertia(mass, b.HalfExtents) }

func boxInertia(mass float64, h mgl64.Vec3) mgl64.Mat3 {
	x, y, z := h[0]*h[0], h[1]*h[1], h[2]*h[2]
	k := mass / 3
	return mgl64.Diag3(mgl64.Vec3{k * (y + z), k * (x + z), k * (x + y)})
}

func (b *Box) SupportCore(dir mgl64.Vec3) mgl64.Vec3 {
	var p mgl64.Vec3
	for i := 0; i < 3; i++ {
		if dir[i] < 0 {
			p[i] = -b.HalfExtents[i]
		} else {
			p[i] = b.HalfExtents[i]
		}
	}
	return p
}

func (b *Box) Margin() float64 { return 0 }

func (b *Box) Raycast(ray geom.Ray) (geom.RayHit, bool) { return b.hull.raycast(ray) }
