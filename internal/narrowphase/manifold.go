package narrowphase

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxPoints is the manifold capacity.
const MaxPoints = 4

// Point is one contact between shape A and shape B.
type Point struct {
	// World positions on the surface of each shape.
	PositionA mgl64.Vec3
	PositionB mgl64.Vec3
	// Positions in each shape's local frame.
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3
	// Normal points from A to B.
	Normal     mgl64.Vec3
	Separation float64
	// ID identifies the pair of features that produced the point.
	ID uint64
}

// Manifold holds up to MaxPoints contacts.
type Manifold struct {
	Points [MaxPoints]Point
	Count  int
	Normal mgl64.Vec3
}

// Slice returns the active points.
func (m *Manifold) Slice() []Point { return m.Points[:m.Count] }

// Deepest returns the most negative separation.
func (m *Manifold) Deepest() float64 {
	d := math.Inf(1)
	for _, p := range m.Slice() {
		d = math.Min(d, p.Separation)
	}
	return d
}

// featureID hashes feature indices with FNV-1a. The first part is a tag that
// keeps ids of different contact types apart.
func featureID(parts ...uint32) uint64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(buf[:], p)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

const (
	tagSphere uint32 = iota + 1
	tagCapsule
	tagGJK
	tagCapsuleFace
	tagFace
	tagEdge
	tagTriangle
	tagFallback
)

func makePoint(pA, pB, n mgl64.Vec3, id uint64) Point {
	return Point{
		PositionA:  pA,
		PositionB:  pB,
		Normal:     n,
		Separation: pB.Sub(pA).Dot(n),
		ID:         id,
	}
}

// reduce keeps at most MaxPoints points maximizing the contact area: the
// deepest point, the point farthest from it, the point making the largest
// triangle with both, and the point adding the most area outside that
// triangle.
func reduce(points []Point, normal mgl64.Vec3, m *Manifold) {
	m.Normal = normal
	if len(points) <= MaxPoints {
		m.Count = copy(m.Points[:], points)
		return
	}
	pos := func(i int) mgl64.Vec3 { return points[i].PositionB }

	i0 := 0
	for i := range points {
		if points[i].Separation < points[i0].Separation {
			i0 = i
		}
	}

	i1, best := -1, -1.0
	for i := range points {
		if d := pos(i).Sub(pos(i0)).LenSqr(); i != i0 && d > best {
			i1, best = i, d
		}
	}

	i2, best := -1, -1.0
	var triN mgl64.Vec3
	for i := range points {
		if i == i0 || i == i1 {
			continue
		}
		c := pos(i1).Sub(pos(i0)).Cross(pos(i).Sub(pos(i0)))
		if a := c.LenSqr(); a > best {
			i2, best, triN = i, a, c
		}
	}
	if triN.Dot(normal) < 0 {
		normal = normal.Mul(-1)
	}

	signedArea := func(a, b, p mgl64.Vec3) float64 {
		return b.Sub(a).Cross(p.Sub(a)).Dot(normal)
	}
	i3, most := -1, math.Inf(1)
	for i := range points {
		if i == i0 || i == i1 || i == i2 {
			continue
		}
		p := pos(i)
		a := math.Min(signedArea(pos(i0), pos(i1), p),
			math.Min(signedArea(pos(i1), pos(i2), p), signedArea(pos(i2), pos(i0), p)))
		if a < most {
			i3, most = i, a
		}
	}

	m.Count = 0
	for _, i := range [4]int{i0, i1, i2, i3} {
		if i >= 0 {
			m.Points[m.Count] = points[i]
			m.Count++
		}
	}
}
