package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Face is a convex polygon of a hull, wound counter-clockwise seen from outside.
type Face struct {
	Vertices []int
	Normal   mgl64.Vec3
	Offset   float64
}

// Edge is an undirected hull edge shared by exactly two faces.
type Edge struct {
	A, B  int
	Faces [2]int
}

// Hull is a closed convex polyhedron with face/edge adjacency.
type Hull struct {
	Vertices []mgl64.Vec3
	Faces    []Face
	Edges    []Edge
	Center   mgl64.Vec3
	bounds   geom.AABB
}

const hullPlanarTolerance = 1e-6

// NewHull validates and builds a hull. Every edge must be shared by exactly two
// faces and every vertex must lie behind every face plane.
func NewHull(vertices []mgl64.Vec3, faces [][]int) (*Hull, error) {
	if len(vertices) < 3 || len(faces) < 2 {
		return nil, fmt.Errorf("%w: hull needs at least 3 vertices and 2 faces", dynamo.ErrInvalidShape)
	}
	for i, v := range vertices {
		if !geom.IsFinite(v) {
			return nil, fmt.Errorf("%w: hull vertex %d is not finite", dynamo.ErrInvalidShape, i)
		}
	}

	h := &Hull{
		Vertices: append([]mgl64.Vec3(nil), vertices...),
		Faces:    make([]Face, 0, len(faces)),
	}
	for _, v := range vertices {
		h.Center = h.Center.Add(v)
	}
	h.Center = h.Center.Mul(1 / float64(len(vertices)))
	h.bounds = geom.FromPoints(vertices...)

	scale := math.Max(1, h.bounds.Extents().Len())

	edgeIndex := make(map[[2]int]int)
	for fi, idx := range faces {
		if len(idx) < 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices", dynamo.ErrInvalidShape, fi, len(idx))
		}
		var n mgl64.Vec3
		for i := range idx {
			a, b := idx[i], idx[(i+1)%len(idx)]
			if a < 0 || a >= len(vertices) || b < 0 || b >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d references vertex out of range", dynamo.ErrInvalidShape, fi)
			}
			// Newell's method.
			va, vb := vertices[a], vertices[b]
			n[0] += (va[1] - vb[1]) * (va[2] + vb[2])
			n[1] += (va[2] - vb[2]) * (va[0] + vb[0])
			n[2] += (va[0] - vb[0]) * (va[1] + vb[1])

			key := [2]int{min(a, b), max(a, b)}
			if ei, ok := edgeIndex[key]; ok {
				if h.Edges[ei].Faces[1] != -1 {
					return nil, fmt.Errorf("%w: edge %v shared by more than two faces", dynamo.ErrInvalidShape, key)
				}
				h.Edges[ei].Faces[1] = fi
			} else {
				edgeIndex[key] = len(h.Edges)
				h.Edges = append(h.Edges, Edge{A: a, B: b, Faces: [2]int{fi, -1}})
			}
		}
		l := n.Len()
		if l < geom.Epsilon {
			return nil, fmt.Errorf("%w: face %d is degenerate", dynamo.ErrInvalidShape, fi)
		}
		n = n.Mul(1 / l)
		h.Faces = append(h.Faces, Face{
			Vertices: append([]int(nil), idx...),
			Normal:   n,
			Offset:   n.Dot(vertices[idx[0]]),
		})
	}

	for _, e := range h.Edges {
		if e.Faces[1] == -1 {
			return nil, fmt.Errorf("%w: hull is not closed at edge %d-%d", dynamo.ErrInvalidShape, e.A, e.B)
		}
	}
	for fi, f := range h.Faces {
		for vi, v := range h.Vertices {
			if f.Normal.Dot(v)-f.Offset > hullPlanarTolerance*scale {
				return nil, fmt.Errorf("%w: vertex %d lies outside face %d", dynamo.ErrInvalidShape, vi, fi)
			}
		}
	}
	return h, nil
}

// Support returns the vertex farthest along dir and its index.
func (h *Hull) Support(dir mgl64.Vec3) (mgl64.Vec3, int) {
	best := 0
	bestDot := h.Vertices[0].Dot(dir)
	for i := 1; i < len(h.Vertices); i++ {
		if d := h.Vertices[i].Dot(dir); d > bestDot {
			best, bestDot = i, d
		}
	}
	return h.Vertices[best], best
}

// MostAlignedFace returns the face whose normal has the largest dot with dir.
func (h *Hull) MostAlignedFace(dir mgl64.Vec3) int {
	best := 0
	bestDot := h.Faces[0].Normal.Dot(dir)
	for i := 1; i < len(h.Faces); i++ {
		if d := h.Faces[i].Normal.Dot(dir); d > bestDot {
			best, bestDot = i, d
		}
	}
	return best
}

// FacePolygon returns the vertices of face fi in winding order.
func (h *Hull) FacePolygon(fi int) []mgl64.Vec3 {
	f := h.Faces[fi]
	out := make([]mgl64.Vec3, len(f.Vertices))
	for i, vi := range f.Vertices {
		out[i] = h.Vertices[vi]
	}
	return out
}

// Bounds is the tight box of the hull vertices.
func (h *Hull) Bounds() geom.AABB { return h.bounds }

// raycast clips the ray against every face plane (Cyrus-Beck). Rays starting
// inside the hull report no hit.
func (h *Hull) raycast(ray geom.Ray) (geom.RayHit, bool) {
	d := ray.To.Sub(ray.From)
	tEnter, tExit := 0.0, ray.MaxFraction
	enterFace := -1
	for fi, f := range h.Faces {
		denom := f.Normal.Dot(d)
		dist := f.Offset - f.Normal.Dot(ray.From)
		if math.Abs(denom) < geom.Epsilon {
			if dist < 0 {
				return geom.RayHit{}, false
			}
			continue
		}
		t := dist / denom
		if denom < 0 {
			if t > tEnter || enterFace == -1 && t >= tEnter {
				tEnter = t
				enterFace = fi
			}
		} else if t < tExit {
			tExit = t
		}
		if tEnter > tExit {
			return geom.RayHit{}, false
		}
	}
	if enterFace == -1 {
		return geom.RayHit{}, false
	}
	return geom.RayHit{
		Point:    ray.At(tEnter),
		Normal:   h.Faces[enterFace].Normal,
		Fraction: tEnter,
		Feature:  -1,
	}, true
}
