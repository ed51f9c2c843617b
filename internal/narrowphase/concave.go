package narrowphase

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

type triangleSource interface {
	QueryTriangles(aabb geom.AABB, fn func(index int, a, b, c mgl64.Vec3) bool)
}

// concaveConvex collides every triangle of a (mesh or height field) near
// the convex shape b. Triangle points keep their own normals.
func concaveConvex(d *Dispatcher, a, b Input, _ *PairCache, out []Point) []Point {
	src, ok := a.Shape.(triangleSource)
	if !ok {
		return out
	}
	rel := a.Transform.Inverse().Mul(b.Transform)
	box := b.Shape.LocalBounds().Transformed(rel).Inflate(d.TouchSlop)

	var scratch [8]Point
	src.QueryTriangles(box, func(index int, p0, p1, p2 mgl64.Vec3) bool {
		tri := shape.MakeTriangle(p0, p1, p2, index)
		ta := Input{Shape: tri, Transform: a.Transform}
		pts := d.collide(ta, b, nil, scratch[:0])
		for _, p := range pts {
			p.ID = featureID(tagTriangle, uint32(index), uint32(p.ID), uint32(p.ID>>32))
			out = append(out, p)
		}
		return true
	})
	return out
}
