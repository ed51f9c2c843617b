package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/narrowphase"
)

// RaycastHit is the nearest collider crossed by a ray, in world space.
type RaycastHit struct {
	Collider ColliderID
	Body     BodyID
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Fraction float64
	// Feature is the triangle index on concave shapes, -1 otherwise.
	Feature int
}

// Raycast returns the nearest hit along ray against every collider.
func (w *World) Raycast(ray geom.Ray) (RaycastHit, bool) {
	return w.RaycastMask(ray, ^uint32(0))
}

// RaycastMask is Raycast restricted to colliders whose category intersects
// mask.
func (w *World) RaycastMask(ray geom.Ray, mask uint32) (RaycastHit, bool) {
	if w.destroyed || ray.MaxFraction <= 0 || ray.From == ray.To {
		return RaycastHit{}, false
	}
	var best RaycastHit
	found := false
	tree := w.bp.Tree()
	tree.RayCast(ray, func(id int, r geom.Ray) float64 {
		c := w.colliderAt[tree.UserData(id)]
		if c == nil || c.filter.Category&mask == 0 {
			return -1
		}
		hit, ok := c.shape.Raycast(r.Transformed(c.transform))
		if !ok || hit.Fraction > r.MaxFraction {
			return -1
		}
		found = true
		best = RaycastHit{
			Collider: c.id,
			Body:     c.body.id,
			Point:    ray.At(hit.Fraction),
			Normal:   c.transform.ApplyDir(hit.Normal),
			Fraction: hit.Fraction,
			Feature:  hit.Feature,
		}
		return hit.Fraction
	})
	return best, found
}

// QueryAABB calls fn for every collider whose tight box overlaps aabb until
// fn returns false.
func (w *World) QueryAABB(aabb geom.AABB, fn func(ColliderID) bool) {
	if w.destroyed {
		return
	}
	tree := w.bp.Tree()
	tree.Query(aabb, func(id int) bool {
		c := w.colliderAt[tree.UserData(id)]
		if c == nil || !c.aabb.Overlaps(aabb) {
			return true
		}
		return fn(c.id)
	})
}

// TestOverlap reports whether two colliders touch or penetrate in their
// current placement. Filters and joints are ignored.
func (w *World) TestOverlap(a, b ColliderID) (bool, error) {
	ca, ok := w.Collider(a)
	if !ok {
		return false, fmt.Errorf("collider %v: %w", a, dynamo.ErrInvalidHandle)
	}
	cb, ok := w.Collider(b)
	if !ok {
		return false, fmt.Errorf("collider %v: %w", b, dynamo.ErrInvalidHandle)
	}
	if !ca.aabb.Overlaps(cb.aabb) || !w.dispatcher.Supports(ca.shape.Kind(), cb.shape.Kind()) {
		return false, nil
	}
	m, ok := w.dispatcher.TestPair(
		narrowphase.Input{Shape: ca.shape, Transform: ca.transform},
		narrowphase.Input{Shape: cb.shape, Transform: cb.transform},
		&narrowphase.PairCache{})
	if !ok {
		return false, nil
	}
	return m.Deepest() <= 0, nil
}
