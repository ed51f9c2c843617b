package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Capsule is a segment along the local Y axis from -HalfHeight to +HalfHeight,
// inflated by Radius.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

func NewCapsule(radius, halfHeight float64) (*Capsule, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: capsule radius %g", dynamo.ErrInvalidShape, radius)
	}
	if !(halfHeight > 0) || math.IsInf(halfHeight, 0) {
		return nil, fmt.Errorf("%w: capsule half height %g", dynamo.ErrInvalidShape, halfHeight)
	}
	return &Capsule{Radius: radius, HalfHeight: halfHeight}, nil
}

func (c *Capsule) Kind() Kind { return KindCapsule }

// Segment returns the core end points.
func (c *Capsule) Segment() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{0, -c.HalfHeight, 0}, mgl64.Vec3{0, c.HalfHeight, 0}
}

func (c *Capsule) LocalBounds() geom.AABB {
	r, h := c.Radius, c.HalfHeight
	return geom.NewAABB(mgl64.Vec3{-r, -h - r, -r}, mgl64.Vec3{r, h + r, r})
}

func (c *Capsule) cylinderVolume() float64 { return math.Pi * c.Radius * c.Radius * 2 * c.HalfHeight }

func (c *Capsule) sphereVolume() float64 {
	return 4.0 / 3.0 * math.Pi * c.Radius * c.Radius * c.Radius
}

func (c *Capsule) Volume() float64 { return c.cylinderVolume() + c.sphereVolume() }

func (c *Capsule) Centroid() mgl64.Vec3 { return mgl64.Vec3{} }

// Inertia splits the mass between the cylinder and the two hemispherical caps
// by volume and shifts the caps to the capsule center.
func (c *Capsule) Inertia(mass float64) mgl64.Mat3 {
	r, h := c.Radius, c.HalfHeight
	vc, vs := c.cylinderVolume(), c.sphereVolume()
	mc := mass * vc / (vc + vs)
	ms := mass - mc

	iy := mc*r*r/2 + ms*2*r*r/5
	ix := mc*(r*r/4+h*h/3) + ms*(2*r*r/5+h*h+0.75*h*r)
	return mgl64.Diag3(mgl64.Vec3{ix, iy, ix})
}

func (c *Capsule) SupportCore(dir mgl64.Vec3) mgl64.Vec3 {
	if dir[1] >= 0 {
		return mgl64.Vec3{0, c.HalfHeight, 0}
	}
	return mgl64.Vec3{0, -c.HalfHeight, 0}
}

func (c *Capsule) Margin() float64 { return c.Radius }

// Raycast tests the two end spheres and the finite cylinder and keeps the
// nearest entry.
func (c *Capsule) Raycast(ray geom.Ray) (geom.RayHit, bool) {
	a, b := c.Segment()
	d := ray.To.Sub(ray.From)

	if geom.ClosestPointOnSegment(a, b, ray.From).Sub(ray.From).LenSqr() < c.Radius*c.Radius {
		return geom.RayHit{}, false
	}

	best := math.Inf(1)
	var normal mgl64.Vec3
	for _, end := range [2]mgl64.Vec3{a, b} {
		if t, ok := raySphere(ray.From, d, end, c.Radius, ray.MaxFraction); ok && t < best {
			best = t
			normal = ray.At(t).Sub(end).Normalize()
		}
	}

	// Infinite cylinder around Y restricted to the segment.
	qa := d[0]*d[0] + d[2]*d[2]
	if qa > geom.Epsilon {
		qb := ray.From[0]*d[0] + ray.From[2]*d[2]
		qc := ray.From[0]*ray.From[0] + ray.From[2]*ray.From[2] - c.Radius*c.Radius
		disc := qb*qb - qa*qc
		if disc >= 0 {
			t := (-qb - math.Sqrt(disc)) / qa
			if t >= 0 && t <= ray.MaxFraction && t < best {
				p := ray.At(t)
				if p[1] >= -c.HalfHeight && p[1] <= c.HalfHeight {
					best = t
					normal = mgl64.Vec3{p[0], 0, p[2]}.Normalize()
				}
			}
		}
	}

	if math.IsInf(best, 1) {
		return geom.RayHit{}, false
	}
	return geom.RayHit{Point: ray.At(best), Normal: normal, Fraction: best, Feature: -1}, true
}
