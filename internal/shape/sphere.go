package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// Sphere is a point core inflated by Radius.
type Sphere struct {
	Radius float64
}

func NewSphere(radius float64) (*Sphere, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: sphere radius %g", dynamo.ErrInvalidShape, radius)
	}
	return &Sphere{Radius: radius}, nil
}

func (s *Sphere) Kind() Kind { return KindSphere }

func (s *Sphere) LocalBounds() geom.AABB {
	r := s.Radius
	return geom.NewAABB(mgl64.Vec3{-r, -r, -r}, mgl64.Vec3{r, r, r})
}

func (s *Sphere) Volume() float64 { return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius }

func (s *Sphere) Centroid() mgl64.Vec3 { return mgl64.Vec3{} }

func (s *Sphere) Inertia(mass float64) mgl64.Mat3 {
	i := 0.4 * mass * s.Radius * s.Radius
	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) SupportCore(mgl64.Vec3) mgl64.Vec3 { return mgl64.Vec3{} }

func (s *Sphere) Margin() float64 { return s.Radius }

func (s *Sphere) Raycast(ray geom.Ray) (geom.RayHit, bool) {
	t, ok := raySphere(ray.From, ray.To.Sub(ray.From), mgl64.Vec3{}, s.Radius, ray.MaxFraction)
	if !ok {
		return geom.RayHit{}, false
	}
	p := ray.At(t)
	return geom.RayHit{Point: p, Normal: p.Normalize(), Fraction: t, Feature: -1}, true
}

// raySphere returns the entry fraction of from+t*d into the sphere. Rays
// starting inside report no hit.
func raySphere(from, d, center mgl64.Vec3, r, maxFraction float64) (float64, bool) {
	m := from.Sub(center)
	c := m.Dot(m) - r*r
	if c < 0 {
		return 0, false
	}
	a := d.Dot(d)
	b := m.Dot(d)
	if a < geom.Epsilon || b > 0 {
		return 0, false
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > maxFraction {
		return 0, false
	}
	return t, true
}
