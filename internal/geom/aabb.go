package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABB returns the box spanning min..max.
func NewAABB(min, max mgl64.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// FromCenterHalf returns the box centered on c with half extents h.
func FromCenterHalf(c, h mgl64.Vec3) AABB {
	return AABB{Min: c.Sub(h), Max: c.Add(h)}
}

// FromPoints returns the tightest box around pts. pts must not be empty.
func FromPoints(pts ...mgl64.Vec3) AABB {
	b := AABB{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b = b.Grow(p)
	}
	return b
}

func (b AABB) Center() mgl64.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b AABB) HalfExtents() mgl64.Vec3 { return b.Max.Sub(b.Min).Mul(0.5) }

func (b AABB) Extents() mgl64.Vec3 { return b.Max.Sub(b.Min) }

// SurfaceArea is the SAH cost metric.
func (b AABB) SurfaceArea() float64 {
	d := b.Max.Sub(b.Min)
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// Volume of the box.
func (b AABB) Volume() float64 {
	d := b.Max.Sub(b.Min)
	return d[0] * d[1] * d[2]
}

// IsValid reports whether every extent is finite and strictly positive.
func (b AABB) IsValid() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(b.Min[i]) || math.IsNaN(b.Max[i]) || math.IsInf(b.Min[i], 0) || math.IsInf(b.Max[i], 0) {
			return false
		}
		if b.Max[i]-b.Min[i] <= 0 {
			return false
		}
	}
	return true
}

// Merge returns the union of b and o.
func (b AABB) Merge(o AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(b.Min[0], o.Min[0]), math.Min(b.Min[1], o.Min[1]), math.Min(b.Min[2], o.Min[2])},
		Max: mgl64.Vec3{math.Max(b.Max[0], o.Max[0]), math.Max(b.Max[1], o.Max[1]), math.Max(b.Max[2], o.Max[2])},
	}
}

// Grow returns b extended to contain p.
func (b AABB) Grow(p mgl64.Vec3) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(b.Min[0], p[0]), math.Min(b.Min[1], p[1]), math.Min(b.Min[2], p[2])},
		Max: mgl64.Vec3{math.Max(b.Max[0], p[0]), math.Max(b.Max[1], p[1]), math.Max(b.Max[2], p[2])},
	}
}

// Inflate returns b enlarged by m on every side.
func (b AABB) Inflate(m float64) AABB {
	d := mgl64.Vec3{m, m, m}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Contains reports whether o lies entirely inside b.
func (b AABB) Contains(o AABB) bool {
	return b.Min[0] <= o.Min[0] && b.Min[1] <= o.Min[1] && b.Min[2] <= o.Min[2] &&
		o.Max[0] <= b.Max[0] && o.Max[1] <= b.Max[1] && o.Max[2] <= b.Max[2]
}

// ContainsPoint reports whether p lies inside b, boundary included.
func (b AABB) ContainsPoint(p mgl64.Vec3) bool {
	return b.Min[0] <= p[0] && p[0] <= b.Max[0] &&
		b.Min[1] <= p[1] && p[1] <= b.Max[1] &&
		b.Min[2] <= p[2] && p[2] <= b.Max[2]
}

// Overlaps reports whether b and o intersect. Touching boxes overlap.
func (b AABB) Overlaps(o AABB) bool {
	if b.Max[0] < o.Min[0] || o.Max[0] < b.Min[0] {
		return false
	}
	if b.Max[1] < o.Min[1] || o.Max[1] < b.Min[1] {
		return false
	}
	if b.Max[2] < o.Min[2] || o.Max[2] < b.Min[2] {
		return false
	}
	return true
}

// Transformed returns the world box of a local box under t.
func (b AABB) Transformed(t Transform) AABB {
	c := t.Apply(b.Center())
	h := b.HalfExtents()
	r := t.Orientation.Mat4().Mat3()
	var wh mgl64.Vec3
	for i := 0; i < 3; i++ {
		wh[i] = math.Abs(r.At(i, 0))*h[0] + math.Abs(r.At(i, 1))*h[1] + math.Abs(r.At(i, 2))*h[2]
	}
	return FromCenterHalf(c, wh)
}

// RayFraction intersects the segment from→to with b using the slab test and
// returns the entry fraction in [0, maxFraction].
func (b AABB) RayFraction(from, to mgl64.Vec3, maxFraction float64) (float64, bool) {
	d := to.Sub(from)
	tmin, tmax := 0.0, maxFraction
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < Epsilon {
			if from[i] < b.Min[i] || from[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (b.Min[i] - from[i]) * inv
		t2 := (b.Max[i] - from[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
