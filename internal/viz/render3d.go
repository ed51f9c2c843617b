package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Camera orbits the origin and projects world points onto the canvas.
type Camera struct {
	Target     mgl64.Vec3
	Distance   float64
	Near       float64
	RotX, RotY float64
	Zoom       float64
}

func NewCamera() *Camera {
	return &Camera{Distance: 40, Near: 0.1, RotX: 0.35, RotY: -0.5, Zoom: 1.0}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// Frame centers the camera on a box and picks a distance that fits it.
func (c *Camera) Frame(b geom.AABB) {
	c.Target = b.Center()
	c.Distance = math.Max(4, 2.5*b.HalfExtents().Len())
}

func (c *Camera) view(p mgl64.Vec3) mgl64.Vec3 {
	q := mgl64.QuatRotate(c.RotX, mgl64.Vec3{1, 0, 0}).Mul(mgl64.QuatRotate(c.RotY, mgl64.Vec3{0, 1, 0}))
	return q.Rotate(p.Sub(c.Target))
}

// Project converts a world point to canvas sub-pixel coordinates.
// Returns x, y, depth, and visibility.
func (c *Camera) Project(p mgl64.Vec3, sw, sh int) (int, int, float64, bool) {
	rot := c.view(p).Mul(c.Zoom)
	dist := c.Distance
	if rot.Z() >= dist-c.Near {
		return 0, 0, 0, false
	}
	scale := dist / (dist - rot.Z())
	pScale := math.Min(float64(sw), float64(sh)) / (0.8 * dist)
	sx := int(rot.X()*scale*pScale) + sw/2
	sy := int(-rot.Y()*scale*pScale) + sh/2
	return sx, sy, rot.Z(), sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End mgl64.Vec3
}

type Wireframe struct{ Edges []Edge }

func NewWireframe() *Wireframe               { return &Wireframe{Edges: make([]Edge, 0)} }
func (w *Wireframe) AddEdge(s, e mgl64.Vec3) { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) Clear()                  { w.Edges = w.Edges[:0] }

const ringSegments = 16

func (w *Wireframe) ring(center, u, v mgl64.Vec3, r float64) {
	prev := center.Add(u.Mul(r))
	for i := 1; i <= ringSegments; i++ {
		a := 2 * math.Pi * float64(i) / ringSegments
		next := center.Add(u.Mul(r * math.Cos(a))).Add(v.Mul(r * math.Sin(a)))
		w.AddEdge(prev, next)
		prev = next
	}
}

// AddShape appends the outline of s placed at t. Spheres are drawn as
// three great circles, capsules as two end rings and four side lines.
// Concave shapes draw every triangle, height fields every grid cell.
func (w *Wireframe) AddShape(s shape.Shape, t geom.Transform) {
	ex := t.ApplyDir(mgl64.Vec3{1, 0, 0})
	ey := t.ApplyDir(mgl64.Vec3{0, 1, 0})
	ez := t.ApplyDir(mgl64.Vec3{0, 0, 1})
	switch s := s.(type) {
	case *shape.Sphere:
		c := t.Position
		w.ring(c, ex, ey, s.Radius)
		w.ring(c, ey, ez, s.Radius)
		w.ring(c, ez, ex, s.Radius)
	case *shape.Capsule:
		a, b := s.Segment()
		pa, pb := t.Apply(a), t.Apply(b)
		w.ring(pa, ez, ex, s.Radius)
		w.ring(pb, ez, ex, s.Radius)
		for _, d := range []mgl64.Vec3{ex, ex.Mul(-1), ez, ez.Mul(-1)} {
			off := d.Mul(s.Radius)
			w.AddEdge(pa.Add(off), pb.Add(off))
		}
	case shape.Polyhedron:
		h := s.Hull()
		for _, e := range h.Edges {
			w.AddEdge(t.Apply(h.Vertices[e.A]), t.Apply(h.Vertices[e.B]))
		}
	case *shape.TriangleMesh:
		for i := 0; i < s.TriangleCount(); i++ {
			a, b, c := s.Triangle(i)
			pa, pb, pc := t.Apply(a), t.Apply(b), t.Apply(c)
			w.AddEdge(pa, pb)
			w.AddEdge(pb, pc)
			w.AddEdge(pc, pa)
		}
	case *shape.HeightField:
		s.QueryTriangles(s.LocalBounds(), func(_ int, a, b, c mgl64.Vec3) bool {
			w.AddEdge(t.Apply(a), t.Apply(b))
			w.AddEdge(t.Apply(b), t.Apply(c))
			return true
		})
	}
}

type ProjectedEdge struct {
	X1, Y1, X2, Y2 int
	Depth          float64
}

// Render3D draws the wireframe to the canvas using a simple painter's algorithm.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	cw, ch := c.Width*2, c.Height*4
	proj := make([]ProjectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, cw, ch)
		x2, y2, d2, v2 := cam.Project(e.End, cw, ch)
		if v1 || v2 {
			proj = append(proj, ProjectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
		}
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].Depth < proj[j].Depth })
	for _, e := range proj {
		if e.X1 == e.X2 && e.Y1 == e.Y2 {
			c.Set(e.X1, e.Y1)
		} else {
			c.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		}
	}
}

// AddAxes draws the world axes from the origin.
func (w *Wireframe) AddAxes(l float64) {
	o := mgl64.Vec3{}
	w.AddEdge(o, mgl64.Vec3{l, 0, 0})
	w.AddEdge(o, mgl64.Vec3{0, l, 0})
	w.AddEdge(o, mgl64.Vec3{0, 0, l})
}
