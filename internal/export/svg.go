// Package export renders scenes and recorded runs as standalone SVG.
package export

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

type Point struct{ X, Y float64 }

var (
	staticColor    = "#6c7086"
	kinematicColor = "#89b4fa"
	dynamicColor   = "#a6e3a1"
	sleepingColor  = "#45475a"
)

// view maps the world XY plane onto an SVG viewport with Y pointing up.
type view struct {
	minX, minY float64
	scale      float64
	height     float64
}

func newView(bounds geom.AABB, width, height int) view {
	rangeX := bounds.Max.X() - bounds.Min.X()
	rangeY := bounds.Max.Y() - bounds.Min.Y()
	if rangeX <= 0 {
		rangeX = 1
	}
	if rangeY <= 0 {
		rangeY = 1
	}
	pad := 0.1 * math.Max(rangeX, rangeY)
	rangeX += 2 * pad
	rangeY += 2 * pad
	scale := math.Min(float64(width)/rangeX, float64(height)/rangeY)
	return view{
		minX:   bounds.Min.X() - pad - (float64(width)/scale-rangeX)/2,
		minY:   bounds.Min.Y() - pad - (float64(height)/scale-rangeY)/2,
		scale:  scale,
		height: float64(height),
	}
}

func (v view) point(p mgl64.Vec3) Point {
	return Point{
		X: (p.X() - v.minX) * v.scale,
		Y: v.height - (p.Y()-v.minY)*v.scale,
	}
}

func colliderColor(w *world.World, c *world.Collider) string {
	b, ok := w.Body(c.Body())
	if !ok {
		return staticColor
	}
	if b.IsSleeping() {
		return sleepingColor
	}
	switch b.Kind() {
	case world.Static:
		return staticColor
	case world.Kinematic:
		return kinematicColor
	}
	return dynamicColor
}

// hull2D returns the convex hull of pts in counter-clockwise order.
func hull2D(pts []Point) []Point {
	pts = slices.Clone(pts)
	slices.SortFunc(pts, func(a, b Point) int {
		if a.X != b.X {
			if a.X < b.X {
				return -1
			}
			return 1
		}
		switch {
		case a.Y < b.Y:
			return -1
		case a.Y > b.Y:
			return 1
		}
		return 0
	})
	if len(pts) < 3 {
		return pts
	}
	cross := func(o, a, b Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	out := make([]Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(out) >= 2 && cross(out[len(out)-2], out[len(out)-1], p) <= 0 {
			out = out[:len(out)-1]
		}
		out = append(out, p)
	}
	lower := len(out) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(out) >= lower && cross(out[len(out)-2], out[len(out)-1], p) <= 0 {
			out = out[:len(out)-1]
		}
		out = append(out, p)
	}
	return out[:len(out)-1]
}

func polygon(sb *strings.Builder, pts []Point, fill string) {
	sb.WriteString(`<polygon points="`)
	for i, p := range pts {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%.1f,%.1f", p.X, p.Y))
	}
	sb.WriteString(fmt.Sprintf(`" fill="%s" fill-opacity="0.6" stroke="%s"/>
`, fill, fill))
}

func drawCollider(sb *strings.Builder, v view, c *world.Collider, color string) {
	t := c.Transform()
	switch s := c.Shape().(type) {
	case *shape.Sphere:
		p := v.point(t.Position)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="0.6" stroke="%s"/>
`, p.X, p.Y, s.Radius*v.scale, color, color))
	case *shape.Capsule:
		a, b := s.Segment()
		pa, pb := v.point(t.Apply(a)), v.point(t.Apply(b))
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-opacity="0.6" stroke-width="%.1f" stroke-linecap="round"/>
`, pa.X, pa.Y, pb.X, pb.Y, color, 2*s.Radius*v.scale))
	case shape.Polyhedron:
		verts := s.Hull().Vertices
		pts := make([]Point, len(verts))
		for i, p := range verts {
			pts[i] = v.point(t.Apply(p))
		}
		polygon(sb, hull2D(pts), color)
	default:
		box := c.AABB()
		lo, hi := v.point(box.Min), v.point(box.Max)
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s" stroke-dasharray="4 2"/>
`, lo.X, hi.Y, hi.X-lo.X, lo.Y-hi.Y, color))
	}
}

// WorldToSVG draws a side view of every collider projected on the XY
// plane. Concave shapes are drawn as their bounding box outline.
func WorldToSVG(w *world.World, width, height int) string {
	var colliders []*world.Collider
	bounds := geom.AABB{}
	for _, id := range w.Bodies() {
		b, ok := w.Body(id)
		if !ok {
			continue
		}
		for _, cid := range b.Colliders() {
			c, ok := w.Collider(cid)
			if !ok {
				continue
			}
			if len(colliders) == 0 {
				bounds = c.AABB()
			} else {
				bounds = bounds.Merge(c.AABB())
			}
			colliders = append(colliders, c)
		}
	}

	v := newView(bounds, width, height)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, c := range colliders {
		drawCollider(&sb, v, c, colliderColor(w, c))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// BodyTrajectory extracts the XY path of one body from recorded frames.
func BodyTrajectory(frames []sim.Frame, name string) []Point {
	points := make([]Point, 0, len(frames))
	for i := range frames {
		if b, ok := frames[i].Body(name); ok {
			points = append(points, Point{X: b.Position.X(), Y: b.Position.Y()})
		}
	}
	return points
}

// TrajectoryToSVG creates an SVG from trajectory data
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}

	bounds := geom.FromPoints(mgl64.Vec3{points[0].X, points[0].Y, 0})
	for _, p := range points[1:] {
		bounds = bounds.Grow(mgl64.Vec3{p.X, p.Y, 0})
	}
	v := newView(bounds, width, height)

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i, p := range points {
		q := v.point(mgl64.Vec3{p.X, p.Y, 0})
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", q.X, q.Y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", q.X, q.Y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
