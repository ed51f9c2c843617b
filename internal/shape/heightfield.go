package shape

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

// HeightField is a regular grid of heights in the XZ plane, centered on the
// local origin. Heights are local Y values. Each cell is split into two
// triangles along its (i,j)-(i+1,j+1) diagonal.
type HeightField struct {
	Columns int // samples along X
	Rows    int // samples along Z
	Spacing float64
	heights []float64
	minH    float64
	maxH    float64
}

// NewHeightField takes row-major heights: heights[row*columns+col].
func NewHeightField(columns, rows int, spacing float64, heights []float64) (*HeightField, error) {
	if columns < 2 || rows < 2 {
		return nil, fmt.Errorf("%w: height field needs at least 2x2 samples, got %dx%d", dynamo.ErrInvalidShape, columns, rows)
	}
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("%w: height field spacing %g", dynamo.ErrInvalidShape, spacing)
	}
	if len(heights) != columns*rows {
		return nil, fmt.Errorf("%w: height field has %d samples, want %d", dynamo.ErrInvalidShape, len(heights), columns*rows)
	}
	h := &HeightField{
		Columns: columns,
		Rows:    rows,
		Spacing: spacing,
		heights: append([]float64(nil), heights...),
		minH:    math.Inf(1),
		maxH:    math.Inf(-1),
	}
	for _, y := range heights {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w: height field sample is not finite", dynamo.ErrInvalidShape)
		}
		h.minH = math.Min(h.minH, y)
		h.maxH = math.Max(h.maxH, y)
	}
	return h, nil
}

func (h *HeightField) Kind() Kind { return KindHeightField }

// Height returns the sample at column col and row row.
func (h *HeightField) Height(col, row int) float64 { return h.heights[row*h.Columns+col] }

func (h *HeightField) vertex(col, row int) mgl64.Vec3 {
	x := (float64(col) - float64(h.Columns-1)/2) * h.Spacing
	z := (float64(row) - float64(h.Rows-1)/2) * h.Spacing
	return mgl64.Vec3{x, h.Height(col, row), z}
}

func (h *HeightField) LocalBounds() geom.AABB {
	hx := float64(h.Columns-1) / 2 * h.Spacing
	hz := float64(h.Rows-1) / 2 * h.Spacing
	return geom.NewAABB(mgl64.Vec3{-hx, h.minH, -hz}, mgl64.Vec3{hx, h.maxH, hz})
}

func (h *HeightField) Volume() float64 { return 0 }

func (h *HeightField) Centroid() mgl64.Vec3 { return h.LocalBounds().Center() }

func (h *HeightField) Inertia(float64) mgl64.Mat3 { return mgl64.Mat3{} }

// cell returns the two triangles of grid cell (col,row), wound so their
// normals point up.
func (h *HeightField) cell(col, row int) [2][3]mgl64.Vec3 {
	p00 := h.vertex(col, row)
	p10 := h.vertex(col+1, row)
	p01 := h.vertex(col, row+1)
	p11 := h.vertex(col+1, row+1)
	return [2][3]mgl64.Vec3{{p00, p11, p10}, {p00, p01, p11}}
}

func (h *HeightField) cellRange(aabb geom.AABB) (c0, c1, r0, r1 int, ok bool) {
	if aabb.Max[1] < h.minH || aabb.Min[1] > h.maxH {
		return 0, 0, 0, 0, false
	}
	ox := float64(h.Columns-1) / 2
	oz := float64(h.Rows-1) / 2
	c0 = max(int(math.Floor(aabb.Min[0]/h.Spacing+ox)), 0)
	c1 = min(int(math.Floor(aabb.Max[0]/h.Spacing+ox)), h.Columns-2)
	r0 = max(int(math.Floor(aabb.Min[2]/h.Spacing+oz)), 0)
	r1 = min(int(math.Floor(aabb.Max[2]/h.Spacing+oz)), h.Rows-2)
	return c0, c1, r0, r1, c0 <= c1 && r0 <= r1
}

// QueryTriangles calls fn for every triangle of every cell overlapping aabb
// in XZ until fn returns false. Triangle index is 2*(row*(columns-1)+col)+k.
func (h *HeightField) QueryTriangles(aabb geom.AABB, fn func(index int, a, b, c mgl64.Vec3) bool) {
	c0, c1, r0, r1, ok := h.cellRange(aabb)
	if !ok {
		return
	}
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			tris := h.cell(col, row)
			base := 2 * (row*(h.Columns-1) + col)
			for k, t := range tris {
				if !geom.FromPoints(t[0], t[1], t[2]).Overlaps(aabb) {
					continue
				}
				if !fn(base+k, t[0], t[1], t[2]) {
					return
				}
			}
		}
	}
}

// Raycast tests every triangle under the ray's box and keeps the nearest.
func (h *HeightField) Raycast(ray geom.Ray) (geom.RayHit, bool) {
	box := geom.FromPoints(ray.From, ray.At(ray.MaxFraction))
	best := geom.RayHit{Fraction: math.Inf(1)}
	r := ray
	h.QueryTriangles(box, func(index int, a, b, c mgl64.Vec3) bool {
		if hit, ok := rayTriangle(r, a, b, c); ok && hit.Fraction < best.Fraction {
			best = hit
			best.Feature = index
			r.MaxFraction = hit.Fraction
		}
		return true
	})
	if math.IsInf(best.Fraction, 1) {
		return geom.RayHit{}, false
	}
	return best, true
}
