package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const brailleBlank = 0x2800

// Each cell is a 2x4 braille dot matrix:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotBits = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a grid of braille cells addressed in dot coordinates, so a
// Width x Height canvas holds (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
	// Pen is the ink index recorded for cells drawn from now on.
	Pen    int
	ink    [][]int
	labels map[[2]int]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		ink:    make([][]int, h),
		labels: make(map[[2]int]rune),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		c.ink[i] = make([]int, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) cell(x, y int) (row, col int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	return row, col, col < c.Width && row < c.Height
}

// Set turns on the dot at (x, y).
func (c *Canvas) Set(x, y int) {
	if row, col, ok := c.cell(x, y); ok {
		c.Grid[row][col] |= dotBits[y%4][x%2]
		c.ink[row][col] = c.Pen
	}
}

// Label writes r over the cell holding dot (x, y). Labels win over dots.
func (c *Canvas) Label(x, y int, r rune) {
	if row, col, ok := c.cell(x, y); ok {
		c.labels[[2]int{row, col}] = r
	}
}

// Clear resets the canvas
func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
			c.ink[i][j] = 0
		}
	}
	clear(c.labels)
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.Grid {
		for j, r := range row {
			if l, ok := c.labels[[2]int{i, j}]; ok {
				r = l
			}
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Render is String with each cell styled by palette[ink]. Runs of equal
// ink are rendered together.
func (c *Canvas) Render(palette []lipgloss.Style) string {
	var b, run strings.Builder
	for i, row := range c.Grid {
		cur := -1
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur >= 0 && cur < len(palette) {
				b.WriteString(palette[cur].Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			run.Reset()
		}
		for j, r := range row {
			if l, ok := c.labels[[2]int{i, j}]; ok {
				r = l
			}
			if ink := c.ink[i][j]; ink != cur {
				flush()
				cur = ink
			}
			run.WriteRune(r)
		}
		flush()
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
