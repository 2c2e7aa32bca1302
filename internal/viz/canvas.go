package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a Braille dot grid of Width x Height cells.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at (x, y) in dot coordinates, which span
// (Width*2) x (Height*4) with y growing downwards.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine uses Bresenham's algorithm.
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

// Plot draws the polyline through (xs[i], ys[i]) scaled to fill the canvas,
// with y growing upwards. Non-finite points break the line.
func (c *Canvas) Plot(xs, ys []float64) {
	n := min(len(xs), len(ys))
	if n == 0 {
		return
	}
	xmin, xmax := bounds(xs[:n])
	ymin, ymax := bounds(ys[:n])
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)

	px := func(x float64) int { return int(math.Round((x - xmin) / span(xmin, xmax) * w)) }
	py := func(y float64) int { return int(math.Round(h - (y-ymin)/span(ymin, ymax)*h)) }

	prev := false
	var lx, ly int
	for i := 0; i < n; i++ {
		if !finite(xs[i]) || !finite(ys[i]) {
			prev = false
			continue
		}
		x, y := px(xs[i]), py(ys[i])
		if prev {
			c.DrawLine(lx, ly, x, y)
		} else {
			c.Set(x, y)
		}
		lx, ly, prev = x, y, true
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func bounds(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if finite(x) {
			lo, hi = math.Min(lo, x), math.Max(hi, x)
		}
	}
	return lo, hi
}

func span(lo, hi float64) float64 {
	if hi > lo {
		return hi - lo
	}
	return 1
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
