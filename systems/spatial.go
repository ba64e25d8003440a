package systems

import (
	"slices"

	"github.com/chewxy/math32"
)

// SpatialGrid buckets boid indices into square cells so a radius query only
// visits nearby cells. The grid covers [-halfExtent, halfExtent] on both axes;
// boids outside are clamped into the border cells, which keeps queries exact
// as long as the cell size is at least the query radius.
type SpatialGrid struct {
	cellSize   float32
	halfExtent float32
	cols       int
	rows       int
	cells      [][]int32
}

// NewSpatialGrid creates a spatial grid covering a square world of the
// given half extent centered on the origin. A cell size that is not
// positive yields a single cell spanning the whole world.
func NewSpatialGrid(halfExtent, cellSize float32) *SpatialGrid {
	if !(cellSize > 0) || math32.IsInf(cellSize, 0) {
		cellSize = max(2*halfExtent, 1)
	}
	cols := int(2*halfExtent/cellSize) + 1
	rows := cols

	cells := make([][]int32, cols*rows)
	for i := range cells {
		cells[i] = make([]int32, 0, 8) // pre-allocate small capacity
	}

	return &SpatialGrid{
		cellSize:   cellSize,
		halfExtent: halfExtent,
		cols:       cols,
		rows:       rows,
		cells:      cells,
	}
}

// Clear removes all boids from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Rebuild clears the grid and inserts every boid of the snapshot.
func (g *SpatialGrid) Rebuild(boids []Boid) {
	g.Clear()
	for i := range boids {
		g.Insert(int32(i), boids[i].X, boids[i].Y)
	}
}

// Insert adds a boid index to the grid at the given position.
// Non-finite positions are not inserted; such boids can never be within
// range of anything.
func (g *SpatialGrid) Insert(idx int32, x, y float32) {
	if !finite(x) || !finite(y) {
		return
	}
	col, row := g.cellCoords(x, y)
	cell := row*g.cols + col
	g.cells[cell] = append(g.cells[cell], idx)
}

// QueryInto appends to dst the indices of all boids in the cells that can
// hold a point within radius of (x, y), sorted ascending. The caller still
// applies the exact distance test. Reuse dst across calls to avoid
// allocations.
func (g *SpatialGrid) QueryInto(dst []int32, x, y, radius float32) []int32 {
	if !finite(x) || !finite(y) {
		return dst
	}

	start := len(dst)
	cellRadius := int(math32.Ceil(radius / g.cellSize))
	centerCol, centerRow := g.cellCoords(x, y)

	for dr := -cellRadius; dr <= cellRadius; dr++ {
		row := centerRow + dr
		if row < 0 || row >= g.rows {
			continue
		}
		for dc := -cellRadius; dc <= cellRadius; dc++ {
			col := centerCol + dc
			if col < 0 || col >= g.cols {
				continue
			}
			dst = append(dst, g.cells[row*g.cols+col]...)
		}
	}

	slices.Sort(dst[start:])
	return dst
}

// cellCoords returns the clamped cell column and row for a world position.
// Clamping happens before the integer conversion so far-away boids land in
// the border cells instead of overflowing.
func (g *SpatialGrid) cellCoords(x, y float32) (col, row int) {
	return clampCell((x+g.halfExtent)/g.cellSize, g.cols), clampCell((y+g.halfExtent)/g.cellSize, g.rows)
}

func clampCell(f float32, n int) int {
	if f < 0 {
		return 0
	}
	if f >= float32(n) {
		return n - 1
	}
	return int(f)
}
