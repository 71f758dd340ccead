package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Shadow is the sun classification of a cell.
type Shadow uint8

const (
	Unlit Shadow = iota
	SkyShadow
	FullSun
)

func (s Shadow) String() string {
	switch s {
	case Unlit:
		return "unlit"
	case SkyShadow:
		return "sky"
	case FullSun:
		return "sun"
	}
	return fmt.Sprintf("Shadow(%d)", uint8(s))
}

var ErrInvalidCellSize = errors.New("grid: cell size must be positive")

type Cell struct {
	Marked bool
	Shadow Shadow
	Color  mgl32.Vec3
}

// Grid is a regular lattice of cells over an axis-aligned box. Min is the
// origin of cell (0,0,0); Block holds the cell count per axis.
type Grid struct {
	Min, Max mgl32.Vec3
	CellSize mgl32.Vec3
	Block    [3]int
	Cells    []Cell
}

// New covers bounds with cells of the given size. Bounds are widened
// outward to whole cells on each axis independently.
func New(bounds [2]mgl32.Vec3, cellSize mgl32.Vec3) (*Grid, error) {
	g := &Grid{CellSize: cellSize}
	for a := 0; a < 3; a++ {
		if cellSize[a] <= 0 {
			return nil, fmt.Errorf("%w: axis %d is %g", ErrInvalidCellSize, a, cellSize[a])
		}
		lo := float32(math.Floor(float64(bounds[0][a]/cellSize[a]))) * cellSize[a]
		hi := float32(math.Ceil(float64(bounds[1][a]/cellSize[a]))) * cellSize[a]
		g.Min[a] = lo
		g.Max[a] = hi
		g.Block[a] = int((hi-lo)/cellSize[a]+0.5) + 1
	}
	g.Cells = make([]Cell, g.Len())
	return g, nil
}

// Len is the total number of cells.
func (g *Grid) Len() int {
	return g.Block[0] * g.Block[1] * g.Block[2]
}

// Flatten maps cell coordinates to an index: z*(nx*ny) + y*nx + x.
func (g *Grid) Flatten(x, y, z int) int {
	return Flatten(g.Block, x, y, z)
}

func (g *Grid) Unflatten(i int) (x, y, z int) {
	return Unflatten(g.Block, i)
}

func Flatten(block [3]int, x, y, z int) int {
	return z*(block[0]*block[1]) + y*block[0] + x
}

func Unflatten(block [3]int, i int) (x, y, z int) {
	plane := block[0] * block[1]
	z = i / plane
	i -= z * plane
	y = i / block[0]
	x = i - y*block[0]
	return x, y, z
}

// CellOrigin is the world position of a cell's lattice point.
func (g *Grid) CellOrigin(x, y, z int) mgl32.Vec3 {
	return mgl32.Vec3{
		g.Min.X() + float32(x)*g.CellSize.X(),
		g.Min.Y() + float32(y)*g.CellSize.Y(),
		g.Min.Z() + float32(z)*g.CellSize.Z(),
	}
}

// CellBounds is the box of world space a cell samples.
func (g *Grid) CellBounds(x, y, z int) [2]mgl32.Vec3 {
	o := g.CellOrigin(x, y, z)
	return [2]mgl32.Vec3{o, o.Add(g.CellSize)}
}

func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Block[0] && y < g.Block[1] && z < g.Block[2]
}

// MarkedCount returns how many cells are inside the world.
func (g *Grid) MarkedCount() int {
	n := 0
	for _, c := range g.Cells {
		if c.Marked {
			n++
		}
	}
	return n
}
