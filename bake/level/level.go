package level

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrNoSpatialIndex = errors.New("level: spatial index missing")
	ErrNoLeaves       = errors.New("level: no leaves")
)

type SurfaceType uint8

const (
	WallMiddle SurfaceType = iota
	WallUpper
	WallLower
	Floor
	Ceiling
)

func (t SurfaceType) String() string {
	switch t {
	case WallMiddle:
		return "middle"
	case WallUpper:
		return "upper"
	case WallLower:
		return "lower"
	case Floor:
		return "floor"
	case Ceiling:
		return "ceiling"
	}
	return fmt.Sprintf("SurfaceType(%d)", uint8(t))
}

func (t SurfaceType) IsWall() bool {
	return t == WallMiddle || t == WallUpper || t == WallLower
}

// Surface is a planar convex polygon. Geometry is fixed at extraction; the
// lighting fields below it are written once by the lightmap builder.
type Surface struct {
	Type   SurfaceType
	Verts  []mgl32.Vec3
	Plane  Plane
	Leaf   int
	Sector int
	Tag    int
	Sky    bool

	AtlasIndex int // -1 when the surface is unlit or not baked yet
	AtlasX     int
	AtlasY     int
	Width      int
	Height     int
	UVs        [][2]float32
}

func (s *Surface) Bounds() [2]mgl32.Vec3 {
	return boundsOf(s.Verts)
}

func (s *Surface) Centroid() mgl32.Vec3 {
	return Centroid(s.Verts)
}

// Used reports whether the surface received a lightmap.
func (s *Surface) Used() bool {
	return s.AtlasIndex >= 0
}

type Sector struct {
	FloorHeight   float32
	CeilingHeight float32
	Tag           int
	SkyCeiling    bool
}

// Leaf is a convex map region. Vertices index Level.Vertices in
// counter-clockwise order seen from +Z; LineTags, when present, tags the edge
// starting at the same position.
type Leaf struct {
	Sector   int
	Vertices []int
	LineTags []int
	Surfaces []int
	Bounds   [2]mgl32.Vec3
}

func (l *Leaf) LineTag(edge int) int {
	if edge < 0 || edge >= len(l.LineTags) {
		return 0
	}
	return l.LineTags[edge]
}

// Child references either a node or a leaf by index.
type Child struct {
	Leaf  bool
	Index int
}

var NoChild = Child{Index: -1}

func LeafChild(i int) Child { return Child{Leaf: true, Index: i} }
func NodeChild(i int) Child { return Child{Index: i} }

func (c Child) Valid() bool { return c.Index >= 0 }

// Node is an internal BSP node with a 2D partition line through (X, Y) along
// (DX, DY). Children[0] is the front (right-hand) side.
type Node struct {
	X, Y, DX, DY float32
	Bounds       [2]mgl32.Vec3
	Children     [2]Child
}

// PointSide returns 0 for the front side of the partition and 1 for the back.
func (n *Node) PointSide(x, y float32) int {
	if (x-n.X)*n.DY-(y-n.Y)*n.DX >= 0 {
		return 0
	}
	return 1
}

type Thing struct {
	Type int
	X, Y float32
}

// Level owns every piece of map topology in flat slices; cross references
// are indices into them.
type Level struct {
	Vertices []mgl32.Vec2
	Sectors  []Sector
	Leaves   []Leaf
	Nodes    []Node
	Root     Child
	Surfaces []Surface
	Things   []Thing
	PVS      *PVS
}

func New() *Level {
	return &Level{Root: NoChild}
}

func (l *Level) Leaf(i int) (*Leaf, bool) {
	if l == nil || i < 0 || i >= len(l.Leaves) {
		return nil, false
	}
	return &l.Leaves[i], true
}

func (l *Level) Node(i int) (*Node, bool) {
	if l == nil || i < 0 || i >= len(l.Nodes) {
		return nil, false
	}
	return &l.Nodes[i], true
}

func (l *Level) Surface(i int) (*Surface, bool) {
	if l == nil || i < 0 || i >= len(l.Surfaces) {
		return nil, false
	}
	return &l.Surfaces[i], true
}

func (l *Level) Sector(i int) (*Sector, bool) {
	if l == nil || i < 0 || i >= len(l.Sectors) {
		return nil, false
	}
	return &l.Sectors[i], true
}

// LeafSector returns the sector owning leaf i.
func (l *Level) LeafSector(i int) (*Sector, bool) {
	leaf, ok := l.Leaf(i)
	if !ok {
		return nil, false
	}
	return l.Sector(leaf.Sector)
}

// LeafPolygon returns the 2D outline of leaf i.
func (l *Level) LeafPolygon(i int) []mgl32.Vec2 {
	leaf, ok := l.Leaf(i)
	if !ok {
		return nil
	}
	pts := make([]mgl32.Vec2, 0, len(leaf.Vertices))
	for _, v := range leaf.Vertices {
		if v >= 0 && v < len(l.Vertices) {
			pts = append(pts, l.Vertices[v])
		}
	}
	return pts
}

// ComputeLeafBounds refreshes every leaf's world box from its outline and
// its sector's floor and ceiling.
func (l *Level) ComputeLeafBounds() {
	for i := range l.Leaves {
		leaf := &l.Leaves[i]
		minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
		maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
		for _, p := range l.LeafPolygon(i) {
			minB = mgl32.Vec3{min(minB.X(), p.X()), min(minB.Y(), p.Y()), minB.Z()}
			maxB = mgl32.Vec3{max(maxB.X(), p.X()), max(maxB.Y(), p.Y()), maxB.Z()}
		}
		if sec, ok := l.Sector(leaf.Sector); ok {
			minB[2] = sec.FloorHeight
			maxB[2] = sec.CeilingHeight
		}
		leaf.Bounds = [2]mgl32.Vec3{minB, maxB}
	}
}

// WorldBounds is the root node's box, or the single leaf's box when the
// tree is one leaf.
func (l *Level) WorldBounds() ([2]mgl32.Vec3, bool) {
	if l == nil || !l.Root.Valid() {
		return [2]mgl32.Vec3{}, false
	}
	if l.Root.Leaf {
		leaf, ok := l.Leaf(l.Root.Index)
		if !ok {
			return [2]mgl32.Vec3{}, false
		}
		return leaf.Bounds, true
	}
	n, ok := l.Node(l.Root.Index)
	if !ok {
		return [2]mgl32.Vec3{}, false
	}
	return n.Bounds, true
}

// Validate checks the references the bake depends on. A missing spatial
// index or leaf list is fatal for a bake.
func (l *Level) Validate() error {
	if l == nil || len(l.Leaves) == 0 {
		return ErrNoLeaves
	}
	if !l.Root.Valid() {
		return ErrNoSpatialIndex
	}
	if err := l.checkChild(l.Root); err != nil {
		return err
	}
	for i, n := range l.Nodes {
		for _, c := range n.Children {
			if err := l.checkChild(c); err != nil {
				return fmt.Errorf("node %d: %w", i, err)
			}
		}
	}
	for i, leaf := range l.Leaves {
		if _, ok := l.Sector(leaf.Sector); !ok {
			return fmt.Errorf("leaf %d: sector %d out of range", i, leaf.Sector)
		}
		for _, v := range leaf.Vertices {
			if v < 0 || v >= len(l.Vertices) {
				return fmt.Errorf("leaf %d: vertex %d out of range", i, v)
			}
		}
	}
	if l.PVS != nil && l.PVS.Len() != len(l.Leaves) {
		return fmt.Errorf("pvs covers %d leaves, level has %d", l.PVS.Len(), len(l.Leaves))
	}
	return nil
}

func (l *Level) checkChild(c Child) error {
	if c.Leaf {
		if _, ok := l.Leaf(c.Index); !ok {
			return fmt.Errorf("leaf reference %d: %w", c.Index, ErrNoLeaves)
		}
		return nil
	}
	if _, ok := l.Node(c.Index); !ok {
		return fmt.Errorf("node reference %d: %w", c.Index, ErrNoSpatialIndex)
	}
	return nil
}

// Centroid is the vertex average.
func Centroid(verts []mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	if len(verts) == 0 {
		return c
	}
	for _, v := range verts {
		c = c.Add(v)
	}
	return c.Mul(1 / float32(len(verts)))
}

func boundsOf(verts []mgl32.Vec3) [2]mgl32.Vec3 {
	minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, v := range verts {
		minB = mgl32.Vec3{min(minB.X(), v.X()), min(minB.Y(), v.Y()), min(minB.Z(), v.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), v.X()), max(maxB.Y(), v.Y()), max(maxB.Z(), v.Z())}
	}
	return [2]mgl32.Vec3{minB, maxB}
}

// BoundsOf returns the axis-aligned box of a vertex set.
func BoundsOf(verts []mgl32.Vec3) [2]mgl32.Vec3 {
	return boundsOf(verts)
}
