package level

import "github.com/go-gl/mathgl/mgl32"

// Builder assembles a Level by hand. Shared outline points are merged so
// adjacent leaves reference the same vertex indices.
type Builder struct {
	lvl   *Level
	index map[mgl32.Vec2]int
}

func NewBuilder() *Builder {
	return &Builder{
		lvl:   New(),
		index: make(map[mgl32.Vec2]int),
	}
}

func (b *Builder) AddSector(s Sector) int {
	b.lvl.Sectors = append(b.lvl.Sectors, s)
	return len(b.lvl.Sectors) - 1
}

func (b *Builder) vertex(p mgl32.Vec2) int {
	if i, ok := b.index[p]; ok {
		return i
	}
	b.lvl.Vertices = append(b.lvl.Vertices, p)
	i := len(b.lvl.Vertices) - 1
	b.index[p] = i
	return i
}

// AddLeaf adds a convex leaf. Clockwise outlines are reversed.
func (b *Builder) AddLeaf(sector int, outline ...mgl32.Vec2) int {
	if SignedArea(outline) < 0 {
		outline = reversed2(outline)
	}
	leaf := Leaf{Sector: sector, Vertices: make([]int, len(outline))}
	for i, p := range outline {
		leaf.Vertices[i] = b.vertex(p)
	}
	b.lvl.Leaves = append(b.lvl.Leaves, leaf)
	return len(b.lvl.Leaves) - 1
}

// TagEdge tags the edge starting at outline position edge.
func (b *Builder) TagEdge(leaf, edge, tag int) {
	l, ok := b.lvl.Leaf(leaf)
	if !ok || edge < 0 || edge >= len(l.Vertices) {
		return
	}
	if len(l.LineTags) < len(l.Vertices) {
		tags := make([]int, len(l.Vertices))
		copy(tags, l.LineTags)
		l.LineTags = tags
	}
	l.LineTags[edge] = tag
}

func (b *Builder) AddThing(t Thing) {
	b.lvl.Things = append(b.lvl.Things, t)
}

func (b *Builder) SetPVS(p *PVS) {
	b.lvl.PVS = p
}

// Level returns the assembled level with leaf bounds filled in. Nodes,
// surfaces and the root are left to the BSP builder and ExtractSurfaces.
func (b *Builder) Level() *Level {
	b.lvl.ComputeLeafBounds()
	return b.lvl
}

// Box returns the four corners of an axis-aligned rectangle, counter-clockwise.
func Box(x0, y0, x1, y1 float32) []mgl32.Vec2 {
	return []mgl32.Vec2{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// SignedArea is positive for counter-clockwise outlines.
func SignedArea(pts []mgl32.Vec2) float32 {
	var a float32
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.X()*q.Y() - q.X()*p.Y()
	}
	return a * 0.5
}

func reversed2(pts []mgl32.Vec2) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
