package bsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrDegenerateTree = errors.New("bsp: no usable partition")

const (
	// MaxDepth bounds the recursion; a map that needs more is malformed.
	MaxDepth   = 64
	sideEps    = 1e-3
	splitScore = 8
)

// piece is a convex leaf outline in flight. origin is the input leaf it was
// cut from, so sectors and visibility carry over to every fragment.
type piece struct {
	poly   []mgl32.Vec2
	tags   []int
	sector int
	origin int
}

type partition struct {
	a, d mgl32.Vec2
}

// side is positive on the front (right-hand) side, matching Node.PointSide.
func (p partition) side(pt mgl32.Vec2) float32 {
	return (pt.X()-p.a.X())*p.d.Y() - (pt.Y()-p.a.Y())*p.d.X()
}

type builder struct {
	lvl    *level.Level
	log    logging.Logger
	nodes  []level.Node
	leaves []piece
	splits int
}

// Build partitions the level's leaves into a node tree. Leaves straddling a
// chosen partition are cut in two; the level's leaf list, vertex list and
// PVS are rewritten to match. A level with a single leaf gets a leaf root.
func Build(lvl *level.Level, log logging.Logger) error {
	if lvl == nil || len(lvl.Leaves) == 0 {
		return level.ErrNoLeaves
	}
	b := &builder{lvl: lvl, log: logging.OrNop(log)}

	var pieces, degenerate []piece
	for i, leaf := range lvl.Leaves {
		p := piece{poly: lvl.LeafPolygon(i), sector: leaf.Sector, origin: i}
		p.tags = make([]int, len(p.poly))
		for e := range p.tags {
			p.tags[e] = leaf.LineTag(e)
		}
		if len(p.poly) < 3 {
			degenerate = append(degenerate, p)
			continue
		}
		pieces = append(pieces, p)
	}
	if len(pieces) == 0 {
		return level.ErrNoLeaves
	}

	root, err := b.build(pieces, 0)
	if err != nil {
		return err
	}
	// unreachable from the tree, kept so surface extraction can report them
	b.leaves = append(b.leaves, degenerate...)

	b.commit(root)
	b.log.Debugf("bsp: %d nodes, %d leaves, %d splits", len(b.nodes), len(b.leaves), b.splits)
	return nil
}

func (b *builder) build(pieces []piece, depth int) (level.Child, error) {
	if len(pieces) == 1 {
		b.leaves = append(b.leaves, pieces[0])
		return level.LeafChild(len(b.leaves) - 1), nil
	}
	if depth >= MaxDepth {
		return level.NoChild, fmt.Errorf("%w: depth %d exceeded with %d leaves", ErrDegenerateTree, MaxDepth, len(pieces))
	}

	part, ok := b.choose(pieces)
	if !ok {
		return level.NoChild, fmt.Errorf("%w: %d leaves at depth %d", ErrDegenerateTree, len(pieces), depth)
	}

	var front, back []piece
	for _, p := range pieces {
		switch classify(part, p.poly) {
		case 0:
			front = append(front, p)
		case 1:
			back = append(back, p)
		default:
			f, bk := splitPiece(part, p)
			if len(f.poly) >= 3 {
				front = append(front, f)
			}
			if len(bk.poly) >= 3 {
				back = append(back, bk)
			}
			b.splits++
		}
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, level.Node{X: part.a.X(), Y: part.a.Y(), DX: part.d.X(), DY: part.d.Y()})

	fc, err := b.build(front, depth+1)
	if err != nil {
		return level.NoChild, err
	}
	bc, err := b.build(back, depth+1)
	if err != nil {
		return level.NoChild, err
	}
	b.nodes[idx].Children = [2]level.Child{fc, bc}
	return level.NodeChild(idx), nil
}

// choose scores every leaf edge line: fewest cut leaves first, then the
// most even split. A line is usable only with leaves on both sides.
func (b *builder) choose(pieces []piece) (partition, bool) {
	best := partition{}
	bestScore := math.MaxInt
	for _, owner := range pieces {
		for e := range owner.poly {
			a := owner.poly[e]
			d := owner.poly[(e+1)%len(owner.poly)].Sub(a)
			if d.Len() <= sideEps {
				continue
			}
			part := partition{a: a, d: d}
			nf, nb, ns := 0, 0, 0
			for _, p := range pieces {
				switch classify(part, p.poly) {
				case 0:
					nf++
				case 1:
					nb++
				default:
					ns++
				}
			}
			if nf+ns == 0 || nb+ns == 0 {
				continue
			}
			diff := nf - nb
			if diff < 0 {
				diff = -diff
			}
			score := ns*splitScore*len(pieces) + diff
			if score < bestScore {
				best, bestScore = part, score
			}
		}
	}
	return best, bestScore != math.MaxInt
}

// classify returns 0 when poly lies on the front side, 1 for the back and 2
// when the partition cuts it. Points within sideEps count as on the line.
func classify(part partition, poly []mgl32.Vec2) int {
	var lo, hi float32
	for i, p := range poly {
		s := part.side(p) / part.d.Len()
		if i == 0 || s < lo {
			lo = s
		}
		if i == 0 || s > hi {
			hi = s
		}
	}
	switch {
	case hi <= sideEps:
		return 1
	case lo >= -sideEps:
		return 0
	}
	return 2
}

func splitPiece(part partition, p piece) (front, back piece) {
	front = p
	back = p
	front.poly, front.tags = clip(part, p.poly, p.tags, 1)
	back.poly, back.tags = clip(part, p.poly, p.tags, -1)
	return front, back
}

// clip keeps the part of a convex polygon whose side sign matches keep.
// Each output vertex carries the tag of the edge leaving it; edges created
// along the partition are untagged.
func clip(part partition, poly []mgl32.Vec2, tags []int, keep float32) ([]mgl32.Vec2, []int) {
	n := len(poly)
	length := part.d.Len()
	cls := make([]int, n)
	dist := make([]float32, n)
	for i, p := range poly {
		dist[i] = part.side(p) / length * keep
		switch {
		case dist[i] > sideEps:
			cls[i] = 1
		case dist[i] < -sideEps:
			cls[i] = -1
		}
	}

	var out []mgl32.Vec2
	var outTags []int
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		c, nx := cls[i], cls[j]
		tag := 0
		if i < len(tags) {
			tag = tags[i]
		}
		switch {
		case c >= 0 && nx >= 0:
			out = append(out, poly[i])
			outTags = append(outTags, tag)
		case c == 0 && nx < 0:
			out = append(out, poly[i])
			outTags = append(outTags, 0)
		case c > 0 && nx < 0:
			out = append(out, poly[i], lerp2(poly[i], poly[j], dist[i]/(dist[i]-dist[j])))
			outTags = append(outTags, tag, 0)
		case c < 0 && nx > 0:
			out = append(out, lerp2(poly[i], poly[j], dist[i]/(dist[i]-dist[j])))
			outTags = append(outTags, tag)
		}
	}
	return out, outTags
}

func lerp2(a, b mgl32.Vec2, t float32) mgl32.Vec2 {
	return a.Add(b.Sub(a).Mul(t))
}

// commit writes the finished tree back into the level.
func (b *builder) commit(root level.Child) {
	lvl := b.lvl
	index := make(map[mgl32.Vec2]int, len(lvl.Vertices))
	for i, v := range lvl.Vertices {
		if _, ok := index[v]; !ok {
			index[v] = i
		}
	}
	vertex := func(p mgl32.Vec2) int {
		if i, ok := index[p]; ok {
			return i
		}
		lvl.Vertices = append(lvl.Vertices, p)
		index[p] = len(lvl.Vertices) - 1
		return len(lvl.Vertices) - 1
	}

	leaves := make([]level.Leaf, len(b.leaves))
	for i, p := range b.leaves {
		leaf := level.Leaf{Sector: p.sector, Vertices: make([]int, len(p.poly))}
		tagged := false
		for k, v := range p.poly {
			leaf.Vertices[k] = vertex(v)
			if k < len(p.tags) && p.tags[k] != 0 {
				tagged = true
			}
		}
		if tagged {
			leaf.LineTags = append([]int(nil), p.tags...)
		}
		leaves[i] = leaf
	}

	if lvl.PVS != nil && (b.splits > 0 || !identityOrder(b.leaves)) {
		pvs := level.NewPVS(len(b.leaves))
		for a, pa := range b.leaves {
			for c, pc := range b.leaves {
				pvs.Set(a, c, lvl.PVS.Visible(pa.origin, pc.origin))
			}
		}
		lvl.PVS = pvs
	}

	lvl.Leaves = leaves
	lvl.Nodes = b.nodes
	lvl.Root = root
	lvl.Surfaces = nil
	lvl.ComputeLeafBounds()
	if !root.Leaf {
		nodeBounds(lvl, root)
	}
}

func identityOrder(pieces []piece) bool {
	for i, p := range pieces {
		if p.origin != i {
			return false
		}
	}
	return true
}

// ComputeBounds fills the leaf and node boxes of a level whose tree was
// loaded rather than built here.
func ComputeBounds(lvl *level.Level) error {
	lvl.ComputeLeafBounds()
	if !lvl.Root.Valid() || lvl.Root.Leaf {
		return nil
	}
	if _, ok := nodeBoundsDepth(lvl, lvl.Root, 0); !ok {
		return fmt.Errorf("%w: node references loop or dangle", ErrDegenerateTree)
	}
	return nil
}

// nodeBounds fills every node box as the union of its children.
func nodeBounds(lvl *level.Level, c level.Child) [2]mgl32.Vec3 {
	b, _ := nodeBoundsDepth(lvl, c, 0)
	return b
}

func nodeBoundsDepth(lvl *level.Level, c level.Child, depth int) ([2]mgl32.Vec3, bool) {
	if c.Leaf {
		leaf, ok := lvl.Leaf(c.Index)
		if !ok {
			return [2]mgl32.Vec3{}, false
		}
		return leaf.Bounds, true
	}
	n, ok := lvl.Node(c.Index)
	if !ok || depth > len(lvl.Nodes) {
		return [2]mgl32.Vec3{}, false
	}
	f, okF := nodeBoundsDepth(lvl, n.Children[0], depth+1)
	bk, okB := nodeBoundsDepth(lvl, n.Children[1], depth+1)
	n.Bounds = [2]mgl32.Vec3{
		{min(f[0].X(), bk[0].X()), min(f[0].Y(), bk[0].Y()), min(f[0].Z(), bk[0].Z())},
		{max(f[1].X(), bk[1].X()), max(f[1].Y(), bk[1].Y()), max(f[1].Z(), bk[1].Z())},
	}
	return n.Bounds, okF && okB
}
