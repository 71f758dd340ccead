package trace

import (
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	minSegment = 1e-6
	boundsPad  = 1e-2
)

// Result is the closest hit along a segment. Fraction is 1 and Surface is
// -1 when nothing was hit.
type Result struct {
	Fraction float32
	Surface  int
	Normal   mgl32.Vec3
	Point    mgl32.Vec3
}

func (r Result) Hit() bool {
	return r.Surface >= 0
}

func miss() Result {
	return Result{Fraction: 1, Surface: -1}
}

// Tracer casts segments through a level's BSP. It never writes to the level
// so one Tracer can be shared by every worker.
type Tracer struct {
	lvl *level.Level
}

func New(lvl *level.Level) *Tracer {
	return &Tracer{lvl: lvl}
}

func (t *Tracer) Level() *level.Level {
	return t.lvl
}

type segment struct {
	start, end mgl32.Vec3
	dir        mgl32.Vec3
	res        Result
}

// Trace returns the first surface crossed going from start to end. A level
// without a tree or a zero-length segment yields a miss.
func (t *Tracer) Trace(start, end mgl32.Vec3) Result {
	if t == nil || t.lvl == nil || !t.lvl.Root.Valid() {
		return miss()
	}
	dir := end.Sub(start)
	if dir.Len() < minSegment {
		return miss()
	}
	seg := &segment{start: start, end: end, dir: dir, res: miss()}
	t.visit(seg, t.lvl.Root, 0)
	return seg.res
}

func (t *Tracer) visit(seg *segment, c level.Child, depth int) {
	if c.Leaf {
		t.traceLeaf(seg, c.Index)
		return
	}
	node, ok := t.lvl.Node(c.Index)
	if !ok || depth > len(t.lvl.Nodes) {
		return
	}
	if !seg.crossesBox(node.Bounds) {
		return
	}
	side := node.PointSide(seg.start.X(), seg.start.Y())
	t.visit(seg, node.Children[side], depth+1)
	if node.PointSide(seg.end.X(), seg.end.Y()) != side {
		t.visit(seg, node.Children[side^1], depth+1)
	}
}

func (t *Tracer) traceLeaf(seg *segment, idx int) {
	leaf, ok := t.lvl.Leaf(idx)
	if !ok {
		return
	}
	for _, si := range leaf.Surfaces {
		surf, ok := t.lvl.Surface(si)
		if !ok {
			continue
		}
		seg.traceSurface(si, surf)
	}
}

func (seg *segment) traceSurface(idx int, surf *level.Surface) {
	d1 := surf.Plane.Distance(seg.start)
	d2 := surf.Plane.Distance(seg.end)
	// a segment starting on the plane is leaving the surface
	if (d1 > 0 && d2 > 0) || (d1 < 0 && d2 < 0) || d1 == d2 || d1 == 0 {
		return
	}
	frac := d1 / (d1 - d2)
	if frac < 0 || frac > 1 || frac >= seg.res.Fraction {
		return
	}
	if !Contains(surf.Verts, seg.start, seg.end) {
		return
	}
	seg.res = Result{
		Fraction: frac,
		Surface:  idx,
		Normal:   surf.Plane.Normal,
		Point:    seg.start.Add(seg.dir.Mul(frac)),
	}
}

// crossesBox is a slab test limited to the part of the segment still
// closer than the best hit.
func (seg *segment) crossesBox(b [2]mgl32.Vec3) bool {
	tmin, tmax := float32(0), seg.res.Fraction
	for a := 0; a < 3; a++ {
		lo, hi := b[0][a]-boundsPad, b[1][a]+boundsPad
		s, d := seg.start[a], seg.dir[a]
		if d == 0 {
			if s < lo || s > hi {
				return false
			}
			continue
		}
		t0 := (lo - s) / d
		t1 := (hi - s) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = max(tmin, t0)
		tmax = min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}
